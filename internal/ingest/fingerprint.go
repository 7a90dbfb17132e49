package ingest

import (
	"crypto/md5" //nolint:gosec // content fingerprint for dedup, not security
	"encoding/hex"
)

// Fingerprint computes the content hash of raw image bytes. It is the dedup
// key together with the user ID and is embedded into stored metadata as
// file_hash. Collision resistance at dedup strength is sufficient, the hash
// is not security sensitive.
func Fingerprint(raw []byte) string {
	sum := md5.Sum(raw) //nolint:gosec // see above
	return hex.EncodeToString(sum[:])
}
