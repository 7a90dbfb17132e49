package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wildwatch/wildwatch-go/internal/datastore"
	"github.com/wildwatch/wildwatch-go/internal/errors"
)

// initWebhookRoutes registers inbound webhook endpoints.
func (c *Controller) initWebhookRoutes() {
	c.Group.POST("/webhook/customers", c.CustomerWebhook)
}

// CustomerPayload is the customer create/update webhook body, matching the
// store platform's customer topic shape.
type CustomerPayload struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// CustomerWebhook upserts a customer record keyed by its external ID. The
// webhook is idempotent, replays update the same row. When a webhook secret
// is configured the request signature is verified against the raw body.
func (c *Controller) CustomerWebhook(ctx echo.Context) error {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read webhook body", http.StatusBadRequest)
	}

	if secret := c.Settings.Shopify.WebhookSecret; secret != "" {
		signature := ctx.Request().Header.Get("X-Shopify-Hmac-Sha256")
		if !validWebhookSignature(body, secret, signature) {
			return c.HandleError(ctx, errors.NewStd("webhook signature mismatch"),
				"Unauthorized", http.StatusUnauthorized)
		}
	}

	var payload CustomerPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.HandleError(ctx, err, "Invalid webhook payload", http.StatusBadRequest)
	}
	if payload.ID == 0 {
		return c.HandleError(ctx, errors.NewStd("customer id is required"),
			"Invalid webhook payload", http.StatusBadRequest)
	}

	customer := &datastore.Customer{
		ShopifyID: payload.ID,
		Email:     payload.Email,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
	}
	if err := c.DS.UpsertCustomer(customer); err != nil {
		return c.HandleError(ctx, err, "Failed to store customer", statusFor(err))
	}

	c.apiLogger.Info("customer webhook processed", "shopify_id", payload.ID)
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// validWebhookSignature checks the base64 HMAC-SHA256 of the raw body.
func validWebhookSignature(body []byte, secret, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
