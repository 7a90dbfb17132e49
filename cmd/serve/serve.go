// Package serve implements the HTTP service subcommand.
package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wildwatch/wildwatch-go/internal/conf"
	"github.com/wildwatch/wildwatch-go/internal/datastore"
	"github.com/wildwatch/wildwatch-go/internal/detector"
	"github.com/wildwatch/wildwatch-go/internal/httpcontroller"
	"github.com/wildwatch/wildwatch-go/internal/imagestore"
	"github.com/wildwatch/wildwatch-go/internal/ingest"
	"github.com/wildwatch/wildwatch-go/internal/logging"
	"github.com/wildwatch/wildwatch-go/internal/observability"
)

// Command creates the serve command, which runs the ingestion HTTP service.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the image ingestion HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port to listen on")
	cmd.Flags().StringVar(&settings.Storage.Backend, "storage", viper.GetString("storage.backend"), "Blob storage backend (local or gcs)")
	cmd.Flags().StringVar(&settings.Storage.Local.Path, "uploadpath", viper.GetString("storage.local.path"), "Directory for locally stored images")
	cmd.Flags().StringVar(&settings.Model.Path, "model", viper.GetString("model.path"), "Path to the detection model file")
	cmd.Flags().StringVar(&settings.Model.LabelsPath, "labels", viper.GetString("model.labelspath"), "Path to the model label file")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}
	return nil
}

func runServer(ctx context.Context, settings *conf.Settings) error {
	logger := logging.ForService("serve")

	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close datastore", "error", err)
		}
	}()

	blobStore, err := imagestore.New(ctx, settings, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize image storage: %w", err)
	}

	// A missing model keeps read endpoints available, ingestion reports the
	// model error per request.
	var model detector.Model
	if settings.Model.Path != "" {
		tfliteModel, err := detector.LoadModel(settings.Model.Path, settings.Model.LabelsPath)
		if err != nil {
			logger.Error("failed to load detection model, ingestion disabled", "error", err)
		} else {
			model = tfliteModel
			logger.Info("detection model loaded",
				"model", settings.Model.Path, "labels", len(tfliteModel.Labels()))
		}
	} else {
		logger.Warn("no detection model configured, ingestion disabled")
	}

	metrics := observability.NewMetrics()
	orchestrator := ingest.New(store, blobStore,
		detector.New(model, settings.Model.Threshold, logger),
		&settings.Ingest, metrics, logger)

	server := httpcontroller.New(settings, store, orchestrator, blobStore, metrics)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	return server.Shutdown()
}
