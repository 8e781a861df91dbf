package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/denysvitali/fm-connector/pkg/config"
	"github.com/denysvitali/fm-connector/pkg/server"
	"github.com/denysvitali/fm-connector/pkg/telemetry"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the file manager connector",
	Long: `Start the HTTP server answering the file manager widget's connector
requests for the configured storage root.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().IntP("port", "p", 8000, "Port to listen on")
	serverCmd.Flags().String("connector-path", "/connector", "URL path of the connector endpoint")
	serverCmd.Flags().String("api-key", "", "API key required in the "+server.APIKeyHeader+" header")
	serverCmd.Flags().StringP("root", "r", "", "Storage root directory (default is the current directory)")
	serverCmd.Flags().Bool("create-root", true, "Create the storage root if it does not exist")
	serverCmd.Flags().String("path-prefix", "", "Prefix applied to every logical path below the root")
	serverCmd.Flags().String("culture", "en", "Fallback language of messages")
	serverCmd.Flags().Bool("overwrite", false, "Let uploads overwrite existing files")
	serverCmd.Flags().Bool("unique-names", false, "Rename colliding uploads to name_N instead of rejecting them")
	serverCmd.Flags().Bool("images-only", false, "Accept image uploads only")
	serverCmd.Flags().Int("file-size-limit", 16, "Maximum upload size in MB (0 disables the limit)")
	serverCmd.Flags().Bool("enable-telemetry", false, "Enable OpenTelemetry tracing")
	serverCmd.Flags().String("otel-endpoint", "", "OpenTelemetry endpoint (if empty, uses auto-export)")

	// Bind flags to viper
	_ = viper.BindPFlag("server.port", serverCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.connector_path", serverCmd.Flags().Lookup("connector-path"))
	_ = viper.BindPFlag("server.api_key", serverCmd.Flags().Lookup("api-key"))
	_ = viper.BindPFlag("storage.root", serverCmd.Flags().Lookup("root"))
	_ = viper.BindPFlag("storage.create_root", serverCmd.Flags().Lookup("create-root"))
	_ = viper.BindPFlag("storage.path_prefix", serverCmd.Flags().Lookup("path-prefix"))
	_ = viper.BindPFlag("filemanager.culture", serverCmd.Flags().Lookup("culture"))
	_ = viper.BindPFlag("filemanager.upload.overwrite", serverCmd.Flags().Lookup("overwrite"))
	_ = viper.BindPFlag("filemanager.upload.unique_names", serverCmd.Flags().Lookup("unique-names"))
	_ = viper.BindPFlag("filemanager.upload.images_only", serverCmd.Flags().Lookup("images-only"))
	_ = viper.BindPFlag("filemanager.upload.file_size_limit", serverCmd.Flags().Lookup("file-size-limit"))
	_ = viper.BindPFlag("telemetry.enabled", serverCmd.Flags().Lookup("enable-telemetry"))
	_ = viper.BindPFlag("telemetry.endpoint", serverCmd.Flags().Lookup("otel-endpoint"))
}

func runServer(cmd *cobra.Command, args []string) error {
	logger := GetLogger()
	logger.Info("Starting file manager connector")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize telemetry if enabled
	if cfg.Telemetry.Enabled {
		logger.Info("Initializing OpenTelemetry")
		cleanup, err := telemetry.Initialize(cfg.Telemetry, logger)
		if err != nil {
			logger.Warnf("Failed to initialize telemetry: %v", err)
		} else {
			defer cleanup()
		}
	}

	// Create and start server
	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	// Wait for interrupt signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-interrupt:
		logger.Infof("Received signal %v, shutting down...", sig)

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
			return err
		}

		logger.Info("Server stopped gracefully")
		return nil
	}
}
