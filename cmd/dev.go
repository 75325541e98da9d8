package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/malezjaa/palladin/internal/config"
	"github.com/malezjaa/palladin/internal/logging"
	"github.com/malezjaa/palladin/internal/server"
)

var devCmd = &cobra.Command{
	Use:     "dev",
	Aliases: []string{"serve", "s"},
	Short:   "Start the development server with live reload",
	Long: `Start the development server. The project is rebuilt whenever a
watched file changes and connected browsers are told to refresh.

Examples:
  palladin dev                          # Serve the current directory
  palladin dev --root ./app             # Serve a different project
  palladin dev --port 3000 --open      # Pick a port and open a browser`,
	RunE: runDev,
}

func init() {
	rootCmd.AddCommand(devCmd)

	devCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	devCmd.Flags().String("host", "127.0.0.1", "Host to bind to")
	devCmd.Flags().String("root", ".", "Project root directory")
	devCmd.Flags().String("entrypoint", "src/index.tsx", "Bundle entrypoint, relative to root")
	devCmd.Flags().String("build-dir", "dist", "Bundler output directory, relative to root")
	devCmd.Flags().String("build-command", "", "Bundler command; the entrypoint is appended")
	devCmd.Flags().Bool("open", false, "Open a browser once the server is up")

	viper.BindPFlag("server.port", devCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", devCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.open", devCmd.Flags().Lookup("open"))
	viper.BindPFlag("build.root", devCmd.Flags().Lookup("root"))
	viper.BindPFlag("build.entrypoint", devCmd.Flags().Lookup("entrypoint"))
	viper.BindPFlag("build.dir", devCmd.Flags().Lookup("build-dir"))
	viper.BindPFlag("build.command", devCmd.Flags().Lookup("build-command"))
}

func runDev(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	srv, err := server.New(cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx)
}

func buildLogger(cfg *config.Config) (logging.Logger, error) {
	logCfg := &logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	}
	if cfg.Log.Dir != "" {
		return logging.NewFileLogger(logCfg, cfg.Log.Dir)
	}
	return logging.NewLogger(logCfg), nil
}
