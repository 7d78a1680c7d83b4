package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qolaba/qolaba-mcp-go/internal/auth"
	"github.com/qolaba/qolaba-mcp-go/internal/config"
	"github.com/qolaba/qolaba-mcp-go/internal/logs"
	"github.com/qolaba/qolaba-mcp-go/internal/observability"
	"github.com/qolaba/qolaba-mcp-go/internal/orchestrator"
	"github.com/qolaba/qolaba-mcp-go/internal/server"
	"github.com/qolaba/qolaba-mcp-go/internal/upstream"
)

var (
	logLevel  string
	logToFile bool
	logDir    string

	version = "v1.0.0" // Injected by -ldflags during build
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "qolaba-mcp",
		Short:   "Qolaba MCP server - expose the Qolaba AI API as Model Context Protocol tools over stdio",
		Version: version,
		RunE:    runServer,
		// runServer handles exit codes itself; suppress cobra's own output.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logToFile, "log-to-file", false, "Enable logging to a rotating file")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Custom log directory path (default: ~/.qolaba-mcp/logs)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitCodeGeneralError)
	}
}

func runServer(_ *cobra.Command, _ []string) error {
	logOpts := logs.DefaultOptions()
	logOpts.Level = logLevel
	logOpts.EnableFile = logToFile
	logOpts.LogDir = logDir

	logger, err := logs.Setup(logOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to set up logging: %v\n", err)
		os.Exit(ExitCodeStartupError)
	}
	defer func() {
		_ = logger.Sync()
	}()

	settings, err := config.FromEnv()
	if err != nil {
		logger.Error("configuration invalid", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitCodeConfigError)
	}

	logger.Info("configuration loaded", zap.Any("settings", settings.Redacted()))

	metrics := observability.NewMetrics()
	health := observability.NewHealth(settings, metrics)

	httpClient := upstream.NewHTTPClient(settings)
	authProvider := auth.NewProvider(settings, httpClient, logger)
	client := upstream.NewClient(settings, httpClient, authProvider, logger, metrics)
	orch := orchestrator.New(settings, client, authProvider, logger, metrics)
	bridge := server.NewBridgeServer(orch, health, logger)

	// Drain in-flight operations on SIGINT/SIGTERM before the process exits.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		bridge.Shutdown()
		authProvider.Close()
		client.Close()
		_ = logger.Sync()
		os.Exit(ExitCodeSuccess)
	}()

	if err := bridge.Serve(); err != nil {
		logger.Error("MCP server error", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: MCP server failed: %v\n", err)
		os.Exit(ExitCodeStartupError)
	}

	// Client closed stdin: normal termination.
	bridge.Shutdown()
	authProvider.Close()
	client.Close()
	return nil
}
