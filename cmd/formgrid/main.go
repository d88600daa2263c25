package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fieldworkhq/formgrid/internal/config"
	"github.com/fieldworkhq/formgrid/internal/form"
	"github.com/fieldworkhq/formgrid/internal/mcp"
)

// Populated at build time via -ldflags.
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}
	if cfg.IsDebug() && cfg.IsServerMode() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	formService, err := form.NewService(cfg.MaxFileSize, cfg.FormsDirectory, cfg.PipelineOptions())
	if err != nil {
		log.Fatalf("Failed to create form service: %v", err)
	}
	server, err := mcp.NewServer(cfg, formService)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IsServerMode() {
		runServerMode(ctx, cancel, server)
		return
	}
	runStdioMode(ctx, server)
}

// setupLogging routes log output by mode. Stdio mode owns stdout for the MCP
// protocol, so logs go to stderr and are dropped entirely unless debugging.
func setupLogging(cfg *config.Config) {
	if !cfg.IsStdioMode() {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		return
	}
	log.SetOutput(os.Stderr)
	if !cfg.IsDebug() {
		log.SetOutput(os.NewFile(0, os.DevNull))
	}
}

// runServerMode runs the server until it fails or a shutdown signal arrives.
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run(ctx)
	}()

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %s, shutting down", sig)
		cancel()
		if err := <-errCh; err != nil {
			log.Printf("Server shutdown with error: %v", err)
			os.Exit(1)
		}
	case err := <-errCh:
		if err != nil {
			log.Printf("Server error: %v", err)
			os.Exit(1)
		}
	}
	log.Println("Server stopped")
}

// runStdioMode runs until stdin closes; the parent process owns the
// lifecycle, so nothing is written to stdout but protocol frames.
func runStdioMode(ctx context.Context, server *mcp.Server) {
	if err := server.Run(ctx); err != nil {
		if os.Getenv("DEBUG") != "" {
			log.Printf("Server error: %v", err)
		}
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("formgrid MCP server %s\n", version)
	fmt.Printf("Build time: %s\n", buildTime)
	fmt.Printf("Git commit: %s\n", gitCommit)
	fmt.Printf("Go: %s\n", runtime.Version())
}
