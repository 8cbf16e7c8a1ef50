package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tabgrip-mcp-server/internal/browser"
	"tabgrip-mcp-server/internal/config"
	"tabgrip-mcp-server/internal/dom"
	"tabgrip-mcp-server/internal/facts"
	"tabgrip-mcp-server/internal/input"
	mcpserver "tabgrip-mcp-server/internal/mcp"
	"tabgrip-mcp-server/internal/recorder"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the Tabgrip MCP config file")
	ssePort := flag.Int("sse-port", 0, "Optional SSE port override (falls back to config)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Before we can redirect logs, write to stderr as last resort
		log.Fatalf("failed to load config: %v", err)
	}

	// Redirect logging to file for stdio mode (stderr interferes with MCP protocol)
	if cfg.MCP.SSEPort == 0 && cfg.Server.LogFile != "" {
		logFile, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			log.SetOutput(logFile)
			defer logFile.Close()
		} else {
			// If we can't open log file, disable logging to avoid stderr pollution
			log.SetOutput(io.Discard)
		}
	}
	if *ssePort != 0 {
		cfg.MCP.SSEPort = *ssePort
	}

	factEngine, err := facts.NewEngine(cfg.Facts)
	if err != nil {
		log.Fatalf("failed to initialize fact engine: %v", err)
	}

	var trace *recorder.Recorder
	if cfg.Recorder.Enable {
		trace, err = recorder.NewRecorder(cfg.Recorder.TraceDir, cfg.Recorder.GetMaxFiles())
		if err != nil {
			log.Fatalf("failed to initialize trace recorder: %v", err)
		}
		if err := trace.Start(); err != nil {
			log.Fatalf("failed to open trace file: %v", err)
		}
		defer trace.Close()
	}

	manager := browser.NewManager(cfg.Browser, cfg.Sessions, func(event, targetID, sessionID string) {
		factEngine.SessionEvent(targetID, sessionID, event)
		trace.Log("session."+event, targetID, sessionID)
	})

	dispatcher := browser.NewDispatcher(manager.Pool(), cfg.Sessions, func(targetID string, class browser.Class, attempt int) {
		factEngine.RetryEvent(targetID, class.String(), attempt)
		trace.Log("retry", targetID, fmt.Sprintf("%s attempt=%d", class, attempt))
	})

	inputs := input.NewService(dispatcher, cfg.Input, func(targetID, kind, detail, status string) {
		factEngine.InputEvent(targetID, kind, detail, status)
		trace.Log("input."+kind, targetID, detail+" "+status)
	})

	detector := dom.NewEngine(dispatcher, cfg.Detect, func(targetID string, matched, visible int) {
		factEngine.ScanEvent(targetID, matched, visible)
		trace.Log("scan", targetID, fmt.Sprintf("matched=%d visible=%d", matched, visible))
	})

	if cfg.Browser.AutoStart {
		if err := manager.Start(ctx); err != nil {
			log.Fatalf("failed to start browser: %v", err)
		}
	} else {
		log.Printf("browser auto-start disabled; use the launch-browser tool later")
	}

	server, err := mcpserver.NewServer(cfg, manager, inputs, detector, factEngine)
	if err != nil {
		log.Fatalf("failed to initialize MCP server: %v", err)
	}

	var startErr error
	if cfg.MCP.SSEPort > 0 {
		log.Printf("starting Tabgrip MCP SSE server on port %d", cfg.MCP.SSEPort)
		startErr = server.StartSSE(ctx, cfg.MCP.SSEPort)
	} else {
		log.Printf("starting Tabgrip MCP stdio server")
		startErr = server.Start(ctx)
	}

	if startErr != nil && !errors.Is(startErr, context.Canceled) {
		log.Fatalf("server exited with error: %v", startErr)
	}

	if err := manager.Shutdown(context.Background()); err != nil {
		log.Printf("browser shutdown: %v", err)
	}
}
