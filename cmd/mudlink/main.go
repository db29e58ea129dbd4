package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lawnchairsociety/mudlink/internal/client"
	"github.com/lawnchairsociety/mudlink/internal/config"
	"github.com/lawnchairsociety/mudlink/internal/floodguard"
	"github.com/lawnchairsociety/mudlink/internal/logger"
	"github.com/lawnchairsociety/mudlink/internal/socks4"
	"github.com/lawnchairsociety/mudlink/internal/transcript"
)

// consolePrinter writes server lines to stdout and reports the close event.
type consolePrinter struct {
	closed chan struct{}
}

func (p *consolePrinter) MessageReceived(line string) {
	fmt.Println(line)
}

func (p *consolePrinter) ConnectionClosed() {
	close(p.closed)
}

func main() {
	// Parse command-line flags
	host := flag.String("host", "", "Server hostname (overrides config)")
	port := flag.Int("port", 0, "Server port (overrides config)")
	wsURL := flag.String("ws", "", "WebSocket URL to connect to instead of raw TCP")
	proxyHost := flag.String("proxy-host", "", "SOCKS4 proxy hostname (overrides config)")
	proxyPort := flag.Int("proxy-port", 0, "SOCKS4 proxy port")
	proxyUser := flag.String("proxy-user", "", "SOCKS4 user-id field")
	interval := flag.Int("interval", -1, "Minimum milliseconds between sends (overrides config)")
	configFile := flag.String("config", "data/mudlink.yaml", "Path to client config YAML file")
	loggingConfig := flag.String("logging", "data/logging.yaml", "Path to logging config YAML file")
	transcriptPath := flag.String("transcript", "", "Transcript database path (enables transcript recording)")
	flag.Parse()

	// Initialize logger first (before any logging)
	logConfig, _ := logger.LoadConfig(*loggingConfig)
	logger.Initialize(logConfig)

	logger.Info("Starting mudlink client")

	// Load client config (missing file falls back to defaults)
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Warning("Failed to load config, using defaults", "path", *configFile, "error", err)
		cfg = config.DefaultConfig()
	}

	// Command-line overrides
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *wsURL != "" {
		cfg.Server.WebSocketURL = *wsURL
	}
	if *proxyHost != "" {
		cfg.Proxy.Enabled = true
		cfg.Proxy.Host = *proxyHost
	}
	if *proxyPort != 0 {
		cfg.Proxy.Port = *proxyPort
	}
	if *proxyUser != "" {
		cfg.Proxy.User = *proxyUser
	}
	if *interval >= 0 {
		cfg.Send.MinIntervalMillis = *interval
	}
	if *transcriptPath != "" {
		cfg.Transcript.Enabled = true
		cfg.Transcript.Path = *transcriptPath
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := client.New(ctx, client.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		WebSocketURL:    cfg.Server.WebSocketURL,
		MinSendInterval: time.Duration(cfg.Send.MinIntervalMillis) * time.Millisecond,
	})

	// Wire the flood guard
	if cfg.FloodGuard.Enabled {
		guard := floodguard.NewGuard(floodguard.ConfigFromYAML(
			cfg.FloodGuard.Enabled,
			cfg.FloodGuard.MaxMessages,
			cfg.FloodGuard.TimeWindowSeconds,
			cfg.FloodGuard.RepeatCooldownSeconds,
		))
		c.SetFloodGuard(guard)
		logger.Info("Flood guard enabled", "max_messages", cfg.FloodGuard.MaxMessages, "time_window", cfg.FloodGuard.TimeWindowSeconds)
	}

	// Wire the transcript store
	var session *transcript.Session
	if cfg.Transcript.Enabled {
		dialect := transcript.DialectType(cfg.Transcript.Dialect)
		if dialect == "" {
			dialect = transcript.DialectSQLite
		}
		store, err := transcript.Open(dialect, cfg.Transcript.Path)
		if err != nil {
			log.Fatalf("Failed to open transcript store: %v", err)
		}
		defer store.Close()

		session, err = store.BeginSession(cfg.Server.Address())
		if err != nil {
			log.Fatalf("Failed to begin transcript session: %v", err)
		}
		c.SetRecorder(session)
		logger.Info("Transcript recording enabled", "path", cfg.Transcript.Path, "session_id", session.ID())
	}

	printer := &consolePrinter{closed: make(chan struct{})}
	c.Subscribe(printer)

	// Connect, directly or through the proxy
	if cfg.Proxy.Enabled {
		logger.Info("Connecting via SOCKS4 proxy", "proxy_host", cfg.Proxy.Host, "proxy_port", cfg.Proxy.Port)
		err = c.ConnectProxy(cfg.Proxy.Host, cfg.Proxy.Port, cfg.Proxy.User)
	} else {
		err = c.Connect()
	}
	if err != nil {
		var perr *socks4.Error
		if errors.As(err, &perr) {
			log.Fatalf("Proxy refused the connection: %v", err)
		}
		log.Fatalf("Failed to connect: %v", err)
	}

	fmt.Printf("Connected to %s. Type lines to send, Ctrl+C to quit.\n", cfg.Server.Address())

	// Forward stdin lines to the server
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			if err := c.Send(line); err != nil {
				var fbe *client.FloodBlockedError
				if errors.As(err, &fbe) {
					fmt.Fprintf(os.Stderr, "Message blocked: %v\n", fbe)
					continue
				}
				logger.Error("Send failed", "error", err)
				fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
			}
		}
		// Stdin closed; leave the connection up for server traffic
	}()

	// Wait for interrupt signal or server-side close
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Shutting down")
	case <-printer.closed:
		logger.Info("Connection closed by server")
	}

	c.Close()

	if session != nil {
		if err := session.End(); err != nil {
			logger.Warning("Failed to finalize transcript session", "error", err)
		}
	}

	if err := c.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Client stopped")
}
