package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/doc-digitizer/internal/document"
	"github.com/zombor/doc-digitizer/internal/extraction"
	"github.com/zombor/doc-digitizer/internal/history"
	"github.com/zombor/doc-digitizer/internal/scanning"
	"github.com/zombor/doc-digitizer/internal/server"
	"github.com/zombor/doc-digitizer/internal/session"
	"github.com/zombor/doc-digitizer/internal/storage"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("doc-digitizer")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbPath      = fs.StringLong("db", "doc-digitizer.db", "Database file path (bolt store)")
		storeType   = fs.StringLong("store", "bolt", "Storage backend: 'bolt' or 'file'")
		dataDir     = fs.StringLong("data-dir", "./data", "Data directory path (file store)")
		scannerType = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini' or 'ollama'")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY or API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "llama3.2-vision", "Ollama vision model name")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("DOC_DIGITIZER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize storage
	var kv storage.KV
	var err error
	switch *storeType {
	case "bolt":
		slog.Info("Initializing database...", "path", *dbPath)
		kv, err = storage.NewBoltKV(*dbPath)
	case "file":
		slog.Info("Initializing file storage...", "path", *dataDir)
		kv, err = storage.NewFileKV(*dataDir)
	default:
		slog.Error("Invalid store type", "type", *storeType, "valid", "bolt or file")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	// Initialize scanner based on type
	ctx := context.Background()
	var scanner scanning.Scanner
	switch *scannerType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			apiKey = os.Getenv("API_KEY")
		}
		if apiKey == "" {
			// Not fatal: extraction reports a configuration error until a key is set
			slog.Warn("Gemini API key is not set. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(ctx, apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "gemini or ollama")
		os.Exit(1)
	}
	defer scanner.Close()

	// Load document types and history
	registry := document.NewRegistry(kv)
	registry.Load()
	store := history.NewStore(kv)
	store.Load()

	// Initialize session and server
	sess := session.New(extraction.NewClient(scanner), store, registry)
	srv := server.NewServer(sess, registry, store)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := srv.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
