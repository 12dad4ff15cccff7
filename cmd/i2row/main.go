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
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/i2row/internal/ledger"
	"github.com/zombor/i2row/internal/scanning"
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

	// A missing .env is fine; flags and the environment still apply
	_ = godotenv.Load()

	fs := ff.NewFlagSet("i2row")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		dbPath         = fs.StringLong("db", "i2row.db", "Database file path")
		storagePath    = fs.StringLong("storage", "./captures", "Capture image directory")
		scannerType    = fs.StringLong("scanner", "gemini", "Model backend: 'gemini', 'genai' or 'ollama'")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		modelName      = fs.StringLong("model", "", "Default model name (backend default when empty)")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		maxRetries     = fs.IntLong("max-retries", scanning.DefaultMaxRetries, "Retries after a failed model call")
		baseDelay      = fs.DurationLong("base-delay", scanning.DefaultBaseDelay, "Backoff before the first retry; doubles each retry")
		requestTimeout = fs.DurationLong("request-timeout", 2*time.Minute, "Timeout for a single model call (0 disables)")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel       = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		_              = fs.StringLong("config", "", "Config file (optional)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("I2ROW"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithConfigAllowMissingFile(),
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

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// Initialize database
	slog.Info("Initializing database...")
	db, err := ledger.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	apiKey := *geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}

	// Initialize model backend based on type
	var model scanning.Model
	switch *scannerType {
	case "gemini":
		slog.Info("Initializing Gemini backend...", "model", *modelName)
		model = scanning.NewGemini(*modelName)
	case "genai":
		slog.Info("Initializing GenAI backend...", "model", *modelName)
		model = scanning.NewGenAI(*modelName, "")
	case "ollama":
		slog.Info("Initializing Ollama backend...", "url", *ollamaURL, "model", *modelName)
		model = scanning.NewOllama(*ollamaURL, *modelName)
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "gemini, genai or ollama")
		os.Exit(1)
	}
	if apiKey == "" && *scannerType != "ollama" {
		slog.Warn("No default API key configured; captures must supply apiKey")
	}

	policy := scanning.RetryPolicy{MaxRetries: *maxRetries, BaseDelay: *baseDelay}
	extractor := scanning.NewExtractor(model, policy, *requestTimeout)
	defer extractor.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := ledger.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	service := ledger.NewService(db, extractor, store,
		ledger.WithDefaultCredential(apiKey),
		ledger.WithDefaultModel(*modelName),
	)

	server := ledger.NewServer(service, ledger.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	})

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}
