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

	"github.com/jlagdameo/gastos-bot/internal/expense"
	"github.com/jlagdameo/gastos-bot/internal/extraction"
	"github.com/jlagdameo/gastos-bot/internal/telegram"
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

	// Optional .env for local runs; flags and real env vars win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	fs := ff.NewFlagSet("gastos-bot")
	var (
		telegramToken = fs.StringLong("telegram-token", "", "Telegram bot token (or set GASTOS_BOT_TELEGRAM_TOKEN)")
		providerType  = fs.StringLong("provider", "gemini", "Inference provider: 'gemini' or 'ollama'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		dbPath        = fs.StringLong("db", "", "Pending-slot database file path (empty = in-memory only)")
		timezone      = fs.StringLong("timezone", "Asia/Manila", "Timezone used to stamp expense records")
		pollTimeout   = fs.IntLong("poll-timeout", 30, "Telegram long-poll timeout in seconds")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("GASTOS_BOT"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	token := *telegramToken
	if token == "" {
		token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if token == "" {
		slog.Error("Telegram bot token is required. Set --telegram-token or TELEGRAM_BOT_TOKEN")
		os.Exit(1)
	}

	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		slog.Error("Invalid timezone", "timezone", *timezone, "error", err)
		os.Exit(1)
	}

	// Initialize inference provider
	var provider extraction.Provider
	switch *providerType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini provider...", "model", *geminiModel)
		provider, err = extraction.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama provider...", "url", *ollamaURL, "model", *ollamaModel)
		slog.Warn("Ollama cannot transcribe audio; voice messages will fall back to the default record")
		provider, err = extraction.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid provider type", "type", *providerType, "valid", "gemini or ollama")
		os.Exit(1)
	}
	defer provider.Close()

	// Initialize pending store
	var store expense.PendingStore
	if *dbPath != "" {
		slog.Info("Initializing pending store...", "db", *dbPath)
		store, err = expense.NewBoltStore(*dbPath)
		if err != nil {
			slog.Error("Failed to initialize pending store", "error", err)
			os.Exit(1)
		}
	} else {
		store = expense.NewMemoryStore()
	}
	defer store.Close()

	// Initialize Telegram client and service
	client, err := telegram.NewClient(token)
	if err != nil {
		slog.Error("Failed to initialize Telegram client", "error", err)
		os.Exit(1)
	}

	extractor := extraction.NewExtractor(provider)
	merger := extraction.NewMerger(provider)
	service := expense.NewService(store, extractor, merger, telegram.NewMessenger(client), loc)
	bot := telegram.NewBot(client, service, *pollTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Gastos bot started", "version", version, "timezone", *timezone, "provider", *providerType)
	if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("Bot error", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutting down...")
}
