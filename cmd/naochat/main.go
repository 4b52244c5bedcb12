package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hfzizz/nao-llm/internal/bootstrap"
	"github.com/hfzizz/nao-llm/internal/config"
	logpkg "github.com/hfzizz/nao-llm/internal/logger"
	"github.com/hfzizz/nao-llm/internal/metrics"
	"github.com/hfzizz/nao-llm/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, session string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (default: config/<ENV>.yaml)")
	flag.StringVar(&session, "session", "terminal", "Session handle")
	flag.Parse()

	env := config.GetEnv()
	var cfg config.Config
	var err error
	if cfgPath == "" {
		cfg, err = config.Load(env)
	} else {
		cfg, err = config.LoadFile(cfgPath)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI: log to the rotating file only.
	logFile := cfg.Logging.File
	if logFile == "" {
		logFile = "naochat.log"
	}
	logger, err := logpkg.NewLogger(env, logpkg.Options{
		Level:      cfg.Logging.Level,
		File:       logFile,
		FileOnly:   true,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("Loading knowledge base...")
	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to build pipeline", zap.Error(err))
		fmt.Fprintln(os.Stderr, "failed to start:", err)
		os.Exit(1)
	}
	defer func() { _ = app.Close() }()

	go app.RunJanitor(ctx, cfg.Conversation.IdleTimeout())

	timeout := time.Duration(cfg.Embedding.TimeoutSec+cfg.Generation.TimeoutSec) * time.Second
	model := tui.New(app.Chat, session, cfg.Chat.AssistantName, timeout)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		logger.Error("TUI error", zap.Error(err))
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
