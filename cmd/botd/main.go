package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/config"
	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/adapters/broker/alpaca"
	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/adapters/signalfeed"
	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/adapters/state"
	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/adapters/tradelog"
	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/application/engine"
	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	once := flag.Bool("once", false, "run a single tick and exit")
	panicFlag := flag.Bool("panic", false, "force panic mode: flatten all longs immediately")
	profileFlag := flag.String("profile", "", "override the configured risk profile")
	report := flag.Bool("report", false, "print recent trades and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("thecouncilai-bot starting",
		"config", *configPath,
		"decision_interval", cfg.DecisionInterval(),
		"profile", cfg.Decision.DefaultProfile,
	)

	tradeLog, err := tradelog.Open(filepath.Join(cfg.Storage.StateDir, cfg.Storage.TradeDB))
	if err != nil {
		slog.Error("failed to open trade log", "err", err)
		os.Exit(1)
	}
	defer tradeLog.Close()

	if *report {
		runReport(tradeLog)
		return
	}

	stateStore, err := state.New(cfg.Storage.StateDir, slog.Default())
	if err != nil {
		slog.Error("failed to open state store", "err", err)
		os.Exit(1)
	}

	feed := signalfeed.New(signalfeed.Config{
		BrainAPIURL:     cfg.Signal.SnapshotBaseURL,
		CentrifugoWSURL: cfg.Signal.PushURL,
		CentrifugoToken: cfg.Signal.PushToken,
		PollInterval:    time.Duration(cfg.Signal.PollSeconds) * time.Second,
	}, slog.Default())

	br := alpaca.New(alpaca.Config{
		APIKey:         cfg.Broker.APIKey,
		APISecret:      cfg.Broker.APISecret,
		TradingBaseURL: cfg.Broker.TradingBaseURL,
		DataBaseURL:    cfg.Broker.DataBaseURL,
	})

	var panicSrc ports.PanicSource = ports.PanicFunc(func() bool { return *panicFlag })
	var profileSrc ports.ProfileSource = ports.ProfileFunc(func() string {
		if *profileFlag != "" {
			return *profileFlag
		}
		return cfg.Decision.DefaultProfile
	})

	eng := engine.New(engineConfig(cfg), feed.Scores(), br, stateStore, tradeLog, panicSrc, profileSrc, slog.Default())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go feed.Run(ctx)

	if *once {
		result, err := eng.Tick(ctx)
		if err != nil {
			slog.Error("tick_failed", "err", err)
			os.Exit(1)
		}
		slog.Info("tick_done", "mode", result.Mode, "actions", result.Actions)
		return
	}

	eng.Run(ctx)
	slog.Info("thecouncilai-bot stopped cleanly")
}

// engineConfig translates the YAML/env config into the engine's
// time.Duration-typed tunables (spec.md §6).
func engineConfig(cfg *config.Config) engine.Config {
	d := cfg.Decision
	return engine.Config{
		DefaultProfile:       d.DefaultProfile,
		DecisionInterval:     time.Duration(d.DecisionSeconds) * time.Second,
		SignalStaleThreshold: time.Duration(d.SignalStaleSeconds) * time.Second,
		MissingSymbolGrace:   time.Duration(d.MissingSymbolGraceSeconds) * time.Second,
		SafeReduceStep:       time.Duration(d.SafeReduceStepSeconds) * time.Second,
		SafeReducePerStep:    d.SafeReducePerStep,
		SafeStaleEscalate:    time.Duration(d.SafeStaleEscalateSeconds) * time.Second,
		Cooldown:             time.Duration(d.CooldownSeconds) * time.Second,
		AccountPollInterval:  time.Duration(d.AccountPollSeconds) * time.Second,
		CashBuffer:           d.CashBuffer,
		MinWeightPerPos:      d.MinWeightPerPos,
		ScorePointValueBps:   d.ScorePointValueBps,
		CommissionPerTrade:   d.CommissionPerTrade,
		SlippageBps:          d.SlippageBps,
		SwitchCostMultiplier: d.SwitchCostMultiplier,
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
