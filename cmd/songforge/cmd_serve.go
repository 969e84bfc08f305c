package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/songforge/internal/agent"
	"github.com/user/songforge/internal/bus"
	"github.com/user/songforge/internal/delivery"
	"github.com/user/songforge/internal/gateway"
	"github.com/user/songforge/internal/generation"
	"github.com/user/songforge/internal/hooks"
	promptpkg "github.com/user/songforge/internal/prompt"
	"github.com/user/songforge/internal/scheduler"
	"github.com/user/songforge/internal/state"
	"github.com/user/songforge/internal/types"
	"github.com/user/songforge/internal/webhook"
	"github.com/user/songforge/pkg/llm"
	"github.com/user/songforge/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the songforge daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "songforge.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Write PID file
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Session state
	tracker := state.NewTracker(cfg.Bus.QueueSize)
	media := state.NewMediaStore(cfg.DataDir)
	presets := state.NewPresetStore(filepath.Join(cfg.DataDir, "presets.json"))
	if err := presets.Seed(); err != nil {
		return fmt.Errorf("seed presets: %w", err)
	}

	// Event bus
	b := bus.New(cfg.Bus.HistorySize)
	emitter := hooks.New(b)
	delivery.Attach(b, tracker)

	if cfg.Bus.ArchiveEvents {
		archive := state.NewEventArchive(cfg.DataDir)
		b.RegisterGlobal(bus.HandlerFunc(func(ev types.Event) error {
			return archive.Append(context.Background(), ev)
		}), bus.ModeAsync)
		slog.Info("event archive enabled", "dir", cfg.DataDir)
	}

	// LLM provider
	provider := openai.New(&llm.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		MaxTokens:      cfg.LLM.MaxTokens,
		Temperature:    cfg.LLM.Temperature,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})

	// Prompt engine
	prompts, err := promptpkg.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return fmt.Errorf("create prompt engine: %w", err)
	}

	// Music generation backend
	generator := generation.New(cfg.Generation.BaseURL,
		time.Duration(cfg.Generation.TimeoutSeconds)*time.Second)

	// Agent
	ag := agent.New(tracker, provider, generator, emitter, prompts, presets, media, agent.Config{
		MaxIterations:     cfg.Agent.MaxIterations,
		IterationDelay:    time.Duration(cfg.Agent.IterationDelayMS) * time.Millisecond,
		MaxLyricsRetries:  cfg.Agent.MaxLyricsRetries,
		GenerationRetries: cfg.Generation.MaxRetries,
		FailureDelay:      time.Duration(cfg.Generation.FailureDelaySeconds) * time.Second,
		ExceptionDelay:    time.Duration(cfg.Generation.ExceptionDelaySeconds) * time.Second,
		CandidateCount:    cfg.Generation.CandidateCount,
		DefaultDuration:   cfg.Agent.DefaultDuration,
	})

	// Gateway
	gw := gateway.New(tracker, int64(cfg.MaxConcurrent))
	gw.Queue.SetProcessor(ag.ProcessRun)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw.Start(ctx)
	defer gw.Stop()

	// Maintenance scheduler
	sched := scheduler.New()
	if err := sched.AddJob("generation-health", cfg.Scheduler.HealthProbe,
		scheduler.HealthProbe(generator, 10*time.Second)); err != nil {
		return fmt.Errorf("add health probe job: %w", err)
	}
	threshold := time.Duration(cfg.Scheduler.StuckThresholdMinutes) * time.Minute
	if err := sched.AddJob("stuck-sessions", cfg.Scheduler.SessionAudit,
		scheduler.StuckAudit(tracker, threshold)); err != nil {
		return fmt.Errorf("add session audit job: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	// HTTP API
	if cfg.HTTP.Enabled {
		srv := webhook.NewServer(tracker, gw, b, media)
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: srv,
		}
		go func() {
			slog.Info("http server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("http server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	slog.Info("songforge started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"llm_model", cfg.LLM.Model,
		"generation_url", cfg.Generation.BaseURL,
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				// Re-write PID file since we failed to re-exec
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM: drain in-flight runs before exiting
		slog.Info("shutting down", "signal", sig)
		if !gw.Queue.WaitIdle(30 * time.Second) {
			slog.Warn("shutdown timed out waiting for active runs")
		}
		return nil
	}
}
