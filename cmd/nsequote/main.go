package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nanzhong/nsequote/config"
	"github.com/nanzhong/nsequote/logx"
	"github.com/nanzhong/nsequote/market"
	"github.com/nanzhong/nsequote/menu"
	"github.com/nanzhong/nsequote/slack"
	slackgo "github.com/slack-go/slack"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Args[0], os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, closeLog, err := logx.New(logx.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()

	nse, err := market.NewNSEBackend(cfg.NSEBaseURL, cfg.RequestTimeout)
	if err != nil {
		logger.Error("Failed to create NSE session", zap.Error(err))
		return
	}
	tracker := market.NewTracker(nse, market.NewYahooBackend(cfg.HistoryLookback), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker.Init(ctx)

	if cfg.Serve {
		if err := serve(ctx, cfg, tracker, logger); err != nil {
			closeLog()
			os.Exit(1)
		}
		return
	}

	// Reading stdin can't be interrupted, so wait on whichever finishes first.
	done := make(chan error, 1)
	go func() {
		done <- menu.New(tracker, os.Stdin, os.Stdout).Run(ctx)
	}()
	select {
	case err := <-done:
		if err != nil {
			logger.Error("Reading input failed", zap.Error(err))
		}
	case <-ctx.Done():
		fmt.Fprintln(os.Stdout)
	}
}

func serve(ctx context.Context, cfg config.Config, tracker *market.Tracker, logger *zap.Logger) error {
	slackEventHandler := slack.NewEventHandler(
		slackgo.New(cfg.SlackBotToken),
		cfg.SlackSigningSecret,
		tracker,
		logger,
	)
	mux := http.NewServeMux()
	mux.Handle("/slack/event", slackEventHandler)

	server := http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("Starting slack http server...", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	select {
	case err := <-listenErr:
		logger.Error("Slack http server listen failed", zap.Error(err))
		return err
	case <-ctx.Done():
	}
	logger.Info("Shutting down slack http server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Slack http server shutdown failed", zap.Error(err))
	}
	return nil
}
