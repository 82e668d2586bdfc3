package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/viczommers/QueueChain/internal/advancer"
	"github.com/viczommers/QueueChain/internal/bidding"
	"github.com/viczommers/QueueChain/internal/chain"
	"github.com/viczommers/QueueChain/internal/config"
	"github.com/viczommers/QueueChain/internal/httpapi"
	"github.com/viczommers/QueueChain/internal/journal"
	"github.com/viczommers/QueueChain/internal/keyring"
	"github.com/viczommers/QueueChain/internal/metrics"
	"github.com/viczommers/QueueChain/internal/queueview"
	"github.com/viczommers/QueueChain/internal/sched"
)

const shutdownGrace = 10 * time.Second

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw, err := chain.Dial(ctx, cfg.RPCURL, cfg.ContractAddress, cfg.ABIPath, logger.With().Str("component", "chain").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("connect chain gateway")
	}
	defer gw.Close()

	jrnl := journal.Open(cfg.JournalPath)
	if jrnl != nil {
		logger.Info().Str("path", cfg.JournalPath).Msg("transaction journal enabled")
		defer func() {
			if err := jrnl.Close(); err != nil {
				logger.Warn().Err(err).Msg("close transaction journal")
			}
		}()
	}

	keys := keyring.NewManager()
	engine := bidding.NewEngine(gw, keys, cfg.GasLimit, jrnl, logger.With().Str("component", "bidding").Logger())
	adv := advancer.New(gw, keys, cfg.GasLimit, jrnl, logger.With().Str("component", "advancer").Logger())
	facade := queueview.NewFacade(gw, logger.With().Str("component", "queueview").Logger())

	refreshLog := logger.With().Str("component", "refresh").Logger()
	scheduler := sched.New(clockwork.NewRealClock(), logger.With().Str("component", "sched").Logger())
	scheduler.Add("advance-queue", cfg.PopInterval, func(ctx context.Context) {
		adv.AdvanceIfReady(ctx)
	})
	scheduler.Add("refresh-current", cfg.RefreshInterval, func(ctx context.Context) {
		refreshCurrent(ctx, gw, refreshLog)
	})

	api := httpapi.NewServer(keys, engine, facade, gw, logger.With().Str("component", "httpapi").Logger())
	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(ctx)
	})
	g.Go(func() error {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
	logger.Info().Msg("shutdown complete")
}

// refreshCurrent is the read-only cache-warming probe: it only checks the
// connection and logs the queue head, mutating nothing that is served.
func refreshCurrent(ctx context.Context, gw *chain.Gateway, log zerolog.Logger) {
	if !gw.Connected(ctx) {
		metrics.RefreshFailures.Inc()
		log.Warn().Msg("background refresh: blockchain connection failed")
		return
	}
	url, err := gw.CurrentSongURL(ctx)
	if err != nil {
		metrics.RefreshFailures.Inc()
		log.Error().Err(err).Msg("background refresh failed")
		return
	}
	log.Info().Str("url", url).Msg("background refresh: current queue head")
}
