package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/roomrelay/internal/adapters/http"
	"github.com/dkeye/roomrelay/internal/adapters/rtc"
	wssignal "github.com/dkeye/roomrelay/internal/adapters/signal"
	"github.com/dkeye/roomrelay/internal/adapters/store"
	"github.com/dkeye/roomrelay/internal/app"
	"github.com/dkeye/roomrelay/internal/config"
	"github.com/dkeye/roomrelay/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("relay server failed")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	rooms, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer rooms.Close()

	iceServers, err := rtc.ICEServers(cfg.ICEServers)
	if err != nil {
		return fmt.Errorf("ice servers: %w", err)
	}

	policy, err := app.PolicyByName(cfg.SlowConsumer)
	if err != nil {
		return err
	}

	// Each namespace is a fully independent relay; rooms never cross.
	namespaces := []core.Namespace{
		core.AudioVideo(cfg.AVPath),
		core.Whiteboard(cfg.WBPath),
	}
	relays := make([]*app.Relay, 0, len(namespaces))
	for _, ns := range namespaces {
		relay, err := app.NewRelay(ns, rooms, app.Options{
			MaxRoomSize:       cfg.MaxRoomSize,
			HeartbeatInterval: cfg.HeartbeatInterval,
			AuthTimeout:       cfg.AuthTimeout,
			Policy:            policy,
			JoinLimiter:       app.NewJoinLimiter(cfg.JoinRateLimit, cfg.JoinRateWindow),
		})
		if err != nil {
			return fmt.Errorf("relay %s: %w", ns.Name, err)
		}
		relays = append(relays, relay)
	}

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Relays:     relays,
		Rooms:      rooms,
		ICEServers: iceServers,
		Signal: wssignal.Options{
			ReadLimit:  cfg.ReadLimit,
			WriteWait:  cfg.WriteWait,
			SendBuffer: cfg.SendBuffer,
		},
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, relay := range relays {
		relay := relay
		g.Go(func() error { return relay.Run(gctx) })
	}
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("av", cfg.AVPath).Str("wb", cfg.WBPath).Msg("relay server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})
	return g.Wait()
}
