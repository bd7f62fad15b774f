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

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"laundry-kiosk/internal/api"
	"laundry-kiosk/internal/assets"
	"laundry-kiosk/internal/booking"
	"laundry-kiosk/internal/guide"
	"laundry-kiosk/internal/metrics"
	"laundry-kiosk/internal/notification"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(root *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the kiosk API, countdown and inventory sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if cfg.Logging.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			k, err := openKiosk(ctx, cfg, log)
			if err != nil {
				log.Error().Err(err).Msg("failed to start kiosk")
				return err
			}
			defer func() {
				if err := k.Close(); err != nil {
					log.Error().Err(err).Msg("error while closing kiosk")
				}
			}()

			metrics.Register()
			metrics.Observe(k.bus)

			var push *webpush.Options
			if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
				push = &webpush.Options{
					VAPIDPublicKey:  cfg.Push.PublicKey,
					VAPIDPrivateKey: cfg.Push.PrivateKey,
					Subscriber:      cfg.Push.Subject,
					TTL:             cfg.Push.TTL,
				}
				pool := notification.NewWorkerPool(cfg.WorkerPool.Size, k.db, push, log)
				pool.Start(ctx)
				pool.Listen(k.bus)
			} else {
				log.Warn().Msg("VAPID keys not configured, push notifications disabled")
			}

			if err := k.engine.Load(ctx); err != nil {
				// Load falls back to the catalog on unreadable state; an error
				// here means the fresh state could not be written either.
				log.Error().Err(err).Msg("kiosk state could not be persisted, continuing in memory")
			}

			manual, err := guide.Load(cfg.Assets.GuideFile)
			if err != nil {
				return err
			}

			router := api.NewRouter(cfg.Server, api.Deps{
				Engine:   k.engine,
				Store:    k.store,
				Assets:   assets.NewService(k.store, cfg.Assets.MaxUploadBytes, log),
				Guide:    manual,
				WebPush:  push,
				Logger:   log.With().Str("component", "api").Logger(),
				MaxBytes: cfg.Assets.MaxUploadBytes,
			})
			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return booking.NewScheduler(k.engine, cfg.Booking.TickInterval, log).Run(gctx)
			})
			g.Go(func() error {
				log.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				log.Info().Msg("shutdown signal received, stopping services")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})

			if err := g.Wait(); err != nil {
				log.Error().Err(err).Msg("kiosk stopped with error")
				return err
			}
			log.Info().Msg("kiosk gracefully stopped")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port")
	return cmd
}
