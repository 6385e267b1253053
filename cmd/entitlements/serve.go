package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cimillas/course-entitlements/internal/jobs"
	transporthttp "github.com/cimillas/course-entitlements/internal/transport/http"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(rt *runtime) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled expiration sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				rt.cfg.Port = port
			}
			return serve(cmd.Context(), rt)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return cmd
}

func serve(ctx context.Context, rt *runtime) error {
	log := rt.log
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := rt.openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb, err := rt.openRedis(ctx)
	if err != nil {
		return err
	}
	readiness := []transporthttp.Pinger{pool}
	if rdb != nil {
		defer rdb.Close()
		readiness = append(readiness, redisPinger{rdb})
	}

	svc := rt.newService(pool, rdb)

	var sweeper *jobs.ExpirationSweeper
	if rt.cfg.SweepCron != "" {
		sweeper = jobs.NewExpirationSweeper(svc, rt.cfg.SweepBatch, log)
		if err := sweeper.Start(rt.cfg.SweepCron); err != nil {
			return err
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/ready", transporthttp.ReadyHandler(readiness...))
	mux.Handle("/entitlements", transporthttp.HandleEntitlements(svc))
	mux.Handle("/entitlements/", transporthttp.HandleEntitlement(svc))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(transporthttp.CORS(rt.cfg.CORSOrigins, mux), log)
	server := &http.Server{
		Addr:              ":" + rt.cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.WithField("port", rt.cfg.Port).Info("api listening")

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
			log.WithError(err).Error("server error")
		}
	case <-stopCtx.Done():
		log.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("server shutdown error")
	}
	if sweeper != nil {
		sweeper.Stop(shutdownCtx)
	}
	log.Info("server stopped")
	return runErr
}
