package app

import (
	"context"
	"net/http"
	"time"

	"chatcore/pkg/auth"
	"chatcore/pkg/banner"
	"chatcore/pkg/gateway"
	"chatcore/pkg/logger"
	"chatcore/pkg/telemetry"
)

// printBanner prints the startup banner with the effective runtime info.
func (a *App) printBanner() {
	journalPath := ""
	if a.cfg.Journal.Enabled {
		journalPath = a.cfg.Journal.Path
	}
	banner.Print(banner.Info{
		Addr:      a.cfg.Addr(),
		User:      a.CurrentUser().DisplayName(),
		UserID:    a.cfg.Identity.UserID,
		Transport: a.cfg.Transport.URL,
		Journal:   journalPath,
		Version:   a.version,
	})
}

// startHTTP starts the gateway server in a goroutine and returns a
// channel carrying any fatal server error.
func (a *App) startHTTP(ctx context.Context) <-chan error {
	gw := gateway.New(a.ctrl, a.dir, a.store, func() bool { return a.ready.Load() })
	var handler http.Handler = gw.Handler()
	handler = auth.RateLimit(a.cfg.Gateway.RPS, a.cfg.Gateway.Burst, handler)
	handler = auth.RequireToken(a.cfg.Gateway.Token, handler)
	handler = telemetry.Middleware(a.cfg.Gateway.SlowRequest.Duration(), handler)
	srv := &http.Server{
		Addr:         a.cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()
	return errCh
}
