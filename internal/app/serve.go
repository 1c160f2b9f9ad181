package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Nr18/shipline/internal/ctxlog"
	"github.com/Nr18/shipline/internal/trigger"
)

// Serve runs the daemon: a webhook server that dispatches each accepted
// event as a run. Serve blocks until ctx is cancelled, then shuts the
// listener down gracefully. In-flight runs observe the cancellation
// through their own context.
func (a *App) Serve(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	webhooks := trigger.NewServer(trigger.DispatcherFunc(func(event trigger.Event) {
		go func() {
			result, err := a.Run(ctx, event)
			if err != nil {
				return
			}
			if result.Failed() {
				a.logger.Error("Run completed with failures.", "error", result.Err())
			}
		}()
	}))

	listen := a.cfg.Listen
	if listen == "" {
		listen = ":8080"
	}
	srv := &http.Server{Addr: listen, Handler: webhooks}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Webhook server listening.", "addr", listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
