package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

func (a *App) runServices(ctx context.Context, deps *Dependencies) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Log.Info("starting http server",
			"host", a.Cfg.Server.Host,
			"port", a.Cfg.Server.Port)

		err := deps.HTTPServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	// Реконсилер: соединение с платёжной платформой + стартовый обход
	g.Go(func() error {
		return deps.Reconciler.Run(gCtx)
	})

	// Стрим живых обновлений покупок
	if deps.PurchaseConsumer != nil {
		g.Go(func() error {
			a.Log.Info("starting purchase update consumer")
			return deps.PurchaseConsumer.Start(gCtx)
		})
	}

	// Запускаем планировщик джоб (запускает горутины внутри, сам не блокирует)
	if deps.JobScheduler != nil {
		a.Log.Info("starting job scheduler")
		if err := deps.JobScheduler.Start(gCtx); err != nil {
			a.Log.Error("failed to start job scheduler", "error", err)
		}
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.Log.Info("received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := deps.HTTPServer.Shutdown(shutdownCtx); err != nil {
			a.Log.Error("failed to shutdown http server", "error", err)
		}

		if err := deps.DB.Close(); err != nil {
			a.Log.Error("failed to close database", "error", err)
		}

		if deps.Counters != nil {
			if err := deps.Counters.Close(); err != nil {
				a.Log.Error("failed to close counter store", "error", err)
			}
		}

		if deps.AuditProducer != nil {
			if err := deps.AuditProducer.Close(); err != nil {
				a.Log.Error("failed to close audit producer", "error", err)
			}
		}

		if deps.PurchaseConsumer != nil {
			if err := deps.PurchaseConsumer.Close(); err != nil {
				a.Log.Error("failed to close purchase consumer", "error", err)
			}
		}

		a.Log.Info("application shutdown completed")
		return nil
	})

	if err := g.Wait(); err != nil {
		a.Log.Error("application error", "error", err)
		return err
	}

	return nil
}
