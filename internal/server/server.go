package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/metrics"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// New は共通ミドルウェアを積んだ echo を返す。ルートは RegisterRoutes で足す。
func New(cfg config.Config, m *metrics.Metrics, log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(requestLogger(log))

	if cfg.RateLimitRPS > 0 {
		e.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimitRPS))))
	}

	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
	return e
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				log.LogAttrs(c.Request().Context(), slog.LevelError, "request", slog.Group("http", attrs...), slog.String("err", v.Error.Error()))
				return nil
			}
			log.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", slog.Group("http", attrs...))
			return nil
		},
	})
}

// Run は ctx が閉じるまで待ち受け、その後 timeout 以内に停止する。
func Run(ctx context.Context, e *echo.Echo, addr string, timeout time.Duration, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
