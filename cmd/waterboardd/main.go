package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/civicwater/waterboard/internal/access"
	"github.com/civicwater/waterboard/internal/api"
	"github.com/civicwater/waterboard/internal/blob"
	"github.com/civicwater/waterboard/internal/config"
	"github.com/civicwater/waterboard/internal/metrics"
	"github.com/civicwater/waterboard/internal/storage"
	"github.com/civicwater/waterboard/internal/vault"
	"github.com/civicwater/waterboard/pkg/engine"
	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		slog.Error("waterboardd failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration and logging
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Sessions and metrics
	sessions := access.NewSessionStore(cfg.SessionTTL)
	m := metrics.New(sessions.Len)

	// 3. Record store
	opts := append(m.StoreOptions(), engine.WithLogger(logger))
	store, closer, err := storage.Open(cfg.Store, opts...)
	if err != nil {
		return err
	}
	defer closer.Close()
	logger.Info("record store ready", "driver", cfg.Store.Driver)

	// 4. Attachment storage
	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return err
	}
	logger.Info("blob store ready", "driver", blobs.Driver())

	// 5. HTTP surface
	key, err := vault.DeriveKey(cfg.SessionKey)
	if err != nil {
		return err
	}
	if cfg.SessionKey == "" {
		logger.Warn("WATERBOARD_SESSION_KEY not set, sessions will not survive a restart")
	}
	router, err := api.NewRouter(&api.Handler{
		Store:    store,
		Blobs:    blobs,
		Sessions: sessions,
		Metrics:  m,
		Logger:   logger,
		Options: api.Options{
			GoogleMapsKey:  cfg.GoogleMapsKey,
			MaxUploadBytes: cfg.MaxUploadBytes,
			MaxAttachments: cfg.MaxAttachments,
			CookieKey:      key,
			SecureCookies:  cfg.SecureCookies || cfg.TLS,
			SessionTTL:     cfg.SessionTTL,
		},
	})
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	if cfg.TLS {
		logger.Info("generating self-signed certificate")
		cert, err := vault.GenerateSelfSignedCert()
		if err != nil {
			return err
		}
		srv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	}

	// 6. Serve until a signal arrives
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "tls", cfg.TLS)
		var err error
		if cfg.TLS {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// 7. Graceful shutdown. Writes are synchronous so in-flight requests
	// finish their disk writes before Shutdown returns.
	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
