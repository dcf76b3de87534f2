// Package transport binds the JSON-RPC handler to an HTTP listener,
// supporting plain HTTP, manually-supplied TLS certificates, and ACME
// (Let's Encrypt) provisioning. It is grounded on the teacher's
// server/transport/http.go StartHTTPServer/ShutdownHTTPServer, adapted
// from config.IConfig to this module's narrower config.Config and from
// an arbitrary mux to the fixed A2A route set.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gate4ai/a2a/config"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

// Start starts the HTTP/HTTPS server described by cfg, serving handler.
// It returns immediately after the listener goroutine is launched; the
// returned channel reports a listener error occurring after startup
// (closed on clean shutdown).
func Start(ctx context.Context, logger *zap.Logger, cfg config.Config, handler http.Handler, overwriteListenAddr string) (*http.Server, <-chan error, error) {
	if logger == nil {
		return nil, nil, errors.New("transport: logger cannot be nil")
	}
	if cfg == nil {
		return nil, nil, errors.New("transport: config cannot be nil")
	}
	if handler == nil {
		return nil, nil, errors.New("transport: handler cannot be nil")
	}

	listenAddr := overwriteListenAddr
	if listenAddr == "" {
		var err error
		listenAddr, err = cfg.ListenAddr()
		if err != nil {
			return nil, nil, fmt.Errorf("transport: listen address: %w", err)
		}
	}

	server := &http.Server{
		Addr:         listenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams may run indefinitely
		IdleTimeout:  90 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	sslEnabled, err := cfg.SSLEnabled()
	if err != nil {
		logger.Warn("failed to read ssl enabled setting, assuming disabled", zap.Error(err))
		sslEnabled = false
	}

	var certFile, keyFile string
	isACME := false

	if sslEnabled {
		sslMode, _ := cfg.SSLMode()

		if sslMode == "acme" {
			isACME = true
			domains, err := cfg.SSLAcmeDomains()
			if err != nil || len(domains) == 0 {
				return nil, nil, fmt.Errorf("transport: acme mode requires at least one domain: %w", err)
			}
			email, _ := cfg.SSLAcmeEmail()
			cacheDir, err := cfg.SSLAcmeCacheDir()
			if err != nil {
				return nil, nil, fmt.Errorf("transport: acme cache dir: %w", err)
			}
			if err := os.MkdirAll(cacheDir, 0700); err != nil {
				return nil, nil, fmt.Errorf("transport: create acme cache dir %q: %w", cacheDir, err)
			}

			certManager := autocert.Manager{
				Prompt:     autocert.AcceptTOS,
				HostPolicy: autocert.HostWhitelist(domains...),
				Email:      email,
				Cache:      autocert.DirCache(cacheDir),
			}
			server.TLSConfig = certManager.TLSConfig()

			go func() {
				challengeServer := &http.Server{Addr: ":80", Handler: certManager.HTTPHandler(nil)}
				logger.Info("starting ACME HTTP challenge listener", zap.String("addr", ":80"))
				if err := challengeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("acme challenge listener error", zap.Error(err))
				}
			}()
		} else {
			certFile, err = cfg.SSLCertFile()
			if err != nil || certFile == "" {
				return nil, nil, fmt.Errorf("transport: manual ssl mode requires a cert file: %w", err)
			}
			keyFile, err = cfg.SSLKeyFile()
			if err != nil || keyFile == "" {
				return nil, nil, fmt.Errorf("transport: manual ssl mode requires a key file: %w", err)
			}
		}
	}

	listenerErr := make(chan error, 1)

	go func() {
		defer close(listenerErr)
		var err error
		switch {
		case sslEnabled && isACME:
			logger.Info("starting HTTPS server (ACME)", zap.String("addr", listenAddr))
			err = server.ListenAndServeTLS("", "")
		case sslEnabled:
			logger.Info("starting HTTPS server", zap.String("addr", listenAddr))
			err = server.ListenAndServeTLS(certFile, keyFile)
		default:
			logger.Info("starting HTTP server", zap.String("addr", listenAddr))
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listener error", zap.Error(err))
			listenerErr <- err
		}
	}()

	return server, listenerErr, nil
}

// Shutdown attempts a graceful shutdown of server, bounded by ctx.
func Shutdown(ctx context.Context, logger *zap.Logger, server *http.Server) error {
	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return fmt.Errorf("transport: shutdown: %w", err)
	}
	logger.Info("http server shut down gracefully")
	return nil
}
