// Package app wires the configured upstream, cache, and listener
// together and drives them to completion under one shutdown signal.
package app

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/fakeshadow/dns-proxy/internal/bootstrap"
	"github.com/fakeshadow/dns-proxy/internal/cache"
	"github.com/fakeshadow/dns-proxy/internal/config"
	"github.com/fakeshadow/dns-proxy/internal/server"
	"github.com/fakeshadow/dns-proxy/internal/upstream"
)

// Run builds the upstream selected by cfg, starts the cache and
// listener, and blocks until ctx is cancelled or the listener returns.
// Exactly one upstream is built: the first entry in cfg.Upstreams,
// matching the spec's "first configured entry wins" startup rule.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	boot := bootstrap.New(cfg.Bootstrap)

	up, err := buildUpstream(cfg.Upstreams[0], boot, logger)
	if err != nil {
		return fmt.Errorf("app: build upstream: %w", err)
	}
	defer up.Close()

	c := cache.New(logger)
	defer c.Close()

	listener := &server.Listener{
		Logger:   logger,
		Cache:    c,
		Upstream: up,
		Workers:  cfg.Threads,
	}

	logger.Info("starting",
		"listen", cfg.Listen,
		"upstream", cfg.Upstreams[0].Raw,
		"bootstrap", cfg.Bootstrap,
		"workers", cfg.Threads,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listener.Run(gctx, cfg.Listen)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// buildUpstream constructs the single Upstream implementation named by
// spec, resolving DoT/DoH host names through boot rather than the
// system resolver.
func buildUpstream(spec config.UpstreamSpec, boot *bootstrap.Resolver, logger *slog.Logger) (upstream.Upstream, error) {
	switch spec.Kind {
	case config.UpstreamUDP:
		return upstream.NewUDP(fmt.Sprintf("%s:%d", spec.Host, spec.Port))

	case config.UpstreamDoH:
		return upstream.NewDoH(spec.URI, boot)

	case config.UpstreamDoT:
		pool, err := x509.SystemCertPool()
		if err != nil {
			return nil, fmt.Errorf("app: load system root certificates: %w", err)
		}
		tlsCfg := &tls.Config{RootCAs: pool, ServerName: spec.Host}
		return upstream.NewDoT(spec.Host, spec.Port, boot, tlsCfg, logger), nil

	default:
		return nil, fmt.Errorf("app: unknown upstream kind for %q", spec.Raw)
	}
}
