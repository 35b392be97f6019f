package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielloader/beng-proxy/internal/config"
	"github.com/danielloader/beng-proxy/internal/headers"
	"github.com/danielloader/beng-proxy/internal/orchestrator"
	"github.com/danielloader/beng-proxy/internal/resource"
	"github.com/danielloader/beng-proxy/internal/respcache"
	"github.com/danielloader/beng-proxy/internal/rubber"
	"github.com/danielloader/beng-proxy/internal/session"
	"github.com/danielloader/beng-proxy/internal/slab"
	"github.com/danielloader/beng-proxy/internal/tlsgen"
	"github.com/danielloader/beng-proxy/internal/translation"
	"github.com/danielloader/beng-proxy/internal/upstream"
	"github.com/danielloader/beng-proxy/internal/widget"
)

// defaultHeaderSettings forwards the groups a typical reverse-accelerator
// deployment needs by default.
func defaultHeaderSettings() headers.Settings {
	return headers.Settings{
		headers.GroupCookie:         headers.ModeYes,
		headers.GroupCORS:           headers.ModeYes,
		headers.GroupIdentity:       headers.ModeMangle,
		headers.GroupLink:           headers.ModeYes,
		headers.GroupAuth:           headers.ModeYes,
		headers.GroupCapabilities:   headers.ModeYes,
		headers.GroupTransformation: headers.ModeYes,
	}
}

func main() {
	cfg := config.Load()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler, pool, err := buildHandler(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	var listener net.Listener
	if cfg.GenerateSelfSignedTLS {
		cert, err := tlsgen.SelfSignedCert()
		if err != nil {
			slog.Error("failed to generate self-signed certificate", "error", err)
			os.Exit(1)
		}
		slog.Info("generated self-signed TLS certificate")
		listener, err = tls.Listen("tcp", cfg.ListenAddr, &tls.Config{Certificates: []tls.Certificate{cert}})
		if err != nil {
			slog.Error("failed to listen", "addr", cfg.ListenAddr, "error", err)
			os.Exit(1)
		}
	} else {
		listener, err = net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			slog.Error("failed to listen", "addr", cfg.ListenAddr, "error", err)
			os.Exit(1)
		}
	}

	slog.Info("starting server", "addr", cfg.ListenAddr, "tls", cfg.GenerateSelfSignedTLS, "translation", cfg.TranslationSocketPath)

	go acceptLoop(ctx, listener, handler)

	<-ctx.Done()
	slog.Info("shutting down gracefully")

	listener.Close()
	pool.CloseIdle()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	<-shutdownCtx.Done()
	slog.Info("shutdown complete")
}

// acceptLoop is the goroutine-per-connection accept loop. It acquires one
// slab-pool admission slot before each Accept, so a depleted pool defers
// new connections rather than accepting them and failing later (spec §5).
func acceptLoop(ctx context.Context, listener net.Listener, handler *orchestrator.Handler) {
	for {
		if err := handler.Slab.Acquire(ctx); err != nil {
			return
		}
		conn, err := listener.Accept()
		if err != nil {
			handler.Slab.Release()
			select {
			case <-ctx.Done():
				return
			default:
				slog.Error("accept failed", "error", err)
				continue
			}
		}
		go func() {
			defer handler.Slab.Release()
			handler.Serve(ctx, conn)
		}()
	}
}

func buildHandler(ctx context.Context, cfg config.Config) (*orchestrator.Handler, *upstream.Pool, error) {
	arena := rubber.NewArena()

	var remote respcache.Backend
	if cfg.ResponseCacheBackend == "s3" {
		backend, err := respcache.NewS3Backend(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3ForcePathStyle)
		if err != nil {
			return nil, nil, fmt.Errorf("s3 response cache backend: %w", err)
		}
		remote = backend
	}
	respCache := respcache.New(arena, remote)
	respCache.MaxBody = cfg.ResponseCacheMaxBody

	translationClient := translation.NewClient(cfg.TranslationSocketPath)
	translationCache, err := translation.NewCache(translationClient, cfg.TranslationCacheSize)
	if err != nil {
		return nil, nil, fmt.Errorf("translation cache: %w", err)
	}

	sessions := session.NewStore()
	failures := upstream.NewFailureTable()
	balancer := upstream.NewBalancer(failures)
	pool := upstream.NewPool(cfg.UpstreamPoolIdleMax)

	handler := &orchestrator.Handler{
		Translation:    translationCache,
		RespCache:      respCache,
		Sessions:       sessions,
		Failures:       failures,
		Balancer:       balancer,
		Pool:           pool,
		HeaderSettings: defaultHeaderSettings(),
		LocalHost:      localHostName(cfg.ListenAddr),
		Slab:           slab.NewPool(cfg.SlabPoolSize),
	}

	handler.Composer = &widget.Composer{
		Resolver:    widget.StaticResolver{},
		RequestHost: cfg.ListenAddr,
		Sessions:    sessions,
		Dispatch:    widgetDispatcher(handler),
	}

	return handler, pool, nil
}

// widgetDispatcher adapts a Handler's upstream-fetch leg into the
// widget.Dispatcher hook. Each dispatched child gets
// its own *widget.Composer with ParentClass set to the class being
// dispatched, so a grandchild <c:widget/> nested in that child's own
// response is evaluated against the right approval context without
// widget.Composer.Compose needing a parent parameter of its own.
func widgetDispatcher(h *orchestrator.Handler) widget.Dispatcher {
	return func(ctx context.Context, class *widget.Class, state session.WidgetState, mode widget.Mode) ([]byte, error) {
		addr := class.Address
		if state.PathInfo != "" {
			addr = addr.WithSuffix(state.PathInfo)
		}

		reqHeader := http.Header{}
		if state.QueryString != "" {
			reqHeader.Set("X-Widget-Query", state.QueryString)
		}

		_, _, body, err := h.Fetch(ctx, http.MethodGet, addr, reqHeader)
		if err != nil {
			return nil, err
		}

		childHandler := *h
		childHandler.Composer = &widget.Composer{
			Resolver:    resolverOf(h.Composer),
			RequestHost: h.LocalHost,
			Sessions:    h.Sessions,
			ParentClass: class,
			Dispatch:    widgetDispatcher(&childHandler),
		}

		chain := resource.Chain{{
			Kind:           resource.TransformProcessXML,
			ProcessOptions: resource.ProcessOptions{Container: true},
		}}
		return childHandler.Composer.Compose(ctx, body, chain, widgetPathFor(class), nil)
	}
}

func resolverOf(c orchestrator.Composer) widget.ClassResolver {
	composer, ok := c.(*widget.Composer)
	if !ok || composer == nil {
		return widget.StaticResolver{}
	}
	return composer.Resolver
}

func widgetPathFor(class *widget.Class) string {
	return class.Name
}

// localHostName is the value this proxy identifies itself as in Via,
// falling back to the listen
// address when the OS hostname is unavailable (e.g. a minimal
// container).
func localHostName(fallback string) string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return fallback
	}
	return name
}
