package app

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/plantpass/internal/domain/analytics"
	"github.com/xenking/plantpass/internal/domain/auth"
	"github.com/xenking/plantpass/internal/domain/catalog"
	"github.com/xenking/plantpass/internal/domain/order"
	"github.com/xenking/plantpass/internal/domain/settings"
	"github.com/xenking/plantpass/internal/handler"
	"github.com/xenking/plantpass/internal/notify"
	"github.com/xenking/plantpass/pkg/health"
	"github.com/xenking/plantpass/pkg/httpmiddleware"
)

const pingTimeout = 5 * time.Second

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
		zap.String("email", cfg.Email.Backend),
		zap.String("registry", cfg.Notify.Registry),
	)

	srv, err := newServer(ctx, lg, m, cfg)
	if err != nil {
		return err
	}
	defer srv.stores.Close()

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           srv.handler,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		srv.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		// Hijacked websocket connections are not tracked by Shutdown.
		srv.hub.Close()
		srv.health.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// server is the assembled HTTP stack and the resources it owns.
type server struct {
	handler http.Handler
	health  *health.Health
	hub     *notify.Hub
	stores  *stores
}

// Close releases everything newServer opened.
func (s *server) Close() {
	s.hub.Close()
	s.health.Stop()
	s.stores.Close()
}

func newServer(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config) (*server, error) {
	s, err := openStores(ctx, lg, cfg)
	if err != nil {
		return nil, err
	}

	mailer, err := newMailer(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	// Live transaction feed.
	registry, relay := newRegistry(cfg, s)
	var hubOpts []notify.HubOption
	if relay != nil {
		hubOpts = append(hubOpts, notify.WithRelay(relay))
	}
	hub := notify.NewHub(registry, originChecker(cfg.CORS.Origins), hubOpts...)
	if relay != nil {
		stop, err := relay.Serve(ctx, hub.Instance(), hub)
		if err != nil {
			s.Close()
			return nil, errors.Wrap(err, "start relay")
		}
		s.closers = append(s.closers, stop)
	}
	broadcaster := notify.NewBroadcaster(registry, hub,
		notify.WithConcurrency(cfg.Notify.Concurrency),
		notify.WithMeter(m.MeterProvider().Meter("plantpass/notify")),
	)

	// Domain services.
	tokens, err := auth.NewTokenIssuer([]byte(cfg.JWT.Secret), auth.TokenConfig{
		AdminTTL: cfg.JWT.AdminTTL,
		TempTTL:  cfg.JWT.TempTTL,
		StaffTTL: cfg.JWT.StaffTTL,
	})
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "create token issuer")
	}
	services := handler.Services{
		Orders: order.NewService(s.orders, broadcaster, mailer,
			order.WithMeterProvider(m.MeterProvider()),
		),
		Analytics: analytics.NewService(s.orders, broadcaster),
		Catalog:   catalog.NewService(s.products, s.discounts, s.paymentMethods),
		Settings:  settings.NewService(s.settings),
		Auth: auth.NewService(tokens, s.credentials, s.tempPasswords, s.settings, mailer,
			auth.WithTempPasswordTTL(cfg.Admin.TempPasswordTTL),
		),
	}

	// Health check service.
	healthSvc := health.New()
	for name, p := range s.pingers {
		healthSvc.AddReadinessCheck(name, pingTimeout, health.PingCheck(p))
	}
	healthSvc.AddReadinessCheck("websockets", time.Second,
		health.CapacityCheck("websocket connections", cfg.Notify.MaxConnections, hub.Len))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	throttler := httpmiddleware.NewThrottler(httpmiddleware.ThrottleConfig{
		Rate:  cfg.LoginLimit.Rate,
		Burst: cfg.LoginLimit.Burst,
	})
	h := handler.New(services, handler.WithThrottle(throttler.Handler))

	// API mux: health endpoints + REST routes.
	api := http.NewServeMux()
	api.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	api.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(api)
	routeFinder := httpmiddleware.MakeRouteFinder(api)

	// The websocket route bypasses middleware that wraps the response
	// writer, since the upgrade needs the raw http.Hijacker.
	root := http.NewServeMux()
	root.Handle("GET /ws", httpmiddleware.Wrap(hub,
		httpmiddleware.Recovery(),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
	))
	root.Handle("/", httpmiddleware.Wrap(api,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
			Skip:   isProbe,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument("plantpass-api", routeFinder, m),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	))

	return &server{handler: root, health: healthSvc, hub: hub, stores: s}, nil
}

func isProbe(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
}

// originChecker restricts websocket upgrades to the CORS origins. A nil
// result lets the hub accept any origin.
func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.ContainsFunc(origins, func(o string) bool {
			return strings.EqualFold(o, origin)
		})
	}
}
