// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pulse provides the core pulse service for SwiftCart.
//
// This package contains the main service type that coordinates all
// components: the product state store, the decay engine, the pulse
// broadcast hub, checkout, session snapshots, payments, and
// observability infrastructure.
//
// # Usage
//
//	cfg := pulse.Config{Port: 8000, Products: []string{"pro_001_nebula"}}
//	svc, err := pulse.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package pulse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/swiftcart/services/payments"
	"github.com/AleutianAI/swiftcart/services/physics/broadcast"
	"github.com/AleutianAI/swiftcart/services/physics/celestial"
	"github.com/AleutianAI/swiftcart/services/physics/checkout"
	"github.com/AleutianAI/swiftcart/services/physics/engine"
	"github.com/AleutianAI/swiftcart/services/physics/pulsewire"
	"github.com/AleutianAI/swiftcart/services/physics/state"
	"github.com/AleutianAI/swiftcart/services/pulse/observability"
	"github.com/AleutianAI/swiftcart/services/pulse/routes"
	"github.com/AleutianAI/swiftcart/services/snapshot"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the pulse service.
//
// # Description
//
// Service abstracts the service lifecycle, enabling testing and
// alternative implementations. The interface follows the minimal surface
// area principle - only essential lifecycle methods are exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
//
// # Assumptions
//
//   - Service is fully initialized before Run() is called
//   - Run() is called at most once per Service instance
type Service interface {
	// Run starts the decay engine and HTTP server and blocks until
	// shutdown or error.
	//
	// # Outputs
	//
	//   - error: Non-nil if the server fails to start or encounters a
	//     fatal error. A clean signal-driven shutdown returns nil.
	Run() error

	// Router returns the underlying Gin engine for testing.
	//
	// # Outputs
	//
	//   - *gin.Engine: The configured router with all routes registered
	//
	// # Limitations
	//
	//   - Should not be used to modify routes after construction
	Router() *gin.Engine

	// RecordInteraction registers one interaction hit for a product,
	// exactly as an observer's WebSocket interaction message would.
	// Used by synthetic traffic generators.
	//
	// # Inputs
	//
	//   - productID: The product the hit applies to
	//
	// # Outputs
	//
	//   - error: Non-nil on a store failure
	RecordInteraction(productID string) error
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds pulse service configuration options.
//
// # Description
//
// Config centralizes all configuration for the pulse service. Values can
// be populated from environment variables, config files, or
// programmatically for testing.
//
// # Required Fields
//
// None - all fields have sensible defaults.
//
// # Examples
//
//	// Minimal config (uses all defaults)
//	cfg := Config{}
//
//	// Custom port and products
//	cfg := Config{
//	    Port:     9000,
//	    Products: []string{"orb1", "orb2"},
//	}
type Config struct {
	// Port is the HTTP server port. Default: 8000
	Port int

	// DataDir is the Badger data directory. Default: "./data/swiftcart"
	DataDir string

	// InMemory runs the store without disk persistence. Used by tests
	// and the mock-pulse command.
	InMemory bool

	// MSRP is the starting price for every product. Default: 100.0
	MSRP float64

	// MaxStock is the initial stock level per product. Default: 100
	MaxStock int

	// TickInterval is the decay tick period. Default: 200ms
	TickInterval time.Duration

	// Products are the product ids managed by the decay engine.
	// Default: ["pro_001_nebula"]
	Products []string

	// PriceEpsilon is the checkout price-drift tolerance.
	// Default: 0.01
	PriceEpsilon float64

	// StripeKey is the Stripe secret key. Empty disables payments
	// (the endpoint answers 503).
	StripeKey string

	// CelestialToken is the shared secret for the celestial control
	// surface. Empty disables the surface (all requests get 401).
	CelestialToken string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "swiftcart-otel-collector:4317"
	OTelEndpoint string

	// EnableMetrics enables the Prometheus metrics endpoint.
	// Default: true
	EnableMetrics bool

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	GinMode string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Description
//
// service is the main implementation that coordinates:
//   - Product state in Badger
//   - The decay engine tick loop
//   - Pulse fan-out via the broadcast hub
//   - Checkout, session snapshots, and payments
//   - OpenTelemetry tracing and Prometheus metrics
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config        Config
	router        *gin.Engine
	store         *state.Store
	hub           *broadcast.Hub
	engine        *engine.Engine
	keeper        *celestial.Keeper
	checkout      *checkout.Handler
	snapshots     *snapshot.Store
	payments      payments.Client
	tracerCleanup func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new pulse Service with the given configuration.
//
// # Description
//
// New initializes all service components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Opens the product state store and seeds products
//  5. Builds the broadcast hub and decay engine
//  6. Wires checkout, snapshot, and payment components
//  7. Sets up HTTP routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run pulse service
//   - error: Non-nil if initialization fails
//
// # Limitations
//
//   - The Badger directory must be writable unless InMemory is set
//
// # Assumptions
//
//   - The OTel collector is reachable at the configured endpoint
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	// Initialize OpenTelemetry tracer
	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	// Initialize Prometheus metrics
	if s.config.EnableMetrics && observability.DefaultMetrics == nil {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for pulse service")
	}

	// Open the product state store
	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize state store: %w", err)
	}

	// Build the physics components
	s.hub = broadcast.NewHub()
	s.keeper = celestial.NewKeeper(s.store)

	engCfg := engine.DefaultConfig(s.config.Products...)
	engCfg.Interval = s.config.TickInterval
	engCfg.TickObserver = func(d time.Duration) {
		if m := observability.DefaultMetrics; m != nil {
			m.RecordTickDuration(d.Seconds())
		}
	}
	s.engine = engine.New(engCfg, s.store, s.keeper,
		&hubPublisher{hub: s.hub})

	s.checkout = checkout.NewHandler(s.store, s.config.PriceEpsilon)
	s.snapshots = snapshot.New(s.store.DB())
	s.payments = payments.NewStripeClient(s.config.StripeKey)

	// Setup HTTP router
	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the decay engine and HTTP server.
//
// # Description
//
// Starts the tick loop, then serves HTTP until SIGINT/SIGTERM or a
// server error. Shutdown drains in-flight requests for up to 10 seconds,
// stops the engine, disconnects all observers, and closes the store.
//
// # Outputs
//
//   - error: Non-nil if the server fails; nil on clean shutdown
func (s *service) Run() error {
	defer s.cleanup()

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start decay engine: %w", err)
	}
	defer s.engine.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
	}

	slog.Info("Starting pulse server",
		"port", s.config.Port,
		"products", s.config.Products,
		"tick_interval", s.config.TickInterval.String(),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down pulse server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP server shutdown error", "error", err)
		}
		s.hub.CloseAll()
		return nil
	})

	return g.Wait()
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// RecordInteraction registers one interaction hit for a product.
func (s *service) RecordInteraction(productID string) error {
	_, err := s.store.AddHit(productID)
	if err == nil {
		if m := observability.DefaultMetrics; m != nil {
			m.RecordInteraction(productID)
		}
	}
	return err
}

// =============================================================================
// Pulse Publisher
// =============================================================================

// hubPublisher adapts the broadcast hub to the engine's Publisher
// interface: each tick's event is encoded once and fanned out to the
// global pulse group.
type hubPublisher struct {
	hub *broadcast.Hub
}

func (p *hubPublisher) PublishPulse(ev pulsewire.PulseEvent) {
	frame, err := pulsewire.Encode(ev)
	if err != nil {
		slog.Error("Failed to encode pulse frame",
			"product_id", ev.ProductID, "error", err)
		return
	}

	_, dropped := p.hub.Broadcast(broadcast.GlobalPulseGroup, frame)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordBroadcast(broadcast.GlobalPulseGroup, dropped)
	}
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
//
// # Inputs
//
//   - cfg: User-provided configuration
//
// # Outputs
//
//   - Config: Configuration with defaults applied
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data/swiftcart"
	}
	if cfg.MSRP <= 0 {
		cfg.MSRP = state.DefaultParams().MSRP
	}
	if cfg.MaxStock <= 0 {
		cfg.MaxStock = state.DefaultParams().MaxStock
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 200 * time.Millisecond
	}
	if len(cfg.Products) == 0 {
		cfg.Products = []string{"pro_001_nebula"}
	}
	if cfg.PriceEpsilon <= 0 {
		cfg.PriceEpsilon = checkout.DefaultPriceEpsilon
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "swiftcart-otel-collector:4317"
	}
	cfg.EnableMetrics = true

	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Description
//
// Sets up an OTLP trace exporter sending spans to the configured
// collector.
//
// # Outputs
//
//   - func(context.Context): Cleanup function to call on shutdown
//   - error: Non-nil if tracer setup fails
//
// # Limitations
//
//   - Uses insecure gRPC connection (appropriate for internal networks)
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("pulse-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initStore opens the Badger-backed product state store and seeds the
// configured products at MSRP without clobbering existing state.
func (s *service) initStore() error {
	params := state.DefaultParams()
	params.MSRP = s.config.MSRP
	params.MaxStock = s.config.MaxStock

	store, err := state.Open(state.Config{
		Path:     s.config.DataDir,
		InMemory: s.config.InMemory,
	}, params)
	if err != nil {
		return err
	}
	s.store = store

	for _, id := range s.config.Products {
		if err := s.store.EnsureProduct(id); err != nil {
			return fmt.Errorf("failed to seed product %q: %w", id, err)
		}
	}

	slog.Info("Product state store ready",
		"path", s.config.DataDir,
		"in_memory", s.config.InMemory,
		"products", len(s.config.Products),
	)
	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("pulse-service"))

	routes.SetupRoutes(s.router, routes.Deps{
		Store:          s.store,
		Hub:            s.hub,
		Engine:         s.engine,
		Keeper:         s.keeper,
		Checkout:       s.checkout,
		Snapshots:      s.snapshots,
		Payments:       s.payments,
		CelestialToken: s.config.CelestialToken,
		EnableMetrics:  s.config.EnableMetrics,
	})
}

// cleanup releases all resources held by the service.
//
// # Description
//
// Called when Run() exits or on initialization failure. Closes the
// store and shuts down the tracer.
func (s *service) cleanup() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("State store close error", "error", err)
		}
		s.store = nil
	}

	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
