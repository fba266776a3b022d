package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/payments"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/platform/config"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/repositories"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Catalog    services.CatalogService
	Promotions services.PromotionService
	Cart       services.CartService
	Orders     services.OrderService
	Payments   services.PaymentService
	Reviews    services.ReviewService
	System     services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// Option customises container construction.
type Option func(*containerOptions)

type containerOptions struct {
	gateway   *payments.VNPayGateway
	providers *payments.Manager
	events    services.OrderEventPublisher
	logger    *zap.Logger
	build     services.BuildInfo
}

// WithVNPayGateway supplies a pre-built gateway instead of constructing one from config.
func WithVNPayGateway(gateway *payments.VNPayGateway) Option {
	return func(o *containerOptions) {
		o.gateway = gateway
	}
}

// WithPaymentProviders supplies a pre-built provider manager instead of
// constructing one from config.
func WithPaymentProviders(providers *payments.Manager) Option {
	return func(o *containerOptions) {
		o.providers = providers
	}
}

// WithOrderEventPublisher wires the order event publisher used by the order service.
func WithOrderEventPublisher(events services.OrderEventPublisher) Option {
	return func(o *containerOptions) {
		o.events = events
	}
}

// WithLogger attaches a logger used for service-level structured events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBuildInfo records build metadata surfaced by the readiness probe.
func WithBuildInfo(build services.BuildInfo) Option {
	return func(o *containerOptions) {
		o.build = build
	}
}

// NewContainer constructs the runtime dependencies. Production wiring provides the Firestore
// backed registry, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	options := containerOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	svc, err := buildServices(reg, cfg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(reg repositories.Registry, cfg config.Config, options containerOptions) (Services, error) {
	var svc Services

	serviceLogger := func(ctx context.Context, event string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		options.logger.Info(event, zapFields...)
	}

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products:   reg.Products(),
		Promotions: reg.Promotions(),
		Clock:      time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	promotionSvc, err := services.NewPromotionService(services.PromotionServiceDeps{
		Promotions: reg.Promotions(),
		Clock:      time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build promotion service: %w", err)
	}
	svc.Promotions = promotionSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:    reg.Carts(),
		Products: reg.Products(),
		Clock:    time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Payments:   reg.Payments(),
		Products:   reg.Products(),
		Promotions: reg.Promotions(),
		Carts:      reg.Carts(),
		Counters:   reg.Counters(),
		UnitOfWork: reg,
		Clock:      time.Now,
		Events:     options.events,
		Logger:     serviceLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	gateway := options.gateway
	if gateway == nil {
		gateway, err = payments.NewVNPayGateway(payments.VNPayConfig{
			TmnCode:    cfg.VNPay.TmnCode,
			HashSecret: cfg.VNPay.HashSecret,
			PayURL:     cfg.VNPay.PayURL,
			ReturnURL:  cfg.VNPay.ReturnURL,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build vnpay gateway: %w", err)
		}
	}

	providers := options.providers
	if providers == nil && cfg.Stripe.APIKey != "" {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey: cfg.Stripe.APIKey,
			Logger: serviceLogger,
			Clock:  time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build stripe provider: %w", err)
		}
		providers, err = payments.NewManager(map[string]payments.Provider{
			"stripe": stripeProvider,
		}, payments.WithDefaultProvider("stripe"), payments.WithCurrencyRoutes(map[string]string{
			"USD": "stripe",
		}))
		if err != nil {
			return Services{}, fmt.Errorf("build payment providers: %w", err)
		}
	}

	paymentSvc, err := services.NewPaymentService(services.PaymentServiceDeps{
		Orders:     reg.Orders(),
		Payments:   reg.Payments(),
		UnitOfWork: reg,
		Gateway:    gateway,
		Providers:  providers,
		SuccessURL: cfg.Frontend.PaymentSuccessURL,
		FailureURL: cfg.Frontend.PaymentFailureURL,
		Clock:      time.Now,
		Logger:     serviceLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment service: %w", err)
	}
	svc.Payments = paymentSvc

	reviewSvc, err := services.NewReviewService(services.ReviewServiceDeps{
		Reviews:    reg.Reviews(),
		Products:   reg.Products(),
		Orders:     reg.Orders(),
		UnitOfWork: reg,
		Clock:      time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build review service: %w", err)
	}
	svc.Reviews = reviewSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		build := options.build
		if build.Environment == "" {
			build.Environment = cfg.Security.Environment
		}
		if build.StartedAt.IsZero() {
			build.StartedAt = time.Now().UTC()
		}
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}
