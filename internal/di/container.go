package di

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/compia-store/api/internal/cep"
	"github.com/compia-store/api/internal/domain"
	"github.com/compia-store/api/internal/handlers"
	"github.com/compia-store/api/internal/orders"
	"github.com/compia-store/api/internal/payments"
	"github.com/compia-store/api/internal/platform/config"
	"github.com/compia-store/api/internal/platform/observability"
	"github.com/compia-store/api/internal/platform/requestctx"
	"github.com/compia-store/api/internal/repositories"
	"github.com/compia-store/api/internal/repositories/localcache"
	"github.com/compia-store/api/internal/repositories/rest"
	"github.com/compia-store/api/internal/shipping"
)

// Clients bundles the adapters that talk to collaborator services.
type Clients struct {
	CEP           *cep.Client
	Orders        repositories.OrderRepository
	Notifications repositories.NotificationSink
	OrderCache    repositories.OrderCache
	Gateways      map[domain.PaymentGateway]payments.Gateway
}

// Services bundles the application services exposed to the transport layer.
type Services struct {
	Shipping  *shipping.Estimator
	Payments  *payments.Orchestrator
	Status    *orders.StatusService
	Assembler *orders.Assembler
}

// Container wires configuration, clients, services and the HTTP router.
type Container struct {
	Config   config.Config
	Logger   *zap.Logger
	Clients  Clients
	Services Services
	Router   chi.Router
}

// NewContainer builds the full dependency graph from configuration.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clients, err := buildClients(cfg, logger)
	if err != nil {
		return nil, err
	}

	services, err := buildServices(cfg, clients, logger)
	if err != nil {
		return nil, err
	}

	router := buildRouter(logger, clients, services)

	return &Container{
		Config:   cfg,
		Logger:   logger,
		Clients:  clients,
		Services: services,
		Router:   router,
	}, nil
}

func buildClients(cfg config.Config, logger *zap.Logger) (Clients, error) {
	httpClient := &http.Client{Timeout: cfg.Services.RequestTimeout}
	events := eventLogger(logger)

	cepClient, err := cep.NewClient(cep.ClientDeps{
		BaseURL:    cfg.Services.CEPBaseURL,
		HTTPClient: httpClient,
		Timeout:    cfg.Shipping.LookupTimeout,
		Logger:     events,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("build cep client: %w", err)
	}

	orderRepo, err := rest.NewOrderRepository(rest.OrderRepositoryDeps{
		BaseURL:    cfg.Services.OrdersBaseURL,
		HTTPClient: httpClient,
		Logger:     events,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("build order repository: %w", err)
	}

	notificationSink, err := rest.NewNotificationSink(rest.NotificationSinkDeps{
		BaseURL:    cfg.Services.NotificationsBaseURL,
		HTTPClient: httpClient,
		Logger:     events,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("build notification sink: %w", err)
	}

	restGateway, err := payments.NewRESTGateway(payments.RESTGatewayDeps{
		BaseURL:    cfg.Services.PaymentsBaseURL,
		HTTPClient: httpClient,
		Logger:     events,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("build payment gateway: %w", err)
	}

	gateways := map[domain.PaymentGateway]payments.Gateway{
		domain.GatewayMercadoPago: restGateway,
		domain.GatewayPagSeguro:   restGateway,
		domain.GatewayPayPal:      restGateway,
		domain.GatewayStripe:      restGateway,
	}
	if cfg.Payments.StripeAPIKey != "" {
		stripeGateway, err := payments.NewStripeGateway(payments.StripeGatewayConfig{
			APIKey: cfg.Payments.StripeAPIKey,
			Logger: events,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("build stripe gateway: %w", err)
		}
		gateways[domain.GatewayStripe] = stripeGateway
	}

	return Clients{
		CEP:           cepClient,
		Orders:        orderRepo,
		Notifications: notificationSink,
		OrderCache:    localcache.NewOrderCache(),
		Gateways:      gateways,
	}, nil
}

func buildServices(cfg config.Config, clients Clients, logger *zap.Logger) (Services, error) {
	events := eventLogger(logger)

	estimator, err := shipping.NewEstimator(shipping.EstimatorDeps{
		Lookup:           clients.CEP,
		OriginCEP:        cfg.Shipping.OriginCEP,
		FreeThreshold:    cfg.Shipping.FreeShippingThreshold,
		LookupTimeout:    cfg.Shipping.LookupTimeout,
		CacheTTL:         cfg.Shipping.QuoteCacheTTL,
		SkipStateLookups: !cfg.Features.EnableDeliveryEstimates,
		Logger:           events,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build shipping estimator: %w", err)
	}

	orchestrator, err := payments.NewOrchestrator(payments.OrchestratorDeps{
		Gateways:       clients.Gateways,
		DefaultGateway: domain.PaymentGateway(cfg.Payments.DefaultGateway),
		CallTimeout:    cfg.Payments.CallTimeout,
		Logger:         events,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment orchestrator: %w", err)
	}

	statusService, err := orders.NewStatusService(orders.StatusServiceDeps{
		Orders:   clients.Orders,
		Notifier: clients.Notifications,
		Logger:   events,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order status service: %w", err)
	}

	assembler, err := orders.NewAssembler(orders.AssemblerDeps{
		Orders:   clients.Orders,
		Cache:    clients.OrderCache,
		Notifier: clients.Notifications,
		Logger:   events,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order assembler: %w", err)
	}

	return Services{
		Shipping:  estimator,
		Payments:  orchestrator,
		Status:    statusService,
		Assembler: assembler,
	}, nil
}

func buildRouter(logger *zap.Logger, clients Clients, services Services) chi.Router {
	checkout := handlers.NewCheckoutHandlers(services.Shipping, services.Payments, services.Assembler, clients.CEP)
	orderHandlers := handlers.NewOrderHandlers(services.Status)

	return handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithCheckoutRoutes(checkout.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
	)
}

// eventLogger bridges the service-level event callback onto the request
// scoped zap logger, falling back to the process logger outside requests.
func eventLogger(base *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() && base != nil {
			logger = base
		}
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}
