package main

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ona79/facturation-app/pkg/config"
	"github.com/ona79/facturation-app/pkg/domain"
	"github.com/ona79/facturation-app/pkg/infra/httpapi"
	"github.com/ona79/facturation-app/pkg/infra/idgen"
	"github.com/ona79/facturation-app/pkg/infra/memory"
	"github.com/ona79/facturation-app/pkg/infra/pdf"
	"github.com/ona79/facturation-app/pkg/infra/postgres"
	"github.com/ona79/facturation-app/pkg/infra/rabbitmq"
	"github.com/ona79/facturation-app/pkg/infra/redis"
	"github.com/ona79/facturation-app/pkg/usecase"
)

type dependencies struct {
	server  *httpapi.Server
	sync    *usecase.CatalogSync
	closers []func() error
	logger  *zap.Logger
}

func (d *dependencies) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.logger.Warn("close resource", zap.Error(err))
		}
	}
}

// wire builds the object graph for serve. Redis and RabbitMQ are optional:
// when unreachable the service runs without cache or events.
func wire(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	deps := &dependencies{logger: logger}

	invoices, catalog, err := openStores(ctx, cfg, deps)
	if err != nil {
		deps.close()
		return nil, err
	}

	if cfg.Cache.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Cache.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unreachable, invoice cache disabled", zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
			_ = client.Close()
		} else {
			deps.closers = append(deps.closers, client.Close)
			invoices = redis.NewInvoiceCache(invoices, client, cfg.Cache.Prefix, cfg.Cache.TTL, logger)
		}
	}

	var publisher domain.EventPublisher = rabbitmq.NopPublisher{}
	if cfg.Events.AMQPURL != "" {
		conn, ch, err := rabbitmq.SetupConn(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
		if err != nil {
			logger.Warn("rabbitmq unreachable, invoice events disabled", zap.Error(err))
		} else {
			deps.closers = append(deps.closers, conn.Close, ch.Close)
			publisher = rabbitmq.NewPublisher(ch, cfg.Events.Exchange)
		}
	}

	ids := &idgen.UUIDGenerator{}
	allocator := usecase.NewNumberAllocator(usecase.NewNumberGenerator(nil, nil), invoices, cfg.Invoice.MaxNumberAttempts)
	deps.sync = usecase.NewCatalogSync(catalog, usecase.WithSyncLogger(logger))
	go drainReports(deps.sync, logger)

	issuer := usecase.NewInvoiceIssuer(invoices, allocator, deps.sync, ids,
		usecase.WithPublisher(publisher),
		usecase.WithLogger(logger),
		usecase.WithIssuerConfig(usecase.IssuerConfig{
			DefaultCurrency:   cfg.Invoice.DefaultCurrency,
			MaxInsertAttempts: cfg.Invoice.MaxInsertAttempts,
		}),
	)

	deps.server = httpapi.NewServer(issuer,
		usecase.NewInvoiceQueries(invoices, publisher, logger, cfg.Invoice.ListLimit),
		usecase.NewCatalogService(catalog, ids, nil),
		pdf.NewRenderer(),
		httpapi.WithLogger(logger),
		httpapi.WithFrontendOrigin(cfg.Server.FrontendOrigin),
	)
	return deps, nil
}

func openStores(ctx context.Context, cfg *config.Config, deps *dependencies) (domain.InvoiceStore, domain.CatalogStore, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		deps.closers = append(deps.closers, db.Close)
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, nil, err
		}
		return postgres.NewInvoiceStore(db), postgres.NewCatalogStore(db), nil
	case config.StoreMemory:
		deps.logger.Warn("using in-memory store, data is lost on restart")
		return memory.NewInvoiceStore(), memory.NewCatalogStore(), nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// drainReports logs catalog sync outcomes until the sync stage is closed.
func drainReports(s *usecase.CatalogSync, logger *zap.Logger) {
	for report := range s.Reports() {
		if len(report.Missing) > 0 {
			logger.Debug("products not in catalog",
				zap.String("invoice_number", report.InvoiceNumber),
				zap.Strings("products", report.Missing),
			)
		}
	}
}
