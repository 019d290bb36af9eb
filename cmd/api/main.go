package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/db"
	"storefront/internal/infra/events"
	"storefront/internal/infra/memory"
	"storefront/internal/infra/mongorepo"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	repo "storefront/internal/repository"
	"storefront/internal/server"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// 選んだストアの repository 一式
type stores struct {
	tx        repo.TransactionManager
	products  repo.ProductRepository
	inventory repo.InventoryRepository
	carts     repo.CartRepository
	orders    repo.OrderRepository
	auditLogs repo.AuditLogRepository
	ping      handler.PingFunc
	close     func(ctx context.Context) error
}

type publisher interface {
	usecase.OrderEventPublisher
	Close() error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(os.Stdout, cfg.GoEnv, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//DB接続
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.close(closeCtx); err != nil {
			log.Warn("close store", slog.String("err", err.Error()))
		}
	}()

	//イベント送信先
	pub, err := openPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := pub.Close(); err != nil {
			log.Warn("close publisher", slog.String("err", err.Error()))
		}
	}()

	//メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	//usecaseに渡す部品
	ids := usecase.UUIDGenerator{}
	clock := usecase.SystemClock{}

	//Usecase生成
	productUC := usecase.NewProductUsecase(st.tx, st.products, st.inventory, validator.NewProductValidator(), ids, clock, log)
	cartUC := usecase.NewCartUsecase(st.carts, st.products, clock)
	orderUC := usecase.NewOrderUsecase(st.tx, st.orders, ids, clock, pub, m, log)
	adminOrderUC := usecase.NewAdminOrderUsecase(st.tx, st.orders, ids, clock, pub, m, log)
	auditUC := usecase.NewAuditLogUsecase(st.auditLogs)

	//Handler生成
	e := server.New(cfg, m, log)
	server.RegisterRoutes(e, server.Handlers{
		Health:       handler.NewHealthHandler(st.ping),
		Product:      handler.NewProductHandler(productUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		Cart:         handler.NewCartHandler(cartUC),
		Order:        handler.NewOrderHandler(orderUC),
		AdminOrder:   handler.NewAdminOrderHandler(adminOrderUC, auditUC),
	}, cfg.JWTSecret, m)

	//Server起動
	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}
	return server.Run(ctx, e, addr, cfg.ShutdownTimeout, log)
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		client, err := mongorepo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return stores{}, err
		}
		database := client.Database(cfg.MongoDatabase)
		if err := mongorepo.EnsureIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return stores{}, err
		}
		s := mongorepo.NewStore(client, database)
		log.Info("store ready", slog.String("driver", cfg.StoreDriver), slog.String("database", cfg.MongoDatabase))
		return stores{
			tx:        s,
			products:  s.Products(),
			inventory: s.Inventory(),
			carts:     s.Carts(),
			orders:    s.Orders(),
			auditLogs: s.AuditLogs(),
			ping:      func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close:     client.Disconnect,
		}, nil

	case config.StoreDriverMemory:
		s := memory.NewStore()
		log.Warn("using in-memory store; data is lost on restart")
		return stores{
			tx:        s,
			products:  s.Products(),
			inventory: s.Inventory(),
			carts:     s.Carts(),
			orders:    s.Orders(),
			auditLogs: s.AuditLogs(),
			close:     func(context.Context) error { return nil },
		}, nil

	default:
		gormDB, err := db.Connect(cfg.PostgresDSN())
		if err != nil {
			return stores{}, err
		}
		if err := db.Migrate(gormDB); err != nil {
			return stores{}, fmt.Errorf("migrate: %w", err)
		}
		sqlDB, err := gormDB.DB()
		if err != nil {
			return stores{}, err
		}
		log.Info("store ready", slog.String("driver", config.StoreDriverPostgres))
		return stores{
			tx:        infraRepo.NewTxManagerGorm(gormDB),
			products:  infraRepo.NewProductGormRepository(gormDB),
			inventory: infraRepo.NewInventoryGormRepository(gormDB),
			carts:     infraRepo.NewCartGormRepository(gormDB),
			orders:    infraRepo.NewOrderGormRepository(gormDB),
			auditLogs: infraRepo.NewAuditLogGormRepository(gormDB),
			ping:      sqlDB.PingContext,
			close:     func(context.Context) error { return sqlDB.Close() },
		}, nil
	}
}

func openPublisher(ctx context.Context, cfg config.Config, log *slog.Logger) (publisher, error) {
	switch cfg.EventsDriver {
	case config.EventsDriverRabbitMQ:
		return events.NewRabbitMQPublisher(ctx, cfg.RabbitMQURL, cfg.RabbitMQQueue, log)
	case config.EventsDriverKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return events.NewLogPublisher(log), nil
	}
}
