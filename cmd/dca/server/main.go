package main

import (
	"fmt"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/helioswap/dca-engine/api"
	"github.com/helioswap/dca-engine/config"
	"github.com/helioswap/dca-engine/internal/executor"
	"github.com/helioswap/dca-engine/internal/ledger"
	"github.com/helioswap/dca-engine/internal/routerclient"
	"github.com/helioswap/dca-engine/service"
	"github.com/helioswap/dca-engine/storage"
	"github.com/helioswap/dca-engine/storage/postgres"
)

func main() {
	cfg, err := config.GetConfigure()
	if err != nil {
		panic(err)
	}
	logger := logrus.StandardLogger()

	sdClient, err := statsd.New(cfg.Datadog.Host + ":" + cfg.Datadog.Port)
	if err != nil {
		panic(err)
	}

	db, err := postgres.NewPostgresBackend(cfg.Server.Database.DSN)
	if err != nil {
		panic(fmt.Errorf("failed to initialize database: %w", err))
	}
	defer db.Close()

	redisStorage, err := storage.NewRedisStorage(cfg.Redis)
	if err != nil {
		panic(fmt.Errorf("failed to initialize redis storage: %w", err))
	}
	blockStorage, err := storage.NewBlockStorage(cfg.BlockStorage)
	if err != nil {
		panic(fmt.Errorf("failed to initialize block storage: %w", err))
	}

	ledgerClient := ledger.NewClient(cfg.Ledger.BaseURL, logger.WithField("client", "ledger"))
	routerClient := routerclient.NewClient(cfg.Router.BaseURL, logger.WithField("client", "router"))

	bootstrap, err := cfg.BootstrapEngineConfig()
	if err != nil {
		panic(fmt.Errorf("invalid engine bootstrap config: %w", err))
	}

	dcaService, err := service.NewDCAService(db, redisStorage, blockStorage, ledgerClient, routerClient, bootstrap, sdClient, logger)
	if err != nil {
		panic(fmt.Errorf("failed to initialize dca service: %w", err))
	}

	redisOptions := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Username: cfg.Redis.User,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	client := asynq.NewClient(redisOptions)

	if len(cfg.Executor) > 0 {
		executorService, err := executor.NewService(dcaService, client, cfg.Executor, logger)
		if err != nil {
			panic(fmt.Errorf("failed to initialize executor service: %w", err))
		}
		if err := executorService.Start(); err != nil {
			panic(fmt.Errorf("failed to start executor service: %w", err))
		}
		defer executorService.Stop()
	}

	server := api.NewServer(cfg, dcaService, redisStorage, sdClient, logger)
	if err := server.StartServer(); err != nil {
		panic(err)
	}
}
