package main

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/helioswap/dca-engine/config"
	"github.com/helioswap/dca-engine/internal/apiclient"
	"github.com/helioswap/dca-engine/internal/tasks"
	"github.com/helioswap/dca-engine/service"
)

func main() {
	cfg, err := config.GetConfigure()
	if err != nil {
		panic(err)
	}
	logger := logrus.StandardLogger()

	redisOptions := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Username: cfg.Redis.User,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := apiclient.NewClient(cfg.Worker.ServerURL, logger.WithField("client", "api"))
	workerService, err := service.NewWorker(client, cfg.Worker.ExecutorID, logger)
	if err != nil {
		panic(fmt.Errorf("failed to create worker service: %w", err))
	}

	srv := asynq.NewServer(
		redisOptions,
		asynq.Config{
			Logger:      logger,
			Concurrency: 10,
			Queues: map[string]int{
				tasks.QUEUE_NAME: 10,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypePurchaseAttempt, workerService.HandlePurchaseAttempt)
	if err := srv.Run(mux); err != nil {
		panic(fmt.Errorf("could not run server: %w", err))
	}
}
