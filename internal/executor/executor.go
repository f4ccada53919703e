package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/mitchellh/mapstructure"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/helioswap/dca-engine/internal/tasks"
	"github.com/helioswap/dca-engine/service"
)

type Config struct {
	// ExecutorID identifies the in-house executor in purchase receipts and
	// tip payouts.
	ExecutorID string `mapstructure:"executor_id"`
	// ScanSchedule is a cron expression for the due-order scan.
	ScanSchedule string `mapstructure:"scan_schedule"`
}

// Service periodically scans the book for due orders and enqueues one
// purchase attempt task per order. The nonce is derived from the order's due
// time, so rescans of the same cycle collapse into a single attempt.
type Service struct {
	dca         service.DCA
	queueClient *asynq.Client
	cron        *cron.Cron
	cfg         Config
	logger      *logrus.Logger
}

func NewService(dca service.DCA, queueClient *asynq.Client, rawCfg map[string]any, logger *logrus.Logger) (*Service, error) {
	var cfg Config
	if err := mapstructure.Decode(rawCfg, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode executor config: %w", err)
	}
	if cfg.ExecutorID == "" {
		return nil, fmt.Errorf("executor id cannot be empty")
	}
	if cfg.ScanSchedule == "" {
		cfg.ScanSchedule = "@every 1m"
	}
	return &Service{
		dca:         dca,
		queueClient: queueClient,
		cron:        cron.New(),
		cfg:         cfg,
		logger:      logger,
	}, nil
}

func (s *Service) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.ScanSchedule, s.scan); err != nil {
		return fmt.Errorf("failed to schedule due-order scan: %w", err)
	}
	s.cron.Start()
	s.logger.WithField("schedule", s.cfg.ScanSchedule).Info("executor scan started")
	return nil
}

func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Service) scan() {
	ctx := context.Background()
	now := time.Now().UTC()

	due := s.dca.DueOrders(ctx, now)
	for _, order := range due {
		payload := tasks.PurchaseAttemptPayload{
			Owner:        order.Owner,
			InitialAsset: order.InitialAsset.String(),
			Nonce:        fmt.Sprintf("%d", order.DueAt().Unix()),
		}
		buf, err := json.Marshal(payload)
		if err != nil {
			s.logger.WithError(err).Error("failed to marshal purchase attempt payload")
			continue
		}
		_, err = s.queueClient.EnqueueContext(ctx,
			asynq.NewTask(tasks.TypePurchaseAttempt, buf),
			asynq.MaxRetry(3),
			asynq.Timeout(2*time.Minute),
			asynq.Queue(tasks.QUEUE_NAME))
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"owner":   order.Owner,
				"initial": order.InitialAsset.String(),
			}).Error("failed to enqueue purchase attempt")
			continue
		}
	}
	if len(due) > 0 {
		s.logger.WithField("count", len(due)).Info("enqueued purchase attempts")
	}
}
