package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helioswap/dca-engine/internal/asset"
	"github.com/helioswap/dca-engine/internal/engine"
	"github.com/helioswap/dca-engine/internal/types"
)

// DatabaseStorage persists the engine's state and the purchase execution
// history. The Tx variants participate in a caller-managed transaction so a
// single operation's rows commit together.
type DatabaseStorage interface {
	Close() error

	GetGlobalConfig(ctx context.Context) (*engine.GlobalConfig, error)
	UpsertGlobalConfigTx(ctx context.Context, dbTx pgx.Tx, cfg engine.GlobalConfig) error

	ListUserConfigs(ctx context.Context) (map[string]engine.UserConfig, error)
	UpsertUserConfigTx(ctx context.Context, dbTx pgx.Tx, owner string, cfg engine.UserConfig) error

	ListOrders(ctx context.Context) ([]engine.Order, error)
	UpsertOrderTx(ctx context.Context, dbTx pgx.Tx, order engine.Order) error
	DeleteOrderTx(ctx context.Context, dbTx pgx.Tx, owner string, initial asset.Ref) error

	CreateExecution(ctx context.Context, rec types.ExecutionRecord) error
	CreateExecutionTx(ctx context.Context, dbTx pgx.Tx, rec types.ExecutionRecord) error
	GetExecutions(ctx context.Context, owner string, sort string, take int, skip int) ([]types.ExecutionRecord, error)

	Pool() *pgxpool.Pool
}
