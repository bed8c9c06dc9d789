// Package store defines the execution adapter contract the engine hands
// compiled query plans to, plus the in-memory and database/sql adapters.
package store

import (
	"context"

	"github.com/forgecms/forge/internal/model"
	"github.com/forgecms/forge/internal/query"
)

// Adapter is the storage engine executing query plans. The core never
// performs I/O itself; records cross this boundary as plain key-value
// maps. Concurrency and transaction guarantees belong to the adapter.
type Adapter interface {
	Create(ctx context.Context, modelName string, data model.Record) (model.Record, error)
	FindMany(ctx context.Context, modelName string, plan *query.Plan) ([]model.Record, error)
	FindUnique(ctx context.Context, modelName string, id int64) (model.Record, error)
	Count(ctx context.Context, modelName string, where []query.Condition) (int64, error)
	Update(ctx context.Context, modelName string, id int64, data model.Record) (model.Record, error)
	UpdateMany(ctx context.Context, modelName string, where []query.Condition, data model.Record) (int64, error)
	Delete(ctx context.Context, modelName string, id int64) error
}
