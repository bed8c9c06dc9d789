package lifecycle

import (
	"context"
	"fmt"

	"github.com/forgecms/forge/internal/model"
	"github.com/forgecms/forge/internal/query"
)

// ValidateHook runs custom validation against the incoming payload.
// Any error it returns is normalized into a ValidationError.
type ValidateHook func(ctx context.Context, record model.Record) error

// BeforeCreateHook runs before persistence; a non-nil return value
// replaces the record that gets stored
type BeforeCreateHook func(ctx context.Context, record model.Record) (model.Record, error)

// AfterCreateHook runs after persistence, side effects only
type AfterCreateHook func(ctx context.Context, record model.Record) error

// BeforeUpdateHook runs before an update; a non-nil return value
// replaces the patch that gets applied
type BeforeUpdateHook func(ctx context.Context, id int64, data model.Record) (model.Record, error)

// AfterUpdateHook runs after an update with the stored record and the
// record as it was before the update
type AfterUpdateHook func(ctx context.Context, record, previous model.Record) error

// BeforeDeleteHook runs before a delete
type BeforeDeleteHook func(ctx context.Context, id int64) error

// AfterDeleteHook runs after a delete with the removed record
type AfterDeleteHook func(ctx context.Context, id int64, deleted model.Record) error

// BeforeFindHook may mutate the compiled plan before execution
type BeforeFindHook func(ctx context.Context, plan *query.Plan) error

// AfterFindHook may transform the result set
type AfterFindHook func(ctx context.Context, records []model.Record) ([]model.Record, error)

// Hooks is the set of user hooks bound to one model. Every stage is
// optional.
type Hooks struct {
	Validate     ValidateHook
	BeforeCreate BeforeCreateHook
	AfterCreate  AfterCreateHook
	BeforeUpdate BeforeUpdateHook
	AfterUpdate  AfterUpdateHook
	BeforeDelete BeforeDeleteHook
	AfterDelete  AfterDeleteHook
	BeforeFind   BeforeFindHook
	AfterFind    AfterFindHook
}

// HookRegistry maps model names to their bound hooks. Like the model
// registry it is populated at startup and read-only afterwards.
type HookRegistry struct {
	hooks map[string]*Hooks
}

// NewHookRegistry creates an empty hook registry
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{hooks: make(map[string]*Hooks)}
}

// Register binds hooks to a model. Binding the same model twice is a
// startup configuration error.
func (r *HookRegistry) Register(modelName string, hooks *Hooks) error {
	if _, exists := r.hooks[modelName]; exists {
		return fmt.Errorf("hooks already registered for model %s", modelName)
	}
	r.hooks[modelName] = hooks
	return nil
}

// For returns the hooks bound to a model, or an empty set
func (r *HookRegistry) For(modelName string) *Hooks {
	if r == nil {
		return &Hooks{}
	}
	if h, ok := r.hooks[modelName]; ok {
		return h
	}
	return &Hooks{}
}
