// Package lifecycle runs the state machine around every create, update,
// delete, and find operation: defaults, validation, audit injection,
// user hooks, soft-delete visibility, and single-hop cascade.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/forgecms/forge/internal/model"
	"github.com/forgecms/forge/internal/query"
	"github.com/forgecms/forge/internal/store"
)

// Engine executes lifecycle pipelines against one registry and adapter.
// It holds no per-request state; concurrent requests share it freely.
type Engine struct {
	registry *model.Registry
	adapter  store.Adapter
	hooks    *HookRegistry
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates a lifecycle engine
func NewEngine(registry *model.Registry, adapter store.Adapter, hooks *HookRegistry, logger *zap.Logger) *Engine {
	if hooks == nil {
		hooks = NewHookRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry: registry,
		adapter:  adapter,
		hooks:    hooks,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source, for tests
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) definition(modelName string) (*model.Definition, error) {
	def, ok := e.registry.Get(modelName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownModel, modelName)
	}
	return def, nil
}

// Create runs the create pipeline: defaults, validation, enum
// normalization, audit injection, validate and beforeCreate hooks,
// execution, afterCreate hook.
func (e *Engine) Create(ctx context.Context, modelName string, data model.Record) (model.Record, error) {
	def, err := e.definition(modelName)
	if err != nil {
		return nil, err
	}
	hooks := e.hooks.For(modelName)

	record := cloneRecord(data)
	applyDefaults(def, record)

	if err := validateRecord(def, record, false); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	record["createdAt"] = now
	record["updatedAt"] = now
	if def.AuditTrail {
		if actor, ok := ActorFromContext(ctx); ok {
			record["createdBy"] = actor
			record["updatedBy"] = actor
		}
	}
	if def.DraftPublish && record["status"] == "PUBLISHED" {
		if _, present := record["publishedAt"]; !present {
			record["publishedAt"] = now
		}
	}

	if hooks.Validate != nil {
		if err := normalizeHookError(hooks.Validate(ctx, record)); err != nil {
			return nil, err
		}
	}
	if hooks.BeforeCreate != nil {
		replaced, err := hooks.BeforeCreate(ctx, record)
		if err != nil {
			return nil, err
		}
		if replaced != nil {
			record = replaced
		}
	}

	stored, err := e.adapter.Create(ctx, modelName, record)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("record created",
		zap.String("model", modelName),
		zap.Any("id", stored["id"]))

	if hooks.AfterCreate != nil {
		if err := hooks.AfterCreate(ctx, stored); err != nil {
			return nil, err
		}
	}
	return stored, nil
}

// Update runs the update pipeline. The target must exist and not be
// soft-deleted; a hidden record is a not-found condition.
func (e *Engine) Update(ctx context.Context, modelName string, id int64, data model.Record) (model.Record, error) {
	def, err := e.definition(modelName)
	if err != nil {
		return nil, err
	}
	hooks := e.hooks.For(modelName)

	patch := cloneRecord(data)
	if err := validateRecord(def, patch, true); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	patch["updatedAt"] = now
	if def.AuditTrail {
		if actor, ok := ActorFromContext(ctx); ok {
			patch["updatedBy"] = actor
		}
	}
	if def.DraftPublish && patch["status"] == "PUBLISHED" {
		if _, present := patch["publishedAt"]; !present {
			patch["publishedAt"] = now
		}
	}

	if hooks.Validate != nil {
		if err := normalizeHookError(hooks.Validate(ctx, patch)); err != nil {
			return nil, err
		}
	}
	if hooks.BeforeUpdate != nil {
		replaced, err := hooks.BeforeUpdate(ctx, id, patch)
		if err != nil {
			return nil, err
		}
		if replaced != nil {
			patch = replaced
		}
	}

	previous, err := e.visibleRecord(ctx, def, id)
	if err != nil {
		return nil, err
	}

	updated, err := e.adapter.Update(ctx, modelName, id, patch)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("record updated",
		zap.String("model", modelName),
		zap.Int64("id", id))

	if hooks.AfterUpdate != nil {
		if err := hooks.AfterUpdate(ctx, updated, previous); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// Delete runs the delete pipeline. Soft-delete models are marked with
// deletedAt instead of removed, then dependent models with a Cascade
// relation pointing here are cascaded exactly one level.
func (e *Engine) Delete(ctx context.Context, modelName string, id int64) error {
	def, err := e.definition(modelName)
	if err != nil {
		return err
	}
	hooks := e.hooks.For(modelName)

	if hooks.BeforeDelete != nil {
		if err := hooks.BeforeDelete(ctx, id); err != nil {
			return err
		}
	}

	record, err := e.visibleRecord(ctx, def, id)
	if err != nil {
		return err
	}

	if def.SoftDelete {
		patch := model.Record{"deletedAt": e.now().UTC()}
		if def.AuditTrail {
			if actor, ok := ActorFromContext(ctx); ok {
				patch["deletedBy"] = actor
			}
		}
		if _, err := e.adapter.Update(ctx, modelName, id, patch); err != nil {
			return err
		}
		if err := e.cascade(ctx, def, id); err != nil {
			return err
		}
	} else {
		if err := e.adapter.Delete(ctx, modelName, id); err != nil {
			return err
		}
	}
	e.logger.Info("record deleted",
		zap.String("model", modelName),
		zap.Int64("id", id),
		zap.Bool("soft", def.SoftDelete))

	if hooks.AfterDelete != nil {
		if err := hooks.AfterDelete(ctx, id, record); err != nil {
			return err
		}
	}
	return nil
}

// cascade soft- or hard-deletes the direct children of a deleted parent.
// One level only: children's own cascades do not fire. Steps run per
// dependent model as independent operations; a failure propagates and
// already-completed steps are not rolled back.
func (e *Engine) cascade(ctx context.Context, parent *model.Definition, parentID int64) error {
	for _, child := range e.registry.All() {
		if child.Name == parent.Name {
			continue
		}
		for i := range child.Relations {
			rel := &child.Relations[i]
			if rel.OnDelete != model.Cascade {
				continue
			}
			for _, fk := range cascadeForeignKeys(rel, parent.Name) {
				if err := e.cascadeChildren(ctx, child, rel.Name, fk, parentID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// cascadeForeignKeys returns the foreign key columns of a relation that
// reference the given parent model
func cascadeForeignKeys(rel *model.Relation, parentName string) []string {
	switch rel.Kind {
	case model.OneToOne, model.OneToMany:
		if rel.Model == parentName {
			return []string{rel.ForeignKeyName()}
		}
	case model.Polymorphic:
		for _, target := range rel.Models {
			if target == parentName {
				return []string{rel.Name + target + "Id"}
			}
		}
	}
	return nil
}

func (e *Engine) cascadeChildren(ctx context.Context, child *model.Definition, relName, fk string, parentID int64) error {
	where := []query.Condition{{
		Field: fk,
		Op:    query.OpEq,
		Value: model.Value{Kind: model.KindInt, Int: parentID},
	}}

	if child.SoftDelete {
		patch := model.Record{"deletedAt": e.now().UTC()}
		if _, err := e.adapter.UpdateMany(ctx, child.Name, where, patch); err != nil {
			return &CascadeError{Model: child.Name, Relation: relName, Err: err}
		}
		return nil
	}

	plan := &query.Plan{Model: child.Name, Where: where}
	children, err := e.adapter.FindMany(ctx, child.Name, plan)
	if err != nil {
		return &CascadeError{Model: child.Name, Relation: relName, Err: err}
	}
	for _, record := range children {
		id, ok := numericID(record["id"])
		if !ok {
			continue
		}
		if err := e.adapter.Delete(ctx, child.Name, id); err != nil {
			return &CascadeError{Model: child.Name, Relation: relName, Err: err}
		}
	}
	return nil
}

// Restore clears the soft-delete mark on a record
func (e *Engine) Restore(ctx context.Context, modelName string, id int64) (model.Record, error) {
	def, err := e.definition(modelName)
	if err != nil {
		return nil, err
	}
	if !def.SoftDelete {
		return nil, fmt.Errorf("model %s does not support restore", modelName)
	}

	if _, err := e.adapter.FindUnique(ctx, modelName, id); err != nil {
		return nil, err
	}

	patch := model.Record{"deletedAt": nil}
	if def.AuditTrail {
		patch["deletedBy"] = nil
	}
	restored, err := e.adapter.Update(ctx, modelName, id, patch)
	if err != nil {
		return nil, err
	}
	e.logger.Info("record restored",
		zap.String("model", modelName),
		zap.Int64("id", id))
	return restored, nil
}

// ForceDelete physically removes a record, bypassing soft delete
func (e *Engine) ForceDelete(ctx context.Context, modelName string, id int64) error {
	def, err := e.definition(modelName)
	if err != nil {
		return err
	}
	if !def.SoftDelete {
		return fmt.Errorf("model %s does not support force delete", modelName)
	}
	if err := e.adapter.Delete(ctx, modelName, id); err != nil {
		return err
	}
	e.logger.Info("record force-deleted",
		zap.String("model", modelName),
		zap.Int64("id", id))
	return nil
}

// Find returns one visible record by id. Soft-deleted records are
// hidden: reading one is a not-found condition.
func (e *Engine) Find(ctx context.Context, modelName string, id int64) (model.Record, error) {
	def, err := e.definition(modelName)
	if err != nil {
		return nil, err
	}
	return e.visibleRecord(ctx, def, id)
}

// ListResult is the paginated outcome of a list operation. Offset mode
// populates Total and Page; cursor mode populates HasMore and
// NextCursor.
type ListResult struct {
	Records []model.Record

	Mode  query.Mode
	Limit int

	Total int64
	Page  int

	HasMore    bool
	NextCursor string
}

// List runs the find pipeline over a compiled plan: soft-delete
// visibility injection, beforeFind, execution, afterFind, then the
// pagination envelope.
func (e *Engine) List(ctx context.Context, modelName string, plan *query.Plan) (*ListResult, error) {
	def, err := e.definition(modelName)
	if err != nil {
		return nil, err
	}
	hooks := e.hooks.For(modelName)

	if def.SoftDelete && !plan.ReferencesField("deletedAt") {
		plan.AddCondition(query.Condition{
			Field: "deletedAt",
			Op:    query.OpEq,
			Value: model.Value{Kind: model.KindNull},
		})
	}

	if hooks.BeforeFind != nil {
		if err := hooks.BeforeFind(ctx, plan); err != nil {
			return nil, err
		}
	}

	records, err := e.adapter.FindMany(ctx, modelName, plan)
	if err != nil {
		return nil, err
	}
	if hooks.AfterFind != nil {
		records, err = hooks.AfterFind(ctx, records)
		if err != nil {
			return nil, err
		}
	}

	result := &ListResult{Mode: plan.Mode, Limit: plan.Limit}

	if plan.Mode == query.OffsetMode {
		total, err := e.adapter.Count(ctx, modelName, plan.Where)
		if err != nil {
			return nil, err
		}
		result.Records = records
		result.Total = total
		result.Page = plan.Page
		return result, nil
	}

	// Cursor mode fetched limit+1 records to detect hasMore
	if len(records) > plan.Limit {
		result.HasMore = true
		records = records[:plan.Limit]
	}
	result.Records = records
	if result.HasMore && len(records) > 0 {
		if id, ok := numericID(records[len(records)-1]["id"]); ok {
			result.NextCursor = query.EncodeCursor(id)
		}
	}
	return result, nil
}

// visibleRecord fetches a record, treating soft-deleted ones as missing
func (e *Engine) visibleRecord(ctx context.Context, def *model.Definition, id int64) (model.Record, error) {
	record, err := e.adapter.FindUnique(ctx, def.Name, id)
	if err != nil {
		return nil, err
	}
	if def.SoftDelete {
		if v, ok := record["deletedAt"]; ok && v != nil {
			return nil, store.ErrNotFound
		}
	}
	return record, nil
}

func cloneRecord(record model.Record) model.Record {
	out := make(model.Record, len(record)+4)
	for k, v := range record {
		out[k] = v
	}
	return out
}

func numericID(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
