package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/forgecms/forge/internal/model"
	"github.com/forgecms/forge/internal/query"
)

// Memory is an in-process adapter interpreting query plans directly. It
// backs tests and the --memory serve mode; it emulates the unique
// constraints the schema compiler would declare.
type Memory struct {
	registry *model.Registry

	mu      sync.RWMutex
	tables  map[string]map[int64]model.Record
	nextIDs map[string]int64
}

// NewMemory creates an in-memory adapter for the registered models
func NewMemory(registry *model.Registry) *Memory {
	m := &Memory{
		registry: registry,
		tables:   make(map[string]map[int64]model.Record),
		nextIDs:  make(map[string]int64),
	}
	for _, name := range registry.Names() {
		m.tables[name] = make(map[int64]model.Record)
		m.nextIDs[name] = 1
	}
	return m
}

func (m *Memory) table(modelName string) (map[int64]model.Record, error) {
	t, ok := m.tables[modelName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, modelName)
	}
	return t, nil
}

// Create stores a new record, generating id and uuid and checking the
// declared unique constraints
func (m *Memory) Create(ctx context.Context, modelName string, data model.Record) (model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.table(modelName)
	if err != nil {
		return nil, err
	}
	def, _ := m.registry.Get(modelName)

	record := cloneRecord(data)
	id := m.nextIDs[modelName]
	m.nextIDs[modelName]++
	record["id"] = id
	record["uuid"] = uuid.NewString()

	if err := m.checkUnique(def, table, record, id); err != nil {
		return nil, err
	}

	table[id] = record
	return cloneRecord(record), nil
}

// checkUnique emulates single-field and compound unique constraints
func (m *Memory) checkUnique(def *model.Definition, table map[int64]model.Record, record model.Record, selfID int64) error {
	var uniqueSets [][]string
	for i := range def.Fields {
		if def.Fields[i].Unique {
			uniqueSets = append(uniqueSets, []string{def.Fields[i].Name})
		}
	}
	uniqueSets = append(uniqueSets, def.Constraints.Unique...)

	for _, cols := range uniqueSets {
		candidate := make([]interface{}, len(cols))
		skip := false
		for i, col := range cols {
			v, ok := record[col]
			if !ok || v == nil {
				skip = true
				break
			}
			candidate[i] = v
		}
		if skip {
			continue
		}

		for id, existing := range table {
			if id == selfID {
				continue
			}
			match := true
			for i, col := range cols {
				if fmt.Sprintf("%v", existing[col]) != fmt.Sprintf("%v", candidate[i]) {
					match = false
					break
				}
			}
			if match {
				return fmt.Errorf("%w: %s", ErrConflict, strings.Join(cols, ", "))
			}
		}
	}
	return nil
}

// FindUnique returns the record with the given id
func (m *Memory) FindUnique(ctx context.Context, modelName string, id int64) (model.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	table, err := m.table(modelName)
	if err != nil {
		return nil, err
	}
	record, ok := table[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(record), nil
}

// FindMany interprets the plan: conjunctive conditions, ordered sort
// list, then cursor position or offset, then take
func (m *Memory) FindMany(ctx context.Context, modelName string, plan *query.Plan) ([]model.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	table, err := m.table(modelName)
	if err != nil {
		return nil, err
	}
	def, _ := m.registry.Get(modelName)

	var matched []model.Record
	for _, record := range table {
		ok, err := matchesAll(def, record, plan.Where)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, record)
		}
	}

	sortRecords(def, matched, plan.OrderBy)

	start := 0
	skip := plan.Skip
	if plan.CursorID != nil {
		found := false
		for i, record := range matched {
			if recordID(record) == *plan.CursorID {
				start = i
				found = true
				break
			}
		}
		// A cursor row that was deleted or filtered out of the set has
		// no position to skip past; list from the beginning instead.
		if !found {
			skip = 0
		}
	}
	start += skip
	if start > len(matched) {
		start = len(matched)
	}

	end := len(matched)
	if plan.Take > 0 && start+plan.Take < end {
		end = start + plan.Take
	}

	out := make([]model.Record, 0, end-start)
	for _, record := range matched[start:end] {
		out = append(out, cloneRecord(record))
	}
	return out, nil
}

// Count returns the number of records matching the conditions
func (m *Memory) Count(ctx context.Context, modelName string, where []query.Condition) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	table, err := m.table(modelName)
	if err != nil {
		return 0, err
	}
	def, _ := m.registry.Get(modelName)

	var count int64
	for _, record := range table {
		ok, err := matchesAll(def, record, where)
		if err != nil {
			return 0, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}

// Update merges data into the record with the given id
func (m *Memory) Update(ctx context.Context, modelName string, id int64, data model.Record) (model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.table(modelName)
	if err != nil {
		return nil, err
	}
	def, _ := m.registry.Get(modelName)

	record, ok := table[id]
	if !ok {
		return nil, ErrNotFound
	}

	updated := cloneRecord(record)
	for k, v := range data {
		updated[k] = v
	}
	if err := m.checkUnique(def, table, updated, id); err != nil {
		return nil, err
	}

	table[id] = updated
	return cloneRecord(updated), nil
}

// UpdateMany merges data into every record matching the conditions
func (m *Memory) UpdateMany(ctx context.Context, modelName string, where []query.Condition, data model.Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.table(modelName)
	if err != nil {
		return 0, err
	}
	def, _ := m.registry.Get(modelName)

	var count int64
	for id, record := range table {
		ok, err := matchesAll(def, record, where)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		updated := cloneRecord(record)
		for k, v := range data {
			updated[k] = v
		}
		table[id] = updated
		count++
	}
	return count, nil
}

// Delete removes the record with the given id
func (m *Memory) Delete(ctx context.Context, modelName string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.table(modelName)
	if err != nil {
		return err
	}
	if _, ok := table[id]; !ok {
		return ErrNotFound
	}
	delete(table, id)
	return nil
}

// recordID extracts the numeric primary key from a record
func recordID(record model.Record) int64 {
	switch v := record["id"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func cloneRecord(record model.Record) model.Record {
	out := make(model.Record, len(record))
	for k, v := range record {
		out[k] = v
	}
	return out
}

// matchesAll evaluates the conjunctive condition list against a record
func matchesAll(def *model.Definition, record model.Record, where []query.Condition) (bool, error) {
	for i := range where {
		ok, err := matches(def, record, &where[i])
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// matches evaluates a single condition
func matches(def *model.Definition, record model.Record, cond *query.Condition) (bool, error) {
	raw, present := record[cond.Field]

	// Dotted JSON paths descend into the column value
	if len(cond.Path) > 0 {
		raw = descend(raw, cond.Path)
		present = raw != nil
	}

	// Null comparisons: equality against a null value is a presence check
	if cond.Value.Kind == model.KindNull && len(cond.Values) == 0 {
		isNull := !present || raw == nil
		switch cond.Op {
		case query.OpEq:
			return isNull, nil
		case query.OpNe:
			return !isNull, nil
		}
		return false, nil
	}

	if !present || raw == nil {
		// Absent values only match negative operators
		return cond.Op == query.OpNe || cond.Op == query.OpNotIn, nil
	}

	actual, err := coerceLike(def, cond, raw)
	if err != nil {
		return false, nil
	}

	switch cond.Op {
	case query.OpIn, query.OpNotIn:
		found := false
		for _, v := range cond.Values {
			if cmp, err := model.Compare(actual, v); err == nil && cmp == 0 {
				found = true
				break
			}
		}
		if cond.Op == query.OpIn {
			return found, nil
		}
		return !found, nil

	case query.OpContains:
		return strings.Contains(actual.Str, cond.Value.Str), nil
	case query.OpStartsWith:
		return strings.HasPrefix(actual.Str, cond.Value.Str), nil
	case query.OpEndsWith:
		return strings.HasSuffix(actual.Str, cond.Value.Str), nil
	}

	cmp, err := model.Compare(actual, cond.Value)
	if err != nil {
		return false, nil
	}
	switch cond.Op {
	case query.OpEq:
		return cmp == 0, nil
	case query.OpNe:
		return cmp != 0, nil
	case query.OpGt:
		return cmp > 0, nil
	case query.OpGte:
		return cmp >= 0, nil
	case query.OpLt:
		return cmp < 0, nil
	case query.OpLte:
		return cmp <= 0, nil
	}
	return false, nil
}

// coerceLike coerces a stored value into the same kind as the condition
// operand so comparisons stay type-exhaustive
func coerceLike(def *model.Definition, cond *query.Condition, raw interface{}) (model.Value, error) {
	if len(cond.Path) > 0 {
		// JSON path values are coerced to the operand's kind
		return coerceToKind(kindOf(cond), raw)
	}
	if ft, ok := def.FieldTypeOf(cond.Field); ok {
		return model.Coerce(ft, raw)
	}
	return coerceToKind(kindOf(cond), raw)
}

func kindOf(cond *query.Condition) model.Kind {
	if len(cond.Values) > 0 {
		return cond.Values[0].Kind
	}
	return cond.Value.Kind
}

func coerceToKind(kind model.Kind, raw interface{}) (model.Value, error) {
	switch kind {
	case model.KindInt:
		return model.Coerce(model.TypeInt, raw)
	case model.KindFloat:
		return model.Coerce(model.TypeFloat, raw)
	case model.KindBool:
		return model.Coerce(model.TypeBoolean, raw)
	case model.KindTime:
		return model.Coerce(model.TypeDateTime, raw)
	default:
		return model.Coerce(model.TypeString, raw)
	}
}

// descend walks a dotted path through nested JSON maps
func descend(raw interface{}, path []string) interface{} {
	current := raw
	for _, key := range path {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}

// sortRecords orders records by the plan's sort list, ties broken by the
// next entry, stable on id last
func sortRecords(def *model.Definition, records []model.Record, orderBy []query.Order) {
	sort.SliceStable(records, func(i, j int) bool {
		for _, order := range orderBy {
			cmp := compareField(def, records[i], records[j], order.Field)
			if cmp == 0 {
				continue
			}
			if order.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return recordID(records[i]) < recordID(records[j])
	})
}

func compareField(def *model.Definition, a, b model.Record, field string) int {
	av, aok := a[field]
	bv, bok := b[field]
	if !aok || av == nil {
		if !bok || bv == nil {
			return 0
		}
		return -1
	}
	if !bok || bv == nil {
		return 1
	}

	ft, ok := def.FieldTypeOf(field)
	if !ok {
		ft = model.TypeString
	}
	left, errA := model.Coerce(ft, av)
	right, errB := model.Coerce(ft, bv)
	if errA != nil || errB != nil {
		return strings.Compare(fmt.Sprintf("%v", av), fmt.Sprintf("%v", bv))
	}
	cmp, err := model.Compare(left, right)
	if err != nil {
		return 0
	}
	return cmp
}
