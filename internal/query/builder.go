package query

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/forgecms/forge/internal/model"
)

const (
	// DefaultLimit is the page size when the client does not supply one
	DefaultLimit = 25
	// MaxLimit caps the page size a client may request
	MaxLimit = 100
)

// ErrUnknownField is returned when a filter or sort key addresses a field
// the model does not carry
var ErrUnknownField = errors.New("unknown field")

// Builder compiles parameter bags into query plans for one registry
type Builder struct {
	now func() time.Time
}

// NewBuilder creates a query builder
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// WithClock overrides the time source, for tests
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build compiles the raw parameter bag into a Plan for the given model.
// Filters use filters[field][$op]=value syntax with per-field type
// coercion, sort uses indexed sort[n]=field:order keys, and pagination is
// offset mode when page is present, cursor mode otherwise.
func (b *Builder) Build(def *model.Definition, params map[string][]string) (*Plan, error) {
	plan := &Plan{Model: def.Name}

	if err := b.buildFilters(def, params, plan); err != nil {
		return nil, err
	}
	if err := b.buildSort(def, params, plan); err != nil {
		return nil, err
	}
	if err := b.buildPagination(params, plan); err != nil {
		return nil, err
	}
	b.applyPublicationScope(def, plan)

	return plan, nil
}

// first returns the first value for a param key
func first(params map[string][]string, key string) (string, bool) {
	vals, ok := params[key]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// buildPagination selects offset mode when page is present, cursor mode
// otherwise. Cursor mode fetches limit+1 records to detect hasMore
// without a second count query.
func (b *Builder) buildPagination(params map[string][]string, plan *Plan) error {
	limit := DefaultLimit
	if raw, ok := first(params, "limit"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid limit: %q", raw)
		}
		if n > MaxLimit {
			n = MaxLimit
		}
		limit = n
	}
	plan.Limit = limit

	if raw, ok := first(params, "page"); ok {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return fmt.Errorf("invalid page: %q", raw)
		}
		plan.Mode = OffsetMode
		plan.Page = page
		plan.Skip = (page - 1) * limit
		plan.Take = limit
		return nil
	}

	plan.Mode = CursorMode
	plan.Take = limit + 1
	if raw, ok := first(params, "cursor"); ok && raw != "" {
		id, err := DecodeCursor(raw)
		if err != nil {
			return err
		}
		plan.CursorID = &id
		// Start after the cursor record itself
		plan.Skip = 1
	}
	return nil
}

// buildSort collects indexed sort[n] keys in index order, falls back to
// the scalar sort key, then to descending createdAt, then ascending id
func (b *Builder) buildSort(def *model.Definition, params map[string][]string, plan *Plan) error {
	type indexed struct {
		idx int
		raw string
	}
	var entries []indexed

	for key, vals := range params {
		if !strings.HasPrefix(key, "sort[") || !strings.HasSuffix(key, "]") || len(vals) == 0 {
			continue
		}
		idxStr := key[len("sort[") : len(key)-1]
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			return fmt.Errorf("invalid sort index: %q", key)
		}
		entries = append(entries, indexed{idx: idx, raw: vals[0]})
	}

	if len(entries) > 0 {
		sort.Slice(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })
		for _, e := range entries {
			order, err := parseSortEntry(def, e.raw)
			if err != nil {
				return err
			}
			plan.OrderBy = append(plan.OrderBy, order)
		}
		return nil
	}

	if raw, ok := first(params, "sort"); ok && raw != "" {
		order, err := parseSortEntry(def, raw)
		if err != nil {
			return err
		}
		plan.OrderBy = []Order{order}
		return nil
	}

	if def.HasField("createdAt") {
		plan.OrderBy = []Order{{Field: "createdAt", Desc: true}}
	} else {
		plan.OrderBy = []Order{{Field: "id"}}
	}
	return nil
}

// parseSortEntry parses a "field:order" token, order defaulting to asc
func parseSortEntry(def *model.Definition, raw string) (Order, error) {
	field := raw
	desc := false

	if idx := strings.IndexByte(raw, ':'); idx >= 0 {
		field = raw[:idx]
		switch strings.ToLower(raw[idx+1:]) {
		case "desc":
			desc = true
		case "asc", "":
		default:
			return Order{}, fmt.Errorf("invalid sort order in %q", raw)
		}
	}

	if !def.HasField(field) {
		return Order{}, fmt.Errorf("%w: sort field %s", ErrUnknownField, field)
	}
	return Order{Field: field, Desc: desc}, nil
}

// buildFilters parses filters[field][$op]=value and filters[field]=value
// keys into coerced conditions
func (b *Builder) buildFilters(def *model.Definition, params map[string][]string, plan *Plan) error {
	keys := make([]string, 0)
	for key := range params {
		if strings.HasPrefix(key, "filters[") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		field, opToken, err := parseFilterKey(key)
		if err != nil {
			return err
		}

		op := OpEq
		if opToken != "" {
			op, err = ParseOperator(opToken)
			if err != nil {
				return err
			}
		}

		for _, raw := range params[key] {
			cond, err := b.buildCondition(def, field, op, raw)
			if err != nil {
				return err
			}
			plan.AddCondition(cond)
		}
	}
	return nil
}

// parseFilterKey splits filters[field] or filters[field][$op]
func parseFilterKey(key string) (field, op string, err error) {
	rest := strings.TrimPrefix(key, "filters[")
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return "", "", fmt.Errorf("malformed filter key: %q", key)
	}
	field = rest[:end]
	rest = rest[end+1:]

	if rest == "" {
		return field, "", nil
	}
	if !strings.HasPrefix(rest, "[") || !strings.HasSuffix(rest, "]") {
		return "", "", fmt.Errorf("malformed filter key: %q", key)
	}
	return field, rest[1 : len(rest)-1], nil
}

// buildCondition coerces the raw value against the target field's declared
// type. Dotted paths address JSON-column nested values and compare through
// a path structure rather than flat equality.
func (b *Builder) buildCondition(def *model.Definition, field string, op Operator, raw string) (Condition, error) {
	if dot := strings.IndexByte(field, '.'); dot >= 0 {
		root := field[:dot]
		ft, ok := def.FieldTypeOf(root)
		if !ok {
			return Condition{}, fmt.Errorf("%w: filter field %s", ErrUnknownField, root)
		}
		if ft != model.TypeJSON {
			return Condition{}, fmt.Errorf("field %s does not support nested paths", root)
		}
		cond := Condition{
			Field: root,
			Path:  strings.Split(field[dot+1:], "."),
			Op:    op,
		}
		if op == OpIn || op == OpNotIn {
			for _, elem := range splitList(raw) {
				cond.Values = append(cond.Values, coerceLoose(elem))
			}
		} else {
			cond.Value = coerceLoose(raw)
		}
		return cond, nil
	}

	ft, ok := def.FieldTypeOf(field)
	if !ok {
		return Condition{}, fmt.Errorf("%w: filter field %s", ErrUnknownField, field)
	}

	cond := Condition{Field: field, Op: op}
	if op == OpIn || op == OpNotIn {
		for _, elem := range splitList(raw) {
			v, err := model.Coerce(ft, elem)
			if err != nil {
				return Condition{}, fmt.Errorf("filter %s: %v", field, err)
			}
			cond.Values = append(cond.Values, v)
		}
		return cond, nil
	}

	v, err := model.Coerce(ft, raw)
	if err != nil {
		return Condition{}, fmt.Errorf("filter %s: %v", field, err)
	}
	cond.Value = v
	return cond, nil
}

// splitList splits a comma-separated list value, trimming whitespace
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// coerceLoose guesses the type of a JSON-path comparison value
func coerceLoose(raw string) model.Value {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return model.Value{Kind: model.KindInt, Int: n}
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return model.Value{Kind: model.KindFloat, Float: f}
	}
	if raw == "true" || raw == "false" {
		return model.Value{Kind: model.KindBool, Bool: raw == "true"}
	}
	return model.Value{Kind: model.KindString, Str: raw}
}

// applyPublicationScope injects the implicit draft/publish visibility
// constraint (status published and publication date reached) unless the
// caller filtered those fields explicitly. User filters are composed
// conjunctively, never dropped.
func (b *Builder) applyPublicationScope(def *model.Definition, plan *Plan) {
	if !def.DraftPublish {
		return
	}
	if plan.ReferencesField("status") || plan.ReferencesField("publishedAt") {
		return
	}

	plan.AddCondition(Condition{
		Field: "status",
		Op:    OpEq,
		Value: model.Value{Kind: model.KindString, Str: "PUBLISHED"},
	})
	plan.AddCondition(Condition{
		Field: "publishedAt",
		Op:    OpLte,
		Value: model.Value{Kind: model.KindTime, Time: b.now()},
	})
}
