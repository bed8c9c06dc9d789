package query

import (
	"errors"
	"testing"
	"time"

	"github.com/forgecms/forge/internal/model"
)

func testDef(t *testing.T) *model.Definition {
	t.Helper()
	return &model.Definition{
		Name: "Post",
		Fields: []model.Field{
			{Name: "title", Type: model.TypeString},
			{Name: "age", Type: model.TypeInt},
			{Name: "active", Type: model.TypeBoolean},
			{Name: "meta", Type: model.TypeJSON},
			{Name: "category", Type: model.TypeEnum, Values: []string{"NEWS", "OPINION"}},
		},
	}
}

func TestBuildFilters(t *testing.T) {
	def := testDef(t)
	b := NewBuilder()

	tests := []struct {
		name      string
		params    map[string][]string
		wantField string
		wantOp    Operator
		check     func(t *testing.T, c Condition)
	}{
		{
			name:      "implicit eq",
			params:    map[string][]string{"filters[title]": {"hello"}},
			wantField: "title", wantOp: OpEq,
			check: func(t *testing.T, c Condition) {
				if c.Value.Str != "hello" {
					t.Errorf("value = %q", c.Value.Str)
				}
			},
		},
		{
			name:      "explicit gte coerced to int",
			params:    map[string][]string{"filters[age][$gte]": {"21"}},
			wantField: "age", wantOp: OpGte,
			check: func(t *testing.T, c Condition) {
				if c.Value.Kind != model.KindInt || c.Value.Int != 21 {
					t.Errorf("value = %+v", c.Value)
				}
			},
		},
		{
			name:      "boolean true string",
			params:    map[string][]string{"filters[active][$eq]": {"true"}},
			wantField: "active", wantOp: OpEq,
			check: func(t *testing.T, c Condition) {
				if c.Value.Kind != model.KindBool || !c.Value.Bool {
					t.Errorf("value = %+v", c.Value)
				}
			},
		},
		{
			name:      "in splits comma list",
			params:    map[string][]string{"filters[age][$in]": {"1, 2,3"}},
			wantField: "age", wantOp: OpIn,
			check: func(t *testing.T, c Condition) {
				if len(c.Values) != 3 || c.Values[0].Int != 1 || c.Values[2].Int != 3 {
					t.Errorf("values = %+v", c.Values)
				}
			},
		},
		{
			name:      "contains",
			params:    map[string][]string{"filters[title][$contains]": {"go"}},
			wantField: "title", wantOp: OpContains,
			check:     func(t *testing.T, c Condition) {},
		},
		{
			name:      "dotted json path",
			params:    map[string][]string{"filters[meta.color][$eq]": {"red"}},
			wantField: "meta", wantOp: OpEq,
			check: func(t *testing.T, c Condition) {
				if len(c.Path) != 1 || c.Path[0] != "color" {
					t.Errorf("path = %v", c.Path)
				}
			},
		},
		{
			name:      "enum value upper-cased",
			params:    map[string][]string{"filters[category]": {"news"}},
			wantField: "category", wantOp: OpEq,
			check: func(t *testing.T, c Condition) {
				if c.Value.Str != "NEWS" {
					t.Errorf("value = %q", c.Value.Str)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := b.Build(def, tt.params)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if len(plan.Where) != 1 {
				t.Fatalf("conditions = %d, want 1", len(plan.Where))
			}
			c := plan.Where[0]
			if c.Field != tt.wantField || c.Op != tt.wantOp {
				t.Errorf("condition = %s %v", c.Field, c.Op)
			}
			tt.check(t, c)
		})
	}
}

func TestBuildFilterErrors(t *testing.T) {
	def := testDef(t)
	b := NewBuilder()

	tests := []struct {
		name   string
		params map[string][]string
	}{
		{"unknown field", map[string][]string{"filters[ghost]": {"x"}}},
		{"unknown operator", map[string][]string{"filters[age][$between]": {"1"}}},
		{"bad int coercion", map[string][]string{"filters[age][$eq]": {"abc"}}},
		{"dotted path on non-json", map[string][]string{"filters[title.x]": {"y"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := b.Build(def, tt.params); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBuildSort(t *testing.T) {
	def := &model.Definition{
		Name: "Post",
		Fields: []model.Field{
			{Name: "title", Type: model.TypeString},
			{Name: "views", Type: model.TypeInt},
		},
	}
	b := NewBuilder()

	t.Run("indexed keys ordered by index", func(t *testing.T) {
		plan, err := b.Build(def, map[string][]string{
			"sort[1]": {"title:asc"},
			"sort[0]": {"views:desc"},
		})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if len(plan.OrderBy) != 2 {
			t.Fatalf("OrderBy = %v", plan.OrderBy)
		}
		if plan.OrderBy[0].Field != "views" || !plan.OrderBy[0].Desc {
			t.Errorf("first sort = %+v", plan.OrderBy[0])
		}
		if plan.OrderBy[1].Field != "title" || plan.OrderBy[1].Desc {
			t.Errorf("second sort = %+v", plan.OrderBy[1])
		}
	})

	t.Run("scalar fallback", func(t *testing.T) {
		plan, err := b.Build(def, map[string][]string{"sort": {"views:desc"}})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if len(plan.OrderBy) != 1 || plan.OrderBy[0].Field != "views" {
			t.Errorf("OrderBy = %v", plan.OrderBy)
		}
	})

	t.Run("default createdAt desc", func(t *testing.T) {
		plan, err := b.Build(def, nil)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if len(plan.OrderBy) != 1 || plan.OrderBy[0].Field != "createdAt" || !plan.OrderBy[0].Desc {
			t.Errorf("OrderBy = %v", plan.OrderBy)
		}
	})

	t.Run("unknown sort field", func(t *testing.T) {
		_, err := b.Build(def, map[string][]string{"sort": {"ghost:asc"}})
		if !errors.Is(err, ErrUnknownField) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("bad sort order", func(t *testing.T) {
		if _, err := b.Build(def, map[string][]string{"sort": {"views:sideways"}}); err == nil {
			t.Error("expected error")
		}
	})
}

func TestBuildPagination(t *testing.T) {
	def := testDef(t)
	b := NewBuilder()

	t.Run("offset mode on page", func(t *testing.T) {
		plan, err := b.Build(def, map[string][]string{"page": {"3"}, "limit": {"10"}})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if plan.Mode != OffsetMode || plan.Skip != 20 || plan.Take != 10 || plan.Page != 3 {
			t.Errorf("plan = %+v", plan)
		}
	})

	t.Run("cursor mode default overfetches one", func(t *testing.T) {
		plan, err := b.Build(def, nil)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if plan.Mode != CursorMode || plan.Take != DefaultLimit+1 || plan.Skip != 0 || plan.CursorID != nil {
			t.Errorf("plan = %+v", plan)
		}
	})

	t.Run("cursor present skips one", func(t *testing.T) {
		cursor := EncodeCursor(7)
		plan, err := b.Build(def, map[string][]string{"cursor": {cursor}})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if plan.CursorID == nil || *plan.CursorID != 7 || plan.Skip != 1 {
			t.Errorf("plan = %+v", plan)
		}
	})

	t.Run("malformed cursor is a client error", func(t *testing.T) {
		_, err := b.Build(def, map[string][]string{"cursor": {"garbage"}})
		if !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("limit capped", func(t *testing.T) {
		plan, err := b.Build(def, map[string][]string{"limit": {"5000"}})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if plan.Limit != MaxLimit {
			t.Errorf("Limit = %d, want %d", plan.Limit, MaxLimit)
		}
	})

	t.Run("invalid limit rejected", func(t *testing.T) {
		if _, err := b.Build(def, map[string][]string{"limit": {"0"}}); err == nil {
			t.Error("expected error")
		}
	})
}

func TestPublicationScope(t *testing.T) {
	def := &model.Definition{
		Name:         "Article",
		Fields:       []model.Field{{Name: "title", Type: model.TypeString}},
		DraftPublish: true,
	}
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewBuilder().WithClock(func() time.Time { return fixed })

	t.Run("implicit published constraint", func(t *testing.T) {
		plan, err := b.Build(def, nil)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}

		var hasStatus, hasPublishedAt bool
		for _, c := range plan.Where {
			if c.Field == "status" && c.Op == OpEq && c.Value.Str == "PUBLISHED" {
				hasStatus = true
			}
			if c.Field == "publishedAt" && c.Op == OpLte && c.Value.Time.Equal(fixed) {
				hasPublishedAt = true
			}
		}
		if !hasStatus || !hasPublishedAt {
			t.Errorf("missing publication scope: %+v", plan.Where)
		}
	})

	t.Run("explicit status filter suppresses injection", func(t *testing.T) {
		plan, err := b.Build(def, map[string][]string{"filters[status]": {"DRAFT"}})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		for _, c := range plan.Where {
			if c.Field == "publishedAt" {
				t.Error("publishedAt constraint should not be injected")
			}
		}
		if len(plan.Where) != 1 {
			t.Errorf("user filter should stand alone: %+v", plan.Where)
		}
	})
}
