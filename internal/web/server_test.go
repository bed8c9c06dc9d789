package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgecms/forge/internal/lifecycle"
	"github.com/forgecms/forge/internal/model"
	"github.com/forgecms/forge/internal/store"
)

func newTestServer(t *testing.T, opts []Option, defs ...*model.Definition) http.Handler {
	t.Helper()
	registry, err := model.NewRegistry(defs...)
	require.NoError(t, err)

	adapter := store.NewMemory(registry)
	engine := lifecycle.NewEngine(registry, adapter, nil, nil)

	server, err := NewServer(registry, engine, nil, opts...)
	require.NoError(t, err)
	return server.Handler()
}

func taskDef() *model.Definition {
	return &model.Definition{
		Name: "Task",
		Fields: []model.Field{
			{Name: "name", Type: model.TypeString},
			{Name: "done", Type: model.TypeBoolean, Required: model.Bool(false), Default: false},
			{Name: "age", Type: model.TypeInt, Required: model.Bool(false)},
		},
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateAndRead(t *testing.T) {
	handler := newTestServer(t, nil, taskDef())

	rec := doJSON(t, handler, http.MethodPost, "/tasks", map[string]interface{}{"name": "x"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode(t, rec)
	assert.Equal(t, "x", created["name"])
	assert.Equal(t, false, created["done"])
	assert.NotEmpty(t, created["uuid"])
	assert.NotNil(t, created["createdAt"])

	got := doJSON(t, handler, http.MethodGet, "/tasks/1", nil)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "x", decode(t, got)["name"])
}

func TestCreateValidationErrorShape(t *testing.T) {
	handler := newTestServer(t, nil, taskDef())

	rec := doJSON(t, handler, http.MethodPost, "/tasks", map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode(t, rec)
	errs, ok := body["errors"].([]interface{})
	require.True(t, ok, "validation errors must be a structured list: %v", body)
	first := errs[0].(map[string]interface{})
	assert.Equal(t, "name", first["field"])
	assert.NotEmpty(t, first["message"])
}

func TestReadNotFound(t *testing.T) {
	handler := newTestServer(t, nil, taskDef())

	rec := doJSON(t, handler, http.MethodGet, "/tasks/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateAndDelete(t *testing.T) {
	handler := newTestServer(t, nil, taskDef())

	doJSON(t, handler, http.MethodPost, "/tasks", map[string]interface{}{"name": "x"})

	rec := doJSON(t, handler, http.MethodPatch, "/tasks/1", map[string]interface{}{"name": "y"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "y", decode(t, rec)["name"])

	del := doJSON(t, handler, http.MethodDelete, "/tasks/1", nil)
	assert.Equal(t, http.StatusNoContent, del.Code)

	gone := doJSON(t, handler, http.MethodGet, "/tasks/1", nil)
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestUniqueConflictMapsTo409(t *testing.T) {
	def := &model.Definition{
		Name: "Task",
		Fields: []model.Field{
			{Name: "name", Type: model.TypeString, Unique: true},
		},
	}
	handler := newTestServer(t, nil, def)

	first := doJSON(t, handler, http.MethodPost, "/tasks", map[string]interface{}{"name": "x"})
	require.Equal(t, http.StatusCreated, first.Code)

	dup := doJSON(t, handler, http.MethodPost, "/tasks", map[string]interface{}{"name": "x"})
	assert.Equal(t, http.StatusConflict, dup.Code)
}

func TestSoftDeleteRoutes(t *testing.T) {
	def := taskDef()
	def.SoftDelete = true
	handler := newTestServer(t, nil, def)

	doJSON(t, handler, http.MethodPost, "/tasks", map[string]interface{}{"name": "x"})

	del := doJSON(t, handler, http.MethodDelete, "/tasks/1", nil)
	require.Equal(t, http.StatusNoContent, del.Code)

	hidden := doJSON(t, handler, http.MethodGet, "/tasks/1", nil)
	assert.Equal(t, http.StatusNotFound, hidden.Code)

	restored := doJSON(t, handler, http.MethodPost, "/tasks/1/restore", nil)
	require.Equal(t, http.StatusOK, restored.Code)

	back := doJSON(t, handler, http.MethodGet, "/tasks/1", nil)
	assert.Equal(t, http.StatusOK, back.Code)

	force := doJSON(t, handler, http.MethodDelete, "/tasks/1/force", nil)
	assert.Equal(t, http.StatusNoContent, force.Code)

	gone := doJSON(t, handler, http.MethodPost, "/tasks/1/restore", nil)
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestRestoreNotMountedWithoutSoftDelete(t *testing.T) {
	handler := newTestServer(t, nil, taskDef())

	doJSON(t, handler, http.MethodPost, "/tasks", map[string]interface{}{"name": "x"})
	rec := doJSON(t, handler, http.MethodPost, "/tasks/1/restore", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDisabledOperationsNotMounted(t *testing.T) {
	def := taskDef()
	def.API.Operations = []string{"list", "read"}
	handler := newTestServer(t, nil, def)

	rec := doJSON(t, handler, http.MethodPost, "/tasks", map[string]interface{}{"name": "x"})
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListCursorPaginationScenario(t *testing.T) {
	handler := newTestServer(t, nil, taskDef())

	for i := 0; i < 5; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/tasks", map[string]interface{}{
			"name": fmt.Sprintf("t%d", i),
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	var cursor string
	var pages int
	path := "/tasks?limit=2&sort=id:asc"
	for {
		url := path
		if cursor != "" {
			url = path + "&cursor=" + cursor
		}
		rec := doJSON(t, handler, http.MethodGet, url, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode(t, rec)
		pages++

		hasMore := body["hasMore"].(bool)
		if !hasMore {
			assert.Nil(t, body["nextCursor"], "exhausted listing must carry a null cursor")
			break
		}
		require.NotNil(t, body["nextCursor"])
		cursor = body["nextCursor"].(string)
		require.Less(t, pages, 10, "pagination did not terminate")
	}
	assert.Equal(t, 3, pages)
}

func TestListOffsetEnvelope(t *testing.T) {
	handler := newTestServer(t, nil, taskDef())

	for i := 0; i < 5; i++ {
		doJSON(t, handler, http.MethodPost, "/tasks", map[string]interface{}{"name": fmt.Sprintf("t%d", i)})
	}

	rec := doJSON(t, handler, http.MethodGet, "/tasks?page=2&limit=2&sort=id:asc", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, float64(5), body["total"])
	assert.Equal(t, float64(2), body["page"])
	assert.Equal(t, float64(2), body["limit"])
	data := body["data"].([]interface{})
	require.Len(t, data, 2)
}

func TestListFilterBoundary(t *testing.T) {
	handler := newTestServer(t, nil, taskDef())

	for i, age := range []int{0, 1, 2} {
		doJSON(t, handler, http.MethodPost, "/tasks", map[string]interface{}{
			"name": fmt.Sprintf("t%d", i),
			"age":  age,
		})
	}

	rec := doJSON(t, handler, http.MethodGet, "/tasks?filters[age][$gte]=0&filters[age][$lte]=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decode(t, rec)["data"].([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, float64(0), data[0].(map[string]interface{})["age"])
}

func TestListMalformedCursorIs400(t *testing.T) {
	handler := newTestServer(t, nil, taskDef())

	rec := doJSON(t, handler, http.MethodGet, "/tasks?cursor=garbage", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPrivateFieldRedactedInResponses(t *testing.T) {
	def := &model.Definition{
		Name: "Account",
		Fields: []model.Field{
			{Name: "email", Type: model.TypeString},
			{Name: "apiToken", Type: model.TypeString, Private: true},
		},
	}
	handler := newTestServer(t, nil, def)

	rec := doJSON(t, handler, http.MethodPost, "/accounts", map[string]interface{}{
		"email":    "a@b.c",
		"apiToken": "tok_123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, rec)
	_, leaked := body["apiToken"]
	assert.False(t, leaked, "private field leaked: %v", body)
}

func TestWritePrivateStrippedFromInput(t *testing.T) {
	def := &model.Definition{
		Name: "Account",
		Fields: []model.Field{
			{Name: "email", Type: model.TypeString},
			{Name: "tier", Type: model.TypeString, Required: model.Bool(false), WritePrivate: true, Default: "free"},
		},
	}
	handler := newTestServer(t, nil, def)

	rec := doJSON(t, handler, http.MethodPost, "/accounts", map[string]interface{}{
		"email": "a@b.c",
		"tier":  "enterprise",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "free", decode(t, rec)["tier"], "client-supplied writePrivate value must be ignored")
}

func TestMaskedEmailScenario(t *testing.T) {
	def := &model.Definition{
		Name: "Contact",
		Fields: []model.Field{
			{Name: "email", Type: model.TypeString, Masked: &model.MaskSpec{Preset: "email"}},
		},
	}
	handler := newTestServer(t, nil, def)

	rec := doJSON(t, handler, http.MethodPost, "/contacts", map[string]interface{}{
		"email": "john.doe@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "jo***@example.com", decode(t, rec)["email"])
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter, err := NewSlidingWindow(client)
	require.NoError(t, err)

	def := taskDef()
	def.API.RateLimit = 2
	handler := newTestServer(t, []Option{WithRateLimiter(limiter)}, def)

	for i := 0; i < 2; i++ {
		rec := doJSON(t, handler, http.MethodGet, "/tasks", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, handler, http.MethodGet, "/tasks", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// Routes outside the limited subtree are unaffected
	health := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestHealthz(t *testing.T) {
	handler := newTestServer(t, nil, taskDef())
	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
