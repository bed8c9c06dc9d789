package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/forgecms/forge/internal/lifecycle"
	"github.com/forgecms/forge/internal/model"
	"github.com/forgecms/forge/internal/query"
	"github.com/forgecms/forge/internal/store"
)

// errorBody is the JSON error envelope
type errorBody struct {
	Error  string                 `json:"error"`
	Fields []lifecycle.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// writeError maps the engine's error taxonomy onto HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	var ve *lifecycle.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: ve.Fields})
		return
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "record not found"})
	case errors.Is(err, store.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: "unique constraint violation"})
	case errors.Is(err, store.ErrUnknownModel):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown model"})
	case errors.Is(err, query.ErrInvalidCursor):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid pagination cursor"})
	case errors.Is(err, query.ErrUnknownField):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case model.IsConfigurationError(err):
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

// offsetEnvelope is the paginated list response in offset mode
type offsetEnvelope struct {
	Data  []model.Record `json:"data"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// cursorEnvelope is the paginated list response in cursor mode.
// NextCursor is an explicit null once the collection is exhausted.
type cursorEnvelope struct {
	Data       []model.Record `json:"data"`
	Limit      int            `json:"limit"`
	HasMore    bool           `json:"hasMore"`
	NextCursor *string        `json:"nextCursor"`
}

func newListEnvelope(result *lifecycle.ListResult) interface{} {
	data := result.Records
	if data == nil {
		data = []model.Record{}
	}

	if result.Mode == query.OffsetMode {
		return offsetEnvelope{
			Data:  data,
			Total: result.Total,
			Page:  result.Page,
			Limit: result.Limit,
		}
	}

	env := cursorEnvelope{Data: data, Limit: result.Limit, HasMore: result.HasMore}
	if result.NextCursor != "" {
		cursor := result.NextCursor
		env.NextCursor = &cursor
	}
	return env
}
