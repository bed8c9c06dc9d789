package web

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/forgecms/forge/internal/lifecycle"
	"github.com/forgecms/forge/internal/model"
	"github.com/forgecms/forge/internal/query"
)

// WithAPIKeyAuth requires a valid X-API-Key header on every request and
// records ApiMetric rows as telemetry. Keys live in the built-in ApiKey
// model, stored hashed; a match updates lastUsedAt.
func WithAPIKeyAuth() Option {
	return func(s *Server) { s.apiKeyAuth = true }
}

// requireAPIKey authenticates the request against active ApiKey records
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get("X-API-Key")
		if presented == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing api key"})
			return
		}

		record, ok := s.matchAPIKey(r, presented)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid api key"})
			return
		}

		if name, _ := record["name"].(string); name != "" {
			r = r.WithContext(lifecycle.WithActor(r.Context(), "apikey:"+name))
		}
		next.ServeHTTP(w, r)
	})
}

// matchAPIKey scans active keys for a hash match. The key column is
// private so shaped responses never leak it; here we read through the
// engine's find path, which returns raw records.
func (s *Server) matchAPIKey(r *http.Request, presented string) (model.Record, bool) {
	plan := &query.Plan{
		Model: "ApiKey",
		Where: []query.Condition{{
			Field: "isActive",
			Op:    query.OpEq,
			Value: model.Value{Kind: model.KindBool, Bool: true},
		}},
		Limit: 1000,
		Take:  1000,
	}

	result, err := s.engine.List(r.Context(), "ApiKey", plan)
	if err != nil {
		s.logger.Error("api key lookup failed", zap.Error(err))
		return nil, false
	}

	now := time.Now().UTC()
	for _, record := range result.Records {
		hash, _ := record["key"].(string)
		if hash == "" || !model.VerifyAPIKey(hash, presented) {
			continue
		}
		if exp, ok := record["expiresAt"].(time.Time); ok && !exp.IsZero() && exp.Before(now) {
			continue
		}
		if id, ok := record["id"].(int64); ok {
			if _, err := s.engine.Update(r.Context(), "ApiKey", id, model.Record{"lastUsedAt": now}); err != nil {
				s.logger.Warn("failed to stamp api key usage", zap.Error(err))
			}
		}
		return record, true
	}
	return nil, false
}

// recordMetrics writes one ApiMetric row per request
func (s *Server) recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		metric := model.Record{
			"endpoint":   r.URL.Path,
			"method":     r.Method,
			"statusCode": int64(ww.Status()),
			"durationMs": float64(time.Since(start).Microseconds()) / 1000.0,
			"timestamp":  start.UTC(),
		}
		if _, err := s.engine.Create(r.Context(), "ApiMetric", metric); err != nil {
			s.logger.Warn("failed to record api metric", zap.Error(err))
		}
	})
}
