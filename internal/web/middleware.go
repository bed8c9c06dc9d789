package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/forgecms/forge/internal/lifecycle"
	"github.com/forgecms/forge/internal/model"
)

// requestLogger logs one structured line per request
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

// extractActor parses an optional Bearer token and places the subject
// claim in the context for audit injection. An absent or invalid token
// leaves the request anonymous; authorization is not enforced here.
func (s *Server) extractActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			next.ServeHTTP(w, r)
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(s.authSecret), nil
		})
		if err != nil || !token.Valid {
			s.logger.Debug("rejected bearer token", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		if sub, err := token.Claims.GetSubject(); err == nil && sub != "" {
			r = r.WithContext(lifecycle.WithActor(r.Context(), sub))
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies the model's configured per-minute request budget,
// keyed by client IP
func (s *Server) rateLimit(def *model.Definition) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := def.Name + ":" + clientIP(r)
			info, err := s.limiter.Allow(r.Context(), key, def.API.RateLimit)
			if err != nil {
				// Limiter outage fails open
				s.logger.Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

			if !info.Allowed {
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	// RealIP middleware already rewrote RemoteAddr when forwarded
	if idx := strings.LastIndexByte(r.RemoteAddr, ':'); idx >= 0 {
		return r.RemoteAddr[:idx]
	}
	return r.RemoteAddr
}
