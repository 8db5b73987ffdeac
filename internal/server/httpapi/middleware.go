package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/failseed/internal/common"
	"github.com/dmitrijs2005/failseed/internal/logging"
	"github.com/dmitrijs2005/failseed/internal/server/auth"
	"github.com/oklog/ulid/v2"
)

const requestIDHeader = "X-Request-ID"

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestID tags the request with a ULID, reusing a client supplied one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = ulid.Make().String()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// withCORS adds basic CORS headers to allow calls from a web front-end.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withObservation logs every request and feeds the request metrics. It must
// wrap the mux directly so that r.Pattern is filled in after routing.
func (s *Server) withObservation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, rec.status, elapsed)
		}
		s.logger.Info(r.Context(), "http request",
			"method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", elapsed)
	})
}

// withAuth resolves the bearer token into an owner and rejects anonymous calls.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, r, s.logger, common.ErrorUnauthorized)
			return
		}

		claims, err := auth.ParseToken(strings.TrimSpace(token), s.secret)
		if err != nil {
			if !errors.Is(err, common.ErrTokenExpired) {
				err = common.ErrInvalidToken
			}
			writeError(w, r, s.logger, err)
			return
		}

		ctx := auth.WithOwner(r.Context(), auth.Owner{ID: claims.UserID, Guest: claims.Guest})
		next(w, r.WithContext(ctx))
	}
}

// chainMiddlewares applies multiple middlewares in order.
func chainMiddlewares(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for _, m := range middlewares {
		h = m(h)
	}
	return h
}
