// Package httpapi is the JSON-over-HTTP transport of the FailSeed server.
package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/failseed/internal/logging"
	"github.com/dmitrijs2005/failseed/internal/server/metrics"
	"github.com/dmitrijs2005/failseed/internal/server/models"
	"github.com/dmitrijs2005/failseed/internal/server/services"
)

// Conversations is the conversation flow as seen by the transport.
type Conversations interface {
	Start(ctx context.Context, owner, text string) (*services.Reply, error)
	Continue(ctx context.Context, owner, entryID, message string) (*services.Reply, error)
	Finalize(ctx context.Context, owner, entryID string) (*models.Entry, error)
	UpdateHintStatus(ctx context.Context, owner, entryID string, status models.HintStatus) (*models.Entry, error)
	Get(ctx context.Context, owner, entryID string) (*models.Entry, error)
	ListCompleted(ctx context.Context, owner string) ([]*models.Entry, error)
	Delete(ctx context.Context, owner, entryID string) (bool, error)
	Analytics(ctx context.Context, owner string) (*models.Analytics, error)
}

// Accounts covers registration, login and guest sessions.
type Accounts interface {
	Register(ctx context.Context, email, password string) (*models.User, *services.TokenPair, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Guest(ctx context.Context) (string, *services.TokenPair, error)
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

type Exporter interface {
	Export(ctx context.Context, owner string) (*services.Export, error)
}

type Server struct {
	conversations Conversations
	accounts      Accounts
	exporter      Exporter
	logger        logging.Logger
	metrics       *metrics.Metrics
	secret        []byte
	maxBodyBytes  int64
}

// Options carries the optional collaborators of the HTTP server.
type Options struct {
	Exporter Exporter
	Metrics  *metrics.Metrics
	// MaxBodyBytes caps request bodies; 0 means 1 MiB.
	MaxBodyBytes int64
}

// NewServer wires routes and middleware into one handler.
func NewServer(conv Conversations, acc Accounts, secret []byte, logger logging.Logger, opts Options) http.Handler {
	s := &Server{
		conversations: conv,
		accounts:      acc,
		exporter:      opts.Exporter,
		logger:        logger.With("module", "http"),
		metrics:       opts.Metrics,
		secret:        secret,
		maxBodyBytes:  opts.MaxBodyBytes,
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = 1 << 20
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/auth/guest", s.handleGuest)
	mux.HandleFunc("GET /api/auth/current-user", s.withAuth(s.handleCurrentUser))

	mux.HandleFunc("POST /api/conversation/start", s.withAuth(s.handleStart))
	mux.HandleFunc("POST /api/conversation/continue", s.withAuth(s.handleContinue))
	mux.HandleFunc("POST /api/conversation/finalize", s.withAuth(s.handleFinalize))

	mux.HandleFunc("GET /api/entry/{id}", s.withAuth(s.handleGetEntry))
	mux.HandleFunc("PATCH /api/entry/{id}/hint", s.withAuth(s.handleUpdateHint))
	mux.HandleFunc("DELETE /api/entry/{id}", s.withAuth(s.handleDeleteEntry))

	mux.HandleFunc("GET /api/grows", s.withAuth(s.handleGrows))
	mux.HandleFunc("GET /api/analytics", s.withAuth(s.handleAnalytics))
	mux.HandleFunc("POST /api/export", s.withAuth(s.handleExport))

	return chainMiddlewares(s.withObservation(mux), withCORS, withRequestID)
}
