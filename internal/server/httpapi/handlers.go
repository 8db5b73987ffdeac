package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/failseed/internal/common"
	"github.com/dmitrijs2005/failseed/internal/server/auth"
	"github.com/dmitrijs2005/failseed/internal/server/services"
)

// decode reads a JSON body into dst. Oversized bodies map to
// common.ErrInputTooLarge, anything unparsable to common.ErrValidation.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return common.ErrInputTooLarge
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", common.ErrValidation)
		}
		return fmt.Errorf("%w: invalid JSON body", common.ErrValidation)
	}
	return nil
}

func (s *Server) event(name string) {
	if s.metrics != nil {
		s.metrics.ConversationEvent(name)
	}
}

func (s *Server) owner(w http.ResponseWriter, r *http.Request) (auth.Owner, bool) {
	o, err := auth.OwnerFromContext(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err)
		return auth.Owner{}, false
	}
	return o, true
}

// ─────────────────────────────────────────────
// Auth
// ─────────────────────────────────────────────

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	user, pair, err := s.accounts.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         &userResponse{ID: user.ID, Email: user.Email},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	pair, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if req.RefreshToken == "" {
		badRequest(w, "refreshToken is required")
		return
	}

	pair, err := s.accounts.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	owner, pair, err := s.accounts.Guest(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{
		AccessToken: pair.AccessToken,
		User:        &userResponse{ID: owner, Guest: true},
	})
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	o, ok := s.owner(w, r)
	if !ok {
		return
	}
	if o.Guest {
		writeJSON(w, http.StatusOK, userResponse{ID: o.ID, Guest: true})
		return
	}

	user, err := s.accounts.CurrentUser(r.Context(), o.ID)
	if err != nil {
		// a valid token for a deleted account
		if errors.Is(err, common.ErrorNotFound) {
			err = common.ErrorUnauthorized
		}
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Email: user.Email})
}

// ─────────────────────────────────────────────
// Conversation
// ─────────────────────────────────────────────

func (s *Server) conversationError(w http.ResponseWriter, r *http.Request, err error) {
	var safety *services.SafetyConcernError
	if errors.As(err, &safety) {
		s.event("safety")
	}
	writeError(w, r, s.logger, err)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	o, ok := s.owner(w, r)
	if !ok {
		return
	}
	var req startRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	reply, err := s.conversations.Start(r.Context(), o.ID, req.Text)
	if err != nil {
		s.conversationError(w, r, err)
		return
	}
	s.event("started")
	writeJSON(w, http.StatusOK, conversationResponse{Message: reply.Message, ShouldFinalize: reply.ShouldFinalize, EntryID: reply.EntryID})
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	o, ok := s.owner(w, r)
	if !ok {
		return
	}
	var req continueRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if req.EntryID == "" {
		badRequest(w, "entryId is required")
		return
	}

	reply, err := s.conversations.Continue(r.Context(), o.ID, req.EntryID, req.Message)
	if err != nil {
		s.conversationError(w, r, err)
		return
	}
	s.event("continued")
	writeJSON(w, http.StatusOK, conversationResponse{Message: reply.Message, ShouldFinalize: reply.ShouldFinalize, EntryID: reply.EntryID})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	o, ok := s.owner(w, r)
	if !ok {
		return
	}
	var req finalizeRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if req.EntryID == "" {
		badRequest(w, "entryId is required")
		return
	}

	e, err := s.conversations.Finalize(r.Context(), o.ID, req.EntryID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	s.event("finalized")

	resp := finalizeResponse{Hint: e.Hint, Category: e.Category, EntryID: e.ID}
	if e.Growth != nil {
		resp.Growth = *e.Growth
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─────────────────────────────────────────────
// Entries
// ─────────────────────────────────────────────

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	o, ok := s.owner(w, r)
	if !ok {
		return
	}
	e, err := s.conversations.Get(r.Context(), o.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(e))
}

func (s *Server) handleUpdateHint(w http.ResponseWriter, r *http.Request) {
	o, ok := s.owner(w, r)
	if !ok {
		return
	}
	var req hintRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	e, err := s.conversations.UpdateHintStatus(r.Context(), o.ID, r.PathValue("id"), req.HintStatus)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(e))
}

// handleDeleteEntry reports whether an entry was removed. Repeating a delete,
// or naming an entry the caller does not own, answers {"success": false}.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	o, ok := s.owner(w, r)
	if !ok {
		return
	}
	deleted, err := s.conversations.Delete(r.Context(), o.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Success: deleted})
}

func (s *Server) handleGrows(w http.ResponseWriter, r *http.Request) {
	o, ok := s.owner(w, r)
	if !ok {
		return
	}
	list, err := s.conversations.ListCompleted(r.Context(), o.ID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryList(list))
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	o, ok := s.owner(w, r)
	if !ok {
		return
	}
	a, err := s.conversations.Analytics(r.Context(), o.ID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, analyticsResponse{
		Total:        a.Total,
		Completed:    a.Completed,
		ByCategory:   a.ByCategory,
		ByHintStatus: a.ByHintStatus,
		AverageTurns: a.AverageTurns,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	o, ok := s.owner(w, r)
	if !ok {
		return
	}
	if s.exporter == nil {
		writeError(w, r, s.logger, common.ErrExportUnavailable)
		return
	}
	out, err := s.exporter.Export(r.Context(), o.ID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{URL: out.URL, Key: out.Key, Count: out.Count, ExpiresAt: out.ExpiresAt})
}
