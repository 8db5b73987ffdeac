package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/failseed/internal/common"
	"github.com/dmitrijs2005/failseed/internal/logging"
	"github.com/dmitrijs2005/failseed/internal/server/services"
)

// error codes sent in the "error" field
const (
	codeSafetyConcern    = "safety_concern"
	codeNotFound         = "not_found"
	codeServerError      = "server_error"
	codeInputTooLarge    = "input_too_large"
	codeValidation       = "validation_error"
	codeAlreadyCompleted = "already_completed"
	codeTurnLimit        = "turn_limit_reached"
	codeConflict         = "conflict"
	codeUnauthorized     = "unauthorized"
	codeAlreadyExists    = "already_exists"
	codeExportDisabled   = "export_disabled"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: codeValidation, Message: msg})
}

// writeError maps a service error onto a status code and error body.
// Internal details are logged, never returned.
func writeError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	var safety *services.SafetyConcernError
	switch {
	case errors.As(err, &safety):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: codeSafetyConcern, Message: safety.Error(), Resources: safety.Resources})
	case errors.Is(err, common.ErrorNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: codeNotFound, Message: "会話が見つかりません。"})
	case errors.Is(err, common.ErrInputTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: codeInputTooLarge, Message: "メッセージが長すぎます。"})
	case errors.Is(err, common.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: codeValidation, Message: err.Error()})
	case errors.Is(err, common.ErrAlreadyCompleted):
		writeJSON(w, http.StatusConflict, errorResponse{Error: codeAlreadyCompleted, Message: "この会話はすでに完了しています。"})
	case errors.Is(err, common.ErrTurnLimitReached):
		writeJSON(w, http.StatusConflict, errorResponse{Error: codeTurnLimit, Message: "会話の上限に達しました。まとめに進んでください。"})
	case errors.Is(err, common.ErrVersionConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: codeConflict, Message: "会話が同時に更新されました。もう一度お試しください。"})
	case errors.Is(err, common.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: codeAlreadyExists, Message: "このメールアドレスは既に登録されています。"})
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: codeUnauthorized, Message: err.Error()})
	case errors.Is(err, common.ErrExportUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: codeExportDisabled, Message: "エクスポートは無効です。"})
	case errors.Is(err, common.ErrGenerationFailed):
		logger.Error(r.Context(), "generation failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: codeServerError, Message: "応答の生成に失敗しました。しばらく待ってからもう一度お試しください。"})
	default:
		logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: codeServerError, Message: "サーバーエラーが発生しました。"})
	}
}
