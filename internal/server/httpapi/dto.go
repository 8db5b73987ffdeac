package httpapi

import (
	"time"

	"github.com/dmitrijs2005/failseed/internal/server/models"
)

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken,omitempty"`
	User         *userResponse `json:"user,omitempty"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Guest bool   `json:"guest"`
}

type startRequest struct {
	Text string `json:"text"`
}

type continueRequest struct {
	EntryID string `json:"entryId"`
	Message string `json:"message"`
}

type finalizeRequest struct {
	EntryID string `json:"entryId"`
}

type conversationResponse struct {
	Message        string `json:"message"`
	ShouldFinalize bool   `json:"shouldFinalize"`
	EntryID        string `json:"entryId"`
}

type finalizeResponse struct {
	Growth   string  `json:"growth"`
	Hint     *string `json:"hint"`
	Category *string `json:"category,omitempty"`
	EntryID  string  `json:"entryId"`
}

type hintRequest struct {
	HintStatus models.HintStatus `json:"hintStatus"`
}

type deleteResponse struct {
	Success bool `json:"success"`
}

type messageResponse struct {
	Role      models.Role `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

type entryResponse struct {
	ID                  string            `json:"id"`
	Text                string            `json:"text"`
	ConversationHistory []messageResponse `json:"conversationHistory"`
	TurnCount           int               `json:"turnCount"`
	Growth              *string           `json:"growth"`
	Hint                *string           `json:"hint"`
	HintStatus          models.HintStatus `json:"hintStatus"`
	Category            *string           `json:"category"`
	IsCompleted         bool              `json:"isCompleted"`
	CreatedAt           time.Time         `json:"createdAt"`
}

type analyticsResponse struct {
	Total        int                       `json:"total"`
	Completed    int                       `json:"completed"`
	ByCategory   map[string]int            `json:"byCategory"`
	ByHintStatus map[models.HintStatus]int `json:"byHintStatus"`
	AverageTurns float64                   `json:"averageTurns"`
}

type exportResponse struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	Count     int       `json:"count"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type errorResponse struct {
	Error     string   `json:"error"`
	Message   string   `json:"message"`
	Resources []string `json:"resources,omitempty"`
}

func toEntryResponse(e *models.Entry) entryResponse {
	history := make([]messageResponse, 0, len(e.History))
	for _, m := range e.History {
		history = append(history, messageResponse{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp})
	}
	return entryResponse{
		ID:                  e.ID,
		Text:                e.Text,
		ConversationHistory: history,
		TurnCount:           e.TurnCount,
		Growth:              e.Growth,
		Hint:                e.Hint,
		HintStatus:          e.HintStatus,
		Category:            e.Category,
		IsCompleted:         e.IsCompleted,
		CreatedAt:           e.CreatedAt,
	}
}

func toEntryList(list []*models.Entry) []entryResponse {
	out := make([]entryResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toEntryResponse(e))
	}
	return out
}
