package client

import "time"

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Guest bool   `json:"guest"`
}

// AuthResult is returned by register, login and guest.
type AuthResult struct {
	TokenPair
	User *User `json:"user,omitempty"`
}

type Reply struct {
	Message        string `json:"message"`
	ShouldFinalize bool   `json:"shouldFinalize"`
	EntryID        string `json:"entryId"`
}

type Growth struct {
	Growth   string  `json:"growth"`
	Hint     *string `json:"hint"`
	Category *string `json:"category,omitempty"`
	EntryID  string  `json:"entryId"`
}

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Entry struct {
	ID                  string    `json:"id"`
	Text                string    `json:"text"`
	ConversationHistory []Message `json:"conversationHistory"`
	TurnCount           int       `json:"turnCount"`
	Growth              *string   `json:"growth"`
	Hint                *string   `json:"hint"`
	HintStatus          string    `json:"hintStatus"`
	Category            *string   `json:"category"`
	IsCompleted         bool      `json:"isCompleted"`
	CreatedAt           time.Time `json:"createdAt"`
}

type Analytics struct {
	Total        int            `json:"total"`
	Completed    int            `json:"completed"`
	ByCategory   map[string]int `json:"byCategory"`
	ByHintStatus map[string]int `json:"byHintStatus"`
	AverageTurns float64        `json:"averageTurns"`
}

type Export struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	Count     int       `json:"count"`
	ExpiresAt time.Time `json:"expiresAt"`
}
