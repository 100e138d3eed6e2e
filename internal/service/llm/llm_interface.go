package llm

import (
	"context"
	"hacker-kid/internal/session"
)

// TurnRequest is one student message together with the recent history
type TurnRequest struct {
	Level         session.GermanLevel
	History       []session.Message
	Text          string
	Image         string
	ImageMimeType string
	// Model overrides the provider's default model when set
	Model string
}

// TurnResult is the tutor's structured reply
type TurnResult struct {
	Response      string `json:"response"`
	Translation   string `json:"translation"`
	Geheimzauber  string `json:"geheimzauber"`
	IntentSuccess bool   `json:"intentSuccess"`
}

// Explanation is the tutor's note on a selected snippet
type Explanation struct {
	Meaning string `json:"meaning"`
	Tip     string `json:"tip"`
}

// Evaluation scores a spoken attempt at a target sentence
type Evaluation struct {
	Score int    `json:"score"`
	Tip   string `json:"tip"`
}

// Tutor answers chat turns
type Tutor interface {
	// Chat sends one turn and returns the parsed reply
	Chat(ctx context.Context, req TurnRequest) (*TurnResult, error)

	// GetDefaultModel returns the model used when a request names none
	GetDefaultModel() string
}

// Assistant offers the side tools around a conversation
type Assistant interface {
	// Explain describes a German snippet in Chinese for the given level
	Explain(ctx context.Context, selection, surrounding string, level session.GermanLevel) (*Explanation, error)

	// Translate renders Chinese text as German at the given level
	Translate(ctx context.Context, chinese string, level session.GermanLevel) (string, error)

	// EvaluatePronunciation scores base64 audio (wav or mp3) against target
	EvaluatePronunciation(ctx context.Context, target, audio, format string) (*Evaluation, error)
}

// Speaker turns text into base64 audio
type Speaker interface {
	Speak(ctx context.Context, text string) (string, error)
}
