package testutil

import (
	"context"
	"hacker-kid/internal/service/llm"
	"hacker-kid/internal/session"
	"sync"
)

// MockMutator keeps a session in memory and counts mutations
type MockMutator struct {
	mu        sync.Mutex
	State     session.Session
	Mutations int
	MutateErr error
}

// NewMockMutator starts from a fresh session
func NewMockMutator() *MockMutator {
	return &MockMutator{State: session.New()}
}

func (m *MockMutator) Mutate(_ context.Context, fn func(session.Session) session.Session) (session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.MutateErr != nil {
		return session.Session{}, m.MutateErr
	}
	m.State = fn(m.State)
	m.Mutations++
	return m.State, nil
}

func (m *MockMutator) Current() session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.State.Clone()
}

// MockTutor is a mock implementation of llm.Tutor
type MockTutor struct {
	ChatFunc            func(ctx context.Context, req llm.TurnRequest) (*llm.TurnResult, error)
	GetDefaultModelFunc func() string
}

func (m *MockTutor) Chat(ctx context.Context, req llm.TurnRequest) (*llm.TurnResult, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return &llm.TurnResult{Response: "Hallo!"}, nil
}

func (m *MockTutor) GetDefaultModel() string {
	if m.GetDefaultModelFunc != nil {
		return m.GetDefaultModelFunc()
	}
	return "test-model"
}

// MockSpeaker is a mock implementation of llm.Speaker
type MockSpeaker struct {
	SpeakFunc func(ctx context.Context, text string) (string, error)
}

func (m *MockSpeaker) Speak(ctx context.Context, text string) (string, error) {
	if m.SpeakFunc != nil {
		return m.SpeakFunc(ctx, text)
	}
	return "", nil
}

// MockAssistant is a mock implementation of llm.Assistant
type MockAssistant struct {
	ExplainFunc               func(ctx context.Context, selection, surrounding string, level session.GermanLevel) (*llm.Explanation, error)
	TranslateFunc             func(ctx context.Context, chinese string, level session.GermanLevel) (string, error)
	EvaluatePronunciationFunc func(ctx context.Context, target, audio, format string) (*llm.Evaluation, error)
}

func (m *MockAssistant) Explain(ctx context.Context, selection, surrounding string, level session.GermanLevel) (*llm.Explanation, error) {
	if m.ExplainFunc != nil {
		return m.ExplainFunc(ctx, selection, surrounding, level)
	}
	return &llm.Explanation{}, nil
}

func (m *MockAssistant) Translate(ctx context.Context, chinese string, level session.GermanLevel) (string, error) {
	if m.TranslateFunc != nil {
		return m.TranslateFunc(ctx, chinese, level)
	}
	return "", nil
}

func (m *MockAssistant) EvaluatePronunciation(ctx context.Context, target, audio, format string) (*llm.Evaluation, error) {
	if m.EvaluatePronunciationFunc != nil {
		return m.EvaluatePronunciationFunc(ctx, target, audio, format)
	}
	return &llm.Evaluation{}, nil
}
