package conversation

import (
	"context"
	"errors"
	"fmt"
	"hacker-kid/internal/logger"
	"hacker-kid/internal/session"

	"github.com/sirupsen/logrus"
)

// ErrConversationNotFound is returned for ids the session does not hold
var ErrConversationNotFound = errors.New("conversation not found")

// Mutator applies session changes and owns their persistence
type Mutator interface {
	Mutate(ctx context.Context, fn func(session.Session) session.Session) (session.Session, error)
	Current() session.Session
}

// ConversationInfo is a list entry for display
type ConversationInfo struct {
	ID           string
	Title        string
	MessageCount int
	UpdatedAt    int64
	Active       bool
}

// ConversationService turns user intents into session mutations
type ConversationService struct {
	mutator Mutator
}

// NewConversationService creates a new ConversationService
func NewConversationService(mutator Mutator) *ConversationService {
	return &ConversationService{
		mutator: mutator,
	}
}

// Create starts a new empty conversation, makes it active and returns its id
func (s *ConversationService) Create(ctx context.Context) (string, error) {
	next, err := s.mutator.Mutate(ctx, session.CreateConversation)
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}

	logger.Log.WithField("conversation_id", next.ActiveConversationID).Info("Conversation created")
	return next.ActiveConversationID, nil
}

// Switch makes id the active conversation
func (s *ConversationService) Switch(ctx context.Context, id string) error {
	if _, ok := s.mutator.Current().Conversation(id); !ok {
		return ErrConversationNotFound
	}

	_, err := s.mutator.Mutate(ctx, func(cur session.Session) session.Session {
		return session.SwitchActive(cur, id)
	})
	if err != nil {
		return fmt.Errorf("failed to switch conversation: %w", err)
	}
	return nil
}

// Delete removes id. Deleting the last conversation leaves a fresh empty one.
func (s *ConversationService) Delete(ctx context.Context, id string) error {
	if _, ok := s.mutator.Current().Conversation(id); !ok {
		return ErrConversationNotFound
	}

	next, err := s.mutator.Mutate(ctx, func(cur session.Session) session.Session {
		return session.DeleteConversation(cur, id)
	})
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": id,
		"active_id":       next.ActiveConversationID,
	}).Info("Conversation deleted")
	return nil
}

// Append adds msg to the active conversation
func (s *ConversationService) Append(ctx context.Context, msg session.Message) error {
	_, err := s.mutator.Mutate(ctx, func(cur session.Session) session.Session {
		return session.AppendMessage(cur, cur.ActiveConversationID, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// List returns the conversations newest first
func (s *ConversationService) List() []ConversationInfo {
	cur := s.mutator.Current()
	sorted := session.SortedByRecency(cur)

	result := make([]ConversationInfo, 0, len(sorted))
	for _, conv := range sorted {
		result = append(result, ConversationInfo{
			ID:           conv.ID,
			Title:        conv.Title,
			MessageCount: len(conv.Messages),
			UpdatedAt:    conv.UpdatedAt,
			Active:       conv.ID == cur.ActiveConversationID,
		})
	}
	return result
}

// Active returns the active conversation
func (s *ConversationService) Active() (session.Conversation, error) {
	conv, ok := s.mutator.Current().Active()
	if !ok {
		return session.Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

// SetGermanLevel changes the tutor difficulty
func (s *ConversationService) SetGermanLevel(ctx context.Context, level session.GermanLevel) error {
	if !level.Valid() {
		return fmt.Errorf("unsupported german level %q", level)
	}

	_, err := s.mutator.Mutate(ctx, func(cur session.Session) session.Session {
		return session.SetGermanLevel(cur, level)
	})
	if err != nil {
		return fmt.Errorf("failed to set german level: %w", err)
	}
	return nil
}
