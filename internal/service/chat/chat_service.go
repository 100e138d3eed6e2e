package chat

import (
	"context"
	"errors"
	"fmt"
	"hacker-kid/internal/config"
	"hacker-kid/internal/logger"
	"hacker-kid/internal/service/llm"
	"hacker-kid/internal/session"
	"hacker-kid/pkg/validation"

	"github.com/sirupsen/logrus"
)

// ErrEmptyInput is returned for a turn with neither text nor media
var ErrEmptyInput = validation.ErrEmptyInput

const (
	// HistoryLimit is how many earlier messages are sent with a turn
	HistoryLimit = 10
	// XPIntentSuccess is awarded when the tutor understood the student
	XPIntentSuccess = 20
	// XPAttempt is awarded for any other answered turn
	XPAttempt = 5
	// ShadowPassScore is the pronunciation score that unlocks shadow_master
	ShadowPassScore = 80
	// FailurePrefix starts the synthetic reply shown when the tutor fails
	FailurePrefix = "[SYSTEM_ERROR] 连接中断: "
)

// Mutator applies session changes and owns their persistence
type Mutator interface {
	Mutate(ctx context.Context, fn func(session.Session) session.Session) (session.Session, error)
	Current() session.Session
}

// SendTurnRequest is one message typed, pasted or recorded by the student
type SendTurnRequest struct {
	Text          string
	Image         string
	ImageMimeType string
	AudioData     string
	Model         string
}

// SendTurnResponse describes what a turn changed
type SendTurnResponse struct {
	ConversationID string
	UserMessage    session.Message
	Reply          session.Message
	XPGained       int
	Unlocked       []string
	Session        session.Session
}

// ShadowResponse is the outcome of a pronunciation attempt
type ShadowResponse struct {
	Evaluation llm.Evaluation
	Unlocked   bool
}

// ChatService handles the business logic for chat turns
type ChatService struct {
	mutator   Mutator
	tutor     llm.Tutor
	speaker   llm.Speaker
	assistant llm.Assistant
	models    *config.ModelsConfig
	validator *validation.ChatRequestValidator
}

// NewChatService creates a new ChatService. speaker, assistant and models may be nil.
func NewChatService(mutator Mutator, tutor llm.Tutor, speaker llm.Speaker, assistant llm.Assistant, models *config.ModelsConfig) *ChatService {
	return &ChatService{
		mutator:   mutator,
		tutor:     tutor,
		speaker:   speaker,
		assistant: assistant,
		models:    models,
		validator: validation.NewChatRequestValidator(),
	}
}

// SendTurn sends one student turn to the tutor and records the exchange in
// the active conversation. When the tutor fails the user message is kept
// alongside a synthetic error reply, and the error is returned with the
// response.
func (s *ChatService) SendTurn(ctx context.Context, req SendTurnRequest) (*SendTurnResponse, error) {
	if err := s.validator.ValidateTurn(req.Text, req.Image, req.AudioData); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateImageMimeType(req.ImageMimeType); err != nil {
		return nil, fmt.Errorf("invalid image: %w", err)
	}
	if err := s.validateModel(req.Model, req.Image != ""); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}

	current := s.mutator.Current()
	conv, ok := current.Active()
	if !ok {
		return nil, errors.New("no active conversation")
	}

	userMsg := session.NewMessage(session.RoleUser, req.Text)
	userMsg.Image = req.Image
	userMsg.ImageMimeType = req.ImageMimeType
	userMsg.AudioData = req.AudioData

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": conv.ID,
		"level":           current.GermanLevel,
		"has_image":       req.Image != "",
	}).Info("Sending turn to tutor")

	result, err := s.tutor.Chat(ctx, llm.TurnRequest{
		Level:         current.GermanLevel,
		History:       recentHistory(conv.Messages, HistoryLimit),
		Text:          req.Text,
		Image:         req.Image,
		ImageMimeType: req.ImageMimeType,
		Model:         req.Model,
	})
	if err != nil {
		return s.recordFailure(ctx, conv.ID, userMsg, err)
	}

	reply := session.NewMessage(session.RoleAI, result.Response)
	reply.Translation = result.Translation
	reply.Geheimzauber = result.Geheimzauber
	if s.speaker != nil {
		audio, err := s.speaker.Speak(ctx, result.Response)
		if err != nil {
			logger.Log.WithError(err).Warn("Speech synthesis failed, continuing without audio")
		} else {
			reply.AudioData = audio
		}
	}

	xp := XPAttempt
	if result.IntentSuccess {
		xp = XPIntentSuccess
	}

	var unlocked []string
	next, err := s.mutator.Mutate(ctx, func(cur session.Session) session.Session {
		unlocked = nil
		cur = session.RecordExchange(cur, conv.ID, userMsg, reply, xp)
		for _, id := range turnAchievements(req, result) {
			var added bool
			if cur, added = session.UnlockAchievement(cur, id); added {
				unlocked = append(unlocked, id)
			}
		}
		if cur.Level >= 5 {
			var added bool
			if cur, added = session.UnlockAchievement(cur, session.AchievementLevel5); added {
				unlocked = append(unlocked, session.AchievementLevel5)
			}
		}
		return cur
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record exchange: %w", err)
	}

	if len(unlocked) > 0 {
		logger.Log.WithFields(logrus.Fields{
			"achievements": unlocked,
			"xp":           next.XP,
		}).Info("Achievements unlocked")
	}

	return &SendTurnResponse{
		ConversationID: conv.ID,
		UserMessage:    userMsg,
		Reply:          reply,
		XPGained:       xp,
		Unlocked:       unlocked,
		Session:        next,
	}, nil
}

func (s *ChatService) recordFailure(ctx context.Context, conversationID string, userMsg session.Message, cause error) (*SendTurnResponse, error) {
	logger.Log.WithError(cause).WithField("conversation_id", conversationID).Error("Tutor request failed")

	reply := session.NewMessage(session.RoleAI, FailurePrefix+cause.Error())
	next, err := s.mutator.Mutate(ctx, func(cur session.Session) session.Session {
		cur = session.AppendMessage(cur, conversationID, userMsg)
		return session.AppendMessage(cur, conversationID, reply)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record failed turn: %w", err)
	}

	return &SendTurnResponse{
		ConversationID: conversationID,
		UserMessage:    userMsg,
		Reply:          reply,
		Session:        next,
	}, fmt.Errorf("tutor request failed: %w", cause)
}

// Shadow scores a spoken attempt at target and unlocks shadow_master on a
// score above ShadowPassScore
func (s *ChatService) Shadow(ctx context.Context, target, audio, format string) (*ShadowResponse, error) {
	if s.assistant == nil {
		return nil, errors.New("assistant not configured")
	}
	if target == "" || audio == "" {
		return nil, ErrEmptyInput
	}

	eval, err := s.assistant.EvaluatePronunciation(ctx, target, audio, format)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate pronunciation: %w", err)
	}

	resp := &ShadowResponse{Evaluation: *eval}
	if eval.Score <= ShadowPassScore {
		return resp, nil
	}

	_, err = s.mutator.Mutate(ctx, func(cur session.Session) session.Session {
		cur, resp.Unlocked = session.UnlockAchievement(cur, session.AchievementShadowMaster)
		return cur
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record achievement: %w", err)
	}
	return resp, nil
}

// Explain asks the assistant about a snippet of the active conversation
func (s *ChatService) Explain(ctx context.Context, selection, surrounding string) (*llm.Explanation, error) {
	if s.assistant == nil {
		return nil, errors.New("assistant not configured")
	}
	if selection == "" {
		return nil, ErrEmptyInput
	}
	return s.assistant.Explain(ctx, selection, surrounding, s.mutator.Current().GermanLevel)
}

// Translate renders Chinese text as German at the student's level
func (s *ChatService) Translate(ctx context.Context, chinese string) (string, error) {
	if s.assistant == nil {
		return "", errors.New("assistant not configured")
	}
	if chinese == "" {
		return "", ErrEmptyInput
	}
	return s.assistant.Translate(ctx, chinese, s.mutator.Current().GermanLevel)
}

func (s *ChatService) validateModel(modelID string, withImage bool) error {
	if s.models == nil {
		return nil
	}
	if modelID == "" {
		modelID = s.models.GetDefaultModel()
	} else if !s.models.IsValidModel(modelID) {
		return fmt.Errorf("model %s is not available", modelID)
	}
	if withImage && !s.models.SupportsVision(modelID) {
		return fmt.Errorf("model %s cannot read images", modelID)
	}
	return nil
}

func recentHistory(messages []session.Message, limit int) []session.Message {
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return append([]session.Message(nil), messages...)
}

func turnAchievements(req SendTurnRequest, result *llm.TurnResult) []string {
	var ids []string
	if req.Image != "" {
		ids = append(ids, session.AchievementVisualAnalyzer)
	}
	if result.IntentSuccess {
		ids = append(ids, session.AchievementFirstHack)
	}
	if result.Geheimzauber != "" {
		ids = append(ids, session.AchievementSpellCaster)
	}
	return ids
}
