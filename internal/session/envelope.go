package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// CurrentSchemaVersion is written by Encode.
//
//	0: flat single-thread history ({messages, xp, ...})
//	1: multi-conversation shape without a version field
//	2: multi-conversation shape with schemaVersion
const CurrentSchemaVersion = 2

var (
	ErrMalformed          = errors.New("malformed session data")
	ErrUnsupportedVersion = errors.New("unsupported session schema version")
)

// Encode serialises s stamped with the current schema version
func Encode(s Session) ([]byte, error) {
	s.SchemaVersion = CurrentSchemaVersion
	if s.Conversations == nil {
		s.Conversations = []Conversation{}
	}
	if s.UnlockedAchievements == nil {
		s.UnlockedAchievements = []string{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("error encoding session: %w", err)
	}
	return data, nil
}

// Decode parses stored session data of any known schema version and
// returns it in the current shape together with the version it was read as.
func Decode(data []byte) (Session, int, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Session{}, 0, fmt.Errorf("%w: empty document", ErrMalformed)
	}

	var header struct {
		SchemaVersion *int            `json:"schemaVersion"`
		Messages      json.RawMessage `json:"messages"`
		Conversations json.RawMessage `json:"conversations"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return Session{}, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	version := 1
	switch {
	case header.SchemaVersion != nil:
		version = *header.SchemaVersion
	case isJSONArray(header.Messages) && isEmptyList(header.Conversations):
		version = 0
	}

	var (
		s   Session
		err error
	)
	switch version {
	case 0:
		s, err = migrateV0(data)
	case 1, CurrentSchemaVersion:
		s, err = decodeCurrent(data)
	default:
		return Session{}, version, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if err != nil {
		return Session{}, version, err
	}
	return s, version, nil
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// isEmptyList reports whether raw is absent, null or an array without elements
func isEmptyList(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	var items []json.RawMessage
	return json.Unmarshal(trimmed, &items) == nil && len(items) == 0
}

func decodeCurrent(data []byte) (Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	s.SchemaVersion = CurrentSchemaVersion
	return normalize(s), nil
}

// legacySession is the version 0 layout
type legacySession struct {
	Messages             []Message   `json:"messages"`
	XP                   int         `json:"xp"`
	Level                int         `json:"level"`
	GermanLevel          GermanLevel `json:"germanLevel"`
	UnlockedAchievements []string    `json:"unlockedAchievements"`
}

// migrateV0 wraps a flat message history into a single conversation
func migrateV0(data []byte) (Session, error) {
	var legacy legacySession
	if err := json.Unmarshal(data, &legacy); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	messages := legacy.Messages
	if messages == nil {
		messages = []Message{}
	}
	conv := Conversation{
		ID:        NewID(),
		Title:     LegacyTitle,
		Messages:  messages,
		UpdatedAt: Now(),
	}
	return normalize(Session{
		SchemaVersion:        CurrentSchemaVersion,
		Conversations:        []Conversation{conv},
		ActiveConversationID: conv.ID,
		XP:                   legacy.XP,
		Level:                legacy.Level,
		GermanLevel:          legacy.GermanLevel,
		UnlockedAchievements: legacy.UnlockedAchievements,
	}), nil
}

func normalize(s Session) Session {
	if s.Conversations == nil {
		s.Conversations = []Conversation{}
	}
	for i := range s.Conversations {
		if s.Conversations[i].Messages == nil {
			s.Conversations[i].Messages = []Message{}
		}
	}
	if s.UnlockedAchievements == nil {
		s.UnlockedAchievements = []string{}
	}
	if s.GermanLevel == "" {
		s.GermanLevel = LevelA1
	}
	if s.Level < 1 {
		s.Level = LevelForXP(s.XP)
	}
	return s
}
