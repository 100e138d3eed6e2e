// Package session holds the per-user chat state: conversations, XP and
// level, German proficiency and unlocked achievements. Every operation is a
// pure function over a Session value; persistence lives elsewhere.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// GermanLevel is the CEFR level the tutor pitches its replies at
type GermanLevel string

const (
	LevelA1 GermanLevel = "A1"
	LevelA2 GermanLevel = "A2"
	LevelB1 GermanLevel = "B1"
	LevelB2 GermanLevel = "B2"
)

// GermanLevels lists the supported levels in ascending order
var GermanLevels = []GermanLevel{LevelA1, LevelA2, LevelB1, LevelB2}

// Valid reports whether l is one of the supported levels
func (l GermanLevel) Valid() bool {
	for _, level := range GermanLevels {
		if l == level {
			return true
		}
	}
	return false
}

const (
	// PlaceholderTitle marks a conversation that has not been named yet
	PlaceholderTitle = "未命名情报"
	// LegacyTitle names the conversation produced by migrating a flat history
	LegacyTitle = "legacy"
	// TitleMaxRunes bounds titles derived from the first message
	TitleMaxRunes = 15
	// AchievementBonus is the XP granted for every newly unlocked achievement
	AchievementBonus = 50
	// XPPerLevel is the XP needed per level step
	XPPerLevel = 100
)

// Message is one chat line. Image and AudioData carry base64 payloads that
// the local persistence layer may strip later.
type Message struct {
	ID            string `json:"id"`
	Role          Role   `json:"role"`
	Text          string `json:"text"`
	Image         string `json:"image,omitempty"`
	ImageMimeType string `json:"imageMimeType,omitempty"`
	AudioData     string `json:"audioData,omitempty"`
	Translation   string `json:"translation,omitempty"`
	Geheimzauber  string `json:"geheimzauber,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// HasMedia reports whether the message carries an image or audio payload
func (m Message) HasMedia() bool {
	return m.Image != "" || m.AudioData != ""
}

// WithoutMedia returns a copy of m with image and audio payloads removed
func (m Message) WithoutMedia() Message {
	m.Image = ""
	m.ImageMimeType = ""
	m.AudioData = ""
	return m
}

// Conversation is one titled, chronological thread
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	UpdatedAt int64     `json:"updatedAt"`
}

// Session is everything persisted for one user
type Session struct {
	SchemaVersion        int            `json:"schemaVersion"`
	Conversations        []Conversation `json:"conversations"`
	ActiveConversationID string         `json:"activeConversationId"`
	XP                   int            `json:"xp"`
	Level                int            `json:"level"`
	GermanLevel          GermanLevel    `json:"germanLevel"`
	UnlockedAchievements []string       `json:"unlockedAchievements"`
}

var (
	nowFunc   = time.Now
	newIDFunc = func() string { return uuid.Must(uuid.NewV7()).String() }
)

// NewID returns a unique id. UUIDv7 strings sort in creation order.
func NewID() string {
	return newIDFunc()
}

// Now returns the current time in epoch milliseconds
func Now() int64 {
	return nowFunc().UnixMilli()
}

// NewMessage builds a message with a fresh id and timestamp
func NewMessage(role Role, text string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Text:      text,
		Timestamp: Now(),
	}
}

// LevelForXP derives the hacker level from accumulated XP
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}
