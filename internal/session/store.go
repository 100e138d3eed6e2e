package session

import "sort"

// New returns a fresh session with one empty placeholder conversation
func New() Session {
	conv := newConversation()
	return Session{
		SchemaVersion:        CurrentSchemaVersion,
		Conversations:        []Conversation{conv},
		ActiveConversationID: conv.ID,
		XP:                   0,
		Level:                1,
		GermanLevel:          LevelA1,
		UnlockedAchievements: []string{},
	}
}

func newConversation() Conversation {
	return Conversation{
		ID:        NewID(),
		Title:     PlaceholderTitle,
		Messages:  []Message{},
		UpdatedAt: Now(),
	}
}

// Clone returns a deep copy of s
func (s Session) Clone() Session {
	out := s
	out.Conversations = make([]Conversation, len(s.Conversations))
	for i, conv := range s.Conversations {
		conv.Messages = append([]Message(nil), conv.Messages...)
		if conv.Messages == nil {
			conv.Messages = []Message{}
		}
		out.Conversations[i] = conv
	}
	out.UnlockedAchievements = append([]string{}, s.UnlockedAchievements...)
	return out
}

// shallow copies the conversation list and achievement set so callers can
// replace entries without touching s. Message slices stay shared and must
// be copied before being modified.
func (s Session) shallow() Session {
	out := s
	out.Conversations = append([]Conversation(nil), s.Conversations...)
	out.UnlockedAchievements = append([]string{}, s.UnlockedAchievements...)
	return out
}

func (s Session) indexOf(conversationID string) int {
	for i, conv := range s.Conversations {
		if conv.ID == conversationID {
			return i
		}
	}
	return -1
}

// Conversation looks up a conversation by id
func (s Session) Conversation(id string) (Conversation, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.Conversations[i], true
	}
	return Conversation{}, false
}

// Active returns the conversation referenced by ActiveConversationID
func (s Session) Active() (Conversation, bool) {
	return s.Conversation(s.ActiveConversationID)
}

// HasAchievement reports whether id is already unlocked
func (s Session) HasAchievement(id string) bool {
	for _, unlocked := range s.UnlockedAchievements {
		if unlocked == id {
			return true
		}
	}
	return false
}

// AppendMessage adds msg to the named conversation and bumps its
// updatedAt. A placeholder title is replaced by the text of a user message.
// Unknown conversation ids leave the session unchanged.
func AppendMessage(s Session, conversationID string, msg Message) Session {
	i := s.indexOf(conversationID)
	if i < 0 {
		return s
	}

	out := s.shallow()
	conv := out.Conversations[i]
	messages := make([]Message, len(conv.Messages), len(conv.Messages)+1)
	copy(messages, conv.Messages)
	conv.Messages = append(messages, msg)

	if now := Now(); now > conv.UpdatedAt {
		conv.UpdatedAt = now
	}
	if msg.Role == RoleUser && (conv.Title == PlaceholderTitle || conv.Title == "") {
		if title := deriveTitle(msg.Text); title != "" {
			conv.Title = title
		}
	}

	out.Conversations[i] = conv
	return out
}

func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) > TitleMaxRunes {
		runes = runes[:TitleMaxRunes]
	}
	return string(runes)
}

// CreateConversation inserts an empty placeholder conversation and makes it active
func CreateConversation(s Session) Session {
	out := s.shallow()
	conv := newConversation()
	out.Conversations = append(out.Conversations, conv)
	out.ActiveConversationID = conv.ID
	return out
}

// SwitchActive activates id. Unknown ids are ignored.
func SwitchActive(s Session, id string) Session {
	if s.indexOf(id) < 0 {
		return s
	}
	out := s.shallow()
	out.ActiveConversationID = id
	return out
}

// DeleteConversation removes id. The conversation set never becomes empty:
// deleting the last one spawns a fresh placeholder. Deleting the active
// conversation activates the first remaining one in stored order.
func DeleteConversation(s Session, id string) Session {
	i := s.indexOf(id)
	if i < 0 {
		return s
	}

	out := s.shallow()
	out.Conversations = append(out.Conversations[:i], out.Conversations[i+1:]...)

	if len(out.Conversations) == 0 {
		conv := newConversation()
		out.Conversations = []Conversation{conv}
		out.ActiveConversationID = conv.ID
		return out
	}
	if out.ActiveConversationID == id {
		out.ActiveConversationID = out.Conversations[0].ID
	}
	return out
}

// UnlockAchievement adds id to the unlocked set and grants the bonus XP.
// The second return value is false when id was already unlocked.
func UnlockAchievement(s Session, id string) (Session, bool) {
	if s.HasAchievement(id) {
		return s, false
	}
	out := s.shallow()
	out.UnlockedAchievements = append(out.UnlockedAchievements, id)
	out.XP += AchievementBonus
	out.Level = LevelForXP(out.XP)
	return out, true
}

// RecordExchange appends a user/ai message pair and awards xpDelta
func RecordExchange(s Session, conversationID string, user, ai Message, xpDelta int) Session {
	if s.indexOf(conversationID) < 0 {
		return s
	}
	out := AppendMessage(s, conversationID, user)
	out = AppendMessage(out, conversationID, ai)
	out.XP += xpDelta
	if out.XP < 0 {
		out.XP = 0
	}
	out.Level = LevelForXP(out.XP)
	return out
}

// SetGermanLevel changes the tutor difficulty. Invalid levels are ignored.
func SetGermanLevel(s Session, level GermanLevel) Session {
	if !level.Valid() {
		return s
	}
	out := s.shallow()
	out.GermanLevel = level
	return out
}

// EnsureActive repairs the two structural invariants: at least one
// conversation, and an active id that resolves.
func EnsureActive(s Session) Session {
	if len(s.Conversations) == 0 {
		out := s.shallow()
		conv := newConversation()
		out.Conversations = []Conversation{conv}
		out.ActiveConversationID = conv.ID
		return out
	}
	if s.indexOf(s.ActiveConversationID) >= 0 {
		return s
	}
	out := s.shallow()
	out.ActiveConversationID = out.Conversations[0].ID
	return out
}

// SortedByRecency returns the conversations ordered by updatedAt, newest first
func SortedByRecency(s Session) []Conversation {
	sorted := append([]Conversation(nil), s.Conversations...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt > sorted[j].UpdatedAt
	})
	return sorted
}
