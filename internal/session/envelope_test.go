package session

import (
	"errors"
	"testing"
)

func TestDecode_LegacyFlatHistory(t *testing.T) {
	fixedClock(t, 5000)
	legacy := `{"messages":[{"id":"1","role":"user","text":"hallo","timestamp":1000},{"id":"2","role":"ai","text":"Hallo!","timestamp":1001}],"xp":10,"level":1,"germanLevel":"A2","unlockedAchievements":["first_hack"]}`

	s, version, err := Decode([]byte(legacy))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if version != 0 {
		t.Errorf("version = %d, want 0", version)
	}
	if len(s.Conversations) != 1 {
		t.Fatalf("conversation count = %d, want 1", len(s.Conversations))
	}
	conv := s.Conversations[0]
	if conv.Title != LegacyTitle {
		t.Errorf("Title = %q, want %q", conv.Title, LegacyTitle)
	}
	if len(conv.Messages) != 2 || conv.Messages[0].Text != "hallo" || conv.Messages[1].ID != "2" {
		t.Errorf("messages = %+v, want original order", conv.Messages)
	}
	if s.ActiveConversationID != conv.ID {
		t.Errorf("ActiveConversationID = %s, want %s", s.ActiveConversationID, conv.ID)
	}
	if s.XP != 10 || s.Level != 1 || s.GermanLevel != LevelA2 {
		t.Errorf("xp/level/german = %d/%d/%s, want 10/1/A2", s.XP, s.Level, s.GermanLevel)
	}
	if len(s.UnlockedAchievements) != 1 || s.UnlockedAchievements[0] != AchievementFirstHack {
		t.Errorf("UnlockedAchievements = %v, want [first_hack]", s.UnlockedAchievements)
	}
	if s.SchemaVersion != CurrentSchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", s.SchemaVersion, CurrentSchemaVersion)
	}
}

func TestDecode_UnversionedConversations(t *testing.T) {
	data := `{"conversations":[{"id":"c1","title":"Hallo","messages":[],"updatedAt":1}],"activeConversationId":"c1","xp":0,"level":1,"germanLevel":"A1","unlockedAchievements":[]}`

	s, version, err := Decode([]byte(data))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}
	if s.ActiveConversationID != "c1" || len(s.Conversations) != 1 {
		t.Errorf("Decode() = %+v", s)
	}
}

func TestDecode_VersionDetection(t *testing.T) {
	tests := []struct {
		name         string
		data         string
		wantVersion  int
		wantMessages int
		wantActiveID string
	}{
		{
			name:         "stray messages next to conversations",
			data:         `{"conversations":[{"id":"c1","title":"Hallo","messages":[{"id":"m1","role":"user","text":"hallo","timestamp":1}],"updatedAt":1}],"activeConversationId":"c1","messages":[],"xp":0,"level":1,"germanLevel":"A1","unlockedAchievements":[]}`,
			wantVersion:  1,
			wantMessages: 1,
			wantActiveID: "c1",
		},
		{
			name:         "messages with empty conversations",
			data:         `{"conversations":[],"messages":[{"id":"m1","role":"user","text":"hallo","timestamp":1}],"xp":0,"level":1}`,
			wantVersion:  0,
			wantMessages: 1,
		},
		{
			name:         "messages with null conversations",
			data:         `{"conversations":null,"messages":[{"id":"m1","role":"user","text":"hallo","timestamp":1}],"xp":0,"level":1}`,
			wantVersion:  0,
			wantMessages: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, version, err := Decode([]byte(tt.data))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if version != tt.wantVersion {
				t.Errorf("Expected version %d, got %d", tt.wantVersion, version)
			}
			if len(s.Conversations) != 1 {
				t.Fatalf("Expected 1 conversation, got %d", len(s.Conversations))
			}
			if got := len(s.Conversations[0].Messages); got != tt.wantMessages {
				t.Errorf("Expected %d messages, got %d", tt.wantMessages, got)
			}
			if tt.wantActiveID != "" && s.ActiveConversationID != tt.wantActiveID {
				t.Errorf("Expected active conversation %s, got %s", tt.wantActiveID, s.ActiveConversationID)
			}
		})
	}
}

func TestEncodeDecode_Current(t *testing.T) {
	fixedClock(t, 1000)
	s := New()
	s = AppendMessage(s, s.ActiveConversationID, NewMessage(RoleUser, "hallo"))

	data, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, version, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if version != CurrentSchemaVersion {
		t.Errorf("version = %d, want %d", version, CurrentSchemaVersion)
	}
	active, ok := got.Active()
	if !ok || len(active.Messages) != 1 || active.Messages[0].Text != "hallo" {
		t.Errorf("decoded active conversation = %+v", active)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{name: "not json", data: "{ nope", want: ErrMalformed},
		{name: "empty", data: "", want: ErrMalformed},
		{name: "null", data: "null", want: ErrMalformed},
		{name: "wrong type", data: `{"schemaVersion":2,"conversations":"x"}`, want: ErrMalformed},
		{name: "future version", data: `{"schemaVersion":99}`, want: ErrUnsupportedVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode([]byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}
