package local

import (
	"fmt"
	"testing"

	"hacker-kid/internal/session"
)

func sessionWithMessages(n int, withMedia bool) session.Session {
	s := session.New()
	convID := s.ActiveConversationID
	for i := 0; i < n; i++ {
		msg := session.NewMessage(session.RoleUser, fmt.Sprintf("msg %d", i))
		if withMedia {
			msg.Image = "aGVsbG8="
			msg.ImageMimeType = "image/png"
			msg.AudioData = "d29ybGQ="
		}
		s = session.AppendMessage(s, convID, msg)
	}
	return s
}

func TestPrune_WindowAndMedia(t *testing.T) {
	s := sessionWithMessages(40, true)

	pruned := Prune(s, DefaultPolicy)
	messages := pruned.Conversations[0].Messages

	if len(messages) != 30 {
		t.Fatalf("len(messages) = %d, want 30", len(messages))
	}
	if messages[0].Text != "msg 10" {
		t.Errorf("first kept message = %q, want %q", messages[0].Text, "msg 10")
	}
	for i, msg := range messages {
		wantMedia := i >= len(messages)-3
		if msg.HasMedia() != wantMedia {
			t.Errorf("messages[%d].HasMedia() = %v, want %v", i, msg.HasMedia(), wantMedia)
		}
	}
}

func TestPrune_ShortConversationUntouched(t *testing.T) {
	s := sessionWithMessages(2, true)

	pruned := Prune(s, DefaultPolicy)

	for i, msg := range pruned.Conversations[0].Messages {
		if !msg.HasMedia() {
			t.Errorf("messages[%d] lost its media", i)
		}
	}
}

func TestPrune_DoesNotMutateInput(t *testing.T) {
	s := sessionWithMessages(40, true)

	_ = Prune(s, DefaultPolicy)

	if got := len(s.Conversations[0].Messages); got != 40 {
		t.Errorf("input has %d messages after Prune, want 40", got)
	}
	for i, msg := range s.Conversations[0].Messages {
		if !msg.HasMedia() {
			t.Fatalf("input message %d lost its media", i)
		}
	}
}

func TestPrune_KeepsTextOfOldMessages(t *testing.T) {
	s := sessionWithMessages(10, true)

	pruned := Prune(s, Policy{Window: 30, MediaKeep: 1})

	if got := pruned.Conversations[0].Messages[0].Text; got != "msg 0" {
		t.Errorf("Text = %q, want %q", got, "msg 0")
	}
	if pruned.Conversations[0].Messages[0].HasMedia() {
		t.Error("old message kept its media")
	}
}

func TestPrune_BoundedSize(t *testing.T) {
	policy := Policy{Window: 5, MediaKeep: 1}

	// Adding text-only messages beyond the window never grows the payload
	// past the bound set by the window.
	var maxLen int
	s := sessionWithMessages(policy.Window, false)
	for i := 0; i < 50; i++ {
		s = session.AppendMessage(s, s.ActiveConversationID, session.NewMessage(session.RoleAI, "same length!"))
		data, err := session.Encode(Prune(s, policy))
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if i >= policy.Window {
			if maxLen == 0 {
				maxLen = len(data)
			}
			if len(data) > maxLen {
				t.Fatalf("iteration %d: pruned payload grew to %d bytes, bound %d", i, len(data), maxLen)
			}
		}
	}
}

func TestStripMedia(t *testing.T) {
	s := sessionWithMessages(5, true)

	stripped := StripMedia(s)

	for i, msg := range stripped.Conversations[0].Messages {
		if msg.HasMedia() {
			t.Errorf("messages[%d] still has media", i)
		}
		if msg.ImageMimeType != "" {
			t.Errorf("messages[%d].ImageMimeType = %q, want empty", i, msg.ImageMimeType)
		}
	}
	if !s.Conversations[0].Messages[0].HasMedia() {
		t.Error("StripMedia mutated its input")
	}
}
