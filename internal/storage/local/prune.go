package local

import "hacker-kid/internal/session"

// Policy bounds what a conversation keeps in local storage
type Policy struct {
	// Window is how many of the most recent messages are kept
	Window int
	// MediaKeep is how many of the most recent messages keep image/audio
	MediaKeep int
}

// DefaultPolicy keeps 30 messages and media on the last 3 of them
var DefaultPolicy = Policy{Window: 30, MediaKeep: 3}

// Prune applies p to every conversation of s. The input is not modified.
func Prune(s session.Session, p Policy) session.Session {
	out := s.Clone()
	for i, conv := range out.Conversations {
		messages := conv.Messages
		if p.Window > 0 && len(messages) > p.Window {
			messages = messages[len(messages)-p.Window:]
		}

		keepFrom := len(messages) - p.MediaKeep
		for j := range messages {
			if j < keepFrom {
				messages[j] = messages[j].WithoutMedia()
			}
		}
		out.Conversations[i].Messages = messages
	}
	return out
}

// StripMedia removes every image and audio payload from s
func StripMedia(s session.Session) session.Session {
	out := s.Clone()
	for i := range out.Conversations {
		for j := range out.Conversations[i].Messages {
			out.Conversations[i].Messages[j] = out.Conversations[i].Messages[j].WithoutMedia()
		}
	}
	return out
}
