package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput rejects a chat turn with neither text nor media
var ErrEmptyInput = errors.New("message must contain text, an image or audio")

// MaxSessionBytes bounds a session blob accepted by the remote store
const MaxSessionBytes = 20 << 20

var supportedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// ChatRequestValidator validates chat turns and session payloads
type ChatRequestValidator struct{}

// NewChatRequestValidator creates a new ChatRequestValidator
func NewChatRequestValidator() *ChatRequestValidator {
	return &ChatRequestValidator{}
}

// ValidateTurn rejects a turn that carries nothing to send
func (v *ChatRequestValidator) ValidateTurn(text, image, audio string) error {
	if strings.TrimSpace(text) == "" && image == "" && audio == "" {
		return ErrEmptyInput
	}
	return nil
}

// ValidateImageMimeType validates the type of an attached image
func (v *ChatRequestValidator) ValidateImageMimeType(mimeType string) error {
	if mimeType == "" {
		return nil
	}

	if !supportedImageTypes[mimeType] {
		return fmt.Errorf("image type must be one of png, jpeg, gif, webp; got %s", mimeType)
	}
	return nil
}

// ValidateSessionPayload checks a serialized session sent to the remote store
func (v *ChatRequestValidator) ValidateSessionPayload(data string) error {
	if data == "" {
		return errors.New("data cannot be empty")
	}

	if len(data) > MaxSessionBytes {
		return fmt.Errorf("data must be at most %d bytes, got %d", MaxSessionBytes, len(data))
	}

	if !json.Valid([]byte(data)) {
		return errors.New("data must be valid JSON")
	}
	return nil
}
