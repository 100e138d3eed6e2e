package validation

import (
	"errors"
	"fmt"
	"regexp"
)

var validUsername = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// AuthRequestValidator validates authentication-related requests
type AuthRequestValidator struct{}

// NewAuthRequestValidator creates a new AuthRequestValidator
func NewAuthRequestValidator() *AuthRequestValidator {
	return &AuthRequestValidator{}
}

// ValidateUsername validates a username. Usernames key both local and
// remote storage, so they are restricted to a safe character set.
func (v *AuthRequestValidator) ValidateUsername(username string) error {
	if username == "" {
		return errors.New("username cannot be empty")
	}

	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters long, got %d", len(username))
	}

	if len(username) > 50 {
		return fmt.Errorf("username must be at most 50 characters long, got %d", len(username))
	}

	if !validUsername.MatchString(username) {
		return errors.New("username can only contain letters, numbers, dots, underscores, and hyphens")
	}

	return nil
}

// ValidatePassword validates a configured password
func (v *AuthRequestValidator) ValidatePassword(password string) error {
	if password == "" {
		return errors.New("password cannot be empty")
	}

	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters long, got %d", len(password))
	}

	if len(password) > 72 {
		return fmt.Errorf("password must be at most 72 characters long, got %d", len(password))
	}

	return nil
}

// ValidateLoginRequest checks the shape of a login attempt. The minimum
// password length is only enforced on configured credentials.
func (v *AuthRequestValidator) ValidateLoginRequest(username, password string) error {
	if err := v.ValidateUsername(username); err != nil {
		return err
	}

	if password == "" {
		return errors.New("password cannot be empty")
	}

	if len(password) > 72 {
		return fmt.Errorf("password must be at most 72 characters long, got %d", len(password))
	}

	return nil
}
