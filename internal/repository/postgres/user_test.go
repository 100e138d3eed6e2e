package postgres

import (
	"context"
	"errors"
	"hacker-kid/internal/repository/db"
	"hacker-kid/internal/testutil"
	"testing"
)

func TestSeedUsers(t *testing.T) {
	ctx := context.Background()
	database := testutil.NewMockDatabase()

	creds := []db.Credential{
		{Username: "admin", Password: "hacker"},
		{Username: "alice", Password: "secret1"},
	}
	if err := SeedUsers(ctx, database, creds); err != nil {
		t.Fatalf("SeedUsers() error = %v", err)
	}

	for _, cred := range creds {
		user, err := database.GetUserByUsername(ctx, cred.Username)
		if err != nil {
			t.Fatalf("Expected user %s to exist: %v", cred.Username, err)
		}
		if !VerifyPassword(user, cred.Password) {
			t.Errorf("Expected password of %s to verify", cred.Username)
		}
		if VerifyPassword(user, "wrong-password") {
			t.Errorf("Expected wrong password of %s to be rejected", cred.Username)
		}
	}
}

func TestSeedUsers_KeepsExistingPassword(t *testing.T) {
	ctx := context.Background()
	database := testutil.NewMockDatabase()
	if _, err := database.CreateUser(ctx, "admin", "original"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if err := SeedUsers(ctx, database, []db.Credential{{Username: "admin", Password: "hacker"}}); err != nil {
		t.Fatalf("SeedUsers() error = %v", err)
	}

	user, _ := database.GetUserByUsername(ctx, "admin")
	if !VerifyPassword(user, "original") {
		t.Error("Expected existing password to be kept")
	}
}

func TestSeedUsers_LookupError(t *testing.T) {
	database := testutil.NewMockDatabase()
	database.GetUserByUsernameFunc = func(ctx context.Context, username string) (*db.User, error) {
		return nil, errors.New("connection refused")
	}

	err := SeedUsers(context.Background(), database, []db.Credential{{Username: "admin", Password: "hacker"}})
	if err == nil {
		t.Fatal("Expected error when lookup fails")
	}
}
