package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookstore/pkg/auth"
	"bookstore/pkg/domain"
)

// Register creates an account and returns it with a signed token.
func (a *App) Register(email, password, firstName, lastName string) (domain.User, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.User{}, "", ErrEmailAndPasswordRequired
	}
	if !strings.Contains(email, "@") {
		return domain.User{}, "", fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", fmt.Errorf("%w: %s", ErrValidation, err)
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", err
	}
	if exists {
		return domain.User{}, "", ErrEmailAlreadyExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.tokens.Issue(user)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Login verifies credentials and returns the user with a signed token.
// Unknown emails, wrong passwords, and deactivated accounts all fail with
// the same error so responses do not reveal which accounts exist.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.User{}, "", ErrEmailAndPasswordRequired
	}
	user, found, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", err
	}
	if !found || !auth.CheckPassword(password, user.PasswordHash) || !user.IsActive {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.tokens.Issue(user)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// UserFromToken resolves a bearer token to an active account.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	claims, err := a.tokens.Verify(token)
	if err != nil {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(claims.Subject)
	if err != nil || !found || !user.IsActive {
		return domain.User{}, false
	}
	return user, true
}

// ListUsers returns all accounts, active and deactivated.
func (a *App) ListUsers() ([]domain.User, error) {
	return a.store.ListUsers()
}

// GetUser retrieves an account by ID.
func (a *App) GetUser(id string) (domain.User, bool, error) {
	return a.store.GetUserByID(id)
}

// UpdateUserName changes the display name of an account.
func (a *App) UpdateUserName(id, firstName, lastName string) (domain.User, bool, error) {
	user, found, err := a.store.GetUserByID(id)
	if err != nil || !found {
		return domain.User{}, found, err
	}
	user.FirstName = strings.TrimSpace(firstName)
	user.LastName = strings.TrimSpace(lastName)
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, false, fmt.Errorf("save user: %w", err)
	}
	return user, true, nil
}

// DeactivateUser soft-deletes an account. The row survives but the account
// can no longer log in; deactivating twice is a no-op.
func (a *App) DeactivateUser(id string) (bool, error) {
	user, found, err := a.store.GetUserByID(id)
	if err != nil || !found {
		return found, err
	}
	if !user.IsActive {
		return true, nil
	}
	user.IsActive = false
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return false, fmt.Errorf("save user: %w", err)
	}
	return true, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
