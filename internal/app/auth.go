package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tripparty/internal/util"
	"tripparty/pkg/auth"
	"tripparty/pkg/domain"
	"tripparty/pkg/store"
)

const defaultProfilePhoto = "/images/default-avatar.png"

// SignUp registers a new user with a hashed password.
func (a *App) SignUp(username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 {
		return domain.User{}, E(KindValidation, "username must be at least 3 characters")
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, E(KindValidation, err.Error())
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Username:     username,
		PasswordHash: hash,
		ProfilePhoto: defaultProfilePhoto,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateUser(user); err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			return domain.User{}, E(KindConflict, "username already taken")
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// SignIn checks credentials and returns the user. The caller issues the
// access token.
func (a *App) SignIn(username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.User{}, E(KindValidation, "username and password required")
	}
	user, ok, err := a.store.GetUserByUsername(username)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, E(KindUnauthorized, "incorrect username or password")
	}
	return user, nil
}

// Me returns the authenticated user's profile.
func (a *App) Me(userID string) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, E(KindNotFound, "user not found")
	}
	return user, nil
}
