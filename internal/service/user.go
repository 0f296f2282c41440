package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (*model.User, *model.Session, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return nil, nil, invalid("email", "must be a valid email address")
	}
	if len(password) < minPasswordLength {
		return nil, nil, invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	firstName = strings.TrimSpace(firstName)
	if firstName == "" {
		return nil, nil, invalid("first_name", "is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	var user *model.User
	var sess *model.Session
	err = s.tx(ctx, func(st *store.Stores) error {
		var err error
		user, err = st.Users.Create(ctx, email, firstName, strings.TrimSpace(lastName), string(hash))
		if errors.Is(err, store.ErrDuplicate) {
			return ErrEmailTaken
		}
		if err != nil {
			return err
		}
		sess, err = st.Sessions.Create(ctx, user.ID, s.sessionTTL)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, sess, nil
}

// Login checks credentials and issues a new session.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	st := s.stores()
	user, err := st.Users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, nil, err
	}
	if user == nil || user.PasswordHash == "" {
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	sess, err := st.Sessions.Create(ctx, user.ID, s.sessionTTL)
	if err != nil {
		return nil, nil, err
	}
	return user, sess, nil
}

// Authenticate resolves a session token to its user. It returns
// ErrNotFound for unknown or expired tokens.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, *model.Session, error) {
	if token == "" {
		return nil, nil, notFound("session")
	}
	st := s.stores()
	sess, err := st.Sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		return nil, nil, notFound("session")
	}
	user, err := st.Users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, notFound("user")
	}
	return user, sess, nil
}

func (s *Service) Logout(ctx context.Context, sessionID int64) error {
	return s.stores().Sessions.Delete(ctx, sessionID)
}

func (s *Service) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.stores().Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, notFound("user")
	}
	return u, nil
}

// PurgeExpiredSessions deletes expired sessions and returns how many went.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.stores().Sessions.DeleteExpired(ctx)
}
