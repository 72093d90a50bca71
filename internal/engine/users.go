package engine

import (
	"context"
	"errors"
	"strings"

	"rampline/internal/domain"
	"rampline/internal/engine/auth"
	"rampline/internal/events"
	"rampline/internal/store"
)

// ErrBadCredentials is returned for unknown emails and wrong passwords
// alike so login failures do not leak which one it was.
var ErrBadCredentials = errors.New("invalid email or password")

// UserCreateOptions are parameters for creating a user account.
type UserCreateOptions struct {
	Email    string
	Name     string
	Password string
	Role     string
	ActorID  string
}

func (e Engine) CreateUser(ctx context.Context, companyID string, opts UserCreateOptions) (domain.User, error) {
	email := auth.NormalizeEmail(opts.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, validationf("invalid email %q", opts.Email)
	}
	if strings.TrimSpace(opts.Name) == "" {
		return domain.User{}, validationf("user name must not be empty")
	}
	switch opts.Role {
	case "admin", "dev":
	default:
		return domain.User{}, validationf("unknown user role %q", opts.Role)
	}
	hash, err := auth.HashPassword(opts.Password)
	if err != nil {
		return domain.User{}, ValidationError{Message: err.Error()}
	}
	if _, err := e.Store.GetUserByEmail(ctx, email); err == nil {
		return domain.User{}, validationf("email %q already registered", email)
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, err
	}
	u := domain.User{
		ID:           newID(),
		CompanyID:    companyID,
		Email:        email,
		Name:         opts.Name,
		PasswordHash: hash,
		Role:         opts.Role,
		CreatedAt:    e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	if err := e.Store.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, err
	}
	if err := e.Events.Append(ctx, tx, companyID, "user", u.ID, "user.create", opts.ActorID, events.EventPayload{"email": u.Email, "role": u.Role}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// Authenticate checks credentials and returns the matching user.
func (e Engine) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	u, err := e.Store.GetUserByEmail(ctx, auth.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrBadCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return domain.User{}, ErrBadCredentials
	}
	return u, nil
}

// ProfileUpdateOptions are the self-service profile fields; nil means keep.
type ProfileUpdateOptions struct {
	Name             *string
	WorkingRepoID    *string
	ClearWorkingRepo bool
}

func (e Engine) UpdateUserProfile(ctx context.Context, userID string, opts ProfileUpdateOptions) (domain.User, error) {
	if opts.Name != nil && strings.TrimSpace(*opts.Name) == "" {
		return domain.User{}, validationf("user name must not be empty")
	}
	u, err := e.Store.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if opts.WorkingRepoID != nil && *opts.WorkingRepoID != "" {
		r, err := e.Store.GetRepository(ctx, *opts.WorkingRepoID)
		if err != nil {
			return domain.User{}, err
		}
		if r.CompanyID != u.CompanyID {
			return domain.User{}, validationf("repository %q belongs to another company", r.ID)
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	if err := e.Store.UpdateUserProfile(ctx, tx, userID, opts.Name, opts.WorkingRepoID, opts.ClearWorkingRepo); err != nil {
		return domain.User{}, err
	}
	if err := e.Events.Append(ctx, tx, u.CompanyID, "user", u.ID, "user.update", userID, nil); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return e.Store.GetUser(ctx, userID)
}
