package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"

	"mediaferry/internal/media"
)

// Users is the user repository.
type Users struct {
	db *badgerdb.DB
}

// GetByID loads one user.
func (r *Users) GetByID(ctx context.Context, id string) (*media.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var user media.User
	err := r.db.View(func(txn *badgerdb.Txn) error {
		return getJSON(txn, keyUser(id), &user)
	})
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return &user, nil
}

// Put creates or replaces a user.
func (r *Users) Put(ctx context.Context, user *media.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return errors.New("user id is required")
	}
	switch user.Role {
	case media.RoleAdmin, media.RoleUser:
	default:
		return fmt.Errorf("user %s: unknown role %q", user.ID, user.Role)
	}
	return r.db.Update(func(txn *badgerdb.Txn) error {
		return setJSON(txn, keyUser(user.ID), user)
	})
}

// List returns every user ordered by id.
func (r *Users) List(ctx context.Context) ([]*media.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scanPrefix[media.User](r.db, prefixUser)
}
