package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"mediaferry/internal/media"
)

// Entities is the entity repository.
type Entities struct {
	db *badgerdb.DB
}

// GetByID loads one entity.
func (r *Entities) GetByID(ctx context.Context, id string) (*media.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entity media.Entity
	err := r.db.View(func(txn *badgerdb.Txn) error {
		return getJSON(txn, keyEntity(id), &entity)
	})
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", id, err)
	}
	return &entity, nil
}

// GetByIDs loads every listed entity in order inside one read transaction.
// Any missing id fails the whole call.
func (r *Entities) GetByIDs(ctx context.Context, ids []string) ([]*media.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entities := make([]*media.Entity, 0, len(ids))
	err := r.db.View(func(txn *badgerdb.Txn) error {
		for _, id := range ids {
			var entity media.Entity
			if err := getJSON(txn, keyEntity(id), &entity); err != nil {
				return fmt.Errorf("entity %s: %w", id, err)
			}
			entities = append(entities, &entity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// Update rewrites an existing entity. Unknown ids return ErrNotFound.
func (r *Entities) Update(ctx context.Context, entity *media.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entity == nil {
		return errors.New("entity is nil")
	}
	return r.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keyEntity(entity.ID)); err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return fmt.Errorf("entity %s: %w", entity.ID, ErrNotFound)
			}
			return err
		}
		entity.UpdatedAt = time.Now().UTC()
		return setJSON(txn, keyEntity(entity.ID), entity)
	})
}

// Put creates or replaces an entity.
func (r *Entities) Put(ctx context.Context, entity *media.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateEntity(entity); err != nil {
		return err
	}
	return r.db.Update(func(txn *badgerdb.Txn) error {
		return setJSON(txn, keyEntity(entity.ID), entity)
	})
}

// List returns every entity ordered by id.
func (r *Entities) List(ctx context.Context) ([]*media.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scanPrefix[media.Entity](r.db, prefixEntity)
}

func validateEntity(entity *media.Entity) error {
	if entity == nil {
		return errors.New("entity is nil")
	}
	if strings.TrimSpace(entity.ID) == "" {
		return errors.New("entity id is required")
	}
	if !entity.Kind.Valid() {
		return fmt.Errorf("entity %s: unknown kind %q", entity.ID, entity.Kind)
	}
	return nil
}
