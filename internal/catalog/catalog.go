package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"mediaferry/internal/services"
)

const (
	prefixEntity = "e:"
	prefixUser   = "u:"
)

// ErrNotFound reports a missing entity or user. It matches services.ErrNotFound.
var ErrNotFound = fmt.Errorf("catalog: %w", services.ErrNotFound)

// Catalog owns the badger database behind the entity and user repositories.
type Catalog struct {
	db       *badgerdb.DB
	Entities *Entities
	Users    *Users
}

// Open opens or creates the catalog in dir.
func Open(dir string) (*Catalog, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	return open(opts)
}

// OpenInMemory opens a catalog that lives only as long as the process.
func OpenInMemory() (*Catalog, error) {
	opts := badgerdb.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	return open(opts)
}

func open(opts badgerdb.Options) (*Catalog, error) {
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return &Catalog{
		db:       db,
		Entities: &Entities{db: db},
		Users:    &Users{db: db},
	}, nil
}

// Close releases the database.
func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Healthcheck verifies the database answers reads.
func (c *Catalog) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(prefixEntity))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

func keyEntity(id string) []byte {
	return []byte(prefixEntity + id)
}

func keyUser(id string) []byte {
	return []byte(prefixUser + id)
}

func getJSON(txn *badgerdb.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badgerdb.Txn, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set(key, data)
}

func scanPrefix[T any](db *badgerdb.DB, prefix string) ([]*T, error) {
	var out []*T
	err := db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			value := new(T)
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, value)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, value)
		}
		return nil
	})
	return out, err
}
