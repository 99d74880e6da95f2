package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"mediaferry/internal/media"
)

// Fixture is the bulk import document.
type Fixture struct {
	Entities []*media.Entity `json:"entities"`
	Users    []*media.User   `json:"users"`
}

// ImportResult counts imported records.
type ImportResult struct {
	Entities int
	Users    int
}

// Import loads a JSON fixture, replacing records with matching ids. Every
// record is validated before the first write.
func (c *Catalog) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	var fixture Fixture
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&fixture); err != nil {
		return ImportResult{}, fmt.Errorf("decode fixture: %w", err)
	}
	for _, entity := range fixture.Entities {
		if err := validateEntity(entity); err != nil {
			return ImportResult{}, err
		}
	}

	var result ImportResult
	for _, entity := range fixture.Entities {
		if err := c.Entities.Put(ctx, entity); err != nil {
			return result, err
		}
		result.Entities++
	}
	for _, user := range fixture.Users {
		if err := c.Users.Put(ctx, user); err != nil {
			return result, err
		}
		result.Users++
	}
	return result, nil
}
