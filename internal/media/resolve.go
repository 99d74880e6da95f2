package media

import "errors"

var (
	ErrMediaNotFound  = errors.New("media not found")
	ErrSourceNotFound = errors.New("source not found")
)

// Resolve locates the media and source addressed by ref inside entity. The
// returned pointers alias the entity's slices, so edits are visible when the
// entity is persisted.
func Resolve(entity *Entity, ref SourceRef) (*Media, *Source, error) {
	if entity == nil {
		return nil, nil, ErrMediaNotFound
	}
	for i := range entity.Media {
		m := &entity.Media[i]
		if m.ID != ref.MediaID {
			continue
		}
		for j := range m.Sources {
			if m.Sources[j].ID == ref.SourceID {
				return m, &m.Sources[j], nil
			}
		}
		return m, nil, ErrSourceNotFound
	}
	return nil, nil, ErrMediaNotFound
}

// DistinctEntityIDs returns the entity ids referenced by refs in first-seen order.
func DistinctEntityIDs(refs []SourceRef) []string {
	seen := make(map[string]struct{}, len(refs))
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref.MainID]; ok {
			continue
		}
		seen[ref.MainID] = struct{}{}
		ids = append(ids, ref.MainID)
	}
	return ids
}
