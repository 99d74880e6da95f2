package media

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Kind identifies which collection an entity belongs to.
type Kind string

const (
	KindProduction   Kind = "production"
	KindCategory     Kind = "category"
	KindPresentation Kind = "presentation"
)

// Valid reports whether k is one of the known entity kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindProduction, KindCategory, KindPresentation:
		return true
	default:
		return false
	}
}

// Type is the closed set of media types. The zero value is TypeUnknown and is
// what any unrecognised stored value decodes to.
type Type int

const (
	TypeUnknown Type = iota
	TypeImage
	TypeVideo
	TypeSlideshow
	TypeText
)

var typeNames = map[Type]string{
	TypeImage:     "image",
	TypeVideo:     "video",
	TypeSlideshow: "slideshow",
	TypeText:      "text",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseType maps a stored type name to a Type.
func ParseType(value string) (Type, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for t, name := range typeNames {
		if name == normalized {
			return t, nil
		}
	}
	return TypeUnknown, fmt.Errorf("unknown media type %q", value)
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON never fails on unknown names; they decode to TypeUnknown so
// callers decide how to treat them.
func (t *Type) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("media type: %w", err)
	}
	parsed, err := ParseType(name)
	if err != nil {
		*t = TypeUnknown
		return nil
	}
	*t = parsed
	return nil
}

// Geometry holds the measured properties of a source file.
type Geometry struct {
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Size     int64   `json:"size,omitempty"`
	Mime     string  `json:"mime,omitempty"`
}

// Source is one physical variant of a media item. Src is the primary file,
// Preview the derived web format, Fallback the poster frame for videos.
type Source struct {
	ID       string   `json:"id"`
	Src      string   `json:"src"`
	Preview  string   `json:"preview"`
	Fallback string   `json:"fallback"`
	Geometry Geometry `json:"geometry"`
}

// Media is a logical media item owning one or more sources.
type Media struct {
	ID      string   `json:"id"`
	Type    Type     `json:"type"`
	Name    string   `json:"name,omitempty"`
	Sources []Source `json:"sources"`
}

// Entity is a production, category or presentation container.
type Entity struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name"`
	Public    bool      `json:"public,omitempty"`
	Media     []Media   `json:"media"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// SourceRef addresses exactly one source inside an entity.
type SourceRef struct {
	MainID   string `json:"mainId" validate:"required,uuid"`
	MediaID  string `json:"mediaId" validate:"required,uuid"`
	SourceID string `json:"sourceId" validate:"required,uuid"`
}

func (r SourceRef) String() string {
	return r.MainID + "/" + r.MediaID + "/" + r.SourceID
}

// Role is a user's privilege level.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is an authenticated account.
type User struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Role      Role     `json:"role"`
	EntityIDs []string `json:"entityIds"`
}

// IsAdmin reports whether the user holds the administrator role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// CanDownload reports whether the user may read the entity's media.
func (u *User) CanDownload(entity *Entity) bool {
	if u == nil || entity == nil {
		return false
	}
	if u.IsAdmin() || entity.Public {
		return true
	}
	return slices.Contains(u.EntityIDs, entity.ID)
}
