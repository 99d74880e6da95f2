package naming

import (
	"context"
	"fmt"
	"path"
	"strings"

	"mediaferry/internal/media"
	"mediaferry/internal/textutil"
)

const (
	previewSuffix  = "_preview"
	fallbackSuffix = "_fallback"
)

// Formats are the output extensions of the derived variants, without dots.
type Formats struct {
	Image string
	Video string
}

// Paths are the three storage keys of a source.
type Paths struct {
	Src      string
	Preview  string
	Fallback string
}

// NameAllocator is the part of a blob store used to avoid collisions.
type NameAllocator interface {
	NewName(ctx context.Context, key string) (string, error)
}

// KindDir returns the top-level directory for an entity kind.
func KindDir(kind media.Kind) string {
	switch kind {
	case media.KindProduction:
		return "productions"
	case media.KindCategory:
		return "categories"
	default:
		return "home"
	}
}

// Dir returns the directory holding an entity's files: the kind directory,
// followed by the slugged entity name when it has one.
func Dir(entity *media.Entity) string {
	dir := KindDir(entity.Kind)
	if slug := textutil.Slug(entity.Name); slug != "" {
		dir = path.Join(dir, slug)
	}
	return dir
}

// Plan computes the deterministic keys for a newly uploaded file. The primary
// key keeps the original extension; the preview uses the video format for
// video media and the image format otherwise; the fallback is always a still.
func Plan(entity *media.Entity, mediaType media.Type, sourceID, filename string, formats Formats) Paths {
	stem := sourceID
	ext := ""
	if name := textutil.SanitizeFileName(path.Base(strings.ReplaceAll(filename, "\\", "/"))); name != "" && name != "." && name != "/" {
		ext = strings.ToLower(path.Ext(name))
		if slug := textutil.Slug(strings.TrimSuffix(name, path.Ext(name))); slug != "" {
			stem = sourceID + "_" + slug
		}
		if textutil.Slug(strings.TrimPrefix(ext, ".")) == "" {
			ext = ""
		}
	}

	dir := Dir(entity)
	previewExt := formats.Image
	if mediaType == media.TypeVideo {
		previewExt = formats.Video
	}
	return Paths{
		Src:      path.Join(dir, stem+ext),
		Preview:  path.Join(dir, stem+previewSuffix+"."+previewExt),
		Fallback: path.Join(dir, stem+fallbackSuffix+"."+formats.Image),
	}
}

// Allocate asks the store for a collision-free name for each planned key.
func Allocate(ctx context.Context, store NameAllocator, planned Paths) (Paths, error) {
	var out Paths
	var err error
	if out.Src, err = store.NewName(ctx, planned.Src); err != nil {
		return Paths{}, fmt.Errorf("allocate src name: %w", err)
	}
	if out.Preview, err = store.NewName(ctx, planned.Preview); err != nil {
		return Paths{}, fmt.Errorf("allocate preview name: %w", err)
	}
	if out.Fallback, err = store.NewName(ctx, planned.Fallback); err != nil {
		return Paths{}, fmt.Errorf("allocate fallback name: %w", err)
	}
	return out, nil
}
