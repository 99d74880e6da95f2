package encoding

import (
	"errors"
	"os"

	"mediaferry/internal/services"
)

// validateOutput confirms ffmpeg left a non-empty file behind. ffmpeg exits
// zero on some inputs it silently skips.
func validateOutput(operation, path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return services.Wrap(services.ErrValidation, "encoding", "validate", describe(operation, path)+" missing", nil)
	case err != nil:
		return services.Wrap(services.ErrTransient, "encoding", "validate", describe(operation, path), err)
	case info.IsDir():
		return services.Wrap(services.ErrValidation, "encoding", "validate", describe(operation, path)+" is a directory", nil)
	case info.Size() == 0:
		return services.Wrap(services.ErrValidation, "encoding", "validate", describe(operation, path)+" is empty", nil)
	}
	return nil
}
