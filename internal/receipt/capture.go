package receipt

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	appErrors "github.com/fatali-fataliyev/financez/errors"
)

// PathCapturer stands in for a camera on a terminal: Ask returns the path
// of an existing image, or an empty string when the user gives up.
type PathCapturer struct {
	Ask func(ctx context.Context) (string, error)
}

func (c PathCapturer) Capture(ctx context.Context) (LocalImage, error) {
	path, err := c.Ask(ctx)
	if err != nil {
		return LocalImage{}, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return LocalImage{}, ErrCaptureCancelled
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return LocalImage{}, appErrors.Validation("Receipt image not found: %s", path)
	}
	if info.IsDir() {
		return LocalImage{}, appErrors.Validation("Receipt image must be a file: %s", path)
	}
	return LocalImage{Path: path}, nil
}
