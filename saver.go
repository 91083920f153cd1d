package etcnome

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Saver persists exported audio. description, mimeType and extensions
// describe the data so that interactive savers can offer a sensible file
// picker.
type Saver interface {
	Save(ctx context.Context, data []byte, description, mimeType string, extensions []string) error
}

// FileSaver writes exports to Path. If Path has no extension, the first
// suggested one is appended.
type FileSaver struct {
	Path string
}

func (s FileSaver) Target(extensions []string) string {
	if filepath.Ext(s.Path) == "" && len(extensions) > 0 {
		return s.Path + extensions[0]
	}
	return s.Path
}

func (s FileSaver) Save(ctx context.Context, data []byte, _, _ string, extensions []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Path == "" {
		return errors.New("no output path")
	}
	target := s.Target(extensions)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", target)
	}
	return nil
}
