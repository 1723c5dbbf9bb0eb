// Package imageseq addresses the fixed, pre-numbered image sequence the tool overlays.
//
// Images are named by a zero-padded two-digit index plus a fixed extension and live in
// one directory. The package never decodes images; Check only verifies the files exist.
package imageseq

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// URLPrefix is the route the image directory is served under.
const URLPrefix = "/images"

type Sequence struct {
	Dir      string
	Ext      string
	MaxIndex int
}

func New(dir, ext string, maxIndex int) *Sequence {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &Sequence{Dir: dir, Ext: ext, MaxIndex: maxIndex}
}

// Name returns the file name for index, e.g. 7 -> "07.jpg".
func (s *Sequence) Name(index int) string {
	return fmt.Sprintf("%02d%s", index, s.Ext)
}

// URL returns the path the browser loads the image from.
func (s *Sequence) URL(index int) string {
	return path.Join(URLPrefix, s.Name(index))
}

// Path returns the file system location of the image.
func (s *Sequence) Path(index int) string {
	return filepath.Join(s.Dir, s.Name(index))
}

// Len is the number of images the tool needs: base frames 0..MaxIndex plus the last overlay.
func (s *Sequence) Len() int {
	return s.MaxIndex + 2
}

// Check reports the first image in 0..MaxIndex+1 that is missing.
func (s *Sequence) Check(ctx context.Context) error {
	info, err := os.Stat(s.Dir)
	if err != nil {
		return fmt.Errorf("image directory %q: %w", s.Dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("image directory %q is not a directory", s.Dir)
	}

	for i := range s.Len() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("image check aborted: %w", err)
		}
		if _, err := os.Stat(s.Path(i)); err != nil {
			return fmt.Errorf("image %d (%s) missing: %w", i, s.Name(i), err)
		}
	}
	return nil
}

// Missing lists the names of every image in the sequence that does not exist.
// Unlike Check it keeps going after the first gap.
func (s *Sequence) Missing(ctx context.Context) ([]string, error) {
	var missing []string
	for i := range s.Len() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("image scan aborted: %w", err)
		}
		_, err := os.Stat(s.Path(i))
		switch {
		case err == nil:
		case errors.Is(err, fs.ErrNotExist):
			missing = append(missing, s.Name(i))
		default:
			return nil, fmt.Errorf("image %s: %w", s.Name(i), err)
		}
	}
	return missing, nil
}
