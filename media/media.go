package media

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"autocatalog/common"
	"autocatalog/logger"
)

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Store keeps uploaded images on the local filesystem. Paths handed back to
// callers are relative to dir and use forward slashes.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

// Save copies the upload to <dir>/<folder>/<uuid><ext>. field names the form
// field in the returned ValidationError when the file is not an image.
func (s *Store) Save(folder, field string, fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExt[ext] {
		return "", common.Invalid(field, "upload a valid image (jpg, jpeg, png, gif, webp)")
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Join(s.dir, folder), 0755); err != nil {
		return "", err
	}

	rel := path.Join(folder, uuid.NewString()+ext)
	if err := writeFile(filepath.Join(s.dir, filepath.FromSlash(rel)), src); err != nil {
		return "", err
	}

	logger.L().Info("stored upload", zap.String("path", rel), zap.Int64("size", fh.Size))
	return rel, nil
}

// writeFile copies src to name. A partially written file is removed.
func writeFile(name string, src io.Reader) error {
	dst, err := os.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(name)
		return fmt.Errorf("write %s: %w", filepath.Base(name), err)
	}
	return nil
}

// Remove deletes a file previously returned by Save. Missing files and empty
// paths are ignored.
func (s *Store) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return fmt.Errorf("refusing to remove %q outside media dir", rel)
	}
	err := os.Remove(filepath.Join(s.dir, clean))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveAll removes every file in rels, logging the ones that fail.
func (s *Store) RemoveAll(rels ...string) {
	for _, rel := range rels {
		if err := s.Remove(rel); err != nil {
			logger.L().Warn("failed to remove file", zap.String("path", rel), zap.Error(err))
		}
	}
}
