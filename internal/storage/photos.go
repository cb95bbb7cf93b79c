// Package storage keeps uploaded photos on local disk and hands back
// opaque references. Nothing else in the service reads photo bytes.
package storage

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxPhotoSize = 2 << 20 // 2MB

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

type PhotoStore struct {
	dir string
}

func NewPhotoStore(dir string) (*PhotoStore, error) {
	for _, sub := range []string{"profile_photos", "ticket_photos"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	return &PhotoStore{dir: dir}, nil
}

// Dir is the root the router serves under /uploads.
func (s *PhotoStore) Dir() string {
	return s.dir
}

// SaveProfilePhoto stores an uploaded photo and returns its reference,
// e.g. "profile_photos/4f1c….jpg".
func (s *PhotoStore) SaveProfilePhoto(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	return s.save(c, fh, "profile_photos")
}

// SaveTicketPhoto stores a photo attached to a ticket.
func (s *PhotoStore) SaveTicketPhoto(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	return s.save(c, fh, "ticket_photos")
}

func (s *PhotoStore) save(c *gin.Context, fh *multipart.FileHeader, sub string) (string, error) {
	if fh.Size > maxPhotoSize {
		return "", fmt.Errorf("photo exceeds %d bytes", maxPhotoSize)
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("unsupported photo type %q", ext)
	}
	ref := filepath.Join(sub, uuid.NewString()+ext)
	if err := c.SaveUploadedFile(fh, filepath.Join(s.dir, ref)); err != nil {
		return "", fmt.Errorf("save photo: %w", err)
	}
	return filepath.ToSlash(ref), nil
}

// Remove deletes a previously stored photo. References pointing outside
// the store are refused.
func (s *PhotoStore) Remove(ref string) error {
	if ref == "" {
		return nil
	}
	clean := filepath.Clean(ref)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return fmt.Errorf("invalid photo reference %q", ref)
	}
	err := os.Remove(filepath.Join(s.dir, clean))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
