// Package attach stores invoice attachments behind an opaque reference.
package attach

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/warranty/internal/dates"
)

// ErrExtension is returned for files outside the allow-list.
var ErrExtension = errors.New("only pdf, png, jpg and jpeg files are allowed")

var allowed = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Upload is an attachment supplied by the caller.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Store persists attachments and returns their reference.
// Remove discards a saved reference whose record was never written;
// removing a missing reference is not an error.
type Store interface {
	Save(userID int64, day time.Time, u Upload) (string, error)
	Remove(ref string) error
}

// CheckFilename validates the extension of fn (case-insensitive).
func CheckFilename(fn string) error {
	if !allowed[strings.ToLower(filepath.Ext(fn))] {
		return ErrExtension
	}
	return nil
}

// BuildRef constructs the reference for an upload: <user>_<date>_<uuid>.<ext>.
func BuildRef(userID int64, day time.Time, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%d_%s_%s%s", userID, dates.Format(day), uuid.NewString(), ext)
}

// ParseRef extracts the owner and upload date from a reference.
func ParseRef(ref string) (userID int64, day time.Time, ok bool) {
	parts := strings.SplitN(ref, "_", 3)
	if len(parts) != 3 || CheckFilename(parts[2]) != nil {
		return 0, time.Time{}, false
	}
	if _, err := fmt.Sscanf(parts[0], "%d", &userID); err != nil {
		return 0, time.Time{}, false
	}
	d, err := time.Parse(dates.ISOLayout, parts[1])
	if err != nil {
		return 0, time.Time{}, false
	}
	return userID, d, true
}

// DirStore writes attachments into a local directory.
type DirStore struct {
	Dir string
}

// NewDirStore creates the directory if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload folder: %w", err)
	}
	return &DirStore{Dir: dir}, nil
}

// Save writes u under a fresh reference.
func (d *DirStore) Save(userID int64, day time.Time, u Upload) (string, error) {
	if err := CheckFilename(u.Filename); err != nil {
		return "", err
	}
	ref := BuildRef(userID, day, u.Filename)

	f, err := os.OpenFile(filepath.Join(d.Dir, ref), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("save attachment: %w", err)
	}
	if _, err := io.Copy(f, u.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("save attachment: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("save attachment: %w", err)
	}
	return ref, nil
}

// Path returns the on-disk location of ref.
func (d *DirStore) Path(ref string) string {
	return filepath.Join(d.Dir, filepath.Base(ref))
}

// Remove deletes the file behind ref.
func (d *DirStore) Remove(ref string) error {
	if err := os.Remove(d.Path(ref)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove attachment: %w", err)
	}
	return nil
}
