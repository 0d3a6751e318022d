// Package storage persists captured photos to a local directory or an
// S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/autopeer-io/dronerelay/internal/relay/core"
)

// ErrNotFound is returned when a photo does not exist.
var ErrNotFound = errors.New("photo not found")

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*\.(jpg|jpeg)$`)

// Photo describes a stored photo.
type Photo struct {
	Name      string    `json:"filename"`
	Size      int64     `json:"size"`
	SizeText  string    `json:"sizeText"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func newPhoto(name string, size int64, created time.Time) Photo {
	return Photo{Name: name, Size: size, SizeText: humanize.Bytes(uint64(max(size, 0))), CreatedAt: created}
}

// Provider stores and retrieves JPEG photos by file name.
type Provider interface {
	// Init prepares the backing store, creating it if needed.
	Init(ctx context.Context) error

	Put(ctx context.Context, name string, data []byte) (Photo, error)

	// Open returns the photo's content; the caller closes it.
	Open(ctx context.Context, name string) (io.ReadCloser, Photo, error)
}

// PhotoName returns the name used for a photo captured at t.
func PhotoName(t time.Time) string {
	return "photo_" + t.Format("20060102_150405.000") + ".jpg"
}

// ValidateName rejects names that are not plain JPEG file names.
func ValidateName(name string) error {
	if !namePattern.MatchString(strings.ToLower(name)) || strings.Contains(name, "..") {
		return core.Errorf(core.KindValidation, "photo", "invalid file name %q", name)
	}
	return nil
}
