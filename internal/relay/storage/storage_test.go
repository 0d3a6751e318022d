package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/pkg/options"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"photo_20250301_120000.123.jpg", true},
		{"shot.JPEG", true},
		{"a-b_c.jpeg", true},
		{"", false},
		{".hidden.jpg", false},
		{"../etc/passwd.jpg", false},
		{"dir/photo.jpg", false},
		{"photo..jpg", false},
		{"photo.png", false},
		{"photo", false},
	}
	for _, tt := range tests {
		err := ValidateName(tt.name)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateName(%q) error = %v, want ok = %v", tt.name, err, tt.ok)
		}
		if err != nil && !errors.Is(err, core.ErrValidation) {
			t.Errorf("ValidateName(%q) error kind = %s", tt.name, core.KindOf(err))
		}
	}
}

func TestPhotoName(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 5, 7, 250*int(time.Millisecond), time.UTC)
	name := PhotoName(at)
	if name != "photo_20250301_090507.250.jpg" {
		t.Errorf("PhotoName() = %q", name)
	}
	if err := ValidateName(name); err != nil {
		t.Errorf("generated name rejected: %v", err)
	}
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "photos")
	p := NewLocalProvider(dir)
	if err := p.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	data := []byte{0xff, 0xd8, 0xff, 0xd9}
	photo, err := p.Put(ctx, "shot.jpg", data)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if photo.Size != 4 || photo.SizeText != "4 B" {
		t.Errorf("Put() photo = %+v", photo)
	}
	if _, err := os.Stat(filepath.Join(dir, "shot.jpg.tmp")); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind")
	}

	rc, info, err := p.Open(ctx, "shot.jpg")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(got) != string(data) || info.Name != "shot.jpg" {
		t.Errorf("Open() = %v, %+v", got, info)
	}

	if _, _, err := p.Open(ctx, "missing.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := p.Put(ctx, "../escape.jpg", data); !errors.Is(err, core.ErrValidation) {
		t.Errorf("Put(../escape.jpg) error = %v, want ValidationError", err)
	}
}

func TestNewMinIOProvider(t *testing.T) {
	opts := options.NewS3Options()
	if _, err := NewMinIOProvider(opts); err != nil {
		t.Fatalf("NewMinIOProvider() error = %v", err)
	}

	opts.Endpoint = "s3.example.com/photos"
	if _, err := NewMinIOProvider(opts); err == nil {
		t.Errorf("NewMinIOProvider() accepted an invalid endpoint")
	}
}
