package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var (
	_ IOptions = (*StorageOptions)(nil)
	_ IOptions = (*JournalOptions)(nil)
)

// StorageOptions configures the local photo directory.
type StorageOptions struct {
	PhotoDir string `json:"photo-dir" mapstructure:"photo-dir"`
}

func NewStorageOptions() *StorageOptions {
	return &StorageOptions{PhotoDir: "photos"}
}

func (o *StorageOptions) Validate() []error {
	if o.PhotoDir == "" {
		return []error{fmt.Errorf("--storage.photo-dir must not be empty")}
	}
	return nil
}

func (o *StorageOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.PhotoDir, "storage.photo-dir", o.PhotoDir, "Directory for captured photos when S3 is disabled.")
}

// JournalOptions configures the SQLite command journal. An empty path disables it.
type JournalOptions struct {
	Path string `json:"path" mapstructure:"path"`
}

func NewJournalOptions() *JournalOptions {
	return &JournalOptions{}
}

func (o *JournalOptions) Validate() []error { return nil }

func (o *JournalOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Path, "journal.path", o.Path, "SQLite file recording every command exchange (empty disables).")
}
