package topic

import (
	"strings"
)

// Wildcard matches exactly one topic level.
const Wildcard = "+"

// Builder constructs topics of the form {root}/{segment}/{id}.
type Builder struct {
	root string
}

// NewBuilder creates a Builder rooted at root (e.g. "drone/v1").
// Leading and trailing slashes are trimmed.
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.Trim(root, "/")}
}

// Root returns the namespace every topic is built under.
func (b *Builder) Root() string {
	return b.root
}

// Build returns {root}/{segment}/{id}.
func (b *Builder) Build(segment, id string) string {
	return b.root + "/" + segment + "/" + id
}

// Wildcard returns {root}/{segment}/+, matching the segment for every id.
func (b *Builder) Wildcard(segment string) string {
	return b.Build(segment, Wildcard)
}
