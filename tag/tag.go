package tag

import (
	"errors"
	"strings"
)

// Exact is the sentinel segment appended to a path to confine an
// invalidation to exactly that path. The literal is fixed for wire
// compatibility with previously stored timestamps.
const Exact = "__exact__"

// Sentinel errors for tag operations.
var (
	// ErrEmptyPath is returned when a path with zero segments is used
	// where a tag is required.
	ErrEmptyPath = errors.New("tag: path has no segments")

	// ErrInvalidEncoding is returned by Parse for strings that are not a
	// valid serialized path.
	ErrInvalidEncoding = errors.New("tag: invalid encoding")
)

// Path is an ordered sequence of string segments naming a data dependency.
// Two paths with equal segments are the same tag. Segments may contain any
// bytes, including the ':' and '\' characters used by the serialized form.
type Path []string

// New constructs a path from the given segments.
func New(segments ...string) Path {
	p := make(Path, len(segments))
	copy(p, segments)
	return p
}

// Equal reports whether p and q have identical segments.
func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// IsPrefix reports whether p is a prefix of q. Every path is a prefix of
// itself.
func (p Path) IsPrefix(q Path) bool {
	if len(p) > len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// Prefix returns the first n segments of p as a path. It panics if n is
// out of range, matching slice semantics.
func (p Path) Prefix(n int) Path {
	return p[:n]
}

// WithExact returns a copy of p with the exact sentinel appended.
func (p Path) WithExact() Path {
	q := make(Path, 0, len(p)+1)
	q = append(q, p...)
	return append(q, Exact)
}

// IsExact reports whether p's final segment is the exact sentinel.
func (p Path) IsExact() bool {
	return len(p) > 0 && p[len(p)-1] == Exact
}

// String returns the serialized form of p: segments joined with ':' after
// escaping '\' and ':' inside each segment. The encoding is injective over
// paths with at least one segment; Parse is its inverse.
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		if i > 0 {
			b.WriteByte(':')
		}
		for j := 0; j < len(seg); j++ {
			if c := seg[j]; c == '\\' || c == ':' {
				b.WriteByte('\\')
			}
			b.WriteByte(seg[j])
		}
	}
	return b.String()
}

// Parse decodes a serialized path produced by String. Backslashes must
// escape exactly '\' or ':'; anything else is an encoding error.
func Parse(s string) (Path, error) {
	var segs Path
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			i++
			if i >= len(s) || (s[i] != '\\' && s[i] != ':') {
				return nil, ErrInvalidEncoding
			}
			cur.WriteByte(s[i])
		case ':':
			segs = append(segs, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	segs = append(segs, cur.String())
	return segs, nil
}
