package tag

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestPath_RoundTrip verifies Parse(String(p)) == p for paths containing
// the separator and escape characters.
func TestPath_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		path Path
	}{
		{"single segment", New("users")},
		{"two segments", New("posts", "1")},
		{"deep path", New("posts", "1", "comments", "7")},
		{"segment with colon", New("a:b", "c")},
		{"segment with backslash", New(`a\b`, "c")},
		{"segment with both", New(`a\:b`, `c\\d`)},
		{"empty segment", New("a", "", "b")},
		{"single empty segment", New("")},
		{"trailing colon-like", New("a:")},
		{"exact sentinel", New("posts", "1").WithExact()},
		{"unicode", New("ключ", "値")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.path.String())
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.path.String(), err)
			}
			if !got.Equal(tt.path) {
				t.Errorf("Parse(String(%v)) = %v, want %v", tt.path, got, tt.path)
			}
		})
	}
}

// TestPath_SerializeInjective verifies distinct paths serialize distinctly.
func TestPath_SerializeInjective(t *testing.T) {
	paths := []Path{
		New("a", "b"),
		New("a:b"),
		New(`a\:b`),
		New("a", "b", ""),
		New("a", "", "b"),
		New("ab"),
		New("a", "b", "c"),
		New("a:b", "c"),
		New("a", "b:c"),
	}

	seen := make(map[string]Path)
	for _, p := range paths {
		s := p.String()
		if prev, ok := seen[s]; ok {
			t.Errorf("paths %v and %v both serialize to %q", prev, p, s)
		}
		seen[s] = p
	}
}

func TestPath_ParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"trailing backslash", `a\`},
		{"escape of letter", `a\b`},
		{"escape of digit", `\1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.in); err != ErrInvalidEncoding {
				t.Errorf("Parse(%q) error = %v, want ErrInvalidEncoding", tt.in, err)
			}
		})
	}
}

func TestPath_IsPrefix(t *testing.T) {
	tests := []struct {
		name string
		p, q Path
		want bool
	}{
		{"self", New("a", "b"), New("a", "b"), true},
		{"proper prefix", New("posts"), New("posts", "1"), true},
		{"deep prefix", New("posts", "1"), New("posts", "1", "comments"), true},
		{"not prefix", New("posts", "2"), New("posts", "1", "comments"), false},
		{"longer than q", New("a", "b", "c"), New("a", "b"), false},
		{"segment boundary respected", New("po"), New("posts"), false},
		{"empty path prefixes all", New(), New("a"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.IsPrefix(tt.q); got != tt.want {
				t.Errorf("IsPrefix(%v, %v) = %v, want %v", tt.p, tt.q, got, tt.want)
			}
		})
	}

	// is_prefix(p, q) implies len(p) <= len(q)
	p, q := New("a"), New("a", "b")
	if p.IsPrefix(q) && len(p) > len(q) {
		t.Error("prefix longer than its extension")
	}
}

func TestPath_Equal(t *testing.T) {
	if !New("a", "b").Equal(New("a", "b")) {
		t.Error("equal paths reported unequal")
	}
	if New("a", "b").Equal(New("a", "b", "c")) {
		t.Error("unequal lengths reported equal")
	}
	if New("a", "b").Equal(New("a", "c")) {
		t.Error("unequal segments reported equal")
	}
}

func TestPath_WithExact(t *testing.T) {
	p := New("posts", "1")
	e := p.WithExact()

	if want := New("posts", "1", Exact); !e.Equal(want) {
		t.Errorf("WithExact() = %v, want %v", e, want)
	}
	if !e.IsExact() {
		t.Error("IsExact() = false after WithExact")
	}
	if p.IsExact() {
		t.Error("IsExact() = true on plain path")
	}
	// Appending must not alias the original.
	if diff := cmp.Diff(Path{"posts", "1"}, p); diff != "" {
		t.Errorf("original mutated by WithExact (-want +got):\n%s", diff)
	}
}

func TestExactSentinel_Literal(t *testing.T) {
	// Wire compatibility: the sentinel literal must not drift.
	if Exact != "__exact__" {
		t.Errorf("Exact = %q, want %q", Exact, "__exact__")
	}
}

func TestPath_Prefix(t *testing.T) {
	p := New("a", "b", "c")
	for n := 0; n <= len(p); n++ {
		pre := p.Prefix(n)
		if len(pre) != n {
			t.Errorf("Prefix(%d) has %d segments", n, len(pre))
		}
		if !pre.IsPrefix(p) {
			t.Errorf("Prefix(%d) = %v is not a prefix of %v", n, pre, p)
		}
	}
}

func TestPath_StringEscaping(t *testing.T) {
	tests := []struct {
		name string
		path Path
		want string
	}{
		{"plain", New("a", "b"), "a:b"},
		{"colon escaped", New("a:b"), `a\:b`},
		{"backslash escaped", New(`a\b`), `a\\b`},
		{"empty segments", New("", ""), ":"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.path.String(); got != tt.want {
				t.Errorf("String(%v) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestPath_RoundTripExhaustive runs round-trips over generated segment
// combinations of the tricky characters.
func TestPath_RoundTripExhaustive(t *testing.T) {
	alphabet := []string{"a", ":", `\`, `\\`, "::", `a:\`, ""}
	for _, s1 := range alphabet {
		for _, s2 := range alphabet {
			p := New(s1, s2)
			got, err := Parse(p.String())
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", p.String(), err)
			}
			if !got.Equal(p) {
				t.Errorf("round trip of %q/%q: got %v", s1, s2, got)
			}
		}
	}
}
