package schema

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/qcache/tag"
)

func buildPostsSchema(t *testing.T) *Tree {
	t.Helper()
	tree, err := Build(
		At("posts",
			Wild(
				At("comments", Wild()),
				At("meta"),
			),
			At("recent"),
		),
		At("users", Wild()),
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tree
}

// TestNode_PathMatchesNavigation checks that every reachable node carries
// exactly the segments navigated to reach it.
func TestNode_PathMatchesNavigation(t *testing.T) {
	tree := buildPostsSchema(t)

	tests := []struct {
		name string
		node *Node
		want tag.Path
	}{
		{"root", tree.Root(), nil},
		{"static", tree.Root().At("posts"), tag.New("posts")},
		{"wildcard applied", tree.Root().At("posts").Arg("1"), tag.New("posts", "1")},
		{"child of wildcard", tree.Root().At("posts").Arg("1").At("comments"), tag.New("posts", "1", "comments")},
		{"nested wildcard", tree.Root().At("posts").Arg("1").At("comments").Arg("7"), tag.New("posts", "1", "comments", "7")},
		{"sibling of wildcard", tree.Root().At("posts").At("recent"), tag.New("posts", "recent")},
		{"second root", tree.Root().At("users").Arg("42"), tag.New("users", "42")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.node == nil {
				t.Fatal("navigation returned nil for an authorized path")
			}
			if diff := cmp.Diff(tt.want, tt.node.Path()); diff != "" {
				t.Errorf("Path() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestNode_UnauthorizedNavigation checks that edges the schema does not
// declare are unreachable, and that nil propagates through chains.
func TestNode_UnauthorizedNavigation(t *testing.T) {
	tree := buildPostsSchema(t)

	tests := []struct {
		name string
		node *Node
	}{
		{"unknown root", tree.Root().At("nope")},
		{"wildcard where static", tree.Root().At("users").At("42")},
		{"static under applied wildcard leaf", tree.Root().At("users").Arg("42").At("posts")},
		{"arg without wildcard", tree.Root().At("posts").At("recent").Arg("x")},
		{"sibling not under wildcard", tree.Root().At("posts").Arg("1").At("recent")},
		{"chain through nil", tree.Root().At("nope").Arg("1").At("deeper")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.node != nil {
				t.Errorf("navigation = %v, want nil", tt.node.Path())
			}
			if got := tt.node.Path(); got != nil {
				t.Errorf("nil node Path() = %v, want nil", got)
			}
		})
	}
}

// TestNode_WildcardAsValue: an unapplied wildcard position keeps the
// parent's path; applying it adds exactly one segment.
func TestNode_WildcardAsValue(t *testing.T) {
	tree := buildPostsSchema(t)

	posts := tree.Root().At("posts")
	if !posts.HasWild() {
		t.Fatal("posts should carry a wildcard")
	}
	if diff := cmp.Diff(tag.New("posts"), posts.Path()); diff != "" {
		t.Errorf("unapplied wildcard path (-want +got):\n%s", diff)
	}

	applied := posts.Arg("9")
	if got, want := len(applied.Path()), len(posts.Path())+1; got != want {
		t.Errorf("applied wildcard path has %d segments, want %d", got, want)
	}
}

func TestBuild_Validation(t *testing.T) {
	tests := []struct {
		name    string
		defs    []*Def
		wantErr error
	}{
		{"empty name", []*Def{At("")}, ErrEmptyName},
		{"nested empty name", []*Def{At("a", At(""))}, ErrEmptyName},
		{"reserved sentinel", []*Def{At(tag.Exact)}, ErrReservedName},
		{"duplicate siblings", []*Def{At("a"), At("a")}, ErrDuplicateChild},
		{"duplicate nested", []*Def{At("a", At("b"), At("b"))}, ErrDuplicateChild},
		{"two wildcards", []*Def{Wild(), Wild()}, ErrMultipleWildcards},
		{"two wildcards nested", []*Def{At("a", Wild(), Wild())}, ErrMultipleWildcards},
		{"valid mixed", []*Def{At("a", Wild(), At("b"))}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.defs...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Build() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTree_RootWildcard(t *testing.T) {
	tree, err := Build(Wild(At("settings")))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	n := tree.Root().Arg("tenant-1").At("settings")
	if n == nil {
		t.Fatal("root wildcard navigation failed")
	}
	if diff := cmp.Diff(tag.New("tenant-1", "settings"), n.Path()); diff != "" {
		t.Errorf("Path() mismatch (-want +got):\n%s", diff)
	}
}

// TestNode_PathIsolation verifies navigation does not alias path slices
// between sibling navigations.
func TestNode_PathIsolation(t *testing.T) {
	tree := buildPostsSchema(t)

	posts := tree.Root().At("posts")
	a := posts.Arg("1").Path()
	b := posts.Arg("2").Path()

	if diff := cmp.Diff(tag.New("posts", "1"), a); diff != "" {
		t.Errorf("first navigation corrupted (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(tag.New("posts", "2"), b); diff != "" {
		t.Errorf("second navigation corrupted (-want +got):\n%s", diff)
	}
}
