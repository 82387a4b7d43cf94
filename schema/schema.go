package schema

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/qcache/tag"
)

// Sentinel errors for schema construction.
var (
	ErrEmptyName         = errors.New("schema: static node has empty name")
	ErrReservedName      = errors.New("schema: node name is reserved")
	ErrDuplicateChild    = errors.New("schema: duplicate child name")
	ErrMultipleWildcards = errors.New("schema: more than one wildcard under a node")
)

// Def is a schema definition node: either a static segment or a wildcard
// position. Defs are built with At and Wild and compiled with Build;
// they are immutable once built.
type Def struct {
	name     string // empty for wildcards
	wild     bool
	children []*Def
}

// At declares a static node contributing name as a fixed path segment.
// Children declared alongside a Wild child are its siblings: they live in
// this node's branch, not under the wildcard.
func At(name string, children ...*Def) *Def {
	return &Def{name: name, children: children}
}

// Wild declares a wildcard position: at runtime it accepts one string and
// contributes it as a path segment.
func Wild(children ...*Def) *Def {
	return &Def{wild: true, children: children}
}

// Tree is a compiled schema. The zero value is unusable; construct with
// Build.
type Tree struct {
	root branch
}

// branch is the navigable shape at one level: named static defs plus at
// most one wildcard.
type branch struct {
	statics map[string]*Def
	wild    *Def
}

func compileBranch(defs []*Def) (branch, error) {
	b := branch{statics: make(map[string]*Def, len(defs))}
	for _, d := range defs {
		if d.wild {
			if b.wild != nil {
				return branch{}, ErrMultipleWildcards
			}
			b.wild = d
			continue
		}
		if d.name == "" {
			return branch{}, ErrEmptyName
		}
		if d.name == tag.Exact {
			return branch{}, fmt.Errorf("%w: %q", ErrReservedName, d.name)
		}
		if _, dup := b.statics[d.name]; dup {
			return branch{}, fmt.Errorf("%w: %q", ErrDuplicateChild, d.name)
		}
		b.statics[d.name] = d
	}
	return b, nil
}

// Build compiles top-level definitions into a tree, validating every
// level: static names must be non-empty, unique among their siblings, and
// not the exact sentinel; a node may carry at most one wildcard child.
func Build(defs ...*Def) (*Tree, error) {
	if err := validate(defs); err != nil {
		return nil, err
	}
	root, err := compileBranch(defs)
	if err != nil {
		return nil, err
	}
	return &Tree{root: root}, nil
}

func validate(defs []*Def) error {
	if _, err := compileBranch(defs); err != nil {
		return err
	}
	for _, d := range defs {
		if err := validate(d.children); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the navigation origin. Its path is empty.
func (t *Tree) Root() *Node {
	return &Node{branch: t.root}
}

// Node is a materialized position in the schema. Its Path is exactly the
// concatenation of the segments navigated to reach it. Navigation off an
// unauthorized edge returns nil, and every method is nil-safe, so chains
// collapse to nil instead of panicking.
type Node struct {
	path   tag.Path
	branch branch
}

// Path returns the full tag path materialized at this node, nil for a nil
// node.
func (n *Node) Path() tag.Path {
	if n == nil {
		return nil
	}
	return n.path
}

// At navigates to the named static child, or nil when the schema does not
// declare one here.
func (n *Node) At(name string) *Node {
	if n == nil {
		return nil
	}
	d, ok := n.branch.statics[name]
	if !ok {
		return nil
	}
	return n.extend(name, d.children)
}

// Arg applies this node's wildcard to id, contributing id as the next
// path segment. Nil when no wildcard is declared here. The node itself,
// unapplied, keeps its own path: a wildcard as a value stands for its
// parent.
func (n *Node) Arg(id string) *Node {
	if n == nil || n.branch.wild == nil {
		return nil
	}
	return n.extend(id, n.branch.wild.children)
}

// HasWild reports whether a wildcard is declared at this node.
func (n *Node) HasWild() bool {
	return n != nil && n.branch.wild != nil
}

func (n *Node) extend(segment string, children []*Def) *Node {
	path := make(tag.Path, 0, len(n.path)+1)
	path = append(path, n.path...)
	path = append(path, segment)

	// Children were validated at Build time; compile cannot fail here.
	b, _ := compileBranch(children)
	return &Node{path: path, branch: b}
}
