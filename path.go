package boxfs

import (
	"fmt"
	"strings"
)

const protocolPrefix = "box://"

// Path is a normalized slash-separated path relative to the root folder of a BoxFS.
// Paths are comparable: two paths are equal iff their segments are equal,
// whatever separators were used to spell them.
// The zero Path denotes the root folder.
type Path struct {
	p string
}

// ParsePath normalizes s into a Path.
// Backslashes are treated as separators, leading, trailing and repeated separators
// and "." segments are dropped, and a "box://" prefix is removed.
// ".." segments are rejected with ErrInvalidPath.
func ParsePath(s string) (Path, error) {
	s = strings.TrimPrefix(s, protocolPrefix)
	s = strings.ReplaceAll(s, `\`, "/")
	var parts []string
	for _, part := range strings.Split(s, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			return Path{}, fmt.Errorf("relative path components are not allowed: %q: %w", s, ErrInvalidPath)
		}
		parts = append(parts, part)
	}
	return Path{p: strings.Join(parts, "/")}, nil
}

// MustParsePath is like ParsePath but panics on invalid input.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// addressable reports whether name can be spelled as a single path segment.
// Some services allow separators in names; such items cannot be reached by path.
func addressable(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func pathOf(segments []string) Path {
	return Path{p: strings.Join(segments, "/")}
}

func (p Path) String() string {
	return p.p
}

func (p Path) IsRoot() bool {
	return p.p == ""
}

// Segments returns the names along the path. The root has no segments.
func (p Path) Segments() []string {
	if p.IsRoot() {
		return nil
	}
	return strings.Split(p.p, "/")
}

func (p Path) Depth() int {
	if p.IsRoot() {
		return 0
	}
	return strings.Count(p.p, "/") + 1
}

// Parent returns the enclosing folder. The parent of the root is the root.
func (p Path) Parent() Path {
	i := strings.LastIndex(p.p, "/")
	if i < 0 {
		return Path{}
	}
	return Path{p: p.p[:i]}
}

// Base returns the last segment, or "" for the root.
func (p Path) Base() string {
	return p.p[strings.LastIndex(p.p, "/")+1:]
}

// Join appends name as a single segment.
func (p Path) Join(name string) Path {
	if p.IsRoot() {
		return Path{p: name}
	}
	return Path{p: p.p + "/" + name}
}

// HasPrefix reports whether prefix is p or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if prefix.IsRoot() || p == prefix {
		return true
	}
	return strings.HasPrefix(p.p, prefix.p+"/")
}

// TrimPrefix returns p relative to prefix, or p unchanged if prefix does not contain it.
func (p Path) TrimPrefix(prefix Path) Path {
	if prefix.IsRoot() || !p.HasPrefix(prefix) {
		return p
	}
	if p == prefix {
		return Path{}
	}
	return Path{p: p.p[len(prefix.p)+1:]}
}
