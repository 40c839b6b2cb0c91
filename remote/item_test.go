package remote_test

import (
	"testing"

	"github.com/Jumpaku/go-boxfs/remote"
)

func TestType_Strings(t *testing.T) {
	cases := []struct {
		name   string
		typ    remote.Type
		str    string
		fsType string
	}{
		{"file", remote.TypeFile, "file", "file"},
		{"folder", remote.TypeFolder, "folder", "directory"},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			if got := c.typ.String(); got != c.str {
				t.Fatalf("String() = %q, want %q", got, c.str)
			}
			if got := c.typ.FSType(); got != c.fsType {
				t.Fatalf("FSType() = %q, want %q", got, c.fsType)
			}
			parsed, err := remote.ParseType(c.str)
			if err != nil {
				t.Fatalf("ParseType(%q) error = %v", c.str, err)
			}
			if parsed != c.typ {
				t.Fatalf("ParseType(%q) = %v, want %v", c.str, parsed, c.typ)
			}
		})
	}

	if _, err := remote.ParseType("web_link"); err == nil {
		t.Fatalf("ParseType(web_link) error = nil, want error")
	}
}

func TestScopes(t *testing.T) {
	cases := []struct {
		name     string
		scopes   []remote.Scope
		write    bool
		delete   bool
		download bool
	}{
		{"readonly", []remote.Scope{remote.ScopeRootReadonly}, false, false, true},
		{"readwrite", []remote.Scope{remote.ScopeRootReadwrite}, true, true, true},
		{"upload", []remote.Scope{remote.ScopeItemUpload, remote.ScopeItemPreview}, true, false, false},
		{"delete", []remote.Scope{remote.ScopeItemDelete}, false, true, false},
		{"none", nil, false, false, false},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			if got := remote.CanWrite(c.scopes); got != c.write {
				t.Fatalf("CanWrite() = %v, want %v", got, c.write)
			}
			if got := remote.CanDelete(c.scopes); got != c.delete {
				t.Fatalf("CanDelete() = %v, want %v", got, c.delete)
			}
			if got := remote.CanDownload(c.scopes); got != c.download {
				t.Fatalf("CanDownload() = %v, want %v", got, c.download)
			}
		})
	}

	if _, err := remote.ParseScope("root_readonly"); err != nil {
		t.Fatalf("ParseScope(root_readonly) error = %v", err)
	}
	if _, err := remote.ParseScope("everything"); err == nil {
		t.Fatalf("ParseScope(everything) error = nil, want error")
	}
}
