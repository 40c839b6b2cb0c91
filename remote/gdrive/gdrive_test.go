package gdrive

import (
	"errors"
	"testing"

	boxerrors "github.com/Jumpaku/go-boxfs/errors"
	"github.com/Jumpaku/go-boxfs/remote"
	"google.golang.org/api/drive/v3"
)

// TestEscapeQuery tests the escapeQuery function.
func TestEscapeQuery(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", "simple"},
		{"with'quote", "with\\'quote"},
		{"with\\backslash", "with\\\\backslash"},
		{"mixed'and\\special", "mixed\\'and\\\\special"},
	}

	for _, tt := range tests {
		result := escapeQuery(tt.input)
		if result != tt.expected {
			t.Errorf("escapeQuery(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestNewItem(t *testing.T) {
	cases := []struct {
		name     string
		file     *drive.File
		wantType remote.Type
	}{
		{"folder", &drive.File{Id: "1", Name: "dir", MimeType: mimeTypeGoogleAppFolder}, remote.TypeFolder},
		{"plain", &drive.File{Id: "2", Name: "a.txt", MimeType: "text/plain", Size: 5}, remote.TypeFile},
		{"document", &drive.File{Id: "3", Name: "doc", MimeType: "application/vnd.google-apps.document"}, remote.TypeFile},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			item := newItem(c.file, []string{"My Drive", "work"})
			if item.Type != c.wantType {
				t.Fatalf("newItem().Type = %v, want %v", item.Type, c.wantType)
			}
			if item.ID != c.file.Id || item.Name != c.file.Name || item.Size != c.file.Size {
				t.Fatalf("newItem() = %+v, want fields of %+v", item, c.file)
			}
			if len(item.PathCollection) != 2 || item.PathCollection[1] != "work" {
				t.Fatalf("newItem().PathCollection = %v, want [My Drive work]", item.PathCollection)
			}
		})
	}
}

func TestNewItem_Times(t *testing.T) {
	item := newItem(&drive.File{
		Id:           "1",
		CreatedTime:  "2024-01-15T10:30:00Z",
		ModifiedTime: "2024-01-16T10:30:00Z",
		Version:      7,
	}, nil)
	if got := item.CreatedAt.Day(); got != 15 {
		t.Errorf("CreatedAt.Day() = %d, want 15", got)
	}
	if got := item.ModifiedAt.Day(); got != 16 {
		t.Errorf("ModifiedAt.Day() = %d, want 16", got)
	}
	if item.ETag != "7" {
		t.Errorf("ETag = %q, want %q", item.ETag, "7")
	}
}

func TestVerify(t *testing.T) {
	cases := []struct {
		name     string
		checksum string
		want     string
		wantErr  bool
	}{
		{"match", "abc", "abc", false},
		{"case insensitive", "ABC", "abc", false},
		{"no expectation", "abc", "", false},
		{"no checksum", "", "abc", false},
		{"mismatch", "abc", "def", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := verify(&drive.File{Id: "1", Sha1Checksum: c.checksum}, c.want)
			if (err != nil) != c.wantErr {
				t.Fatalf("verify() error = %v, wantErr %v", err, c.wantErr)
			}
			if err != nil && !errors.Is(err, boxerrors.ErrIOError) {
				t.Fatalf("verify() error = %v, want ErrIOError", err)
			}
		})
	}
}
