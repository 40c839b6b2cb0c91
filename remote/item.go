package remote

import (
	"fmt"
	"time"
)

// Type tells files and folders apart.
type Type int

const (
	TypeFile Type = iota + 1
	TypeFolder
)

func (t Type) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeFolder:
		return "folder"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// FSType returns the filesystem name of the type, "file" or "directory".
func (t Type) FSType() string {
	if t == TypeFolder {
		return "directory"
	}
	return "file"
}

// ParseType parses the type field of a service response.
func ParseType(s string) (Type, error) {
	switch s {
	case "file":
		return TypeFile, nil
	case "folder":
		return TypeFolder, nil
	default:
		return 0, fmt.Errorf("unknown item type %q", s)
	}
}

// ObjectID identifies a file or folder of the remote service.
type ObjectID struct {
	ID   string
	Type Type
}

func FileID(id string) ObjectID {
	return ObjectID{ID: id, Type: TypeFile}
}

func FolderID(id string) ObjectID {
	return ObjectID{ID: id, Type: TypeFolder}
}

func (o ObjectID) IsFolder() bool {
	return o.Type == TypeFolder
}

func (o ObjectID) String() string {
	return o.Type.String() + ":" + o.ID
}

// Item is the metadata of a remote file or folder.
type Item struct {
	ID         string
	Type       Type
	Name       string
	Size       int64
	CreatedAt  time.Time
	ModifiedAt time.Time
	// PathCollection holds the names of the item's ancestors, outermost first.
	// Ancestors the token cannot see are omitted.
	PathCollection []string
	ETag           string
	SHA1           string
}

func (i *Item) ObjectID() ObjectID {
	return ObjectID{ID: i.ID, Type: i.Type}
}

func (i *Item) IsFolder() bool {
	return i.Type == TypeFolder
}
