package boxfs

import (
	"time"

	"github.com/Jumpaku/go-boxfs/remote"
)

// Entry describes a file or folder found at Path.
type Entry struct {
	Path       Path
	Name       string
	Size       int64
	Type       remote.Type
	ID         string
	ModifiedAt time.Time
	CreatedAt  time.Time
	ETag       string
	SHA1       string
}

func newEntry(p Path, item *remote.Item) Entry {
	return Entry{
		Path:       p,
		Name:       item.Name,
		Size:       item.Size,
		Type:       item.Type,
		ID:         item.ID,
		ModifiedAt: item.ModifiedAt,
		CreatedAt:  item.CreatedAt,
		ETag:       item.ETag,
		SHA1:       item.SHA1,
	}
}

func (e Entry) IsFolder() bool {
	return e.Type == remote.TypeFolder
}

func (e Entry) ObjectID() remote.ObjectID {
	return remote.ObjectID{ID: e.ID, Type: e.Type}
}
