package boxfs

import (
	"io/fs"
)

// DirEntry implements fs.DirEntry for a listed file or folder.
type DirEntry struct {
	entry Entry
}

// Verify interface implementation at compile time.
var _ fs.DirEntry = (*DirEntry)(nil)

func (e *DirEntry) Name() string {
	return e.entry.Name
}

func (e *DirEntry) IsDir() bool {
	return e.entry.IsFolder()
}

// Type returns the type bits of the entry.
func (e *DirEntry) Type() fs.FileMode {
	if e.IsDir() {
		return fs.ModeDir
	}
	return 0
}

// Info returns the file info. It never calls the remote service.
func (e *DirEntry) Info() (fs.FileInfo, error) {
	return &FileInfo{entry: e.entry}, nil
}
