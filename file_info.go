package boxfs

import (
	"io/fs"
	"time"
)

// FileInfo implements fs.FileInfo for a remote file or folder.
type FileInfo struct {
	entry Entry
}

// Verify interface implementation at compile time.
var _ fs.FileInfo = (*FileInfo)(nil)

// Name returns the base name of the file.
func (fi *FileInfo) Name() string {
	return fi.entry.Name
}

// Size returns the size of the file in bytes.
func (fi *FileInfo) Size() int64 {
	return fi.entry.Size
}

// Mode returns the file mode bits.
func (fi *FileInfo) Mode() fs.FileMode {
	if fi.IsDir() {
		return fs.ModeDir | 0555
	}
	return 0444
}

// ModTime returns the modification time.
func (fi *FileInfo) ModTime() time.Time {
	return fi.entry.ModifiedAt
}

// IsDir reports whether the file is a folder.
func (fi *FileInfo) IsDir() bool {
	return fi.entry.IsFolder()
}

// Sys returns the underlying Entry.
func (fi *FileInfo) Sys() any {
	return fi.entry
}
