package boxfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/Jumpaku/go-boxfs/remote"
)

// File is a read handle on a remote file.
//
// Sequential reads download one block at a time ahead of the current offset.
// File is not safe for concurrent use except for ReadAt, which does not touch
// the handle's offset or block.
type File struct {
	ctx       context.Context
	fs        *BoxFS
	entry     Entry
	blockSize int64
	offset    int64
	block     []byte
	blockOff  int64
	closed    bool
}

// Verify interface implementations at compile time.
var (
	_ fs.File     = (*File)(nil)
	_ io.ReaderAt = (*File)(nil)
	_ io.Seeker   = (*File)(nil)
)

func (f *File) Stat() (fs.FileInfo, error) {
	return &FileInfo{entry: f.entry}, nil
}

// Read reads from the current offset, downloading the next block if needed.
func (f *File) Read(b []byte) (int, error) {
	if f.closed {
		return 0, &fs.PathError{Op: "read", Path: f.entry.Path.String(), Err: fs.ErrClosed}
	}
	if f.offset >= f.entry.Size {
		return 0, io.EOF
	}
	if len(b) == 0 {
		return 0, nil
	}
	if !f.buffered(f.offset) {
		length := min(f.blockSize, f.entry.Size-f.offset)
		data, err := f.download(f.ctx, f.offset, length)
		if err != nil {
			return 0, &fs.PathError{Op: "read", Path: f.entry.Path.String(), Err: err}
		}
		if len(data) == 0 {
			return 0, io.EOF
		}
		f.block, f.blockOff = data, f.offset
	}
	n := copy(b, f.block[f.offset-f.blockOff:])
	f.offset += int64(n)
	return n, nil
}

func (f *File) buffered(off int64) bool {
	return off >= f.blockOff && off < f.blockOff+int64(len(f.block))
}

// ReadAt downloads exactly the requested range.
func (f *File) ReadAt(b []byte, off int64) (int, error) {
	if f.closed {
		return 0, &fs.PathError{Op: "read", Path: f.entry.Path.String(), Err: fs.ErrClosed}
	}
	if off < 0 {
		return 0, &fs.PathError{Op: "read", Path: f.entry.Path.String(), Err: fs.ErrInvalid}
	}
	if off >= f.entry.Size {
		return 0, io.EOF
	}
	length := min(int64(len(b)), f.entry.Size-off)
	data, err := f.download(f.ctx, off, length)
	if err != nil {
		return 0, &fs.PathError{Op: "read", Path: f.entry.Path.String(), Err: err}
	}
	n := copy(b, data)
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, &fs.PathError{Op: "seek", Path: f.entry.Path.String(), Err: fs.ErrClosed}
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.offset + offset
	case io.SeekEnd:
		abs = f.entry.Size + offset
	default:
		return 0, &fs.PathError{Op: "seek", Path: f.entry.Path.String(), Err: fs.ErrInvalid}
	}
	if abs < 0 {
		return 0, &fs.PathError{Op: "seek", Path: f.entry.Path.String(), Err: fmt.Errorf("negative offset %d: %w", abs, ErrInvalidArgument)}
	}
	f.offset = abs
	return abs, nil
}

// Close releases the downloaded block.
func (f *File) Close() error {
	if f.closed {
		return &fs.PathError{Op: "close", Path: f.entry.Path.String(), Err: fs.ErrClosed}
	}
	f.closed = true
	f.block = nil
	return nil
}

func (f *File) download(ctx context.Context, offset, length int64) (data []byte, err error) {
	return call(ctx, f.fs.auth, func(c remote.Client) (data []byte, err error) {
		r, err := c.Download(ctx, f.entry.ID, offset, length)
		if err != nil {
			return nil, err
		}
		defer func() {
			closeErr := r.Close()
			if closeErr != nil {
				closeErr = newIOError("failed to close download body", closeErr)
			}
			err = errors.Join(err, closeErr)
		}()
		data, err = io.ReadAll(io.LimitReader(r, length))
		if err != nil {
			return nil, newIOError("failed to read download body", err)
		}
		return data, nil
	})
}
