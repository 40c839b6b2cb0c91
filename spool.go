package boxfs

import (
	"bytes"
	"errors"
	"io"
	"os"
)

// spool buffers written bytes in memory until they exceed max, then in a temporary file.
type spool struct {
	max  int64
	dir  string
	size int64
	mem  bytes.Buffer
	file *os.File
}

func newSpool(max int64, dir string) *spool {
	return &spool{max: max, dir: dir}
}

func (s *spool) Write(p []byte) (int, error) {
	if s.file == nil && s.size+int64(len(p)) > s.max {
		if err := s.rollover(); err != nil {
			return 0, err
		}
	}
	var n int
	var err error
	if s.file != nil {
		n, err = s.file.Write(p)
	} else {
		n, err = s.mem.Write(p)
	}
	s.size += int64(n)
	if err != nil {
		return n, newIOError("failed to buffer upload", err)
	}
	return n, nil
}

func (s *spool) Size() int64 {
	return s.size
}

func (s *spool) OnDisk() bool {
	return s.file != nil
}

// rollover moves the buffered bytes to a temporary file.
func (s *spool) rollover() error {
	if s.file != nil {
		return nil
	}
	f, err := os.CreateTemp(s.dir, "boxfs-upload-*")
	if err != nil {
		return newIOError("failed to create temporary file", err)
	}
	if _, err := f.Write(s.mem.Bytes()); err != nil {
		return errors.Join(newIOError("failed to write temporary file", err), f.Close(), os.Remove(f.Name()))
	}
	s.mem = bytes.Buffer{}
	s.file = f
	return nil
}

// Reader returns the buffered bytes from the start.
func (s *spool) Reader() (io.Reader, error) {
	if s.file == nil {
		return bytes.NewReader(s.mem.Bytes()), nil
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, newIOError("failed to rewind temporary file", err)
	}
	return io.LimitReader(s.file, s.size), nil
}

// Flush forces the buffered bytes to disk and returns the file name.
func (s *spool) Flush() (string, error) {
	if err := s.rollover(); err != nil {
		return "", err
	}
	if err := s.file.Sync(); err != nil {
		return "", newIOError("failed to sync temporary file", err)
	}
	return s.file.Name(), nil
}

// Close releases the buffer and removes the temporary file.
func (s *spool) Close() error {
	s.mem = bytes.Buffer{}
	if s.file == nil {
		return nil
	}
	f := s.file
	s.file = nil
	if err := errors.Join(f.Close(), os.Remove(f.Name())); err != nil {
		return newIOError("failed to remove temporary file", err)
	}
	return nil
}
