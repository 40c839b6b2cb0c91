package boxfs

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io/fs"

	"github.com/Jumpaku/go-boxfs/remote"
	"github.com/dustin/go-humanize"
)

type uploadState int

const (
	stateOpen uploadState = iota
	stateBuffering
	stateCommitting
	stateClosed
)

func (s uploadState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateBuffering:
		return "buffering"
	case stateCommitting:
		return "committing"
	default:
		return "closed"
	}
}

// UploadSession buffers the content written to one path and uploads it on Commit.
//
// The content is buffered locally because the transfer strategy depends on the
// total size: below the chunk threshold the content is sent as one stream,
// otherwise it is spilled to disk and uploaded in chunks.
// An UploadSession is not safe for concurrent use and cannot be reused after
// Commit or Abort.
type UploadSession struct {
	fs        *BoxFS
	path      Path
	folderID  string
	name      string
	fileID    string
	exists    bool
	threshold int64
	buf       *spool
	sha1      hash.Hash
	state     uploadState
}

func (s *BoxFS) newUploadSession(ctx context.Context, p Path) (*UploadSession, error) {
	if p.IsRoot() {
		return nil, fmt.Errorf("cannot write to the root folder: %w", ErrInvalidArgument)
	}
	parent, err := s.resolver.Resolve(ctx, p.Parent())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve parent folder of %q: %w", p, err)
	}
	if !parent.IsFolder() {
		return nil, fmt.Errorf("parent of %q is not a folder: %w", p, ErrInvalidArgument)
	}
	u := &UploadSession{
		fs:        s,
		path:      p,
		folderID:  parent.ID,
		name:      p.Base(),
		threshold: s.chunkThreshold(),
		buf:       newSpool(s.chunkThreshold(), s.tempDir),
		sha1:      sha1.New(),
	}
	obj, err := s.resolver.Resolve(ctx, p)
	switch {
	case err == nil:
		if obj.IsFolder() {
			return nil, fmt.Errorf("%q is a folder: %w", p, ErrInvalidArgument)
		}
		u.exists, u.fileID = true, obj.ID
	case errors.Is(err, ErrNotFound):
	default:
		return nil, err
	}
	return u, nil
}

func (u *UploadSession) Path() Path {
	return u.path
}

// Exists reports whether the session overwrites an existing file.
func (u *UploadSession) Exists() bool {
	return u.exists
}

// Size returns the number of bytes buffered so far.
func (u *UploadSession) Size() int64 {
	return u.buf.Size()
}

// Write buffers p. It never calls the remote service.
func (u *UploadSession) Write(p []byte) (int, error) {
	if u.state >= stateCommitting {
		return 0, fmt.Errorf("write %q: %w", u.path, fs.ErrClosed)
	}
	u.state = stateBuffering
	n, err := u.buf.Write(p)
	u.sha1.Write(p[:n])
	return n, err
}

// Commit uploads the buffered content and releases the buffer.
// It runs at most once; the session is closed afterwards whatever the outcome.
func (u *UploadSession) Commit(ctx context.Context) (*remote.Item, error) {
	if u.state >= stateCommitting {
		return nil, fmt.Errorf("commit %q: %w", u.path, fs.ErrClosed)
	}
	u.state = stateCommitting
	item, err := u.transfer(ctx)
	err = errors.Join(err, u.release())
	if err != nil {
		return nil, fmt.Errorf("failed to upload %q: %w", u.path, err)
	}
	u.fs.cache.Put(u.path, item.ObjectID())
	u.fs.lister.Invalidate(u.path.Parent())
	u.fs.log.WithField("path", u.path.String()).
		WithField("id", item.ID).
		Infof("uploaded %q (%s)", item.Name, humanize.IBytes(uint64(item.Size)))
	return item, nil
}

// Abort discards the buffered content without uploading it.
func (u *UploadSession) Abort() error {
	if u.state == stateClosed {
		return nil
	}
	return u.release()
}

func (u *UploadSession) release() error {
	u.state = stateClosed
	u.sha1.Reset()
	return u.buf.Close()
}

func (u *UploadSession) transfer(ctx context.Context) (*remote.Item, error) {
	if u.buf.Size() >= u.threshold {
		return u.transferChunked(ctx)
	}
	sum := hex.EncodeToString(u.sha1.Sum(nil))
	return call(ctx, u.fs.auth, func(c remote.Client) (*remote.Item, error) {
		r, err := u.buf.Reader()
		if err != nil {
			return nil, err
		}
		if u.exists {
			return c.UpdateFile(ctx, u.fileID, r, sum)
		}
		return c.UploadFile(ctx, u.folderID, u.name, r, sum)
	})
}

// transferChunked uploads a new file into the parent folder, or a new version
// of the existing file so that its ID and version history are kept.
func (u *UploadSession) transferChunked(ctx context.Context) (*remote.Item, error) {
	localPath, err := u.buf.Flush()
	if err != nil {
		return nil, err
	}
	dest := remote.FolderID(u.folderID)
	if u.exists {
		dest = remote.FileID(u.fileID)
	}
	return call(ctx, u.fs.auth, func(c remote.Client) (*remote.Item, error) {
		return c.UploadChunked(ctx, dest, u.name, localPath)
	})
}

// Writer is an io.WriteCloser that uploads on Close.
type Writer struct {
	ctx     context.Context
	session *UploadSession
	item    *remote.Item
}

var _ interface {
	Write([]byte) (int, error)
	Close() error
} = (*Writer)(nil)

func (w *Writer) Write(p []byte) (int, error) {
	return w.session.Write(p)
}

// Close commits the upload with the context the writer was created with.
func (w *Writer) Close() error {
	item, err := w.session.Commit(w.ctx)
	if err != nil {
		return err
	}
	w.item = item
	return nil
}

// Abort discards everything written so far.
func (w *Writer) Abort() error {
	return w.session.Abort()
}

// Item returns the uploaded item after a successful Close.
func (w *Writer) Item() *remote.Item {
	return w.item
}

func (w *Writer) Session() *UploadSession {
	return w.session
}
