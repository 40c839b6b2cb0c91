package boxfs_test

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"testing"

	boxfs "github.com/Jumpaku/go-boxfs"
	"github.com/Jumpaku/go-boxfs/remote"
	"github.com/Jumpaku/go-boxfs/remote/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockSize keeps the chunk threshold at 40 bytes.
const blockSize = 4

func TestUpload_ThresholdSelectsStrategy(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		stream  int
		chunked int
	}{
		{"empty", 0, 1, 0},
		{"small", 10, 1, 0},
		{"just below threshold", 39, 1, 0},
		{"at threshold", 40, 0, 1},
		{"above threshold", 100, 0, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := fake.NewServer()
			fsys := newFS(t, s, boxfs.WithBlockSize(blockSize))
			require.Equal(t, int64(40), fsys.ChunkThreshold())
			data := bytes.Repeat([]byte("x"), c.size)

			item, err := fsys.WriteFile(context.Background(), "f.bin", data)
			require.NoError(t, err)
			assert.Equal(t, c.stream, s.Calls(fake.MethodUploadFile))
			assert.Equal(t, c.chunked, s.Calls(fake.MethodUploadChunked))
			assert.Equal(t, int64(c.size), item.Size)

			got, ok := s.Content(item.ID)
			require.True(t, ok)
			assert.Equal(t, data, got)
		})
	}
}

func TestUpload_OverwriteKeepsFileID(t *testing.T) {
	cases := []struct {
		name   string
		size   int
		method string
	}{
		{"stream", 10, fake.MethodUpdateFile},
		{"chunked", 64, fake.MethodUploadChunked},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := fake.NewServer()
			id := s.AddFile(fake.RootID, "f.bin", []byte("old"))
			fsys := newFS(t, s, boxfs.WithBlockSize(blockSize))
			data := bytes.Repeat([]byte("n"), c.size)

			w, err := fsys.Create(context.Background(), "f.bin")
			require.NoError(t, err)
			assert.True(t, w.Session().Exists())
			_, err = w.Write(data)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			assert.Equal(t, id, w.Item().ID)
			assert.Equal(t, 1, s.Calls(c.method))
			assert.Equal(t, 1, s.Count(remote.TypeFile))
			got, _ := s.Content(id)
			assert.Equal(t, data, got)
		})
	}
}

func TestUpload_WriteDoesNotCallRemote(t *testing.T) {
	s := fake.NewServer()
	fsys := newFS(t, s, boxfs.WithBlockSize(blockSize))
	w, err := fsys.Create(context.Background(), "f.bin")
	require.NoError(t, err)
	s.ResetCalls()

	for i := 0; i < 30; i++ {
		_, err := w.Write([]byte("abc"))
		require.NoError(t, err)
	}
	assert.Equal(t, int64(90), w.Session().Size())
	assert.Equal(t, 0, s.TotalCalls())
	require.NoError(t, w.Close())
}

func TestUpload_ClosedSession(t *testing.T) {
	s := fake.NewServer()
	fsys := newFS(t, s)
	w, err := fsys.Create(context.Background(), "f.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("more"))
	require.ErrorIs(t, err, fs.ErrClosed)
	require.ErrorIs(t, w.Close(), fs.ErrClosed)
	assert.Equal(t, 1, s.Calls(fake.MethodUploadFile))
}

func TestUpload_Abort(t *testing.T) {
	s := fake.NewServer()
	dir := t.TempDir()
	fsys := newFS(t, s, boxfs.WithBlockSize(blockSize), boxfs.WithTempDir(dir))
	w, err := fsys.Create(context.Background(), "f.bin")
	require.NoError(t, err)
	_, err = w.Write(bytes.Repeat([]byte("x"), 100))
	require.NoError(t, err)

	require.NoError(t, w.Abort())
	require.NoError(t, w.Abort())
	_, err = w.Write([]byte("x"))
	require.ErrorIs(t, err, fs.ErrClosed)

	assert.Equal(t, 0, s.Count(remote.TypeFile))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpload_ChunkedRemovesTemporaryFile(t *testing.T) {
	s := fake.NewServer()
	dir := t.TempDir()
	fsys := newFS(t, s, boxfs.WithBlockSize(blockSize), boxfs.WithTempDir(dir))

	_, err := fsys.WriteFile(context.Background(), "f.bin", bytes.Repeat([]byte("x"), 100))
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpload_RetriesWithFullContentAfterRefresh(t *testing.T) {
	s := fake.NewServer()
	fsys := newFS(t, s)
	w, err := fsys.Create(context.Background(), "f.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello world"))
	require.NoError(t, err)
	s.ExpireTokens()

	require.NoError(t, w.Close())
	assert.Equal(t, 1, s.Calls(fake.MethodRefresh))
	assert.Equal(t, 2, s.Calls(fake.MethodUploadFile))
	got, _ := s.Content(w.Item().ID)
	assert.Equal(t, "hello world", string(got))
}

func TestUpload_FailureClosesSession(t *testing.T) {
	s := fake.NewServer()
	fsys := newFS(t, s)
	s.FailNext(fake.MethodUploadFile, boxfs.NewIOError("connection reset", nil))

	_, err := fsys.WriteFile(context.Background(), "f.txt", []byte("hello"))
	require.ErrorIs(t, err, boxfs.ErrIOError)
	assert.Equal(t, 0, s.Count(remote.TypeFile))

	exists, err := fsys.Exists(context.Background(), "f.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreate_Failures(t *testing.T) {
	s := fake.NewServer()
	dir := s.AddFolder(fake.RootID, "dir")
	s.AddFile(dir, "f.txt", nil)
	fsys := newFS(t, s)

	cases := []struct {
		name string
		path string
		want error
	}{
		{"root", "/", boxfs.ErrInvalidArgument},
		{"folder", "dir", boxfs.ErrInvalidArgument},
		{"missing parent", "missing/f.txt", boxfs.ErrNotFound},
		{"file parent", "dir/f.txt/g.txt", boxfs.ErrInvalidArgument},
		{"invalid path", "../f.txt", boxfs.ErrInvalidPath},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := fsys.Create(context.Background(), c.path)
			require.ErrorIs(t, err, c.want)
		})
	}
}

func TestUpload_RoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		first    []byte
		second   []byte
		streamed int
		chunked  int
	}{
		{"small", []byte("hello"), []byte("bye"), 2, 0},
		{"large", bytes.Repeat([]byte("a"), 50), bytes.Repeat([]byte("b"), 45), 0, 2},
		{"large then small", bytes.Repeat([]byte("a"), 50), []byte("b"), 1, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx := context.Background()
			s := fake.NewServer()
			fsys := newFS(t, s, boxfs.WithBlockSize(blockSize))
			require.NoError(t, fsys.Mkdir(ctx, "a/b/c", true))

			_, err := fsys.WriteFile(ctx, "a/b/c/d.bin", c.first)
			require.NoError(t, err)
			got, err := fsys.ReadFile(ctx, "a/b/c/d.bin")
			require.NoError(t, err)
			assert.Equal(t, c.first, got)

			_, err = fsys.WriteFile(ctx, "a/b/c/d.bin", c.second)
			require.NoError(t, err)
			got, err = fsys.ReadFile(ctx, "a/b/c/d.bin")
			require.NoError(t, err)
			assert.Equal(t, c.second, got)

			assert.Equal(t, c.streamed, s.Calls(fake.MethodUploadFile)+s.Calls(fake.MethodUpdateFile))
			assert.Equal(t, c.chunked, s.Calls(fake.MethodUploadChunked))
			assert.Equal(t, 1, s.Count(remote.TypeFile))
		})
	}
}
