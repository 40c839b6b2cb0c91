package boxapi_test

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/Jumpaku/go-boxfs/errors"
	"github.com/Jumpaku/go-boxfs/remote"
	"github.com/Jumpaku/go-boxfs/remote/boxapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, h http.Handler, opts ...boxapi.Option) *boxapi.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]boxapi.Option{
		boxapi.WithHTTPClient(srv.Client()),
		boxapi.WithBaseURLs(srv.URL+"/2.0", srv.URL+"/upload"),
		boxapi.WithTokenURL(srv.URL + "/oauth2/token"),
	}, opts...)
	return boxapi.New(context.Background(), nil, &oauth2.Token{AccessToken: "access"}, opts...)
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func fileJSON(id, name string, size int, ancestors ...string) map[string]any {
	entries := []map[string]any{}
	for i, a := range ancestors {
		entries = append(entries, map[string]any{"type": "folder", "id": strconv.Itoa(i), "name": a})
	}
	return map[string]any{
		"type":            "file",
		"id":              id,
		"name":            name,
		"size":            size,
		"etag":            "3",
		"sha1":            "abc",
		"created_at":      "2024-01-15T10:30:00-08:00",
		"modified_at":     "2024-01-16T10:30:00-08:00",
		"path_collection": map[string]any{"total_count": len(entries), "entries": entries},
	}
}

func TestGetItem(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		assert.Equal(t, "/2.0/files/42", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("fields"), "path_collection")
		writeJSON(t, w, http.StatusOK, fileJSON("42", "a.txt", 12, "All Files", "work"))
	}))

	item, err := c.GetItem(context.Background(), remote.FileID("42"))
	require.NoError(t, err)
	assert.Equal(t, "42", item.ID)
	assert.Equal(t, remote.TypeFile, item.Type)
	assert.Equal(t, "a.txt", item.Name)
	assert.Equal(t, int64(12), item.Size)
	assert.Equal(t, "3", item.ETag)
	assert.Equal(t, []string{"All Files", "work"}, item.PathCollection)
	assert.Equal(t, 2024, item.ModifiedAt.Year())
}

func TestGetItem_UntypedFallsBackToFolder(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/2.0/files/") {
			writeJSON(t, w, http.StatusNotFound, map[string]any{"type": "error", "status": 404})
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"type": "folder", "id": "7", "name": "docs"})
	}))

	item, err := c.GetItem(context.Background(), remote.ObjectID{ID: "7"})
	require.NoError(t, err)
	assert.Equal(t, remote.TypeFolder, item.Type)
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, errors.ErrAuthExpired},
		{"forbidden", http.StatusForbidden, errors.ErrPermissionDenied},
		{"not found", http.StatusNotFound, errors.ErrNotFound},
		{"conflict", http.StatusConflict, errors.ErrAlreadyExists},
		{"precondition failed", http.StatusPreconditionFailed, errors.ErrAPIError},
		{"server error", http.StatusInternalServerError, errors.ErrAPIError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, c.status, map[string]any{"type": "error", "status": c.status})
			}))
			_, err := client.CreateFolder(context.Background(), "0", "x")
			if !errors.Is(err, c.want) {
				t.Fatalf("CreateFolder() error = %v, want %v", err, c.want)
			}
		})
	}
}

func TestListChildren_Paginates(t *testing.T) {
	names := []string{"a", "b", "c"}
	var mu sync.Mutex
	requests := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		assert.Equal(t, "/2.0/folders/5/items", r.URL.Path)
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		// Serve two entries per page regardless of the requested limit.
		end := min(offset+2, len(names))
		entries := []any{}
		for i := offset; i < end; i++ {
			entries = append(entries, fileJSON(strconv.Itoa(i), names[i], i))
		}
		if offset > 0 {
			entries = append(entries, map[string]any{"type": "web_link", "id": "w", "name": "link"})
		}
		writeJSON(t, w, http.StatusOK, map[string]any{
			"total_count": len(names) + 1,
			"entries":     entries,
			"offset":      offset,
			"limit":       2,
		})
	}))

	items, err := c.ListChildren(context.Background(), "5")
	require.NoError(t, err)
	got := []string{}
	for _, item := range items {
		got = append(got, item.Name)
	}
	assert.Equal(t, names, got)
	assert.Equal(t, 2, requests)
}

func TestDelete_FolderIsRecursiveAndConditional(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/2.0/folders/9", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("recursive"))
		assert.Equal(t, "etag-1", r.Header.Get("If-Match"))
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.Delete(context.Background(), remote.FolderID("9"), "etag-1"))
}

func TestCopy(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2.0/files/3/copy", r.URL.Path)
		var body struct {
			Name   string `json:"name"`
			Parent struct {
				ID string `json:"id"`
			} `json:"parent"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "copy.txt", body.Name)
		assert.Equal(t, "8", body.Parent.ID)
		writeJSON(t, w, http.StatusCreated, fileJSON("4", "copy.txt", 1))
	}))

	item, err := c.Copy(context.Background(), remote.FileID("3"), "8", "copy.txt")
	require.NoError(t, err)
	assert.Equal(t, "4", item.ID)
}

func TestUploadFile_Multipart(t *testing.T) {
	content := []byte("hello box")
	sum := sha1.Sum(content)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload/files/content", r.URL.Path)
		assert.Equal(t, hex.EncodeToString(sum[:]), r.Header.Get("Content-MD5"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		var attrs struct {
			Name   string `json:"name"`
			Parent struct {
				ID string `json:"id"`
			} `json:"parent"`
		}
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("attributes")), &attrs))
		assert.Equal(t, "a.txt", attrs.Name)
		assert.Equal(t, "0", attrs.Parent.ID)
		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		got, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, content, got)
		writeJSON(t, w, http.StatusCreated, map[string]any{
			"total_count": 1,
			"entries":     []any{fileJSON("11", "a.txt", len(content), "All Files")},
		})
	}))

	item, err := c.UploadFile(context.Background(), "0", "a.txt", bytes.NewReader(content), hex.EncodeToString(sum[:]))
	require.NoError(t, err)
	assert.Equal(t, "11", item.ID)
}

func TestUpdateFile_TargetsExistingFile(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload/files/11/content", r.URL.Path)
		writeJSON(t, w, http.StatusCreated, map[string]any{
			"total_count": 1,
			"entries":     []any{fileJSON("11", "a.txt", 3)},
		})
	}))

	item, err := c.UpdateFile(context.Background(), "11", strings.NewReader("new"), "")
	require.NoError(t, err)
	assert.Equal(t, "11", item.ID)
}

type chunkServer struct {
	t        *testing.T
	partSize int64
	mu       sync.Mutex
	data     []byte
	target   string
	commits  int
}

func (s *chunkServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t := s.t
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/upload_sessions"):
		var attrs struct {
			FileSize int64  `json:"file_size"`
			FolderID string `json:"folder_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&attrs))
		s.mu.Lock()
		s.target = r.URL.Path + "?" + attrs.FolderID
		s.data = make([]byte, attrs.FileSize)
		s.mu.Unlock()
		writeJSON(t, w, http.StatusCreated, map[string]any{
			"id":          "sess",
			"part_size":   s.partSize,
			"total_parts": (attrs.FileSize + s.partSize - 1) / s.partSize,
		})
	case r.Method == http.MethodPut:
		var from, to, total int64
		_, err := fmt.Sscanf(r.Header.Get("Content-Range"), "bytes %d-%d/%d", &from, &to, &total)
		require.NoError(t, err)
		part, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		sum := sha1.Sum(part)
		assert.Equal(t, "sha="+base64.StdEncoding.EncodeToString(sum[:]), r.Header.Get("Digest"))
		s.mu.Lock()
		copy(s.data[from:], part)
		s.mu.Unlock()
		writeJSON(t, w, http.StatusOK, map[string]any{"part": map[string]any{
			"part_id": strconv.FormatInt(from, 10),
			"offset":  from,
			"size":    len(part),
			"sha1":    hex.EncodeToString(sum[:]),
		}})
	case strings.HasSuffix(r.URL.Path, "/commit"):
		var body struct {
			Parts []struct {
				Offset int64 `json:"offset"`
			} `json:"parts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		for i := 1; i < len(body.Parts); i++ {
			assert.Less(t, body.Parts[i-1].Offset, body.Parts[i].Offset)
		}
		s.mu.Lock()
		sum := sha1.Sum(s.data)
		s.commits++
		s.mu.Unlock()
		assert.Equal(t, "sha="+base64.StdEncoding.EncodeToString(sum[:]), r.Header.Get("Digest"))
		writeJSON(t, w, http.StatusCreated, map[string]any{
			"total_count": 1,
			"entries":     []any{fileJSON("99", "big.bin", len(s.data))},
		})
	default:
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
	}
}

func TestUploadChunked(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789"), 1000)
	local := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(local, content, 0o600))

	cases := []struct {
		name       string
		dest       remote.ObjectID
		wantTarget string
	}{
		{"new file", remote.FolderID("5"), "/upload/files/upload_sessions?5"},
		{"new version", remote.FileID("77"), "/upload/files/77/upload_sessions?"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := &chunkServer{t: t, partSize: 3000}
			client := newTestClient(t, srv, boxapi.WithPartConcurrency(2))

			item, err := client.UploadChunked(context.Background(), c.dest, "big.bin", local)
			require.NoError(t, err)
			assert.Equal(t, "99", item.ID)
			assert.Equal(t, c.wantTarget, srv.target)
			assert.Equal(t, content, srv.data)
			assert.Equal(t, 1, srv.commits)
		})
	}
}

func TestUploadChunked_AbortsOnPartFailure(t *testing.T) {
	local := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(local, make([]byte, 100), 0o600))
	aborted := false
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			writeJSON(t, w, http.StatusCreated, map[string]any{"id": "sess", "part_size": 50, "total_parts": 2})
		case http.MethodPut:
			writeJSON(t, w, http.StatusInternalServerError, map[string]any{"type": "error"})
		case http.MethodDelete:
			aborted = true
			w.WriteHeader(http.StatusNoContent)
		}
	}), boxapi.WithPartConcurrency(1))

	_, err := c.UploadChunked(context.Background(), remote.FolderID("0"), "big.bin", local)
	require.ErrorIs(t, err, errors.ErrAPIError)
	assert.True(t, aborted)
}

func TestDownload_Range(t *testing.T) {
	content := "0123456789"
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2.0/files/1/content", r.URL.Path)
		var from, to int
		_, err := fmt.Sscanf(r.Header.Get("Range"), "bytes=%d-%d", &from, &to)
		require.NoError(t, err)
		w.WriteHeader(http.StatusPartialContent)
		_, _ = io.WriteString(w, content[from:to+1])
	}))

	r, err := c.Download(context.Background(), "1", 2, 4)
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "2345", string(got))
}

func TestDownloadURL_DoesNotFollowRedirect(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://dl.example.com/d/1", http.StatusFound)
	}))

	u, err := c.DownloadURL(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "https://dl.example.com/d/1", u)
}

func TestDownscopeToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth2/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:token-exchange", r.PostForm.Get("grant_type"))
		assert.Equal(t, "access", r.PostForm.Get("subject_token"))
		assert.Equal(t, "root_readonly item_download", r.PostForm.Get("scope"))
		assert.True(t, strings.HasSuffix(r.PostForm.Get("resource"), "/2.0/folders/12"))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"access_token": "narrow",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}))

	token, err := c.DownscopeToken(context.Background(), []remote.Scope{remote.ScopeRootReadonly, remote.ScopeItemDownload}, "12")
	require.NoError(t, err)
	assert.Equal(t, "narrow", token.AccessToken)
	assert.False(t, token.Expiry.IsZero())
}

func TestWithToken_UsesGivenToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer narrow", r.Header.Get("Authorization"))
		writeJSON(t, w, http.StatusOK, map[string]any{"type": "folder", "id": "0", "name": "All Files"})
	}))

	narrowed := c.WithToken(&oauth2.Token{AccessToken: "narrow", TokenType: "bearer"})
	_, err := narrowed.GetItem(context.Background(), remote.FolderID("0"))
	require.NoError(t, err)
	require.ErrorIs(t, narrowed.Refresh(context.Background()), errors.ErrAuthExpired)
}

func TestRefresh(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/token":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			assert.Equal(t, "r1", r.PostForm.Get("refresh_token"))
			writeJSON(t, w, http.StatusOK, map[string]any{
				"access_token":  "a2",
				"refresh_token": "r2",
				"token_type":    "bearer",
				"expires_in":    3600,
			})
		default:
			if r.Header.Get("Authorization") != "Bearer a2" {
				writeJSON(t, w, http.StatusUnauthorized, map[string]any{"type": "error"})
				return
			}
			writeJSON(t, w, http.StatusOK, map[string]any{"type": "folder", "id": "0", "name": "All Files"})
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	config := &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: srvURL + "/oauth2/token", AuthStyle: oauth2.AuthStyleInParams},
	}
	c := boxapi.New(context.Background(), config, &oauth2.Token{AccessToken: "a1", RefreshToken: "r1"},
		boxapi.WithHTTPClient(srv.Client()),
		boxapi.WithBaseURLs(srvURL+"/2.0", srvURL+"/upload"),
	)

	_, err := c.GetItem(context.Background(), remote.FolderID("0"))
	require.ErrorIs(t, err, errors.ErrAuthExpired)

	require.NoError(t, c.Refresh(context.Background()))
	_, err = c.GetItem(context.Background(), remote.FolderID("0"))
	require.NoError(t, err)

	token, err := c.Token()
	require.NoError(t, err)
	assert.Equal(t, "r2", token.RefreshToken)
}
