package boxapi

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"sort"

	"github.com/Jumpaku/go-boxfs/errors"
	"github.com/Jumpaku/go-boxfs/remote"
	"golang.org/x/sync/errgroup"
)

// UploadFile creates a file with a single multipart request.
func (c *Client) UploadFile(ctx context.Context, parentID, name string, r io.Reader, sha1 string) (*remote.Item, error) {
	return c.uploadMultipart(ctx, c.uploadURL+"/files/content", map[string]any{
		"name":   name,
		"parent": map[string]string{"id": parentID},
	}, name, r, sha1)
}

// UpdateFile uploads a new version of fileID with a single multipart request.
func (c *Client) UpdateFile(ctx context.Context, fileID string, r io.Reader, sha1 string) (*remote.Item, error) {
	return c.uploadMultipart(ctx, c.uploadURL+"/files/"+url.PathEscape(fileID)+"/content", map[string]any{}, fileID, r, sha1)
}

func (c *Client) uploadMultipart(ctx context.Context, target string, attributes map[string]any, filename string, r io.Reader, sha1 string) (*remote.Item, error) {
	attrs, err := json.Marshal(attributes)
	if err != nil {
		return nil, errors.New(errors.ErrInvalidArgument, "failed to encode attributes", err)
	}

	// The attributes part must precede the file part.
	body, w := io.Pipe()
	mw := multipart.NewWriter(w)
	go func() {
		err := mw.WriteField("attributes", string(attrs))
		if err == nil {
			var part io.Writer
			part, err = mw.CreateFormFile("file", filename)
			if err == nil {
				_, err = io.Copy(part, r)
			}
		}
		if err == nil {
			err = mw.Close()
		}
		w.CloseWithError(err)
	}()

	header := http.Header{"Content-Type": {mw.FormDataContentType()}}
	if sha1 != "" {
		header.Set("Content-MD5", sha1)
	}
	var out itemCollection
	err = c.doJSON(ctx, request{
		method: http.MethodPost,
		url:    target,
		query:  fieldsQuery(),
		header: header,
		body:   body,
	}, &out)
	body.Close()
	if err != nil {
		return nil, err
	}
	if len(out.Entries) == 0 {
		return nil, errors.NewAPIError("upload response has no entries", nil)
	}
	return out.Entries[0].toItem()
}

type uploadSession struct {
	ID         string `json:"id"`
	PartSize   int64  `json:"part_size"`
	TotalParts int    `json:"total_parts"`
}

type uploadPart struct {
	PartID string `json:"part_id"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
	SHA1   string `json:"sha1"`
}

// UploadChunked uploads localPath through an upload session.
// Parts are sent concurrently; the session is aborted if any of them fails.
func (c *Client) UploadChunked(ctx context.Context, dest remote.ObjectID, name, localPath string) (item *remote.Item, err error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, errors.NewIOError("failed to open "+localPath, err)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return nil, errors.NewIOError("failed to stat "+localPath, err)
	}
	size := stat.Size()

	whole := sha1.New()
	if _, err := io.Copy(whole, f); err != nil {
		return nil, errors.NewIOError("failed to hash "+localPath, err)
	}

	session, err := c.createUploadSession(ctx, dest, name, size)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			c.abortUploadSession(session.ID)
		}
	}()

	parts, err := c.uploadParts(ctx, session, f, size)
	if err != nil {
		return nil, err
	}
	return c.commitUploadSession(ctx, session.ID, parts, whole.Sum(nil))
}

func (c *Client) createUploadSession(ctx context.Context, dest remote.ObjectID, name string, size int64) (*uploadSession, error) {
	attrs := map[string]any{"file_size": size, "file_name": name}
	target := c.uploadURL + "/files/upload_sessions"
	switch dest.Type {
	case remote.TypeFolder:
		attrs["folder_id"] = dest.ID
	case remote.TypeFile:
		target = c.uploadURL + "/files/" + url.PathEscape(dest.ID) + "/upload_sessions"
	default:
		return nil, errors.New(errors.ErrInvalidArgument, "untyped upload destination "+dest.ID, nil)
	}
	body, header, err := jsonBody(attrs)
	if err != nil {
		return nil, err
	}
	var session uploadSession
	err = c.doJSON(ctx, request{
		method: http.MethodPost,
		url:    target,
		header: header,
		body:   body,
	}, &session)
	if err != nil {
		return nil, err
	}
	if session.PartSize <= 0 {
		return nil, errors.NewAPIError(fmt.Sprintf("upload session %s has part size %d", session.ID, session.PartSize), nil)
	}
	return &session, nil
}

func (c *Client) uploadParts(ctx context.Context, session *uploadSession, f io.ReaderAt, size int64) ([]uploadPart, error) {
	var offsets []int64
	for off := int64(0); off < size; off += session.PartSize {
		offsets = append(offsets, off)
	}
	parts := make([]uploadPart, len(offsets))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.partConcurrency)
	for i, off := range offsets {
		i, off := i, off
		g.Go(func() error {
			length := min(session.PartSize, size-off)
			part, err := c.uploadPart(ctx, session.ID, io.NewSectionReader(f, off, length), off, length, size)
			if err != nil {
				return err
			}
			parts[i] = *part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Offset < parts[j].Offset })
	return parts, nil
}

func (c *Client) uploadPart(ctx context.Context, sessionID string, r io.Reader, off, length, total int64) (*uploadPart, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIOError("failed to read part", err)
	}
	sum := sha1.Sum(data)
	var out struct {
		Part uploadPart `json:"part"`
	}
	err = c.doJSON(ctx, request{
		method: http.MethodPut,
		url:    c.uploadURL + "/files/upload_sessions/" + url.PathEscape(sessionID),
		header: http.Header{
			"Content-Type":  {"application/octet-stream"},
			"Content-Range": {fmt.Sprintf("bytes %d-%d/%d", off, off+length-1, total)},
			"Digest":        {"sha=" + base64.StdEncoding.EncodeToString(sum[:])},
		},
		body: bytes.NewReader(data),
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to upload part at %d: %w", off, err)
	}
	return &out.Part, nil
}

func (c *Client) commitUploadSession(ctx context.Context, sessionID string, parts []uploadPart, sum []byte) (*remote.Item, error) {
	body, header, err := jsonBody(map[string]any{"parts": parts})
	if err != nil {
		return nil, err
	}
	header.Set("Digest", "sha="+base64.StdEncoding.EncodeToString(sum))
	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		url:    c.uploadURL + "/files/upload_sessions/" + url.PathEscape(sessionID) + "/commit",
		query:  fieldsQuery(),
		header: header,
		body:   body,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	// 202 means the parts are still being processed and the commit has to be repeated later.
	if resp.StatusCode == http.StatusAccepted {
		return nil, errors.NewAPIError(fmt.Sprintf("upload session %s is not ready to commit (retry after %q)", sessionID, resp.Header.Get("Retry-After")), nil)
	}
	var out itemCollection
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.NewAPIError("failed to decode commit response", err)
	}
	if len(out.Entries) == 0 {
		return nil, errors.NewAPIError("commit response has no entries", nil)
	}
	return out.Entries[0].toItem()
}

// abortUploadSession discards a failed session. Failures are ignored.
func (c *Client) abortUploadSession(sessionID string) {
	resp, err := c.do(context.Background(), request{
		method: http.MethodDelete,
		url:    c.uploadURL + "/files/upload_sessions/" + url.PathEscape(sessionID),
	})
	if err == nil {
		resp.Body.Close()
	}
}
