package boxapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Jumpaku/go-boxfs/errors"
	"github.com/Jumpaku/go-boxfs/remote"
)

// Download fetches a byte range of fileID, following the redirect to the download server.
func (c *Client) Download(ctx context.Context, fileID string, offset, length int64) (io.ReadCloser, error) {
	if length == 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}
	header := http.Header{}
	switch {
	case length > 0:
		header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
	case offset > 0:
		header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	resp, err := c.do(ctx, request{
		method: http.MethodGet,
		url:    c.itemURL(remote.FileID(fileID)) + "/content",
		header: header,
	})
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		if offset > 0 {
			// The range was ignored.
			if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil {
				resp.Body.Close()
				return nil, errors.NewIOError("failed to skip to offset", err)
			}
		}
		return resp.Body, nil
	case http.StatusPartialContent:
		return resp.Body, nil
	default:
		resp.Body.Close()
		return nil, errors.NewAPIError(fmt.Sprintf("file %s is not downloadable yet (status %d)", fileID, resp.StatusCode), nil)
	}
}

// DownloadURL returns the location Box redirects downloads of fileID to.
func (c *Client) DownloadURL(ctx context.Context, fileID string) (string, error) {
	noRedirect := *c.http
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := c.doWith(ctx, &noRedirect, request{
		method: http.MethodGet,
		url:    c.itemURL(remote.FileID(fileID)) + "/content",
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		return "", errors.NewAPIError(fmt.Sprintf("no download location for file %s (status %d)", fileID, resp.StatusCode), nil)
	}
	location := resp.Header.Get("Location")
	if _, err := url.Parse(location); err != nil || location == "" {
		return "", errors.NewAPIError("invalid download location "+location, err)
	}
	return location, nil
}
