// Package gdrive implements remote.Client on top of the Google Drive v3 API.
//
// Drive has no notion of downscoped tokens, so DownscopeToken fails with
// errors.ErrNotSupported. Google Apps documents are listed as files but cannot
// be downloaded.
package gdrive

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Jumpaku/go-boxfs/errors"
	"github.com/Jumpaku/go-boxfs/remote"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	mimeTypeGoogleAppFolder = "application/vnd.google-apps.folder"
	mimeTypePrefixGoogleApp = "application/vnd.google-apps."

	driveFileFields  = "parents,id,name,mimeType,size,createdTime,modifiedTime,sha1Checksum,version,webContentLink"
	driveFilesFields = "nextPageToken,files(parents,id,name,mimeType,size,createdTime,modifiedTime,sha1Checksum,version,webContentLink)"

	// RootID is the alias Drive accepts for the user's My Drive folder.
	RootID = "root"
)

// Client accesses Google Drive through a drive.Service.
type Client struct {
	service *drive.Service
	tokens  oauth2.TokenSource
	opts    []option.ClientOption
}

var _ remote.Client = (*Client)(nil)

// New creates a client authorized by tokens. opts are passed to drive.NewService.
func New(ctx context.Context, tokens oauth2.TokenSource, opts ...option.ClientOption) (*Client, error) {
	service, err := drive.NewService(ctx, append([]option.ClientOption{option.WithTokenSource(tokens)}, opts...)...)
	if err != nil {
		return nil, errors.NewAPIError("failed to create drive service", err)
	}
	return &Client{service: service, tokens: tokens, opts: opts}, nil
}

// NewWithService wraps an already authorized drive.Service. Such a client cannot refresh.
func NewWithService(service *drive.Service) *Client {
	return &Client{service: service}
}

func (c *Client) RootID() string {
	return RootID
}

func (c *Client) GetItem(ctx context.Context, obj remote.ObjectID) (*remote.Item, error) {
	f, err := findByID(ctx, c.service, obj.ID)
	if err != nil {
		return nil, err
	}
	ancestors, err := c.ancestors(ctx, f)
	if err != nil {
		return nil, err
	}
	item := newItem(f, ancestors)
	if obj.Type != 0 && item.Type != obj.Type {
		return nil, errors.New(errors.ErrNotFound, fmt.Sprintf("%s is a %v", obj, item.Type), nil)
	}
	return item, nil
}

func (c *Client) ListChildren(ctx context.Context, folderID string) ([]*remote.Item, error) {
	folder, err := findByID(ctx, c.service, folderID)
	if err != nil {
		return nil, err
	}
	ancestors, err := c.ancestors(ctx, folder)
	if err != nil {
		return nil, err
	}
	ancestors = append(ancestors, folder.Name)
	files, err := findAllIn(ctx, c.service, folder.Id)
	if err != nil {
		return nil, err
	}
	items := make([]*remote.Item, 0, len(files))
	for _, f := range files {
		items = append(items, newItem(f, ancestors))
	}
	return items, nil
}

func (c *Client) CreateFolder(ctx context.Context, parentID, name string) (*remote.Item, error) {
	f, err := c.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: mimeTypeGoogleAppFolder,
		Parents:  []string{parentID},
	}).
		SupportsAllDrives(true).
		Fields(driveFileFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.FromAPI("failed to create folder", err)
	}
	return c.withAncestors(ctx, f)
}

func (c *Client) Delete(ctx context.Context, obj remote.ObjectID, etag string) error {
	call := c.service.Files.Delete(obj.ID).
		SupportsAllDrives(true).
		Context(ctx)
	if etag != "" {
		f, err := findByID(ctx, c.service, obj.ID)
		if err != nil {
			return err
		}
		if strconv.FormatInt(f.Version, 10) != etag {
			return errors.NewAPIError(fmt.Sprintf("version of %s is %d, not %s", obj, f.Version, etag), nil)
		}
	}
	if err := call.Do(); err != nil {
		return errors.FromAPI("failed to delete file", err)
	}
	return nil
}

func (c *Client) UploadFile(ctx context.Context, parentID, name string, r io.Reader, sha1 string) (*remote.Item, error) {
	f, err := c.service.Files.Create(&drive.File{
		Name:    name,
		Parents: []string{parentID},
	}).
		SupportsAllDrives(true).
		Media(r).
		Fields(driveFileFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.FromAPI("failed to upload file", err)
	}
	if err := verify(f, sha1); err != nil {
		return nil, err
	}
	return c.withAncestors(ctx, f)
}

func (c *Client) UpdateFile(ctx context.Context, fileID string, r io.Reader, sha1 string) (*remote.Item, error) {
	f, err := c.service.Files.Update(fileID, &drive.File{}).
		SupportsAllDrives(true).
		Media(r).
		Fields(driveFileFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.FromAPI("failed to update file", err)
	}
	if err := verify(f, sha1); err != nil {
		return nil, err
	}
	return c.withAncestors(ctx, f)
}

// UploadChunked sends the local file as a resumable upload.
func (c *Client) UploadChunked(ctx context.Context, dest remote.ObjectID, name, localPath string) (item *remote.Item, err error) {
	local, err := os.Open(localPath)
	if err != nil {
		return nil, errors.NewIOError("failed to open "+localPath, err)
	}
	defer func() {
		if closeErr := local.Close(); closeErr != nil && err == nil {
			err = errors.NewIOError("failed to close "+localPath, closeErr)
		}
	}()

	h := sha1.New()
	r := io.TeeReader(local, h)
	chunk := googleapi.ChunkSize(googleapi.DefaultUploadChunkSize)
	var f *drive.File
	switch dest.Type {
	case remote.TypeFolder:
		f, err = c.service.Files.Create(&drive.File{Name: name, Parents: []string{dest.ID}}).
			SupportsAllDrives(true).
			Media(r, chunk).
			Fields(driveFileFields).
			Context(ctx).
			Do()
	case remote.TypeFile:
		f, err = c.service.Files.Update(dest.ID, &drive.File{}).
			SupportsAllDrives(true).
			Media(r, chunk).
			Fields(driveFileFields).
			Context(ctx).
			Do()
	default:
		return nil, errors.New(errors.ErrInvalidArgument, "untyped upload destination "+dest.ID, nil)
	}
	if err != nil {
		return nil, errors.FromAPI("failed to upload file in chunks", err)
	}
	if err := verify(f, hex.EncodeToString(h.Sum(nil))); err != nil {
		return nil, err
	}
	return c.withAncestors(ctx, f)
}

func (c *Client) Download(ctx context.Context, fileID string, offset, length int64) (io.ReadCloser, error) {
	f, err := findByID(ctx, c.service, fileID)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(f.MimeType, mimeTypePrefixGoogleApp) {
		return nil, errors.New(errors.ErrNotSupported, "cannot download google-apps file "+fileID, nil)
	}
	call := c.service.Files.Get(fileID).
		SupportsAllDrives(true).
		Context(ctx)
	if length >= 0 {
		if length == 0 {
			return io.NopCloser(strings.NewReader("")), nil
		}
		call.Header().Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
	} else if offset > 0 {
		call.Header().Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	resp, err := call.Download()
	if err != nil {
		return nil, errors.FromAPI("failed to download file", err)
	}
	return resp.Body, nil
}

func (c *Client) DownloadURL(ctx context.Context, fileID string) (string, error) {
	f, err := findByID(ctx, c.service, fileID)
	if err != nil {
		return "", err
	}
	if f.WebContentLink == "" {
		return "", errors.New(errors.ErrNotSupported, "no download link for "+fileID, nil)
	}
	return f.WebContentLink, nil
}

// Copy copies a file. Drive cannot copy folders.
func (c *Client) Copy(ctx context.Context, src remote.ObjectID, destParentID, destName string) (*remote.Item, error) {
	if src.IsFolder() {
		return nil, errors.New(errors.ErrNotSupported, "drive cannot copy folders", nil)
	}
	f, err := c.service.Files.Copy(src.ID, &drive.File{
		Name:    destName,
		Parents: []string{destParentID},
	}).
		SupportsAllDrives(true).
		Fields(driveFileFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.FromAPI("failed to copy file", err)
	}
	return c.withAncestors(ctx, f)
}

func (c *Client) DownscopeToken(ctx context.Context, scopes []remote.Scope, rootID string) (*oauth2.Token, error) {
	return nil, errors.New(errors.ErrNotSupported, "drive tokens cannot be downscoped", nil)
}

// WithToken returns a client authorized by token. Token errors surface on the first call.
func (c *Client) WithToken(token *oauth2.Token) remote.Client {
	tokens := oauth2.StaticTokenSource(token)
	service, err := drive.NewService(context.Background(), append([]option.ClientOption{option.WithTokenSource(tokens)}, c.opts...)...)
	if err != nil {
		return &Client{service: c.service}
	}
	return &Client{service: service, tokens: tokens, opts: c.opts}
}

// Refresh fetches a token from the token source, which renews it when it has expired.
func (c *Client) Refresh(ctx context.Context) error {
	if c.tokens == nil {
		return errors.New(errors.ErrAuthExpired, "client has no token source", nil)
	}
	if _, err := c.tokens.Token(); err != nil {
		return errors.New(errors.ErrAuthExpired, "failed to refresh token", err)
	}
	return nil
}

func (c *Client) withAncestors(ctx context.Context, f *drive.File) (*remote.Item, error) {
	ancestors, err := c.ancestors(ctx, f)
	if err != nil {
		return nil, err
	}
	return newItem(f, ancestors), nil
}

// ancestors returns the names of f's ancestors, outermost first.
func (c *Client) ancestors(ctx context.Context, f *drive.File) ([]string, error) {
	var parts []string
	for len(f.Parents) > 0 {
		if len(f.Parents) > 1 {
			return nil, errors.New(errors.ErrNotSupported, "multiple parents of "+f.Id, nil)
		}
		parent, err := findByID(ctx, c.service, f.Parents[0])
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) || errors.Is(err, errors.ErrPermissionDenied) {
				break
			}
			return nil, err
		}
		parts = append(parts, parent.Name)
		f = parent
	}
	slices.Reverse(parts)
	return parts, nil
}

func findByID(ctx context.Context, s *drive.Service, fileID string) (*drive.File, error) {
	f, err := s.Files.Get(fileID).
		SupportsAllDrives(true).
		Fields(driveFileFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.FromAPI("failed to get file "+fileID, err)
	}
	return f, nil
}

func findAllIn(ctx context.Context, s *drive.Service, parentID string) (files []*drive.File, err error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(parentID))
	err = s.Files.List().
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Q(q).
		Fields(driveFilesFields).
		Pages(ctx, func(list *drive.FileList) error {
			files = append(files, list.Files...)
			return nil
		})
	if err != nil {
		return nil, errors.FromAPI("failed to list files", err)
	}
	return files, nil
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", `\'`)
	return s
}

func newItem(f *drive.File, ancestors []string) *remote.Item {
	t := remote.TypeFile
	if f.MimeType == mimeTypeGoogleAppFolder {
		t = remote.TypeFolder
	}
	created, _ := time.Parse(time.RFC3339, f.CreatedTime)
	modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
	return &remote.Item{
		ID:             f.Id,
		Type:           t,
		Name:           f.Name,
		Size:           f.Size,
		CreatedAt:      created,
		ModifiedAt:     modified,
		PathCollection: append([]string{}, ancestors...),
		ETag:           strconv.FormatInt(f.Version, 10),
		SHA1:           f.Sha1Checksum,
	}
}

func verify(f *drive.File, want string) error {
	if want == "" || f.Sha1Checksum == "" || strings.EqualFold(f.Sha1Checksum, want) {
		return nil
	}
	return errors.NewIOError(fmt.Sprintf("sha1 mismatch for %s: got %s, want %s", f.Id, f.Sha1Checksum, want), nil)
}
