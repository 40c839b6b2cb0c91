// Package remote defines the capabilities boxfs consumes from a cloud storage service.
//
// Implementations translate service failures into the kinds of the
// github.com/Jumpaku/go-boxfs/errors package; in particular a rejected or
// expired access token must be reported as errors.ErrAuthExpired so that the
// caller can refresh and retry.
package remote

import (
	"context"
	"io"

	"golang.org/x/oauth2"
)

// Client is the capability surface of a remote storage service.
type Client interface {
	// RootID returns the ID of the service's global root folder.
	RootID() string

	// GetItem returns the metadata of the file or folder obj.
	GetItem(ctx context.Context, obj ObjectID) (*Item, error)

	// ListChildren returns every item directly inside the folder folderID.
	ListChildren(ctx context.Context, folderID string) ([]*Item, error)

	// CreateFolder creates a folder called name inside parentID.
	CreateFolder(ctx context.Context, parentID, name string) (*Item, error)

	// Delete removes obj. A non-empty etag makes the deletion conditional.
	// Folders are removed together with their contents.
	Delete(ctx context.Context, obj ObjectID, etag string) error

	// UploadFile creates a new file called name in parentID from r.
	// A non-empty sha1 (hex) lets the service verify the content.
	UploadFile(ctx context.Context, parentID, name string, r io.Reader, sha1 string) (*Item, error)

	// UpdateFile replaces the content of fileID with r.
	UpdateFile(ctx context.Context, fileID string, r io.Reader, sha1 string) (*Item, error)

	// UploadChunked uploads the local file at localPath in parts.
	// If dest is a folder a new file called name is created in it,
	// if dest is a file a new version of it is uploaded.
	UploadChunked(ctx context.Context, dest ObjectID, name, localPath string) (*Item, error)

	// Download returns length bytes of fileID starting at offset.
	// A negative length reads to the end of the file.
	Download(ctx context.Context, fileID string, offset, length int64) (io.ReadCloser, error)

	// DownloadURL returns a URL from which fileID can be fetched without authorization.
	DownloadURL(ctx context.Context, fileID string) (string, error)

	// Copy copies src into destParentID under destName.
	Copy(ctx context.Context, src ObjectID, destParentID, destName string) (*Item, error)

	// DownscopeToken exchanges the client's token for one restricted to scopes
	// and to the subtree of the folder rootID.
	DownscopeToken(ctx context.Context, scopes []Scope, rootID string) (*oauth2.Token, error)

	// WithToken returns a client of the same service authorized by token.
	WithToken(token *oauth2.Token) Client

	// Refresh renews the client's authorization.
	Refresh(ctx context.Context) error
}
