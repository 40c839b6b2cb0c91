package boxapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Jumpaku/go-boxfs/errors"
	"github.com/Jumpaku/go-boxfs/remote"
)

// listLimit is the largest page size the folder items endpoint accepts.
const listLimit = 1000

type itemRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type boxItem struct {
	Type           string    `json:"type"`
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Size           int64     `json:"size"`
	CreatedAt      time.Time `json:"created_at"`
	ModifiedAt     time.Time `json:"modified_at"`
	ETag           string    `json:"etag"`
	SHA1           string    `json:"sha1"`
	PathCollection *struct {
		TotalCount int       `json:"total_count"`
		Entries    []itemRef `json:"entries"`
	} `json:"path_collection"`
}

type itemCollection struct {
	TotalCount int        `json:"total_count"`
	Entries    []*boxItem `json:"entries"`
	Offset     int        `json:"offset"`
	Limit      int        `json:"limit"`
}

func (i *boxItem) toItem() (*remote.Item, error) {
	t, err := remote.ParseType(i.Type)
	if err != nil {
		return nil, errors.NewAPIError(fmt.Sprintf("item %s", i.ID), err)
	}
	item := &remote.Item{
		ID:         i.ID,
		Type:       t,
		Name:       i.Name,
		Size:       i.Size,
		CreatedAt:  i.CreatedAt,
		ModifiedAt: i.ModifiedAt,
		ETag:       i.ETag,
		SHA1:       i.SHA1,
	}
	if i.PathCollection != nil {
		item.PathCollection = make([]string, 0, len(i.PathCollection.Entries))
		for _, e := range i.PathCollection.Entries {
			item.PathCollection = append(item.PathCollection, e.Name)
		}
	}
	return item, nil
}

func toItems(entries []*boxItem) ([]*remote.Item, error) {
	items := make([]*remote.Item, 0, len(entries))
	for _, e := range entries {
		// Web links are neither files nor folders.
		if e.Type == "web_link" {
			continue
		}
		item, err := e.toItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func collection(t remote.Type) string {
	if t == remote.TypeFolder {
		return "folders"
	}
	return "files"
}

func (c *Client) itemURL(obj remote.ObjectID) string {
	return c.apiURL + "/" + collection(obj.Type) + "/" + url.PathEscape(obj.ID)
}

func fieldsQuery() url.Values {
	return url.Values{"fields": {itemFields}}
}

// GetItem fetches the metadata of obj. An untyped obj is looked up as a file first.
func (c *Client) GetItem(ctx context.Context, obj remote.ObjectID) (*remote.Item, error) {
	if obj.Type == 0 {
		item, err := c.GetItem(ctx, remote.FileID(obj.ID))
		if errors.Is(err, errors.ErrNotFound) {
			return c.GetItem(ctx, remote.FolderID(obj.ID))
		}
		return item, err
	}
	var out boxItem
	err := c.doJSON(ctx, request{
		method: http.MethodGet,
		url:    c.itemURL(obj),
		query:  fieldsQuery(),
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.toItem()
}

// ListChildren pages through the folder's items.
func (c *Client) ListChildren(ctx context.Context, folderID string) ([]*remote.Item, error) {
	var items []*remote.Item
	for offset := 0; ; {
		q := fieldsQuery()
		q.Set("limit", strconv.Itoa(listLimit))
		q.Set("offset", strconv.Itoa(offset))
		var page itemCollection
		err := c.doJSON(ctx, request{
			method: http.MethodGet,
			url:    c.itemURL(remote.FolderID(folderID)) + "/items",
			query:  q,
		}, &page)
		if err != nil {
			return nil, err
		}
		pageItems, err := toItems(page.Entries)
		if err != nil {
			return nil, err
		}
		items = append(items, pageItems...)
		offset += len(page.Entries)
		if len(page.Entries) == 0 || offset >= page.TotalCount {
			return items, nil
		}
	}
}

func (c *Client) CreateFolder(ctx context.Context, parentID, name string) (*remote.Item, error) {
	body, header, err := jsonBody(map[string]any{
		"name":   name,
		"parent": map[string]string{"id": parentID},
	})
	if err != nil {
		return nil, err
	}
	var out boxItem
	err = c.doJSON(ctx, request{
		method: http.MethodPost,
		url:    c.apiURL + "/folders",
		query:  fieldsQuery(),
		header: header,
		body:   body,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.toItem()
}

// Delete removes obj, folders recursively.
func (c *Client) Delete(ctx context.Context, obj remote.ObjectID, etag string) error {
	r := request{
		method: http.MethodDelete,
		url:    c.itemURL(obj),
		header: http.Header{},
	}
	if obj.IsFolder() {
		r.query = url.Values{"recursive": {"true"}}
	}
	if etag != "" {
		r.header.Set("If-Match", etag)
	}
	return c.doJSON(ctx, r, nil)
}

func (c *Client) Copy(ctx context.Context, src remote.ObjectID, destParentID, destName string) (*remote.Item, error) {
	body, header, err := jsonBody(map[string]any{
		"name":   destName,
		"parent": map[string]string{"id": destParentID},
	})
	if err != nil {
		return nil, err
	}
	var out boxItem
	err = c.doJSON(ctx, request{
		method: http.MethodPost,
		url:    c.itemURL(src) + "/copy",
		query:  fieldsQuery(),
		header: header,
		body:   body,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.toItem()
}
