// Package fake provides an in-memory remote.Client for tests.
//
// A Server holds a folder tree keyed by ID and hands out clients. Every call a
// client makes is counted per method, tokens can be expired server-wide, and
// downscoped clients enforce their scopes and subtree like the real service.
package fake

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Jumpaku/go-boxfs/errors"
	"github.com/Jumpaku/go-boxfs/remote"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Method names used as keys of the call counters.
const (
	MethodGetItem        = "GetItem"
	MethodListChildren   = "ListChildren"
	MethodCreateFolder   = "CreateFolder"
	MethodDelete         = "Delete"
	MethodUploadFile     = "UploadFile"
	MethodUpdateFile     = "UpdateFile"
	MethodUploadChunked  = "UploadChunked"
	MethodDownload       = "Download"
	MethodDownloadURL    = "DownloadURL"
	MethodCopy           = "Copy"
	MethodDownscopeToken = "DownscopeToken"
	MethodRefresh        = "Refresh"
)

const (
	RootID   = "0"
	RootName = "All Files"
)

type node struct {
	item     remote.Item
	parent   string
	children []string
	content  []byte
}

type grant struct {
	scopes []remote.Scope
	rootID string
	gen    int
}

// Server is the shared state behind fake clients.
type Server struct {
	mu       sync.Mutex
	nodes    map[string]*node
	nextID   int
	tokenGen int
	calls    map[string]int
	failures map[string][]error
	grants   map[string]grant
}

// NewServer returns a server holding only the global root folder.
func NewServer() *Server {
	s := &Server{
		nodes:    map[string]*node{},
		calls:    map[string]int{},
		failures: map[string][]error{},
		grants:   map[string]grant{},
	}
	now := time.Now()
	s.nodes[RootID] = &node{item: remote.Item{
		ID:         RootID,
		Type:       remote.TypeFolder,
		Name:       RootName,
		CreatedAt:  now,
		ModifiedAt: now,
		ETag:       uuid.NewString(),
	}}
	return s
}

// Client returns a client with full access.
func (s *Server) Client() *Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Client{server: s, gen: s.tokenGen}
}

// ExpireTokens invalidates every token issued so far.
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenGen++
}

// FailNext makes the next call of method fail with err, after it has been counted.
func (s *Server) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = append(s.failures[method], err)
}

// Calls returns how many times method has been called.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// TotalCalls returns the number of calls of every method.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = map[string]int{}
}

// AddFolder creates a folder without counting a call and returns its ID.
func (s *Server) AddFolder(parentID, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.create(parentID, name, remote.TypeFolder, nil)
	if err != nil {
		panic(err)
	}
	return n.item.ID
}

// AddFile creates a file without counting a call and returns its ID.
func (s *Server) AddFile(parentID, name string, content []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.create(parentID, name, remote.TypeFile, content)
	if err != nil {
		panic(err)
	}
	return n.item.ID
}

// Content returns a copy of the content of the file id.
func (s *Server) Content(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok || n.item.Type != remote.TypeFile {
		return nil, false
	}
	return bytes.Clone(n.content), true
}

// Count returns the number of items of type t, the global root excluded.
func (s *Server) Count(t remote.Type) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, n := range s.nodes {
		if id != RootID && n.item.Type == t {
			count++
		}
	}
	return count
}

// Lookup finds the ID at the slash-separated names below the global root.
func (s *Server) Lookup(names ...string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := RootID
	for _, name := range names {
		child, ok := s.childByName(current, name)
		if !ok {
			return "", false
		}
		current = child.item.ID
	}
	return current, true
}

func (s *Server) childByName(parentID, name string) (*node, bool) {
	for _, id := range s.nodes[parentID].children {
		if c := s.nodes[id]; c.item.Name == name {
			return c, true
		}
	}
	return nil, false
}

func (s *Server) create(parentID, name string, t remote.Type, content []byte) (*node, error) {
	parent, ok := s.nodes[parentID]
	if !ok {
		return nil, errors.New(errors.ErrNotFound, "parent "+parentID, nil)
	}
	if parent.item.Type != remote.TypeFolder {
		return nil, errors.New(errors.ErrInvalidArgument, "parent "+parentID+" is not a folder", nil)
	}
	if _, exists := s.childByName(parentID, name); exists {
		return nil, errors.New(errors.ErrAlreadyExists, fmt.Sprintf("item %q in %s", name, parentID), nil)
	}
	s.nextID++
	now := time.Now()
	n := &node{
		item: remote.Item{
			ID:         strconv.Itoa(s.nextID),
			Type:       t,
			Name:       name,
			Size:       int64(len(content)),
			CreatedAt:  now,
			ModifiedAt: now,
			ETag:       uuid.NewString(),
			SHA1:       sha1Hex(content),
		},
		parent:  parentID,
		content: bytes.Clone(content),
	}
	s.nodes[n.item.ID] = n
	parent.children = append(parent.children, n.item.ID)
	return n, nil
}

func (s *Server) remove(id string) {
	n := s.nodes[id]
	for _, child := range append([]string(nil), n.children...) {
		s.remove(child)
	}
	if parent, ok := s.nodes[n.parent]; ok {
		for i, c := range parent.children {
			if c == id {
				parent.children = append(parent.children[:i], parent.children[i+1:]...)
				break
			}
		}
	}
	delete(s.nodes, id)
}

func (s *Server) copyTree(srcID, destParentID, name string) (*node, error) {
	src := s.nodes[srcID]
	n, err := s.create(destParentID, name, src.item.Type, src.content)
	if err != nil {
		return nil, err
	}
	for _, child := range append([]string(nil), src.children...) {
		if _, err := s.copyTree(child, n.item.ID, s.nodes[child].item.Name); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// ancestors returns the ancestor chain of id, outermost first, stopping below top.
func (s *Server) ancestors(id, top string) []string {
	var chain []string
	for n := s.nodes[id]; n.item.ID != RootID && n.item.ID != top; {
		n = s.nodes[n.parent]
		chain = append(chain, n.item.Name)
		if n.item.ID == top {
			break
		}
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

func (s *Server) isWithin(id, top string) bool {
	for n, ok := s.nodes[id]; ok; n, ok = s.nodes[n.parent] {
		if n.item.ID == top {
			return true
		}
		if n.item.ID == RootID {
			break
		}
	}
	return false
}

// Client is a remote.Client bound to a Server.
type Client struct {
	server *Server
	gen    int
	// scopes is nil for a client with full access.
	scopes []remote.Scope
	rootID string
}

var _ remote.Client = (*Client)(nil)

func (c *Client) RootID() string {
	return RootID
}

// begin counts the call, locks the server and checks the token.
// The caller must unlock the server when begin succeeds.
func (c *Client) begin(method string) error {
	s := c.server
	s.mu.Lock()
	s.calls[method]++
	if errs := s.failures[method]; len(errs) > 0 {
		s.failures[method] = errs[1:]
		s.mu.Unlock()
		return errs[0]
	}
	if c.gen != s.tokenGen {
		s.mu.Unlock()
		return errors.New(errors.ErrAuthExpired, method+": token expired", nil)
	}
	return nil
}

func (c *Client) lookup(obj remote.ObjectID) (*node, error) {
	n, ok := c.server.nodes[obj.ID]
	if !ok || (obj.Type != 0 && n.item.Type != obj.Type) {
		return nil, errors.New(errors.ErrNotFound, obj.String(), nil)
	}
	if c.rootID != "" && !c.server.isWithin(obj.ID, c.rootID) {
		return nil, errors.New(errors.ErrPermissionDenied, obj.String()+" is outside of the token's folder", nil)
	}
	return n, nil
}

func (c *Client) itemOf(n *node) *remote.Item {
	item := n.item
	item.PathCollection = c.server.ancestors(n.item.ID, c.rootID)
	if c.rootID != "" && n.item.ID == c.rootID {
		item.PathCollection = nil
	}
	return &item
}

func (c *Client) require(allowed func([]remote.Scope) bool, what string) error {
	if c.scopes != nil && !allowed(c.scopes) {
		return errors.New(errors.ErrPermissionDenied, "token may not "+what, nil)
	}
	return nil
}

func (c *Client) GetItem(ctx context.Context, obj remote.ObjectID) (*remote.Item, error) {
	if err := c.begin(MethodGetItem); err != nil {
		return nil, err
	}
	defer c.server.mu.Unlock()
	n, err := c.lookup(obj)
	if err != nil {
		return nil, err
	}
	return c.itemOf(n), nil
}

func (c *Client) ListChildren(ctx context.Context, folderID string) ([]*remote.Item, error) {
	if err := c.begin(MethodListChildren); err != nil {
		return nil, err
	}
	defer c.server.mu.Unlock()
	n, err := c.lookup(remote.FolderID(folderID))
	if err != nil {
		return nil, err
	}
	items := make([]*remote.Item, 0, len(n.children))
	for _, id := range n.children {
		items = append(items, c.itemOf(c.server.nodes[id]))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (c *Client) CreateFolder(ctx context.Context, parentID, name string) (*remote.Item, error) {
	if err := c.begin(MethodCreateFolder); err != nil {
		return nil, err
	}
	defer c.server.mu.Unlock()
	if err := c.require(remote.CanWrite, "create folders"); err != nil {
		return nil, err
	}
	if _, err := c.lookup(remote.FolderID(parentID)); err != nil {
		return nil, err
	}
	n, err := c.server.create(parentID, name, remote.TypeFolder, nil)
	if err != nil {
		return nil, err
	}
	return c.itemOf(n), nil
}

func (c *Client) Delete(ctx context.Context, obj remote.ObjectID, etag string) error {
	if err := c.begin(MethodDelete); err != nil {
		return err
	}
	defer c.server.mu.Unlock()
	if err := c.require(remote.CanDelete, "delete items"); err != nil {
		return err
	}
	n, err := c.lookup(obj)
	if err != nil {
		return err
	}
	if etag != "" && etag != n.item.ETag {
		return errors.NewAPIError("etag mismatch for "+obj.String(), nil)
	}
	if obj.ID == RootID || obj.ID == c.rootID {
		return errors.New(errors.ErrPermissionDenied, "cannot delete the root folder", nil)
	}
	c.server.remove(obj.ID)
	return nil
}

func (c *Client) UploadFile(ctx context.Context, parentID, name string, r io.Reader, sha1 string) (*remote.Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIOError("failed to read upload", err)
	}
	if err := c.begin(MethodUploadFile); err != nil {
		return nil, err
	}
	defer c.server.mu.Unlock()
	if err := c.require(remote.CanWrite, "upload files"); err != nil {
		return nil, err
	}
	if err := verify(data, sha1); err != nil {
		return nil, err
	}
	if _, err := c.lookup(remote.FolderID(parentID)); err != nil {
		return nil, err
	}
	n, err := c.server.create(parentID, name, remote.TypeFile, data)
	if err != nil {
		return nil, err
	}
	return c.itemOf(n), nil
}

func (c *Client) UpdateFile(ctx context.Context, fileID string, r io.Reader, sha1 string) (*remote.Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIOError("failed to read upload", err)
	}
	if err := c.begin(MethodUpdateFile); err != nil {
		return nil, err
	}
	defer c.server.mu.Unlock()
	if err := c.require(remote.CanWrite, "upload files"); err != nil {
		return nil, err
	}
	if err := verify(data, sha1); err != nil {
		return nil, err
	}
	n, err := c.lookup(remote.FileID(fileID))
	if err != nil {
		return nil, err
	}
	replace(n, data)
	return c.itemOf(n), nil
}

func (c *Client) UploadChunked(ctx context.Context, dest remote.ObjectID, name, localPath string) (*remote.Item, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, errors.NewIOError("failed to read "+localPath, err)
	}
	if err := c.begin(MethodUploadChunked); err != nil {
		return nil, err
	}
	defer c.server.mu.Unlock()
	if err := c.require(remote.CanWrite, "upload files"); err != nil {
		return nil, err
	}
	n, err := c.lookup(dest)
	if err != nil {
		return nil, err
	}
	switch dest.Type {
	case remote.TypeFolder:
		n, err = c.server.create(dest.ID, name, remote.TypeFile, data)
		if err != nil {
			return nil, err
		}
	case remote.TypeFile:
		replace(n, data)
	default:
		return nil, errors.New(errors.ErrInvalidArgument, "untyped upload destination "+dest.ID, nil)
	}
	return c.itemOf(n), nil
}

func (c *Client) Download(ctx context.Context, fileID string, offset, length int64) (io.ReadCloser, error) {
	if err := c.begin(MethodDownload); err != nil {
		return nil, err
	}
	defer c.server.mu.Unlock()
	if err := c.require(remote.CanDownload, "download files"); err != nil {
		return nil, err
	}
	n, err := c.lookup(remote.FileID(fileID))
	if err != nil {
		return nil, err
	}
	size := int64(len(n.content))
	if offset < 0 || offset > size {
		return nil, errors.New(errors.ErrInvalidArgument, fmt.Sprintf("offset %d out of range", offset), nil)
	}
	end := size
	if length >= 0 && offset+length < size {
		end = offset + length
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(n.content[offset:end]))), nil
}

func (c *Client) DownloadURL(ctx context.Context, fileID string) (string, error) {
	if err := c.begin(MethodDownloadURL); err != nil {
		return "", err
	}
	defer c.server.mu.Unlock()
	if err := c.require(remote.CanDownload, "download files"); err != nil {
		return "", err
	}
	if _, err := c.lookup(remote.FileID(fileID)); err != nil {
		return "", err
	}
	return "https://fake.box.test/shared/static/" + uuid.NewString(), nil
}

func (c *Client) Copy(ctx context.Context, src remote.ObjectID, destParentID, destName string) (*remote.Item, error) {
	if err := c.begin(MethodCopy); err != nil {
		return nil, err
	}
	defer c.server.mu.Unlock()
	if err := c.require(remote.CanWrite, "copy items"); err != nil {
		return nil, err
	}
	if _, err := c.lookup(src); err != nil {
		return nil, err
	}
	if _, err := c.lookup(remote.FolderID(destParentID)); err != nil {
		return nil, err
	}
	if c.server.isWithin(destParentID, src.ID) {
		return nil, errors.New(errors.ErrInvalidArgument, "cannot copy "+src.String()+" into itself", nil)
	}
	n, err := c.server.copyTree(src.ID, destParentID, destName)
	if err != nil {
		return nil, err
	}
	return c.itemOf(n), nil
}

func (c *Client) DownscopeToken(ctx context.Context, scopes []remote.Scope, rootID string) (*oauth2.Token, error) {
	if err := c.begin(MethodDownscopeToken); err != nil {
		return nil, err
	}
	defer c.server.mu.Unlock()
	if _, err := c.lookup(remote.FolderID(rootID)); err != nil {
		return nil, err
	}
	token := &oauth2.Token{
		AccessToken: "downscoped-" + uuid.NewString(),
		TokenType:   "bearer",
		Expiry:      time.Now().Add(time.Hour),
	}
	c.server.grants[token.AccessToken] = grant{
		scopes: append([]remote.Scope{}, scopes...),
		rootID: rootID,
		gen:    c.server.tokenGen,
	}
	return token, nil
}

func (c *Client) WithToken(token *oauth2.Token) remote.Client {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[token.AccessToken]
	if !ok {
		return &Client{server: s, gen: -1}
	}
	return &Client{server: s, gen: g.gen, scopes: g.scopes, rootID: g.rootID}
}

// Refresh renews a full-access client. Downscoped clients cannot refresh.
func (c *Client) Refresh(ctx context.Context) error {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[MethodRefresh]++
	if c.scopes != nil || c.gen < 0 {
		return errors.New(errors.ErrAuthExpired, "downscoped tokens cannot be refreshed", nil)
	}
	c.gen = s.tokenGen
	return nil
}

func replace(n *node, data []byte) {
	n.content = bytes.Clone(data)
	n.item.Size = int64(len(data))
	n.item.SHA1 = sha1Hex(data)
	n.item.ModifiedAt = time.Now()
	n.item.ETag = uuid.NewString()
}
