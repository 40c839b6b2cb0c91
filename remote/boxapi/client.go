// Package boxapi implements remote.Client over the Box Content API.
//
// Requests are authorized with an OAuth 2.0 token. Non-2xx responses are
// turned into *googleapi.Error by googleapi.CheckResponse and classified by
// status code with errors.FromAPI, so that a rejected token surfaces as
// errors.ErrAuthExpired.
package boxapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/Jumpaku/go-boxfs/errors"
	"github.com/Jumpaku/go-boxfs/remote"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

const (
	DefaultAPIURL    = "https://api.box.com/2.0"
	DefaultUploadURL = "https://upload.box.com/api/2.0"
	DefaultAuthURL   = "https://account.box.com/api/oauth2/authorize"
	DefaultTokenURL  = "https://api.box.com/oauth2/token"

	// RootID is the ID of the "All Files" folder.
	RootID = "0"

	itemFields = "type,id,name,size,created_at,modified_at,etag,sha1,path_collection"
)

// Endpoint is Box's OAuth 2.0 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:   DefaultAuthURL,
	TokenURL:  DefaultTokenURL,
	AuthStyle: oauth2.AuthStyleInParams,
}

// Client talks to the Box Content API.
type Client struct {
	apiURL    string
	uploadURL string
	tokenURL  string
	http      *http.Client
	// partConcurrency bounds the number of parts uploaded at once.
	partConcurrency int

	mu     sync.Mutex
	config *oauth2.Config
	source oauth2.TokenSource
	// baseCtx carries the HTTP client used by token refreshes.
	baseCtx context.Context
}

var _ remote.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.http = c
	}
}

// WithBaseURLs points the client at other API and upload servers.
func WithBaseURLs(apiURL, uploadURL string) Option {
	return func(client *Client) {
		client.apiURL = apiURL
		client.uploadURL = uploadURL
	}
}

// WithTokenURL sets the endpoint used to exchange tokens for downscoped ones.
func WithTokenURL(tokenURL string) Option {
	return func(client *Client) {
		client.tokenURL = tokenURL
	}
}

// WithPartConcurrency sets how many parts of a chunked upload are sent at once.
func WithPartConcurrency(n int) Option {
	return func(client *Client) {
		if n > 0 {
			client.partConcurrency = n
		}
	}
}

// New returns a client authorized by token. When config is not nil the token is
// refreshed with it, otherwise the client cannot refresh.
func New(ctx context.Context, config *oauth2.Config, token *oauth2.Token, opts ...Option) *Client {
	c := &Client{
		apiURL:          DefaultAPIURL,
		uploadURL:       DefaultUploadURL,
		tokenURL:        DefaultTokenURL,
		http:            http.DefaultClient,
		partConcurrency: 4,
		config:          config,
	}
	if config != nil && config.Endpoint.TokenURL != "" {
		c.tokenURL = config.Endpoint.TokenURL
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseCtx = context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, c.http)
	c.source = c.tokenSource(token)
	return c
}

func (c *Client) tokenSource(token *oauth2.Token) oauth2.TokenSource {
	if c.config == nil {
		return oauth2.StaticTokenSource(token)
	}
	return c.config.TokenSource(c.baseCtx, token)
}

func (c *Client) RootID() string {
	return RootID
}

// Token returns the current token, refreshing it if it has expired.
func (c *Client) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	source := c.source
	c.mu.Unlock()
	token, err := source.Token()
	if err != nil {
		return nil, errors.New(errors.ErrAuthExpired, "failed to obtain token", err)
	}
	return token, nil
}

type request struct {
	method string
	url    string
	query  url.Values
	header http.Header
	body   io.Reader
}

// do sends r and checks the response status. The caller closes the body.
func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	return c.doWith(ctx, c.http, r)
}

func (c *Client) doWith(ctx context.Context, client *http.Client, r request) (*http.Response, error) {
	u := r.url
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return nil, errors.New(errors.ErrInvalidArgument, "failed to build request", err)
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	token, err := c.Token()
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)

	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.NewIOError(fmt.Sprintf("%s %s failed", r.method, r.url), err)
	}
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return resp, nil
	}
	if err := googleapi.CheckResponse(resp); err != nil {
		resp.Body.Close()
		return nil, errors.FromAPI(fmt.Sprintf("%s %s", r.method, r.url), err)
	}
	return resp, nil
}

// doJSON sends r and decodes the response body into out, if out is not nil.
func (c *Client) doJSON(ctx context.Context, r request, out any) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, err := io.Copy(io.Discard, resp.Body)
		if err != nil {
			return errors.NewIOError("failed to read response", err)
		}
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewAPIError(fmt.Sprintf("failed to decode response of %s %s", r.method, r.url), err)
	}
	return nil
}

func jsonBody(v any) (io.Reader, http.Header, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, nil, errors.New(errors.ErrInvalidArgument, "failed to encode request", err)
	}
	return bytes.NewReader(b), http.Header{"Content-Type": {"application/json"}}, nil
}
