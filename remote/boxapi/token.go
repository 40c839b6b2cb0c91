package boxapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Jumpaku/go-boxfs/errors"
	"github.com/Jumpaku/go-boxfs/remote"
	"golang.org/x/oauth2"
)

const (
	grantTypeTokenExchange = "urn:ietf:params:oauth:grant-type:token-exchange"
	tokenTypeAccessToken   = "urn:ietf:params:oauth:token-type:access_token"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// DownscopeToken exchanges the current token for one limited to scopes on the folder rootID.
func (c *Client) DownscopeToken(ctx context.Context, scopes []remote.Scope, rootID string) (*oauth2.Token, error) {
	token, err := c.Token()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(scopes))
	for _, s := range scopes {
		names = append(names, string(s))
	}
	form := url.Values{
		"grant_type":         {grantTypeTokenExchange},
		"subject_token":      {token.AccessToken},
		"subject_token_type": {tokenTypeAccessToken},
		"scope":              {strings.Join(names, " ")},
		"resource":           {c.itemURL(remote.FolderID(rootID))},
	}
	var out tokenResponse
	err = c.doJSON(ctx, request{
		method: http.MethodPost,
		url:    c.tokenURL,
		header: http.Header{"Content-Type": {"application/x-www-form-urlencoded"}},
		body:   strings.NewReader(form.Encode()),
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to downscope token: %w", err)
	}
	if out.AccessToken == "" {
		return nil, errors.NewAPIError("token exchange returned no access token", nil)
	}
	downscoped := &oauth2.Token{
		AccessToken: out.AccessToken,
		TokenType:   out.TokenType,
	}
	if out.ExpiresIn > 0 {
		downscoped.Expiry = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	return downscoped, nil
}

// WithToken returns a client of the same servers authorized by token.
// The returned client cannot refresh.
func (c *Client) WithToken(token *oauth2.Token) remote.Client {
	return &Client{
		apiURL:          c.apiURL,
		uploadURL:       c.uploadURL,
		tokenURL:        c.tokenURL,
		http:            c.http,
		partConcurrency: c.partConcurrency,
		source:          oauth2.StaticTokenSource(token),
		baseCtx:         c.baseCtx,
	}
}

// Refresh obtains a new access token with the refresh token.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.config == nil {
		return errors.New(errors.ErrAuthExpired, "client has no oauth2 config to refresh with", nil)
	}
	current, err := c.source.Token()
	if err != nil {
		return errors.New(errors.ErrAuthExpired, "failed to read current token", err)
	}
	if current.RefreshToken == "" {
		return errors.New(errors.ErrAuthExpired, "token has no refresh token", nil)
	}
	// An expired copy forces the token source to refresh.
	expired := &oauth2.Token{RefreshToken: current.RefreshToken, Expiry: time.Unix(1, 0)}
	refreshed, err := c.config.TokenSource(context.WithValue(ctx, oauth2.HTTPClient, c.http), expired).Token()
	if err != nil {
		return errors.New(errors.ErrAuthExpired, "failed to refresh token", err)
	}
	c.source = c.tokenSource(refreshed)
	return nil
}
