package boxfs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/Jumpaku/go-boxfs/remote"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// auth owns the session-wide authorization state.
//
// Calls read the current client without holding the lock during the remote call.
// A refresh builds the replacement client completely before publishing it, so a
// half-refreshed client is never visible. gen counts published clients and lets
// a caller whose call failed with an old client skip a refresh someone else did.
type auth struct {
	mu       sync.RWMutex
	original remote.Client
	client   remote.Client
	gen      uint64
	scopes   []remote.Scope
	rootID   string

	refreshing singleflight.Group
	log        logrus.FieldLogger
}

func newAuth(client remote.Client, log logrus.FieldLogger) *auth {
	return &auth{original: client, client: client, log: log}
}

func (a *auth) current() (remote.Client, uint64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client, a.gen
}

// restrict narrows the authorization to scopes on the folder rootID.
func (a *auth) restrict(ctx context.Context, scopes []remote.Scope, rootID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scopes = append([]remote.Scope{}, scopes...)
	a.rootID = rootID
	client, err := a.downscoped(ctx)
	if err != nil {
		return err
	}
	a.client = client
	a.gen++
	return nil
}

func (a *auth) downscoped(ctx context.Context) (remote.Client, error) {
	if len(a.scopes) == 0 {
		return a.original, nil
	}
	token, err := a.original.DownscopeToken(ctx, a.scopes, a.rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to downscope token: %w", err)
	}
	return a.original.WithToken(token), nil
}

// refresh renews the authorization unless it was already renewed after failedGen.
func (a *auth) refresh(ctx context.Context, failedGen uint64) error {
	// Callers that failed on the same generation share one refresh.
	_, err, _ := a.refreshing.Do(strconv.FormatUint(failedGen, 10), func() (any, error) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.gen != failedGen {
			return nil, nil
		}
		a.log.WithField("generation", a.gen).Warn("authorization expired, refreshing token")
		if err := a.original.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("failed to refresh token: %w", err)
		}
		client, err := a.downscoped(ctx)
		if err != nil {
			return nil, err
		}
		a.client = client
		a.gen++
		return nil, nil
	})
	return err
}

// call runs fn with the current client. If fn fails with ErrAuthExpired the
// authorization is refreshed and fn runs once more; a second failure is returned.
func call[T any](ctx context.Context, a *auth, fn func(remote.Client) (T, error)) (T, error) {
	client, gen := a.current()
	v, err := fn(client)
	if !errors.Is(err, ErrAuthExpired) {
		return v, err
	}
	if err := a.refresh(ctx, gen); err != nil {
		var zero T
		return zero, err
	}
	client, _ = a.current()
	return fn(client)
}

func do(ctx context.Context, a *auth, fn func(remote.Client) error) error {
	_, err := call(ctx, a, func(c remote.Client) (struct{}, error) {
		return struct{}{}, fn(c)
	})
	return err
}
