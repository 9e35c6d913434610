package auth

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// refreshKey is the single slot: credential refresh is process-wide, not
// per-key.
const refreshKey = "token-refresh"

// RefreshCoordinator serializes concurrent credential refreshes into one
// in-flight operation. All callers that arrive while a refresh is running
// receive its settled result, success or error; a second refresh with the
// old token could otherwise clobber the first refresh's new token or burn
// rate limits. The slot resets once the operation settles.
type RefreshCoordinator struct {
	group singleflight.Group
}

func (rc *RefreshCoordinator) Do(ctx context.Context, fn func(ctx context.Context) (*Credential, error)) (*Credential, error) {
	v, err, _ := rc.group.Do(refreshKey, func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Credential), nil
}
