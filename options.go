package boxfs

import (
	"fmt"
	"math"
	"time"

	"github.com/Jumpaku/go-boxfs/remote"
	"github.com/sirupsen/logrus"
)

// DefaultBlockSize is the block size used when WithBlockSize is not given.
// Uploads of at least ten blocks are sent in chunks.
const DefaultBlockSize int64 = 5 << 20

type options struct {
	rootID     string
	rootPath   string
	pathMap    map[string]remote.ObjectID
	scopes     []remote.Scope
	blockSize  int64
	log        logrus.FieldLogger
	listingTTL time.Duration
	tempDir    string
}

// Option configures New.
type Option func(*options) error

// WithRootID roots the filesystem at the folder rootID. It takes precedence over WithRootPath.
func WithRootID(rootID string) Option {
	return func(o *options) error {
		o.rootID = rootID
		return nil
	}
}

// WithRootPath roots the filesystem at the folder found at path below the service's global root.
func WithRootPath(path string) Option {
	return func(o *options) error {
		o.rootPath = path
		return nil
	}
}

// WithPathMap seeds the resolution cache with known paths relative to the root.
// Entries without a type are assumed to be folders.
func WithPathMap(m map[string]remote.ObjectID) Option {
	return func(o *options) error {
		if o.pathMap == nil {
			o.pathMap = map[string]remote.ObjectID{}
		}
		for p, obj := range m {
			if obj.ID == "" {
				return fmt.Errorf("empty id for %q in path map: %w", p, ErrInvalidArgument)
			}
			o.pathMap[p] = obj
		}
		return nil
	}
}

// WithScopes restricts the session's token to scopes on the root folder.
func WithScopes(scopes ...remote.Scope) Option {
	return func(o *options) error {
		for _, s := range scopes {
			if _, err := remote.ParseScope(string(s)); err != nil {
				return fmt.Errorf("%v: %w", err, ErrInvalidArgument)
			}
		}
		o.scopes = append(o.scopes, scopes...)
		return nil
	}
}

// MaxBlockSize is the largest block size whose chunk threshold is representable.
const MaxBlockSize int64 = math.MaxInt64 / 10

func WithBlockSize(size int64) Option {
	return func(o *options) error {
		if size <= 0 {
			return fmt.Errorf("block size must be positive, got %d: %w", size, ErrInvalidArgument)
		}
		if size > MaxBlockSize {
			return fmt.Errorf("block size must be at most %d, got %d: %w", MaxBlockSize, size, ErrInvalidArgument)
		}
		o.blockSize = size
		return nil
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) error {
		o.log = log
		return nil
	}
}

// WithListingTTL bounds how long a folder listing is reused without refresh.
// Zero or negative keeps listings until they are invalidated.
func WithListingTTL(ttl time.Duration) Option {
	return func(o *options) error {
		o.listingTTL = ttl
		return nil
	}
}

// WithTempDir sets the directory large uploads are spooled to.
func WithTempDir(dir string) Option {
	return func(o *options) error {
		o.tempDir = dir
		return nil
	}
}

func newOptions(opts []Option) (*options, error) {
	o := &options{
		blockSize: DefaultBlockSize,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	return o, nil
}
