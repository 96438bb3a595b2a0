package tree

import (
	"log/slog"

	"github.com/phobologic/moduletree/internal/discover"
	"github.com/phobologic/moduletree/internal/extract"
)

type options struct {
	policy      discover.Policy
	exclude     []string
	skipTests   bool
	maxFileSize int64
	workers     int
	logger      *slog.Logger
}

func defaultOptions() options {
	return options{
		policy:      discover.DefaultPolicy,
		maxFileSize: extract.DefaultMaxFileSize,
		workers:     1,
		logger:      slog.Default(),
	}
}

// Option configures tree construction.
type Option func(*options)

// WithPolicy selects the boundary policy.
func WithPolicy(p discover.Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithExclude drops files matching any of the glob patterns. The anchor is
// indexed regardless.
func WithExclude(patterns ...string) Option {
	return func(o *options) {
		o.exclude = append(o.exclude, patterns...)
	}
}

// WithSkipTests drops sibling files that look like test modules.
func WithSkipTests(skip bool) Option {
	return func(o *options) {
		o.skipTests = skip
	}
}

// WithMaxFileSize fails files larger than n bytes.
func WithMaxFileSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxFileSize = n
		}
	}
}

// WithWorkers sets the number of files extracted in parallel.
// Zero or less uses GOMAXPROCS. The default is 1.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithLogger sets the logger used for skipped files and debug output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
