// Package tree builds a ModuleTree: the structural summaries of every
// source file sharing a module boundary with an anchor file.
//
// A Tree is computed eagerly by New and never changes afterwards, so it is
// safe for concurrent readers.
package tree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/phobologic/moduletree/internal/discover"
	"github.com/phobologic/moduletree/internal/extract"
	"github.com/phobologic/moduletree/internal/lang"
	"github.com/phobologic/moduletree/internal/model"
)

// NotFoundError is returned when the anchor path is missing or unreadable.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("anchor %s not found: %v", e.Path, e.Err)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// Failure records a sibling file that was skipped during construction.
type Failure struct {
	Path string
	Err  error
}

// Tree is an immutable snapshot of a module boundary.
type Tree struct {
	anchor   string
	boundary discover.Boundary
	files    []model.SourceFile
	index    map[string]int
	failures []Failure
}

// New builds the tree around anchor. See NewContext.
func New(anchor string, opts ...Option) (*Tree, error) {
	return NewContext(context.Background(), anchor, opts...)
}

// NewContext resolves the boundary of anchor, extracts every file inside it
// and returns the resulting tree.
//
// A missing anchor yields a *NotFoundError. An anchor that fails to parse
// yields its *extract.ParseError. Siblings that fail to read or parse are
// left out, recorded in Failures and logged; they never abort construction.
func NewContext(ctx context.Context, anchor string, opts ...Option) (*Tree, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	b, err := discover.Resolve(anchor, o.policy)
	if err != nil {
		if errors.Is(err, discover.ErrDirectoryAnchor) {
			return nil, err
		}
		return nil, &NotFoundError{Path: anchor, Err: err}
	}

	paths, err := discover.Files(b, discover.Options{Exclude: o.exclude, SkipTests: o.skipTests})
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	paths = includeAnchor(paths, b.Anchor)

	o.logger.Debug("resolved module boundary",
		slog.String("anchor", b.Anchor),
		slog.String("root", b.Root),
		slog.String("policy", string(b.Policy)),
		slog.Int("files", len(paths)))

	results, err := extractAll(ctx, paths, o)
	if err != nil {
		return nil, err
	}

	t := &Tree{
		anchor:   b.Anchor,
		boundary: b,
		index:    make(map[string]int, len(paths)),
	}
	for i, r := range results {
		path := paths[i]
		if r.err != nil {
			if path == b.Anchor {
				if r.readErr {
					return nil, &NotFoundError{Path: anchor, Err: r.err}
				}
				return nil, r.err
			}
			o.logger.Warn("skipping file", slog.String("path", path), slog.Any("error", r.err))
			t.failures = append(t.failures, Failure{Path: path, Err: r.err})
			continue
		}
		t.index[path] = len(t.files)
		t.files = append(t.files, *r.file)
	}

	return t, nil
}

// Modules returns the summaries of every indexed file, sorted by name.
// Each call returns a fresh copy of the same snapshot.
func (t *Tree) Modules() []model.SourceFile {
	out := make([]model.SourceFile, len(t.files))
	for i := range t.files {
		out[i] = t.files[i].Clone()
	}
	return out
}

// Module returns the summary of the file at path, which may be relative to
// the working directory.
func (t *Tree) Module(path string) (model.SourceFile, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return model.SourceFile{}, false
	}
	i, ok := t.index[abs]
	if !ok {
		return model.SourceFile{}, false
	}
	return t.files[i].Clone(), true
}

// Len returns the number of indexed files.
func (t *Tree) Len() int {
	return len(t.files)
}

// Anchor returns the absolute anchor path, or "" for a directory anchor.
func (t *Tree) Anchor() string {
	return t.anchor
}

// Root returns the boundary's root directory.
func (t *Tree) Root() string {
	return t.boundary.Root
}

// Policy returns the boundary policy the tree was built with.
func (t *Tree) Policy() discover.Policy {
	return t.boundary.Policy
}

// Failures returns the sibling files skipped during construction.
func (t *Tree) Failures() []Failure {
	return append([]Failure(nil), t.failures...)
}

// includeAnchor returns paths with anchor present, keeping the order sorted.
func includeAnchor(paths []string, anchor string) []string {
	if anchor == "" {
		return paths
	}
	i := sort.SearchStrings(paths, anchor)
	if i < len(paths) && paths[i] == anchor {
		return paths
	}
	paths = append(paths, "")
	copy(paths[i+1:], paths[i:])
	paths[i] = anchor
	return paths
}

type result struct {
	file    *model.SourceFile
	err     error
	readErr bool
}

// extractAll parses paths with up to o.workers goroutines. Each worker owns
// its extractors; results land at the index of their path. Only context
// cancellation is returned as an error.
func extractAll(ctx context.Context, paths []string, o options) ([]result, error) {
	results := make([]result, len(paths))
	if len(paths) == 0 {
		return results, nil
	}

	numWorkers := o.workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(paths) {
		numWorkers = len(paths)
	}

	work := make(chan int, len(paths))
	for i := range paths {
		work <- i
	}
	close(work)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < numWorkers; w++ {
		g.Go(func() error {
			extractors := make(map[string]*extract.Extractor)
			defer func() {
				for _, e := range extractors {
					e.Close()
				}
			}()

			for idx := range work {
				if err := gctx.Err(); err != nil {
					return err
				}
				path := paths[idx]

				l := lang.ForPath(path)
				e, ok := extractors[l.Name]
				if !ok {
					e = extract.New(l, extract.WithMaxFileSize(o.maxFileSize))
					extractors[l.Name] = e
				}

				source, err := os.ReadFile(path)
				if err != nil {
					results[idx] = result{err: fmt.Errorf("reading %s: %w", path, err), readErr: true}
					continue
				}
				sf, err := e.Extract(gctx, source, path)
				results[idx] = result{file: sf, err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// A cancelled parse surfaces as a per-file error; report the cause instead.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
