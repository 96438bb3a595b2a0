package tree

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/moduletree/internal/discover"
	"github.com/phobologic/moduletree/internal/extract"
	"github.com/phobologic/moduletree/internal/model"
)

func fixture(t *testing.T, rel ...string) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join(append([]string{"testdata"}, rel...)...))
	require.NoError(t, err)
	return path
}

func names(files []model.SourceFile) []string {
	out := make([]string, len(files))
	for i := range files {
		out[i] = files[i].Name
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestTreeIncludesAnchor(t *testing.T) {
	t.Parallel()

	anchor := fixture(t, "pkg", "sub", "helpers.py")
	tr, err := New(anchor)
	require.NoError(t, err)

	count := 0
	for _, f := range tr.Modules() {
		if f.Name == anchor {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, anchor, tr.Anchor())
}

func TestTreeOnSampleModule(t *testing.T) {
	t.Parallel()

	sample := fixture(t, "pkg", "sample.py")
	tr, err := New(sample)
	require.NoError(t, err)

	files := make(map[string]model.SourceFile)
	for _, f := range tr.Modules() {
		files[f.Name] = f
	}
	require.Contains(t, files, sample)

	sf := files[sample]
	assert.ElementsMatch(t, []string{
		"async_sample_with_decorator", "sample", "sample_with_decorator", "async_sample",
	}, sf.FunctionNames())
	assert.ElementsMatch(t, []string{"TestClassWithDecorator", "TestClass"}, sf.ClassNames())
	assert.ElementsMatch(t, []string{
		"TestClassWithDecorator.async_sample",
		"TestClassWithDecorator.sample_with_decorator",
		"TestClass.sample",
		"TestClass.async_sample",
		"TestClassWithDecorator.sample",
		"TestClass.async_sample_with_decorator",
		"TestClassWithDecorator.async_sample_with_decorator",
		"TestClass.sample_with_decorator",
	}, sf.MethodNames())
}

func TestTreePackageBoundary(t *testing.T) {
	t.Parallel()

	tr, err := New(fixture(t, "pkg", "sub", "helpers.py"))
	require.NoError(t, err)

	assert.Equal(t, fixture(t, "pkg"), tr.Root())
	assert.Equal(t, discover.PolicyPackage, tr.Policy())
	assert.Equal(t, []string{
		fixture(t, "pkg", "__init__.py"),
		fixture(t, "pkg", "sample.py"),
		fixture(t, "pkg", "sub", "__init__.py"),
		fixture(t, "pkg", "sub", "helpers.py"),
	}, names(tr.Modules()))
	assert.Empty(t, tr.Failures())
}

func TestTreeStandaloneFile(t *testing.T) {
	t.Parallel()

	anchor := fixture(t, "standalone", "lone.py")
	tr, err := New(anchor)
	require.NoError(t, err)

	assert.Equal(t, []string{anchor}, names(tr.Modules()))
	sf, ok := tr.Module(anchor)
	require.True(t, ok)
	assert.Equal(t, []string{"main"}, sf.FunctionNames())
}

func TestTreeFilePolicy(t *testing.T) {
	t.Parallel()

	anchor := fixture(t, "pkg", "sample.py")
	tr, err := New(anchor, WithPolicy(discover.PolicyFile))
	require.NoError(t, err)
	assert.Equal(t, []string{anchor}, names(tr.Modules()))
}

func TestTreeDirectoryPolicy(t *testing.T) {
	t.Parallel()

	tr, err := New(fixture(t, "pkg", "sample.py"), WithPolicy(discover.PolicyDirectory))
	require.NoError(t, err)
	assert.Equal(t, []string{
		fixture(t, "pkg", "__init__.py"),
		fixture(t, "pkg", "sample.py"),
	}, names(tr.Modules()))
}

func TestTreeModulesIdempotent(t *testing.T) {
	t.Parallel()

	tr, err := New(fixture(t, "pkg", "sample.py"))
	require.NoError(t, err)

	first := tr.Modules()
	second := tr.Modules()
	assert.Equal(t, first, second)

	// Mutating a returned snapshot must not leak into the tree.
	first[0].Name = "mutated"
	if len(first[1].Functions) > 0 {
		first[1].Functions[0].Name = "mutated"
	}
	assert.Equal(t, second, tr.Modules())
}

func TestTreeModuleRelativeLookup(t *testing.T) {
	t.Parallel()

	tr, err := New(filepath.Join("testdata", "pkg", "sample.py"))
	require.NoError(t, err)

	sf, ok := tr.Module(filepath.Join("testdata", "pkg", "sample.py"))
	require.True(t, ok)
	assert.Equal(t, fixture(t, "pkg", "sample.py"), sf.Name)

	_, ok = tr.Module(filepath.Join("testdata", "pkg", "missing.py"))
	assert.False(t, ok)
}

func TestTreeNotFound(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "missing.py")
	tr, err := New(missing)
	require.Error(t, err)
	assert.Nil(t, tr)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf), "want *NotFoundError, got %T", err)
	assert.Equal(t, missing, nf.Path)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestTreeSkipsMalformedSibling(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "__init__.py", "")
	writeFile(t, dir, "good.py", "def ok():\n    pass\n")
	writeFile(t, dir, "bad.py", "def broken(:\n    return\n")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	anchor := filepath.Join(dir, "good.py")
	tr, err := New(anchor, WithLogger(logger))
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "__init__.py"), anchor}, names(tr.Modules()))

	failures := tr.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, filepath.Join(dir, "bad.py"), failures[0].Path)
	assert.ErrorIs(t, failures[0].Err, extract.ErrSyntax)
	assert.Contains(t, logs.String(), "skipping file")
	assert.Contains(t, logs.String(), "bad.py")
}

func TestTreeMalformedAnchorIsFatal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "good.py", "def ok():\n    pass\n")
	writeFile(t, dir, "bad.py", "class Broken(\n")

	anchor := filepath.Join(dir, "bad.py")
	tr, err := New(anchor, WithLogger(quietLogger()))
	assert.Nil(t, tr)

	var pe *extract.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, anchor, pe.Path)
}

func TestTreeAnchorIncludedDespiteFilters(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "ignored.py\n")
	writeFile(t, dir, "ignored.py", "def hidden():\n    pass\n")
	writeFile(t, dir, "test_excluded.py", "def t():\n    pass\n")
	writeFile(t, dir, "other.py", "def other():\n    pass\n")
	writeFile(t, dir, "script", "def no_suffix():\n    pass\n")

	tests := []struct {
		name   string
		anchor string
		opts   []Option
	}{
		{"gitignore", "ignored.py", nil},
		{"glob", "other.py", []Option{WithExclude("other.py")}},
		{"skip tests", "test_excluded.py", []Option{WithSkipTests(true)}},
		{"no extension", "script", nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			anchor := filepath.Join(dir, tt.anchor)
			tr, err := New(anchor, tt.opts...)
			require.NoError(t, err)
			_, ok := tr.Module(anchor)
			assert.True(t, ok, "anchor %s missing from %v", anchor, names(tr.Modules()))
		})
	}
}

func TestTreeDirectoryAnchor(t *testing.T) {
	t.Parallel()

	tr, err := New(fixture(t, "pkg"))
	require.NoError(t, err)
	assert.Empty(t, tr.Anchor())
	assert.Equal(t, 4, tr.Len())

	_, err = New(fixture(t, "pkg"), WithPolicy(discover.PolicyFile))
	assert.ErrorIs(t, err, discover.ErrDirectoryAnchor)
}

func TestTreeParallelMatchesSequential(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "__init__.py", "")
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		writeFile(t, dir, name+".py", "def "+name+"():\n    pass\n\nclass C"+name+":\n    def m(self):\n        pass\n")
	}
	writeFile(t, dir, "zz_bad.py", "def (:\n")

	anchor := filepath.Join(dir, "a.py")
	seq, err := New(anchor, WithWorkers(1), WithLogger(quietLogger()))
	require.NoError(t, err)
	par, err := New(anchor, WithWorkers(4), WithLogger(quietLogger()))
	require.NoError(t, err)

	assert.Equal(t, seq.Modules(), par.Modules())
	assert.Len(t, par.Failures(), 1)
	assert.Equal(t, 7, par.Len())
}

func TestTreeCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewContext(ctx, fixture(t, "pkg", "sample.py"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTreeMaxFileSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "__init__.py", "")
	writeFile(t, dir, "small.py", "x = 1\n")
	writeFile(t, dir, "large.py", "def large():\n    return 'padding padding padding'\n")

	tr, err := New(filepath.Join(dir, "small.py"), WithMaxFileSize(16), WithLogger(quietLogger()))
	require.NoError(t, err)

	failures := tr.Failures()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, extract.ErrTooLarge)
}

func TestTreeOversizedAnchorIsFatal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "large.py", "def large():\n    return 'padding padding padding'\n")

	_, err := New(filepath.Join(dir, "large.py"), WithMaxFileSize(16), WithLogger(quietLogger()))
	require.Error(t, err)
	assert.ErrorIs(t, err, extract.ErrTooLarge)
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
