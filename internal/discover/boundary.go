package discover

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/phobologic/moduletree/internal/lang"
)

// Policy selects how far the boundary reaches from the anchor.
type Policy string

const (
	// PolicyFile indexes the anchor alone.
	PolicyFile Policy = "file"
	// PolicyDirectory indexes the files directly beside the anchor.
	PolicyDirectory Policy = "directory"
	// PolicyPackage indexes the outermost package containing the anchor.
	PolicyPackage Policy = "package"
	// PolicyProject indexes everything under the nearest project root.
	PolicyProject Policy = "project"
)

// DefaultPolicy is used when no policy is configured.
const DefaultPolicy = PolicyPackage

// ErrDirectoryAnchor is returned when PolicyFile is combined with a directory.
var ErrDirectoryAnchor = errors.New("file policy requires a file anchor")

// ParsePolicy converts a configuration string into a Policy.
// The empty string selects DefaultPolicy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case "":
		return DefaultPolicy, nil
	case PolicyFile, PolicyDirectory, PolicyPackage, PolicyProject:
		return p, nil
	}
	return "", fmt.Errorf("unknown boundary policy %q (want file, directory, package or project)", s)
}

// Scope is the enumeration mode of a resolved boundary.
type Scope int

const (
	// ScopeFile enumerates nothing beyond the anchor.
	ScopeFile Scope = iota
	// ScopeDir enumerates the root directory without descending.
	ScopeDir
	// ScopeTree enumerates the root directory recursively.
	ScopeTree
)

// Boundary is the resolved module boundary for an anchor.
type Boundary struct {
	Root   string // absolute directory
	Anchor string // absolute anchor file; empty for directory anchors
	Scope  Scope
	Policy Policy
}

// Resolve computes the boundary of anchor under policy. The anchor must
// exist; stat errors are returned as is.
func Resolve(anchor string, policy Policy) (Boundary, error) {
	abs, err := filepath.Abs(anchor)
	if err != nil {
		return Boundary{}, fmt.Errorf("resolving %s: %w", anchor, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Boundary{}, err
	}

	if info.IsDir() {
		if policy == PolicyFile {
			return Boundary{}, fmt.Errorf("%s: %w", abs, ErrDirectoryAnchor)
		}
		return Boundary{Root: abs, Scope: ScopeTree, Policy: policy}, nil
	}

	b := Boundary{Root: filepath.Dir(abs), Anchor: abs, Scope: ScopeDir, Policy: policy}
	l := lang.ForPath(abs)

	switch policy {
	case PolicyFile:
		b.Scope = ScopeFile
	case PolicyPackage:
		if root := packageRoot(b.Root, l.PackageMarker); root != "" {
			b.Root = root
			b.Scope = ScopeTree
		}
	case PolicyProject:
		if root := projectRoot(b.Root, l.ProjectMarkers); root != "" {
			b.Root = root
			b.Scope = ScopeTree
		}
	}
	return b, nil
}

// packageRoot walks up from dir while each directory holds marker and
// returns the outermost one, or "" if dir itself is not a package.
func packageRoot(dir, marker string) string {
	if marker == "" {
		return ""
	}
	root := ""
	for {
		if !exists(filepath.Join(dir, marker)) {
			return root
		}
		root = dir
		parent := filepath.Dir(dir)
		if parent == dir {
			return root
		}
		dir = parent
	}
}

// projectRoot returns the nearest ancestor of dir (inclusive) holding any
// of markers, or "".
func projectRoot(dir string, markers []string) string {
	for {
		for _, m := range markers {
			if exists(filepath.Join(dir, m)) {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
