package lang

import (
	"github.com/smacker/go-tree-sitter/python"
)

func init() {
	Languages["python"] = &Language{
		Name:           "python",
		Extensions:     []string{".py", ".pyi"},
		PackageMarker:  "__init__.py",
		ProjectMarkers: []string{"pyproject.toml", "setup.py", "setup.cfg", ".git"},
		lang:           python.GetLanguage(),
	}
}
