// Package extract builds structural summaries of source files using
// tree-sitter. Only module-scope functions and classes are reported, with
// each class carrying the functions and classes defined directly in its body.
package extract

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/moduletree/internal/lang"
	"github.com/phobologic/moduletree/internal/model"
)

// DefaultMaxFileSize is the size limit applied when none is configured.
const DefaultMaxFileSize = 1_000_000 // 1 MB

// Extractor turns source text into a model.SourceFile. It owns a
// tree-sitter parser and must not be shared between goroutines.
type Extractor struct {
	lang        *lang.Language
	parser      *sitter.Parser
	maxFileSize int64
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxFileSize rejects sources larger than n bytes. Values <= 0 keep the default.
func WithMaxFileSize(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxFileSize = n
		}
	}
}

// New creates an Extractor for l.
func New(l *lang.Language, opts ...Option) *Extractor {
	e := &Extractor{
		lang:        l,
		parser:      l.NewParser(),
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Close releases the underlying parser.
func (e *Extractor) Close() {
	e.parser.Close()
}

// Extract parses source and returns its structural summary. path is used
// only as the SourceFile's identity. Malformed source yields a *ParseError.
func (e *Extractor) Extract(ctx context.Context, source []byte, path string) (*model.SourceFile, error) {
	if int64(len(source)) > e.maxFileSize {
		return nil, &ParseError{
			Path: path,
			Err:  fmt.Errorf("%w: size %d exceeds limit %d", ErrTooLarge, len(source), e.maxFileSize),
		}
	}
	if !utf8.Valid(source) {
		return nil, &ParseError{Path: path, Err: ErrInvalidEncoding}
	}

	digest, err := Digest(source)
	if err != nil {
		return nil, fmt.Errorf("hashing %s: %w", path, err)
	}

	sf := &model.SourceFile{
		Name:     path,
		Language: e.lang.Name,
		Digest:   digest,
	}
	if len(source) == 0 {
		return sf, nil
	}

	tree, err := e.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer tree.Close()

	root := tree.RootNode()
	if bad := malformed(root, source); bad != nil {
		return nil, &ParseError{
			Path:   path,
			Line:   int(bad.StartPoint().Row) + 1,
			Column: int(bad.StartPoint().Column) + 1,
			Err:    ErrSyntax,
		}
	}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		def, decorators := unwrapDecorated(root.NamedChild(i), source)
		if def == nil {
			continue
		}
		switch def.Type() {
		case "function_definition":
			sf.Functions = append(sf.Functions, buildFunc(def, decorators, model.Function, source))
		case "class_definition":
			sf.Classes = append(sf.Classes, buildClass(def, decorators, source))
		}
	}

	return sf, nil
}

// File reads path and extracts it with a one-off Extractor for its language.
func File(ctx context.Context, path string, opts ...Option) (*model.SourceFile, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	e := New(lang.ForPath(path), opts...)
	defer e.Close()
	return e.Extract(ctx, source, path)
}

// unwrapDecorated returns the definition node behind a decorated_definition
// together with its decorator names. Other nodes are returned unchanged.
func unwrapDecorated(node *sitter.Node, source []byte) (*sitter.Node, []string) {
	if node == nil || node.Type() != "decorated_definition" {
		return node, nil
	}

	var decorators []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "decorator" {
			decorators = append(decorators, decoratorName(child, source))
		}
	}
	return node.ChildByFieldName("definition"), decorators
}

// decoratorName returns "name" for @name, @pkg.name and @name(args).
func decoratorName(dec *sitter.Node, source []byte) string {
	if dec.NamedChildCount() == 0 {
		return ""
	}
	expr := dec.NamedChild(0)
	if expr.Type() == "call" {
		if fn := expr.ChildByFieldName("function"); fn != nil {
			expr = fn
		}
	}
	return lang.NodeText(expr, source)
}

func buildFunc(node *sitter.Node, decorators []string, kind model.SymbolKind, source []byte) model.Func {
	fn := model.Func{
		Kind:       kind,
		Decorators: decorators,
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
	}
	if name := node.ChildByFieldName("name"); name != nil {
		fn.Name = lang.NodeText(name, source)
	}
	if isAsync(node) {
		fn.Modifiers = append(fn.Modifiers, model.Async)
	}
	if len(decorators) > 0 {
		fn.Modifiers = append(fn.Modifiers, model.Decorated)
	}
	return fn
}

func buildClass(node *sitter.Node, decorators []string, source []byte) model.ClassDef {
	cls := model.ClassDef{
		Decorators: decorators,
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
	}
	if name := node.ChildByFieldName("name"); name != nil {
		cls.Name = lang.NodeText(name, source)
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return cls
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		def, decs := unwrapDecorated(body.NamedChild(i), source)
		if def == nil {
			continue
		}
		switch def.Type() {
		case "function_definition":
			cls.Methods = append(cls.Methods, buildFunc(def, decs, model.Method, source))
		case "class_definition":
			cls.Classes = append(cls.Classes, buildClass(def, decs, source))
		}
	}
	return cls
}

// isAsync reports whether a function_definition carries the async keyword,
// which the python grammar exposes as an anonymous leading child.
func isAsync(node *sitter.Node) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		switch node.Child(i).Type() {
		case "async":
			return true
		case "def":
			return false
		}
	}
	return false
}

// keywords holds the Python hard keywords, none of which may name a
// definition.
var keywords = map[string]struct{}{
	"False": {}, "None": {}, "True": {}, "and": {}, "as": {}, "assert": {},
	"async": {}, "await": {}, "break": {}, "class": {}, "continue": {},
	"def": {}, "del": {}, "elif": {}, "else": {}, "except": {}, "finally": {},
	"for": {}, "from": {}, "global": {}, "if": {}, "import": {}, "in": {},
	"is": {}, "lambda": {}, "nonlocal": {}, "not": {}, "or": {}, "pass": {},
	"raise": {}, "return": {}, "try": {}, "while": {}, "with": {}, "yield": {},
}

// malformed returns the earliest node that makes source invalid, or nil.
// Besides ERROR and MISSING nodes this catches what tree-sitter recovers
// from silently: a block holding no statement (reported at the statement
// that owns it) and a definition named after a keyword.
func malformed(n *sitter.Node, source []byte) *sitter.Node {
	switch {
	case n.Type() == "ERROR" || n.IsMissing():
		return n
	case n.Type() == "block" && emptyBlock(n):
		if owner := n.Parent(); owner != nil {
			return owner
		}
		return n
	case n.Type() == "function_definition" || n.Type() == "class_definition":
		if name := n.ChildByFieldName("name"); name != nil {
			if _, ok := keywords[lang.NodeText(name, source)]; ok {
				return name
			}
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if bad := malformed(n.Child(i), source); bad != nil {
			return bad
		}
	}
	return nil
}

// emptyBlock reports whether a block has no statements. Comments do not count.
func emptyBlock(block *sitter.Node) bool {
	for i := 0; i < int(block.NamedChildCount()); i++ {
		if block.NamedChild(i).Type() != "comment" {
			return false
		}
	}
	return true
}
