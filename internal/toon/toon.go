// Package toon implements TOON (Token-Oriented Object Notation) encoding
// of a module tree.
package toon

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/phobologic/moduletree/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Skipped is a file left out of the tree, with the reason.
type Skipped struct {
	Path   string
	Reason string
}

// Document is everything Encode renders. Paths in Files and Skipped are
// absolute and shown relative to Root.
type Document struct {
	Root    string
	Anchor  string
	Files   []model.SourceFile
	Skipped []Skipped
}

// Encode converts a Document into TOON format.
func Encode(doc *Document) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(doc.Root)))
	if doc.Anchor != "" {
		parts = append(parts, fmt.Sprintf("anchor: %s", encodeValue(doc.rel(doc.Anchor))))
	}

	var fileRows [][]string
	for i := range doc.Files {
		sf := &doc.Files[i]
		fileRows = append(fileRows, []string{
			doc.rel(sf.Name),
			sf.Language,
			fmt.Sprintf("%d", len(sf.Functions)),
			fmt.Sprintf("%d", len(sf.Classes)),
			sf.Digest,
		})
	}
	parts = append(parts, formatTabular("files", []string{"path", "language", "functions", "classes", "digest"}, fileRows))

	var symbolRows [][]string
	for i := range doc.Files {
		sf := &doc.Files[i]
		path := doc.rel(sf.Name)
		for j := range sf.Functions {
			symbolRows = append(symbolRows, funcRow(path, "", &sf.Functions[j]))
		}
		symbolRows = appendClassRows(symbolRows, path, "", sf.Classes)
	}
	parts = append(parts, formatTabular("symbols", []string{"file", "name", "kind", "line", "end", "modifiers"}, symbolRows))

	if len(doc.Skipped) > 0 {
		var skipRows [][]string
		for _, s := range doc.Skipped {
			skipRows = append(skipRows, []string{doc.rel(s.Path), s.Reason})
		}
		parts = append(parts, formatTabular("skipped", []string{"path", "reason"}, skipRows))
	}

	return strings.Join(parts, "\n")
}

func appendClassRows(rows [][]string, path, prefix string, classes []model.ClassDef) [][]string {
	for i := range classes {
		c := &classes[i]
		qual := prefix + c.Name
		var mods string
		if len(c.Decorators) > 0 {
			mods = string(model.Decorated)
		}
		rows = append(rows, []string{
			path,
			qual,
			string(model.Class),
			fmt.Sprintf("%d", c.StartLine),
			fmt.Sprintf("%d", c.EndLine),
			mods,
		})
		for j := range c.Methods {
			rows = append(rows, funcRow(path, qual+".", &c.Methods[j]))
		}
		rows = appendClassRows(rows, path, qual+".", c.Classes)
	}
	return rows
}

func funcRow(path, prefix string, f *model.Func) []string {
	mods := make([]string, len(f.Modifiers))
	for i, m := range f.Modifiers {
		mods[i] = string(m)
	}
	return []string{
		path,
		prefix + f.Name,
		string(f.Kind),
		fmt.Sprintf("%d", f.StartLine),
		fmt.Sprintf("%d", f.EndLine),
		strings.Join(mods, " "),
	}
}

func (doc *Document) rel(path string) string {
	if doc.Root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(doc.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
