// Package model defines core data structures for moduletree.
package model

// SymbolKind indicates the syntactic kind of a symbol.
type SymbolKind string

const (
	Class    SymbolKind = "class"
	Function SymbolKind = "function"
	Method   SymbolKind = "method"
)

// Modifier qualifies a definition without changing its identity.
type Modifier string

const (
	Async     Modifier = "async"
	Decorated Modifier = "decorated"
)

// Func is a function or method definition. Identity is the name, scoped by
// the enclosing class for methods.
type Func struct {
	Name       string     `yaml:"name"`
	Kind       SymbolKind `yaml:"kind"`
	Modifiers  []Modifier `yaml:"modifiers,omitempty"`
	Decorators []string   `yaml:"decorators,omitempty"`
	StartLine  int        `yaml:"start_line"`
	EndLine    int        `yaml:"end_line"`
}

// Has reports whether m is among the function's modifiers.
func (f *Func) Has(m Modifier) bool {
	for _, x := range f.Modifiers {
		if x == m {
			return true
		}
	}
	return false
}

// ClassDef is a class definition with the functions and classes defined
// directly in its body.
type ClassDef struct {
	Name       string     `yaml:"name"`
	Decorators []string   `yaml:"decorators,omitempty"`
	StartLine  int        `yaml:"start_line"`
	EndLine    int        `yaml:"end_line"`
	Methods    []Func     `yaml:"methods,omitempty"`
	Classes    []ClassDef `yaml:"classes,omitempty"`
}

// SourceFile holds the structural summary of a single source file.
// Name is the absolute path and the file's identity within a tree.
type SourceFile struct {
	Name      string     `yaml:"name"`
	Language  string     `yaml:"language"`
	Digest    string     `yaml:"digest"`
	Functions []Func     `yaml:"functions,omitempty"`
	Classes   []ClassDef `yaml:"classes,omitempty"`
}

// FunctionNames returns the names of the top-level functions in source order.
func (sf *SourceFile) FunctionNames() []string {
	names := make([]string, len(sf.Functions))
	for i := range sf.Functions {
		names[i] = sf.Functions[i].Name
	}
	return names
}

// ClassNames returns the names of the top-level classes in source order.
func (sf *SourceFile) ClassNames() []string {
	names := make([]string, len(sf.Classes))
	for i := range sf.Classes {
		names[i] = sf.Classes[i].Name
	}
	return names
}

// MethodNames returns "Class.method" for every method of every top-level
// class. Nested classes contribute "Outer.Inner.method".
func (sf *SourceFile) MethodNames() []string {
	var names []string
	var walk func(prefix string, classes []ClassDef)
	walk = func(prefix string, classes []ClassDef) {
		for i := range classes {
			c := &classes[i]
			qual := prefix + c.Name
			for j := range c.Methods {
				names = append(names, qual+"."+c.Methods[j].Name)
			}
			walk(qual+".", c.Classes)
		}
	}
	walk("", sf.Classes)
	return names
}

// Clone returns a deep copy of sf.
func (sf SourceFile) Clone() SourceFile {
	out := sf
	out.Functions = cloneFuncs(sf.Functions)
	out.Classes = cloneClasses(sf.Classes)
	return out
}

func cloneFuncs(in []Func) []Func {
	if in == nil {
		return nil
	}
	out := make([]Func, len(in))
	for i, f := range in {
		f.Modifiers = append([]Modifier(nil), f.Modifiers...)
		f.Decorators = append([]string(nil), f.Decorators...)
		out[i] = f
	}
	return out
}

func cloneClasses(in []ClassDef) []ClassDef {
	if in == nil {
		return nil
	}
	out := make([]ClassDef, len(in))
	for i, c := range in {
		c.Decorators = append([]string(nil), c.Decorators...)
		c.Methods = cloneFuncs(c.Methods)
		c.Classes = cloneClasses(c.Classes)
		out[i] = c
	}
	return out
}
