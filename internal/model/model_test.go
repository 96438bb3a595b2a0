package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleFile() SourceFile {
	return SourceFile{
		Name: "/src/pkg/mod.py",
		Functions: []Func{
			{Name: "run", Kind: Function},
			{Name: "serve", Kind: Function, Modifiers: []Modifier{Async}},
		},
		Classes: []ClassDef{
			{
				Name:    "Outer",
				Methods: []Func{{Name: "a", Kind: Method}},
				Classes: []ClassDef{{Name: "Inner", Methods: []Func{{Name: "b", Kind: Method}}}},
			},
		},
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	sf := sampleFile()
	assert.Equal(t, []string{"run", "serve"}, sf.FunctionNames())
	assert.Equal(t, []string{"Outer"}, sf.ClassNames())
	assert.Equal(t, []string{"Outer.a", "Outer.Inner.b"}, sf.MethodNames())
}

func TestFuncHas(t *testing.T) {
	t.Parallel()

	sf := sampleFile()
	assert.False(t, sf.Functions[0].Has(Async))
	assert.True(t, sf.Functions[1].Has(Async))
	assert.False(t, sf.Functions[1].Has(Decorated))
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := sampleFile()
	cp := orig.Clone()
	assert.Equal(t, orig, cp)

	cp.Functions[1].Modifiers[0] = Decorated
	cp.Classes[0].Methods[0].Name = "changed"
	cp.Classes[0].Classes[0].Name = "changed"

	assert.Equal(t, sampleFile(), orig)
}
