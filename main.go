// moduletree prints the structural outline of the Python modules sharing a
// module boundary with an anchor file.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/moduletree/internal/config"
	"github.com/phobologic/moduletree/internal/model"
	"github.com/phobologic/moduletree/internal/toon"
	"github.com/phobologic/moduletree/internal/tree"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.Execute()
}

type rootFlags struct {
	configFile  string
	boundary    string
	exclude     []string
	skipTests   bool
	workers     int
	maxFileSize int64
	format      string
	verbose     bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f rootFlags

	cmd := &cobra.Command{
		Use:   "moduletree [flags] [anchor]",
		Short: "Outline the functions, classes and methods around a Python file",
		Long: `moduletree resolves the module boundary of an anchor file (its package,
directory or project), parses every Python file inside it with tree-sitter
and prints the top-level functions, classes and methods of each.

The anchor defaults to the current directory. Files that fail to parse are
skipped with a warning unless the failing file is the anchor itself.`,
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			anchor := "."
			if len(args) > 0 {
				anchor = args[0]
			}
			return runTree(cmd, anchor, &f, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("moduletree {{.Version}}\n")

	flags := cmd.Flags()
	flags.StringVarP(&f.configFile, "config", "c", "", "config file (default ./"+config.FileName+")")
	flags.StringVarP(&f.boundary, "boundary", "b", "", "boundary policy: file, directory, package or project")
	flags.StringSliceVarP(&f.exclude, "exclude", "x", nil, "glob of files to leave out (repeatable)")
	flags.BoolVar(&f.skipTests, "skip-tests", false, "leave out test modules other than the anchor")
	flags.IntVarP(&f.workers, "workers", "j", 0, "files parsed in parallel (0 = GOMAXPROCS)")
	flags.Int64Var(&f.maxFileSize, "max-file-size", 0, "fail files larger than this many bytes (siblings are skipped)")
	flags.StringVarP(&f.format, "format", "f", "", "output format: toon, yaml or text")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "log debug output to stderr")

	cmd.AddCommand(newInitCmd(stdout, stderr))
	return cmd
}

func runTree(cmd *cobra.Command, anchor string, f *rootFlags, stdout, stderr io.Writer) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	cfg, err := config.Load(wd, f.configFile)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, f, cfg); err != nil {
		return err
	}

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	t, err := tree.NewContext(cmd.Context(), anchor,
		tree.WithPolicy(cfg.Policy()),
		tree.WithExclude(cfg.Exclude...),
		tree.WithSkipTests(cfg.SkipTests),
		tree.WithMaxFileSize(cfg.MaxFileSize),
		tree.WithWorkers(cfg.Workers),
		tree.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	doc := &toon.Document{
		Root:   t.Root(),
		Anchor: t.Anchor(),
		Files:  t.Modules(),
	}
	for _, fl := range t.Failures() {
		doc.Skipped = append(doc.Skipped, toon.Skipped{Path: fl.Path, Reason: fl.Err.Error()})
	}

	out, err := render(cfg.Format, doc)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, out)
	return nil
}

// applyFlags overrides cfg with every flag set on the command line and
// validates the result.
func applyFlags(cmd *cobra.Command, f *rootFlags, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("boundary") {
		cfg.Boundary = f.boundary
	}
	if flags.Changed("exclude") {
		cfg.Exclude = append(cfg.Exclude, f.exclude...)
	}
	if flags.Changed("skip-tests") {
		cfg.SkipTests = f.skipTests
	}
	if flags.Changed("workers") {
		cfg.Workers = f.workers
	}
	if flags.Changed("max-file-size") {
		cfg.MaxFileSize = f.maxFileSize
	}
	if flags.Changed("format") {
		cfg.Format = f.format
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func render(format string, doc *toon.Document) (string, error) {
	switch format {
	case config.FormatYAML:
		return renderYAML(doc)
	case config.FormatText:
		return renderText(doc), nil
	default:
		return toon.Encode(doc), nil
	}
}

type yamlSkipped struct {
	Path   string `yaml:"path"`
	Reason string `yaml:"reason"`
}

type yamlDocument struct {
	Root    string             `yaml:"root"`
	Anchor  string             `yaml:"anchor,omitempty"`
	Files   []model.SourceFile `yaml:"files"`
	Skipped []yamlSkipped      `yaml:"skipped,omitempty"`
}

func renderYAML(doc *toon.Document) (string, error) {
	yd := yamlDocument{Root: doc.Root, Anchor: doc.Anchor, Files: doc.Files}
	for _, s := range doc.Skipped {
		yd.Skipped = append(yd.Skipped, yamlSkipped{Path: s.Path, Reason: s.Reason})
	}
	data, err := yaml.Marshal(yd)
	if err != nil {
		return "", fmt.Errorf("encoding yaml: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// renderText prints an indented outline, one file per block.
func renderText(doc *toon.Document) string {
	var b strings.Builder
	for i := range doc.Files {
		sf := &doc.Files[i]
		if i > 0 {
			b.WriteString("\n")
		}
		rel, err := filepath.Rel(doc.Root, sf.Name)
		if err != nil {
			rel = sf.Name
		}
		b.WriteString(filepath.ToSlash(rel))
		b.WriteString("\n")
		for j := range sf.Functions {
			writeFunc(&b, "  ", &sf.Functions[j])
		}
		writeClasses(&b, "  ", sf.Classes)
	}
	for _, s := range doc.Skipped {
		fmt.Fprintf(&b, "\nskipped %s: %s\n", s.Path, s.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeFunc(b *strings.Builder, indent string, f *model.Func) {
	for _, d := range f.Decorators {
		fmt.Fprintf(b, "%s@%s\n", indent, d)
	}
	kw := "def"
	if f.Has(model.Async) {
		kw = "async def"
	}
	fmt.Fprintf(b, "%s%s %s  [%d-%d]\n", indent, kw, f.Name, f.StartLine, f.EndLine)
}

func writeClasses(b *strings.Builder, indent string, classes []model.ClassDef) {
	for i := range classes {
		c := &classes[i]
		for _, d := range c.Decorators {
			fmt.Fprintf(b, "%s@%s\n", indent, d)
		}
		fmt.Fprintf(b, "%sclass %s  [%d-%d]\n", indent, c.Name, c.StartLine, c.EndLine)
		for j := range c.Methods {
			writeFunc(b, indent+"  ", &c.Methods[j])
		}
		writeClasses(b, indent+"  ", c.Classes)
	}
}
