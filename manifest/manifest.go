// Package manifest handles obli.toml project configuration.
package manifest

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
)

// FileName is the manifest file looked for in a project directory.
const FileName = "obli.toml"

// SourceExt is the extension of obli source files.
const SourceExt = ".obli"

// ErrOutputCollision is returned when two sources would generate the same
// output file.
var ErrOutputCollision = errors.New("output collision")

//go:embed schema.cue
var schemaSource string

// Manifest represents an obli.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Source  Source  `toml:"source"`
	Build   Build   `toml:"build"`

	// Dir is the directory containing the obli.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name     string `toml:"name"`
	Version  string `toml:"version"`
	Requires string `toml:"requires"` // semver constraint on the obli version
}

// Source configures source file locations.
type Source struct {
	Dirs    []string `toml:"dirs"`
	Exclude []string `toml:"exclude"` // globs matched against paths relative to Dir
}

// Build configures batch transpilation.
type Build struct {
	Target string `toml:"target"`
	Output string `toml:"output"`
	Jobs   int    `toml:"jobs"` // 0 means one per CPU
	Record *bool  `toml:"record"`
}

// Load parses and validates the obli.toml file in dir.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes manifest text, validates it against the schema and fills
// in defaults. The returned manifest has no Dir.
func Parse(data []byte) (*Manifest, error) {
	var raw map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if m.Project.Requires != "" {
		if _, err := semver.NewConstraint(m.Project.Requires); err != nil {
			return nil, fmt.Errorf("project.requires %q: %w", m.Project.Requires, err)
		}
	}

	// Defaults
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if m.Build.Target == "" {
		m.Build.Target = "rust"
	}
	if m.Build.Output == "" {
		m.Build.Output = "out"
	}
	return &m, nil
}

// validate checks decoded TOML against the embedded CUE schema.
func validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("manifest schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Manifest")).Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid manifest:\n%s", strings.TrimRight(cueerrors.Details(err, nil), "\n"))
	}
	return nil
}

// FindAndLoad walks up from startDir to find an obli.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// CheckRequires reports whether version satisfies project.requires.
func (m *Manifest) CheckRequires(version string) error {
	if m.Project.Requires == "" {
		return nil
	}
	c, err := semver.NewConstraint(m.Project.Requires)
	if err != nil {
		return fmt.Errorf("project.requires %q: %w", m.Project.Requires, err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("obli version %q: %w", version, err)
	}
	if !c.Check(v) {
		return fmt.Errorf("project %s requires obli %s, this is %s", m.Project.Name, m.Project.Requires, version)
	}
	return nil
}

// Recording reports whether builds record their artifacts. Defaults to
// true.
func (m *Manifest) Recording() bool {
	return m.Build.Record == nil || *m.Build.Record
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// OutputDir returns the absolute output directory.
func (m *Manifest) OutputDir() string {
	return filepath.Join(m.Dir, m.Build.Output)
}

// StatePath returns the path to .obli/artifacts.db.
func (m *Manifest) StatePath() string {
	return filepath.Join(m.Dir, ".obli", "artifacts.db")
}

// SourceFiles lists every source file under the source directories, minus
// excluded ones, sorted. Missing source directories are skipped.
func (m *Manifest) SourceFiles() ([]string, error) {
	var files []string
	seen := map[string]bool{}
	for _, root := range m.SourceDirPaths() {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root && os.IsNotExist(err) {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() || filepath.Ext(path) != SourceExt || seen[path] {
				return nil
			}
			excluded, err := m.excluded(path)
			if err != nil || excluded {
				return err
			}
			seen[path] = true
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func (m *Manifest) excluded(path string) (bool, error) {
	rel, err := filepath.Rel(m.Dir, path)
	if err != nil {
		return false, err
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range m.Source.Exclude {
		ok, err := filepath.Match(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("source.exclude %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// OutputPath maps a source file to its generated file: the path relative
// to its source directory is kept, under OutputDir, with ext replacing
// the source extension.
func (m *Manifest) OutputPath(source, ext string) (string, error) {
	for _, root := range m.SourceDirPaths() {
		rel, err := filepath.Rel(root, source)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return filepath.Join(m.OutputDir(), strings.TrimSuffix(rel, SourceExt)+ext), nil
	}
	return "", fmt.Errorf("%s is not under a source directory", source)
}

// OutputPaths maps every source to its output path. Two sources with the
// same path relative to different source directories would overwrite each
// other's output, so that is an error.
func (m *Manifest) OutputPaths(sources []string, ext string) (map[string]string, error) {
	outs := make(map[string]string, len(sources))
	owner := make(map[string]string, len(sources))
	for _, src := range sources {
		out, err := m.OutputPath(src, ext)
		if err != nil {
			return nil, err
		}
		if prev, ok := owner[out]; ok && prev != src {
			return nil, fmt.Errorf("%w: %s and %s both generate %s",
				ErrOutputCollision, m.rel(prev), m.rel(src), m.rel(out))
		}
		owner[out] = src
		outs[src] = out
	}
	return outs, nil
}

func (m *Manifest) rel(path string) string {
	if r, err := filepath.Rel(m.Dir, path); err == nil {
		return filepath.ToSlash(r)
	}
	return path
}
