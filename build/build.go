// Package build transpiles every source file of an obli project. Files are
// independent, so each one gets its own pipeline run; runs proceed in
// parallel up to the manifest's job limit.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/obli/codegen"
	"github.com/chazu/obli/compiler/hash"
	"github.com/chazu/obli/manifest"
	"github.com/chazu/obli/pipeline"
	"github.com/chazu/obli/store"
)

var log = commonlog.GetLogger("obli.build")

// Builder runs batch builds for one project.
type Builder struct {
	Manifest *manifest.Manifest
	// Store records artifacts when non-nil.
	Store *store.Store
	// Jobs overrides the manifest's build.jobs when positive.
	Jobs int
}

// FileResult is the outcome for a single source file.
type FileResult struct {
	Source    string // path relative to the project directory
	Output    string // absolute path of the generated file, empty on failure
	Key       string // artifact key, empty unless recorded
	Preserved int
	Rewritten int
	Warnings  []string
	Err       error
	// Text is the file's source, kept for rendering Err.
	Text string
}

// Summary collects the results of a build in source order.
type Summary struct {
	Target string
	Files  []FileResult
}

// Failed returns the results that carry an error.
func (s *Summary) Failed() []FileResult {
	var out []FileResult
	for _, f := range s.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// ErrFailed is returned by Build when at least one file did not compile.
var ErrFailed = errors.New("build failed")

func (b *Builder) jobs() int {
	if b.Jobs > 0 {
		return b.Jobs
	}
	if b.Manifest.Build.Jobs > 0 {
		return b.Manifest.Build.Jobs
	}
	return runtime.GOMAXPROCS(0)
}

// Build transpiles every source file. A file that fails to compile does not
// stop the others; its error is kept in the summary and Build returns
// ErrFailed. I/O and store errors abort the build.
func (b *Builder) Build(ctx context.Context) (*Summary, error) {
	m := b.Manifest
	if err := m.CheckRequires(pipeline.Version); err != nil {
		return nil, err
	}
	backend, err := codegen.Lookup(m.Build.Target)
	if err != nil {
		return nil, err
	}
	files, err := m.SourceFiles()
	if err != nil {
		return nil, err
	}
	outputs, err := m.OutputPaths(files, backend.Extension())
	if err != nil {
		return nil, err
	}

	summary := &Summary{Target: backend.Name(), Files: make([]FileResult, len(files))}
	log.Infof("building %d files for %s with %d jobs", len(files), backend.Name(), b.jobs())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.jobs())
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := b.buildFile(gctx, path, outputs[path])
			if err != nil {
				return err
			}
			summary.Files[i] = *res
			if res.Err != nil {
				log.Infof("%s: %s", res.Source, res.Err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if failed := summary.Failed(); len(failed) > 0 {
		return summary, fmt.Errorf("%w: %d of %d files", ErrFailed, len(failed), len(files))
	}
	log.Infof("built %d files", len(files))
	return summary, nil
}

// buildFile runs the pipeline on one file. Compile errors go in the result;
// the returned error is reserved for failures that should stop the build.
func (b *Builder) buildFile(ctx context.Context, path, out string) (*FileResult, error) {
	m := b.Manifest
	rel, err := filepath.Rel(m.Dir, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fr := &FileResult{Source: rel, Text: string(data)}

	res, err := pipeline.Transpile(string(data), pipeline.Options{Target: m.Build.Target, Filename: rel})
	if err != nil {
		fr.Err = err
		return fr, nil
	}
	fr.Preserved, fr.Rewritten = res.Report.Preserved, res.Report.Rewritten
	fr.Warnings = res.Warnings

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(out, []byte(res.Code), 0o644); err != nil {
		return nil, err
	}
	fr.Output = out
	log.Debugf("%s -> %s", rel, out)

	if b.Store != nil {
		a := store.NewArtifact(rel, res.Target, pipeline.Version, hash.String(res.Program), res.Code, res.Report, res.Warnings)
		if err := b.Store.Put(ctx, a); err != nil {
			return nil, err
		}
		fr.Key = a.Key
	}
	return fr, nil
}
