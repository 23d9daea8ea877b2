// Package goemitter renders resolved service models as Go client packages
// and writes them to disk.
package goemitter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/awsgen/internal/model"
)

// Options controls how services are rendered and written.
type Options struct {
	OutDir        string // required unless DryRun; packages go under <OutDir>/<package>/
	RuntimeImport string // import path of the transport runtime; DefaultRuntimeImport when empty
	Workers       int    // services rendered in parallel; GOMAXPROCS when <= 0
	Force         bool   // overwrite existing package directories
	DryRun        bool   // don't write, only plan
	Logger        *slog.Logger
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result returns the planned files and the rendered packages.
type Result struct {
	Packages []string
	Planned  []PlannedFile
}

// Emit renders and writes a single service.
func Emit(ctx context.Context, svc *model.ServiceModel, opts Options) (*Result, error) {
	if svc == nil {
		return nil, fmt.Errorf("goemitter: nil ServiceModel")
	}
	return EmitAll(ctx, []*model.ServiceModel{svc}, opts)
}

// EmitAll renders every service in parallel and writes the results. Nothing
// is written unless every service renders and no two services share a
// package name.
func EmitAll(ctx context.Context, services []*model.ServiceModel, opts Options) (*Result, error) {
	if len(services) == 0 {
		return nil, fmt.Errorf("goemitter: no services to emit")
	}
	if !opts.DryRun && strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("goemitter: OutDir is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	rendered := make([]*Artifacts, len(services))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, svc := range services {
		if svc == nil {
			return nil, fmt.Errorf("goemitter: nil ServiceModel at index %d", i)
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			art, err := Render(svc, opts)
			if err != nil {
				return err
			}
			logger.Debug("rendered service", "service", svc.Name, "package", art.Package,
				"shapes", len(svc.Shapes), "operations", len(svc.Operations), "errors", len(svc.ErrorShapeNames))
			rendered[i] = art
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := make(map[string][]byte)
	owner := make(map[string]string)
	res := &Result{}
	for _, art := range rendered {
		if prev, dup := owner[art.Package]; dup {
			return nil, fmt.Errorf("goemitter: services %q and %q both map to package %q", prev, art.Service, art.Package)
		}
		owner[art.Package] = art.Service
		res.Packages = append(res.Packages, art.Package)
		for rel, content := range art.Files() {
			files[rel] = content
		}
	}
	sort.Strings(res.Packages)

	// Plan in deterministic order
	rels := make([]string, 0, len(files))
	for p := range files {
		rels = append(rels, p)
	}
	sort.Strings(rels)
	for _, rel := range rels {
		res.Planned = append(res.Planned, PlannedFile{RelPath: rel, Size: len(files[rel]), Mode: 0o644})
	}

	if opts.DryRun {
		return res, nil
	}
	if err := writeFiles(opts.OutDir, res.Packages, files, opts.Force, logger); err != nil {
		return nil, err
	}
	return res, nil
}

func writeFiles(outDir string, packages []string, files map[string][]byte, force bool, logger *slog.Logger) error {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolve out dir: %w", err)
	}
	// Pre-flight every package before touching the disk.
	if !force {
		for _, pkg := range packages {
			dir := filepath.Join(abs, pkg)
			if st, err := os.Stat(dir); err == nil && st.IsDir() {
				entries, rerr := os.ReadDir(dir)
				if rerr == nil && len(entries) > 0 {
					return fmt.Errorf("goemitter: output directory %q is not empty (use --force to overwrite)", dir)
				}
			}
		}
	}
	rels := make([]string, 0, len(files))
	for rel := range files {
		rels = append(rels, rel)
	}
	sort.Strings(rels)
	for _, rel := range rels {
		p := filepath.Join(abs, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
		// atomic write via temp file + rename
		tmp := p + ".tmp-" + time.Now().Format("20060102150405")
		if err := os.WriteFile(tmp, files[rel], 0o644); err != nil {
			return fmt.Errorf("write temp %s: %w", rel, err)
		}
		if err := os.Rename(tmp, p); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("rename %s: %w", rel, err)
		}
		logger.Info("wrote file", "path", p, "bytes", len(files[rel]))
	}
	return nil
}
