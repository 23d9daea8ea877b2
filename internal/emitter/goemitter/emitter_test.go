package goemitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/awsgen/internal/model"
)

func TestEmit_DryRunPlan(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	res, err := Emit(context.Background(), thingsModel(t), Options{OutDir: dir, DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"things"}, res.Packages)
	var rels []string
	for _, pf := range res.Planned {
		rels = append(rels, pf.RelPath)
		assert.Positive(t, pf.Size)
		assert.Equal(t, os.FileMode(0o644), pf.Mode)
	}
	assert.Equal(t, []string{"things/api.go", "things/errors.go", "things/shapes.go"}, rels)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEmit_DryRunWithoutOutDir(t *testing.T) {
	t.Parallel()
	_, err := Emit(context.Background(), thingsModel(t), Options{DryRun: true})
	require.NoError(t, err)
}

func TestEmit_WritesFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	res, err := Emit(context.Background(), thingsModel(t), Options{OutDir: dir})
	require.NoError(t, err)
	for _, pf := range res.Planned {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(pf.RelPath)))
		require.NoError(t, err)
		assert.Len(t, data, pf.Size)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "things", "*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestEmit_RequiresOutDir(t *testing.T) {
	t.Parallel()
	_, err := Emit(context.Background(), thingsModel(t), Options{})
	require.ErrorContains(t, err, "OutDir is required")
}

func TestEmit_NilModel(t *testing.T) {
	t.Parallel()
	_, err := Emit(context.Background(), nil, Options{OutDir: t.TempDir()})
	require.Error(t, err)
	_, err = EmitAll(context.Background(), nil, Options{OutDir: t.TempDir()})
	require.Error(t, err)
}

func TestEmit_NonEmptyDirRequiresForce(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	pkgDir := filepath.Join(dir, "things")
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "keep.txt"), []byte("x"), 0o644))

	_, err := Emit(context.Background(), thingsModel(t), Options{OutDir: dir})
	require.ErrorContains(t, err, "not empty")
	_, statErr := os.Stat(filepath.Join(pkgDir, ShapesFile))
	assert.True(t, os.IsNotExist(statErr))

	_, err = Emit(context.Background(), thingsModel(t), Options{OutDir: dir, Force: true})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(pkgDir, ShapesFile))
	assert.FileExists(t, filepath.Join(pkgDir, "keep.txt"))
}

func TestEmitAll_ManyServices(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	services := []*model.ServiceModel{thingsModel(t)}
	for _, name := range []string{"Alpha", "Beta", "Gamma", "Delta"} {
		services = append(services, buildModel(t, fmt.Sprintf(bareAPI, name, name)))
	}
	res, err := EmitAll(context.Background(), services, Options{OutDir: dir, Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "delta", "gamma", "things"}, res.Packages)
	for _, pkg := range res.Packages {
		assert.FileExists(t, filepath.Join(dir, pkg, APIFile))
	}
}

func TestEmitAll_DuplicatePackage(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := buildModel(t, fmt.Sprintf(bareAPI, "widgets", "Widgets"))
	b := buildModel(t, fmt.Sprintf(bareAPI, "widgets", "Widgets"))
	_, err := EmitAll(context.Background(), []*model.ServiceModel{a, b}, Options{OutDir: dir})
	require.ErrorContains(t, err, `both map to package "widgets"`)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEmitAll_RenderFailureWritesNothing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	_, err := EmitAll(context.Background(), []*model.ServiceModel{thingsModel(t)}, Options{OutDir: dir, RuntimeImport: `bad"path`})
	var re *RenderError
	require.ErrorAs(t, err, &re)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEmitAll_CanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := EmitAll(ctx, []*model.ServiceModel{thingsModel(t)}, Options{OutDir: t.TempDir()})
	require.ErrorIs(t, err, context.Canceled)
}
