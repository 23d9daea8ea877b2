package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/awsgen/internal/emitter/goemitter"
	"github.com/mark3labs/awsgen/internal/model"
	"github.com/mark3labs/awsgen/internal/spec"
)

// apiFileName is the file name directory inputs are searched for.
const apiFileName = "api-2.json"

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, environment and CLI overrides.
type GenerateConfig struct {
	Inputs        []string `mapstructure:"inputs"`
	Docs          string   `mapstructure:"docs"`
	Endpoints     string   `mapstructure:"endpoints"`
	Out           string   `mapstructure:"out"`
	RuntimeImport string   `mapstructure:"runtimeImport"`
	Services      []string `mapstructure:"services"`
	Workers       int      `mapstructure:"workers"`
	DryRun        bool     `mapstructure:"dryRun"`
	Force         bool     `mapstructure:"force"`
	Verbose       bool     `mapstructure:"verbose"`
	ConfigPath    string   `mapstructure:"-"`

	stdout io.Writer
	stderr io.Writer
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{Out: "gen", RuntimeImport: goemitter.DefaultRuntimeImport}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [api-2.json|dir]...",
		Short: "Generate Go client packages from service API descriptions",
		Long: "Generate Go client packages from service API descriptions. Inputs are api-2.json " +
			"files, directories containing them, or OpenAPI/Swagger documents. " +
			"Options can be provided via flags, AWSGEN_* environment variables, config files, or defaults.",
		Example: strings.TrimSpace(`  awsgen generate --input models/sqs/api-2.json --out ./gen
  awsgen generate ./models --services s3,glacier --endpoints ./models/endpoints.json
  awsgen --config awsgen.yaml generate --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd, args)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringSlice("input", nil, "API description files or directories (repeatable)")
	flags.String("docs", "", "Documentation table for a single input (defaults to a sibling docs-2.json)")
	flags.String("endpoints", "", "Endpoint table (endpoints.json) for region overrides")
	flags.String("out", "", "Output directory; each service becomes <out>/<package>")
	flags.String("runtime-import", "", "Import path of the runtime generated code compiles against")
	flags.StringSlice("services", nil, "Only generate services with these endpoint prefixes")
	flags.Int("workers", 0, "Services rendered in parallel (defaults to GOMAXPROCS)")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command, args []string) (*GenerateConfig, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := loadGenerateConfig(cmd.Flags(), strings.TrimSpace(configPath))
	if err != nil {
		return nil, err
	}
	cfg.Inputs = append(cfg.Inputs, args...)
	cfg.stdout = cmd.OutOrStdout()
	cfg.stderr = cmd.ErrOrStderr()

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *GenerateConfig) normalize() {
	c.Inputs = sanitizeList(c.Inputs)
	c.Docs = strings.TrimSpace(c.Docs)
	c.Endpoints = strings.TrimSpace(c.Endpoints)
	c.Out = strings.TrimSpace(c.Out)
	c.RuntimeImport = strings.TrimSpace(c.RuntimeImport)
	c.Services = sanitizeList(c.Services)
	for i, s := range c.Services {
		c.Services[i] = strings.ToLower(s)
	}
}

func (c *GenerateConfig) validate() error {
	if len(c.Inputs) == 0 {
		return newUsageError("generate: --input is required (set via flag, argument, AWSGEN_INPUTS or config file)")
	}
	if c.Docs != "" && len(c.Inputs) > 1 {
		return newUsageError("generate: --docs applies to a single input only")
	}
	if c.Workers < 0 {
		return usageErrorf("generate: --workers must not be negative (got %d)", c.Workers)
	}
	if c.Out == "" && !c.DryRun {
		return newUsageError("generate: --out is required")
	}
	return nil
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	logger := newLogger(cfg.stderr, cfg.Verbose)

	// 1) Expand directory inputs into their API documents
	inputs, err := expandInputs(cfg.Inputs)
	if err != nil {
		return err
	}
	if cfg.Docs != "" && len(inputs) > 1 {
		return usageErrorf("generate: --docs applies to a single input, %d found", len(inputs))
	}

	var endpoints *spec.Endpoints
	if cfg.Endpoints != "" {
		if endpoints, err = spec.LoadEndpoints(ctx, cfg.Endpoints); err != nil {
			return mapSpecError(err)
		}
	}

	// 2) Load and resolve every service
	var services []*model.ServiceModel
	for _, in := range inputs {
		var opts []spec.Option
		if cfg.Docs != "" {
			opts = append(opts, spec.WithDocsPath(cfg.Docs))
		}
		src, err := spec.Load(ctx, in, opts...)
		if err != nil {
			return mapSpecError(err)
		}
		if !wantService(cfg.Services, src.Document.Metadata.EndpointPrefix) {
			logger.Debug("skipping service", "input", src.Location, "endpointPrefix", src.Document.Metadata.EndpointPrefix)
			continue
		}
		svc, err := model.Build(src.Document,
			model.WithDocs(src.Docs),
			model.WithEndpoints(endpoints),
			model.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("build model for %s: %w", src.Location, err)
		}
		logger.Debug("loaded service", "input", src.Location, "format", src.Format.String(), "service", svc.Name)
		services = append(services, svc)
	}
	if len(services) == 0 {
		return usageErrorf("generate: no services matched --services %s", strings.Join(cfg.Services, ","))
	}

	absOut := cfg.Out
	if ap, err := filepath.Abs(cfg.Out); err == nil {
		absOut = ap
	}

	// 3) Render and write
	res, err := goemitter.EmitAll(ctx, services, goemitter.Options{
		OutDir:        cfg.Out,
		RuntimeImport: cfg.RuntimeImport,
		Workers:       cfg.Workers,
		Force:         cfg.Force,
		DryRun:        cfg.DryRun,
		Logger:        logger,
	})
	if err != nil {
		return wrapOutputError(err, absOut)
	}
	if cfg.DryRun {
		paths := make([]string, 0, len(res.Planned))
		for _, p := range res.Planned {
			paths = append(paths, p.RelPath)
		}
		printPlan(cfg.stdout, absOut, paths)
	}
	return nil
}

// expandInputs replaces directories with the API documents found beneath
// them, in lexical order. URLs and files pass through.
func expandInputs(inputs []string) ([]string, error) {
	var out []string
	for _, in := range inputs {
		if strings.HasPrefix(in, "http://") || strings.HasPrefix(in, "https://") {
			out = append(out, in)
			continue
		}
		st, err := os.Stat(in)
		if err != nil || !st.IsDir() {
			out = append(out, in)
			continue
		}
		var found []string
		err = filepath.WalkDir(in, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && d.Name() == apiFileName {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, usageErrorf("generate: walk %s: %v", in, err)
		}
		if len(found) == 0 {
			return nil, usageErrorf("generate: no %s found under %s", apiFileName, in)
		}
		slices.Sort(found)
		out = append(out, found...)
	}
	return out, nil
}

func wantService(filter []string, endpointPrefix string) bool {
	return len(filter) == 0 || slices.Contains(filter, strings.ToLower(endpointPrefix))
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// mapSpecError turns structured loader errors into friendly usage errors.
func mapSpecError(err error) error {
	var se *spec.SpecError
	if !errors.As(err, &se) {
		return err
	}
	msg := fmt.Sprintf("spec: %s", se.Message)
	if se.Location != "" {
		msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
	}
	if se.JSONPointer != "" {
		msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
	}
	return usageError{msg: msg, cause: se}
}

func printPlan(w io.Writer, outDir string, relPaths []string) {
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintf(w, "Planned writes to %s (%d files):\n", outDir, len(relPaths))
	for _, p := range relPaths {
		fmt.Fprintf(w, "- %s\n", p)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	var re *goemitter.RenderError
	if errors.As(err, &re) {
		return err
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") ||
		strings.Contains(lower, "rename") || strings.Contains(lower, "not empty") || strings.Contains(lower, "both map to package") {
		return usageErrorf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg)
	}
	return err
}

func sanitizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if _, exists := seen[trimmed]; exists {
				continue
			}
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
