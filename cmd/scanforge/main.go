// Command scanforge formats one scanner file and prints its report.
//
//	scanforge format [-o out.py] [--no-docs] [--no-optimize] [--no-validate] [--kind v31_standardize|parameter_only|refactor] <file|url>
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/yangwenmai/scanforge/internal/config"
	"github.com/yangwenmai/scanforge/internal/engine"
	"github.com/yangwenmai/scanforge/internal/model"
	"github.com/yangwenmai/scanforge/internal/orchestrator"
	"github.com/yangwenmai/scanforge/internal/report"
	"github.com/yangwenmai/scanforge/internal/source"
)

const usage = `usage: scanforge format [flags] <file|url>

flags:
`

func main() {
	if len(os.Args) < 2 || os.Args[1] != "format" {
		fmt.Fprint(os.Stderr, usage)
		formatFlags(os.Stderr).PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code, err := run(ctx, cfg, os.Args[2:], os.Stdout, os.Stderr)
	if err != nil {
		log.Fatal(err)
	}
	os.Exit(code)
}

type cliFlags struct {
	*flag.FlagSet
	out        *string
	noDocs     *bool
	noOptimize *bool
	noValidate *bool
	kind       *string
}

func formatFlags(output io.Writer) cliFlags {
	fs := flag.NewFlagSet("format", flag.ContinueOnError)
	fs.SetOutput(output)
	return cliFlags{
		FlagSet:    fs,
		out:        fs.String("o", "", "write the formatted scanner to this file instead of stdout"),
		noDocs:     fs.Bool("no-docs", false, "skip the documentation stage"),
		noOptimize: fs.Bool("no-optimize", false, "skip the optimization stage"),
		noValidate: fs.Bool("no-validate", false, "skip the validation stage"),
		kind:       fs.String("kind", string(model.TransformV31Standardize), "transformation type: v31_standardize, parameter_only or refactor"),
	}
}

// run formats one scanner. The report goes to errOut so stdout carries only
// code. It returns the exit status: 0 on success, 1 when the workflow failed.
func run(ctx context.Context, cfg config.Config, args []string, out, errOut io.Writer) (int, error) {
	f := formatFlags(errOut)
	if err := f.Parse(args); err != nil {
		return 2, nil
	}
	if f.NArg() != 1 {
		fmt.Fprint(errOut, usage)
		f.PrintDefaults()
		return 2, nil
	}
	ref := f.Arg(0)

	src, err := source.NewLoader(source.WithMaxBytes(cfg.MaxSourceBytes)).Load(ctx, ref)
	if err != nil {
		return 1, fmt.Errorf("load %s: %w", ref, err)
	}

	client, err := engine.NewModelClient(ctx, cfg.ModelClient())
	if err != nil {
		return 1, fmt.Errorf("model client: %w", err)
	}
	transformer := engine.NewTransformer(client,
		engine.WithTimeout(cfg.GenerationTimeout),
		engine.WithTemperature(cfg.GenerationTemperature),
		engine.WithMaxTokens(cfg.GenerationMaxTokens),
	)
	o := orchestrator.New(transformer, orchestrator.WithRetry(cfg.GenerationAttempts, cfg.GenerationBackoff))

	opts := orchestrator.DefaultOptions()
	opts.TransformationType = model.TransformationKind(*f.kind)
	opts.AddDocumentation = !*f.noDocs
	opts.OptimizePerformance = !*f.noOptimize
	opts.ValidateOutput = !*f.noValidate

	res := o.Format(ctx, orchestrator.Request{Code: src.Code, Filename: src.Filename, Options: opts})
	fmt.Fprintln(errOut, report.Render(src.Filename, res))

	if !res.Success {
		return 1, nil
	}
	if *f.out == "" {
		_, err = io.WriteString(out, res.TransformedCode)
		return 0, err
	}
	if dir := filepath.Dir(*f.out); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 1, err
		}
	}
	if err := os.WriteFile(*f.out, []byte(res.TransformedCode), 0o644); err != nil {
		return 1, fmt.Errorf("write %s: %w", *f.out, err)
	}
	return 0, nil
}
