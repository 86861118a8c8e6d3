package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/pagetext/internal/app"
	"github.com/markdave123-py/pagetext/internal/config"
	"github.com/markdave123-py/pagetext/internal/console"
	"github.com/markdave123-py/pagetext/internal/core"
	"github.com/markdave123-py/pagetext/internal/core/ingestion_engine"
	objectclient "github.com/markdave123-py/pagetext/internal/core/object-client"
	"github.com/markdave123-py/pagetext/internal/logging"
)

// ErrAllFailed is returned when not a single page range could be extracted.
var ErrAllFailed = errors.New("every page range failed")

type extractOptions struct {
	apiKey        string
	backend       string
	language      string
	output        string
	pagesPerChunk int
	concurrency   int
	pages         int
	maxAttempts   int
	pacing        time.Duration
	dropBlank     bool
	quiet         bool
	verbose       bool
}

func newExtractCmd() *cobra.Command {
	opts := &extractOptions{}
	c := &cobra.Command{
		Use:   "extract <file|s3://bucket/key>",
		Short: "Extract the text of a document",
		Long: `Extract loads a PDF from disk or S3, plans page ranges, extracts them concurrently
with retries and writes the reassembled text to stdout, a file or S3.

Flags override the environment (GEMINI_API_KEY, PAGES_PER_CHUNK, EXTRACT_CONCURRENCY, ...).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args[0], opts)
		},
	}

	f := c.Flags()
	f.StringVar(&opts.apiKey, "api-key", "", "Gemini API key (default $GEMINI_API_KEY)")
	f.StringVar(&opts.backend, "backend", "", "extraction backend: gemini or local (default $EXTRACT_BACKEND)")
	f.StringVar(&opts.language, "language", "", "script the model must preserve verbatim (default $EXTRACT_LANGUAGE)")
	f.StringVarP(&opts.output, "output", "o", "", "write text to a file or s3:// URL instead of stdout")
	f.IntVarP(&opts.pagesPerChunk, "pages-per-chunk", "p", 0, "pages per extraction call (default $PAGES_PER_CHUNK)")
	f.IntVarP(&opts.concurrency, "concurrency", "c", 0, "extraction calls in flight (default $EXTRACT_CONCURRENCY)")
	f.IntVar(&opts.pages, "pages", 0, "total page count; detected from the PDF when omitted")
	f.IntVar(&opts.maxAttempts, "max-attempts", 0, "attempts per page range (default $EXTRACT_MAX_ATTEMPTS)")
	f.DurationVar(&opts.pacing, "pacing", 0, "delay before each range after the first (default $EXTRACT_PACING)")
	f.BoolVar(&opts.dropBlank, "drop-blank", false, "omit blank interior page ranges from the output")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "only report failures")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "write structured logs to stderr")
	return c
}

// apply copies the flags the user set onto cfg.
func (o *extractOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("api-key") {
		cfg.AIAPIKey = o.apiKey
	}
	if f.Changed("backend") {
		cfg.Backend = strings.ToLower(o.backend)
	}
	if f.Changed("language") {
		cfg.Language = o.language
	}
	if f.Changed("pages-per-chunk") {
		cfg.PagesPerChunk = o.pagesPerChunk
	}
	if f.Changed("concurrency") {
		cfg.Concurrency = o.concurrency
	}
	if f.Changed("max-attempts") {
		cfg.MaxAttempts = o.maxAttempts
	}
	if f.Changed("pacing") {
		cfg.Pacing = o.pacing
	}
}

func runExtract(cmd *cobra.Command, source string, opts *extractOptions) error {
	ctx := cmd.Context()
	cfg := config.LoadConfig()
	opts.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if opts.pages < 0 {
		return fmt.Errorf("%w: --pages must be >= 0", core.ErrInvalidConfig)
	}

	log := logging.Discard()
	if opts.verbose {
		log = logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	}

	var obj core.ObjectClient
	if isObjectURL(source) || isObjectURL(opts.output) {
		s3, err := objectclient.NewS3Client(ctx, objectclient.Options{
			AccessKey: cfg.AwsAccessKey,
			SecretKey: cfg.AwsSecretKey,
			Region:    cfg.AwsRegion,
			Bucket:    cfg.BucketName,
		}, log)
		if err != nil {
			return err
		}
		obj = s3
	}

	doc, err := ingestion_engine.NewDocumentLoader(obj, log).Load(ctx, source)
	if err != nil {
		return err
	}
	pages := resolvePages(opts.pages, doc.Pages, cfg.FallbackPages)
	if opts.pages == 0 && doc.Pages == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "page count unavailable, assuming %d pages\n", pages)
	}

	backend, closer, err := app.NewBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	ext, err := backend.Prepare(ctx, doc)
	if err != nil {
		return fmt.Errorf("prepare %s: %w", doc.Name, err)
	}
	if c, ok := ext.(io.Closer); ok {
		defer c.Close()
	}

	progress := console.NewProgress(cmd.ErrOrStderr(), opts.quiet)
	var sink core.ProgressSink = progress
	if opts.verbose {
		sink = core.MultiSink{progress, logging.NewLogSink(log)}
	}
	set := app.RunSettings(cfg, log)
	set.DropBlankPages = opts.dropBlank

	started := time.Now()
	rep, err := ingestion_engine.Extract(ctx, pages, cfg.PagesPerChunk, ext, set, sink)
	if err != nil {
		return err
	}
	progress.PrintSummary(rep, time.Since(started))

	// The partial text of a cancelled run is still written.
	if err := writeOutput(context.WithoutCancel(ctx), obj, opts.output, rep.Text, cmd.OutOrStdout(), log); err != nil {
		return err
	}

	switch {
	case rep.Cancelled:
		return context.Canceled
	case rep.Chunks > 0 && rep.SuccessCount == 0 && rep.FailedCount() > 0:
		return ErrAllFailed
	}
	return nil
}

// resolvePages picks the explicit page count, then the detected one, then the fallback.
func resolvePages(flag, detected, fallback int) int {
	switch {
	case flag > 0:
		return flag
	case detected > 0:
		return detected
	default:
		return fallback
	}
}

func isObjectURL(s string) bool {
	_, _, ok := objectclient.ParseObjectURL(s)
	return ok
}

// writeOutput sends text to stdout ("" or "-"), an s3:// URL or a local file.
func writeOutput(ctx context.Context, obj core.ObjectClient, dest, text string, stdout io.Writer, log *slog.Logger) error {
	switch {
	case dest == "" || dest == "-":
		if _, err := io.WriteString(stdout, text); err != nil {
			return err
		}
		if text != "" && !strings.HasSuffix(text, "\n") {
			_, err := io.WriteString(stdout, "\n")
			return err
		}
		return nil
	case isObjectURL(dest):
		if obj == nil {
			return fmt.Errorf("%w: %s needs object storage", core.ErrInvalidConfig, dest)
		}
		bucket, key, _ := objectclient.ParseObjectURL(dest)
		url, err := obj.UploadFile(ctx, bucket, key, strings.NewReader(text), "text/plain; charset=utf-8")
		if err != nil {
			return fmt.Errorf("upload output: %w", err)
		}
		log.Info("output uploaded", "url", url)
		return nil
	default:
		if err := os.WriteFile(dest, []byte(text), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		log.Info("output written", "path", dest, "bytes", len(text))
		return nil
	}
}
