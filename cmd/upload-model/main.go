// Command upload-model sends a .zip or .fmu model to the upload backend and
// starts a simulation run for it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"model_upload_backend/pkg/logging"
	"model_upload_backend/pkg/uploader"

	"github.com/spf13/pflag"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("upload-model", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", "", "backend base URL (env MODEL_SERVER)")
	profilePath := fs.String("profile", "", "yaml profile with server, tags and timeout")
	tags := fs.StringSlice("tag", nil, "tag to attach to the model, repeatable")
	timeout := fs.Duration("timeout", 0, "overall deadline for upload and run trigger")
	verbose := fs.BoolP("verbose", "v", false, "log every state change")
	progress := fs.Bool("progress", false, "print each upload stage to stderr")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: upload-model [flags] <model.fmu|model.zip>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitConfig
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitConfig
	}

	prof := &Profile{}
	if *profilePath != "" {
		p, err := loadProfile(*profilePath)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return exitConfig
		}
		prof = p
	}
	if *server == "" {
		*server = prof.Server
	}
	if *server == "" {
		*server = getenv("MODEL_SERVER")
	}
	if len(*tags) == 0 {
		*tags = prof.Tags
	}
	if *timeout == 0 {
		*timeout = prof.Timeout
	}

	logger := logging.Discard()
	if *verbose {
		logger = slog.New(slog.NewTextHandler(stderr, nil))
	}
	logReporter := uploader.LogReporter{Logger: logger}
	reporter := uploader.ReporterFunc(func(s uploader.Status) {
		if *progress && s.State != uploader.StateFailed {
			if s.ModelID == "" {
				fmt.Fprintf(stderr, "[%s]\n", s.State)
			} else {
				fmt.Fprintf(stderr, "[%s] model %s\n", s.State, s.ModelID)
			}
		}
		logReporter.Report(s)
	})
	httpClient := &http.Client{Timeout: *timeout}
	client, err := uploader.New(*server,
		uploader.WithHTTPClient(httpClient),
		uploader.WithLogger(logger),
		uploader.WithReporter(reporter),
		uploader.WithTags(*tags...),
	)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitConfig
	}

	file, err := uploader.FileFromPath(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitConfig
	}
	if err := client.SelectFile(file); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitConfig
	}

	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}
	start := time.Now()
	runID, err := client.Upload(ctx)
	if err != nil {
		return report(stderr, err)
	}

	st := client.Status()
	fmt.Fprintf(stdout, "modelID: %s\n", st.ModelID)
	fmt.Fprintf(stdout, "runId: %s\n", runID)
	logger.Info("upload finished", "elapsed", time.Since(start))
	return exitOK
}

func report(stderr io.Writer, err error) int {
	var (
		orphan *uploader.OrphanArtifactWarning
		verr   *uploader.ValidationError
		cerr   *uploader.ConfigurationError
	)
	switch {
	case errors.As(err, &orphan):
		fmt.Fprintf(stderr, "error: model %s was uploaded but no run was created: %v\n", orphan.ModelID, orphan.Err)
		fmt.Fprintln(stderr, "the upload will be discarded by the server unless a run is created for it")
	case errors.As(err, &verr), errors.As(err, &cerr):
		fmt.Fprintln(stderr, "error:", err)
		return exitConfig
	default:
		fmt.Fprintln(stderr, "error:", err)
	}
	return exitFailed
}
