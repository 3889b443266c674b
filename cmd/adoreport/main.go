// Command adoreport reads the output of `go test -json` on stdin and
// publishes it as a test run of the Azure DevOps project of the pipeline.
//
//	go test -json ./... | adoreport -tee
//
// Publishing failures are logged but never change the exit code, so that
// the outcome of the pipeline stays the outcome of the tests.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ptgott/e2ekit/ado"
	"github.com/ptgott/e2ekit/logging"
	"github.com/ptgott/e2ekit/testcontext"
)

// publishTimeout bounds the calls to Azure DevOps.
const publishTimeout = 2 * time.Minute

type options struct {
	level   string
	dataset string
	env     string
	tee     bool
	dryRun  bool
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var o options
	fs.StringVar(&o.level, "level", logging.LevelInfo, `log level: "none", "error", "warn", "info" or "debug"`)
	fs.StringVar(&o.dataset, "dataset", envOr(testcontext.EnvDataset, testcontext.DefaultDataset), "dataset the tests ran with")
	fs.StringVar(&o.env, "env", os.Getenv(testcontext.EnvTargetEnv), "environment the tests ran against")
	fs.BoolVar(&o.tee, "tee", false, "copy stdin to stdout while reading it")
	fs.BoolVar(&o.dryRun, "dry-run", false, "log the run instead of publishing it")
	err := fs.Parse(args)
	return o, err
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func main() {
	o, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	logging.SetLevel(o.level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report(ctx, o, os.Stdin, os.Stdout, func(ctx context.Context) (ado.Publisher, error) {
		return ado.NewClient(ctx, ado.ConnectionInfoFromEnv())
	})
}

// report builds the run from in and hands it to the publisher returned by
// connect.
func report(ctx context.Context, o options, in io.Reader, out io.Writer, connect func(context.Context) (ado.Publisher, error)) ado.Run {
	if o.tee {
		in = io.TeeReader(in, out)
	}

	r := ado.NewReporter(ado.RunInfo{
		Project:     os.Getenv("SYSTEM_TEAMPROJECT"),
		Dataset:     o.dataset,
		Environment: o.env,
		BuildID:     os.Getenv("BUILD_BUILDID"),
	})
	if err := r.Consume(in); err != nil {
		log.Error().Err(err).Msg("can't read the test output")
	}
	run := r.Run()

	log.Info().
		Str("name", run.Name).
		Str("state", run.State).
		Int("results", len(run.Results)).
		Msg("test run ready")

	if o.dryRun {
		log.Info().Interface("run", run).Msg("dry run: not publishing")
		return run
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p, err := connect(ctx)
	if err != nil {
		log.Error().Err(err).Msg("can't connect to Azure DevOps, the test run is not published")
		return run
	}
	ado.Publish(ctx, p, run)
	return run
}
