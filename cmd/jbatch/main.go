// Command jbatch runs batch jobs described in JSL. Without -job, -restart or -run it
// serves the operator API until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "embed"

	"go.uber.org/fx"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/bootstrap"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

//go:embed resources/application.yaml
var embeddedConfig []byte

//go:embed resources/jobs/hello.yaml
var embeddedJSL []byte

// parametersFlag collects repeated -param key=value flags.
type parametersFlag model.JobParameters

func (p parametersFlag) String() string {
	return model.JobParameters(p).String()
}

func (p parametersFlag) Set(value string) error {
	k, v, ok := strings.Cut(value, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	p[k] = v
	return nil
}

type cliOptions struct {
	configPath  string
	envFilePath string
	jobName     string
	restartID   string
	run         bool
	parameters  model.JobParameters
}

func (o cliOptions) runOnce() bool {
	return o.run || o.jobName != "" || o.restartID != ""
}

func parseFlags(args []string) (cliOptions, error) {
	opts := cliOptions{parameters: model.NewJobParameters()}
	fs := flag.NewFlagSet("jbatch", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "application YAML file; the embedded configuration when empty")
	fs.StringVar(&opts.envFilePath, "env", os.Getenv("ENV_FILE_PATH"), ".env file loaded before the configuration")
	fs.StringVar(&opts.jobName, "job", "", "start this job, follow it to its end and exit")
	fs.StringVar(&opts.restartID, "restart", "", "restart this job execution, follow it to its end and exit")
	fs.BoolVar(&opts.run, "run", false, "start jbatch.batch.job_name, follow it to its end and exit")
	fs.Var(parametersFlag(opts.parameters), "param", "job parameter key=value, repeatable")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.jobName != "" && opts.restartID != "" {
		return opts, fmt.Errorf("-job and -restart are mutually exclusive")
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	options, err := applicationOptions(opts)
	if err != nil {
		logger.Fatalf("Failed to prepare application: %v", err)
	}

	if !opts.runOnce() {
		app := fx.New(options...)
		app.Run()
		if app.Err() != nil {
			logger.Fatalf("Application run failed: %v", app.Err())
		}
		return
	}

	var result *bootstrap.RunResult
	options = append(options,
		bootstrap.RunOnce(bootstrap.RunRequest{
			JobName:            opts.jobName,
			Parameters:         opts.parameters,
			RestartExecutionID: opts.restartID,
		}),
		fx.Populate(&result),
	)
	app := fx.New(options...)
	if app.Err() != nil {
		logger.Fatalf("Application build failed: %v", app.Err())
	}

	startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		logger.Fatalf("Application start failed: %v", err)
	}
	sig := <-app.Wait()
	logger.Debugf("Received shutdown signal %v (exit code %d).", sig.Signal, sig.ExitCode)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), app.StopTimeout()+time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		logger.Errorf("Application stop failed: %v", err)
	}
	os.Exit(result.ExitCode())
}
