// SPDX-License-Identifier: MIT

// m3umerge builds one curated M3U playlist from many provider playlists.
//
// Usage:
//
//	m3umerge -config m3umerge.yaml
//	M3UMERGE_CATALOG=catalog.yaml m3umerge
//
// Exit codes:
//   - 0: playlist written
//   - 1: run failed (catalog unavailable or output not writable)
//   - 2: usage or configuration error
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/m3umerge/internal/config"
	"github.com/ManuGH/m3umerge/internal/jobs"
	xglog "github.com/ManuGH/m3umerge/internal/log"
	"github.com/ManuGH/m3umerge/internal/version"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("m3umerge", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var (
		configPath  string
		envFile     string
		showVersion bool
	)
	flags.StringVar(&configPath, "config", "", "path to config file (YAML)")
	flags.StringVar(&configPath, "c", "", "path to config file (shorthand)")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment; missing is fine")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if showVersion {
		fmt.Fprintln(stdout, version.String())
		return exitOK
	}

	xglog.Reconfigure(xglog.Config{Level: "info", Output: stderr, Service: "m3umerge", Version: version.Version})
	logger := xglog.WithComponent("main")

	// Variables already in the environment win over the file.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Error().Err(err).Str(xglog.FieldEvent, "env_file.load_failed").Str(xglog.FieldPath, envFile).Msg("could not read env file")
			return exitUsage
		}
	}

	cfg, err := config.NewLoader(configPath, version.Version).Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str(xglog.FieldPath, configPath).
			Msg("failed to load configuration")
		return exitUsage
	}

	xglog.Reconfigure(xglog.Config{Level: cfg.LogLevel, Output: stderr, Service: "m3umerge", Version: cfg.Version})

	ctx = xglog.ContextWithRunID(ctx, uuid.NewString())
	status, err := jobs.Run(ctx, cfg, jobs.Deps{})
	if err != nil {
		runLogger := xglog.WithComponentFromContext(ctx, "main")
		runLogger.Error().
			Err(err).
			Str(xglog.FieldEvent, "run.failed").
			Msg("aggregation failed")
		return exitFailed
	}

	fmt.Fprintf(stdout, "wrote %d channels to %s\n", status.Channels, status.OutputPath)
	return exitOK
}
