// Package cli implements the interactive and headless run modes of the
// docweave command.
package cli

import (
	"log/slog"

	"github.com/docweave/docweave"
	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/logging"
	"github.com/docweave/docweave/pkg/adapters/memory"
	redisadapter "github.com/docweave/docweave/pkg/adapters/redis"
	"github.com/docweave/docweave/pkg/adapters/static"
	"github.com/docweave/docweave/pkg/pipeline"
	"github.com/docweave/docweave/pkg/ports"
)

// RunOptions carries the flags of the run command.
type RunOptions struct {
	DocumentURI string
	ConfigPath  string
	Debug       bool
	AutoApprove bool
	AutoComment string
}

func createLogger(debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.New(slog.LevelInfo)
}

// NewWorkflow assembles the workflow from configuration, selecting the
// result sink by the redis settings: an empty addr means in-memory.
func NewWorkflow(cfg config.Config, logger *slog.Logger, extra ...docweave.Option) (*docweave.Workflow, error) {
	var sink ports.ResultSink
	if cfg.Redis.Addr != "" {
		sink = redisadapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		logger.Info("using redis result sink", "addr", cfg.Redis.Addr)
	} else {
		sink = memory.NewSink()
	}

	deps := pipeline.Deps{
		Extractor: static.NewExtractor(),
		Evaluator: static.NewEvaluator(),
		Sink:      sink,
	}

	opts := append([]docweave.Option{
		docweave.WithLogger(logger),
		docweave.WithApprovalTimeout(cfg.Workflow.ApprovalTimeout),
		docweave.WithMaxIterations(cfg.Workflow.MaxIterations),
	}, extra...)
	return docweave.New(deps, opts...)
}
