package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"twincore/internal/config"
	"twincore/internal/core"
	"twincore/internal/persistence"
	"twincore/internal/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries the state shared by every subcommand for one invocation.
type app struct {
	configPath string
	dir        string
	driver     string
	logLevel   string
	trace      bool

	cfg      *config.Config
	log      *zap.Logger
	project  *core.Project
	tracer   *core.JSONTraceTracer
	expvar   *core.ExpvarMetricsRecorder
	registry *prometheus.Registry
}

// run executes one twinctl invocation and always releases the project.
func run(args []string, stdout, stderr io.Writer) error {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	return errors.Join(err, a.close(stderr))
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "twinctl",
		Short:         "Edit the entity model of a digital-twin project",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ./twincore.yaml when present)")
	flags.StringVarP(&a.dir, "dir", "C", "", "project directory")
	flags.StringVar(&a.driver, "driver", "", "storage driver: fs, memory, sqlite, postgres or s3")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&a.trace, "trace", false, "write one JSON line per store operation to stderr")

	root.AddCommand(
		newInitCmd(a),
		newSaveCmd(a),
		newEntityCmd(a, "system", "Manage the system hierarchy", kindSystem),
		newEntityCmd(a, "tech", "Manage the technology hierarchy", kindTechnology),
		newEntityCmd(a, "element", "Manage connection-type elements", kindElement),
		newAssignCmd(a),
		newUnassignCmd(a),
		newConnectCmd(a),
		newDisconnectCmd(a),
		newConnectionsCmd(a),
		newExportCmd(a),
		newCheckCmd(a),
		newPruneCmd(a),
		newTypesCmd(),
		newDescribeCmd(a),
	)
	return root
}

// open loads configuration, applies flag overrides and opens the project.
func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dir != "" {
		cfg.Project.Dir = a.dir
	}
	if a.driver != "" {
		cfg.Storage.Driver = a.driver
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate flags: %w", err)
	}
	a.cfg = cfg

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()); err != nil {
		return err
	}
	a.log = logger.L()

	opts := []core.Option{core.WithLogger(a.log), core.WithKindLayouts(cfg.Layouts())}
	if a.trace {
		a.tracer = core.NewJSONTracer(cmd.ErrOrStderr())
		opts = append(opts, core.WithTracer(a.tracer))
	}
	switch cfg.Metrics.Exporter {
	case "expvar":
		a.expvar = core.NewExpvarMetricsRecorder("")
		opts = append(opts, core.WithMetrics(a.expvar))
	case "prometheus":
		a.registry = prometheus.NewRegistry()
		rec, err := core.NewPrometheusMetricsRecorder(a.registry, cfg.Metrics.Namespace)
		if err != nil {
			return err
		}
		opts = append(opts, core.WithMetrics(rec))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	backend, err := persistence.Open(ctx, cfg.PersistenceOptions())
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}
	project, report, err := core.OpenProject(ctx, backend, opts...)
	if err != nil {
		_ = backend.Close()
		return err
	}
	if n := len(report.Repairs()); n > 0 {
		a.log.Warn("project loaded with repairs; run save to persist them", zap.Int("repairs", n))
	}
	a.project = project
	a.log.Debug("project opened", zap.String("driver", string(backend.Driver())), zap.String("project", cfg.ProjectName()))
	return nil
}

// close dumps metrics when an exporter is configured and releases the backend.
func (a *app) close(w io.Writer) error {
	var errs []error
	if a.expvar != nil {
		if err := json.NewEncoder(w).Encode(a.expvar.Snapshot()); err != nil {
			errs = append(errs, err)
		}
	}
	if a.registry != nil {
		families, err := a.registry.Gather()
		if err != nil {
			errs = append(errs, err)
		}
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
				errs = append(errs, err)
				break
			}
		}
	}
	if a.project != nil {
		errs = append(errs, a.project.Close())
		a.project = nil
	}
	_ = logger.Sync()
	return errors.Join(errs...)
}
