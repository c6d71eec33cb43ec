package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"armada/internal/config"
	"armada/internal/fleet"
	"armada/pkg/cron"
	"armada/pkg/engine"
	"armada/pkg/model"
)

// app wires the library components behind the CLI. Each subcommand builds
// one; the CLI itself holds no fleet state.
type app struct {
	ctrl  *fleet.Controller
	agg   *fleet.Aggregator
	batch *fleet.Batch
}

func newApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	rt, err := engine.NewDocker()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fleet.ErrRuntimeUnavailable, err)
	}

	resolver := fleet.Resolver{LogDir: cfg.LogDir, CronDir: cfg.CronDir}
	ctrl := fleet.NewController(rt, cron.NewFileScheduler(), resolver, fleet.Options{
		Image:          cfg.Image,
		EnvVar:         cfg.EnvVar,
		CronExpr:       cfg.CronExpr,
		VerifyRetries:  cfg.VerifyRetries,
		VerifyInterval: cfg.VerifyInterval.Std(),
		LogTail:        cfg.LogTail,
	}, nil)
	reg := fleet.NewRegistry(rt)

	return &app{
		ctrl:  ctrl,
		agg:   fleet.NewAggregator(reg, ctrl, nil),
		batch: fleet.NewBatch(reg, ctrl, cfg.Throttle.Std(), nil),
	}, nil
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	var verbose bool

	root := &cobra.Command{
		Use:           "armada",
		Short:         "Manage a single-host fleet of containerized worker nodes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newProvisionCmd(&cfgPath),
		newStatusCmd(&cfgPath),
		newStopCmd(&cfgPath),
		newDestroyCmd(&cfgPath),
		newLogsCmd(&cfgPath),
	)
	return root
}

func newProvisionCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "provision <id>",
		Short: "Create and start a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}

			res, err := a.ctrl.Provision(cmd.Context(), args[0])
			var startErr *fleet.StartupError
			if errors.As(err, &startErr) {
				fmt.Fprintf(cmd.ErrOrStderr(), "node %s failed startup verification; last log lines:\n", startErr.ID)
				for _, line := range startErr.LastLogs {
					fmt.Fprintf(cmd.ErrOrStderr(), "    %s\n", line)
				}
				return err
			}
			if err != nil {
				return err
			}

			if res.Superseded {
				fmt.Fprintf(cmd.OutOrStdout(), "replaced stale container for %s\n", res.ID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ node %s provisioned (container %s)\n", res.ID, res.ContainerRef)
			fmt.Fprintf(cmd.OutOrStdout(), "   log:  %s\n   cron: %s\n", res.LogPath, res.ScheduleRef)
			return nil
		},
	}
}

func newStatusCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List every node with state and resource usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}

			views, err := a.agg.ListStatuses(cmd.Context())
			if err != nil {
				return err
			}
			if len(views) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no nodes")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tID\tSTATE\tCPU\tMEM\tCREATED")
			for i, v := range views {
				cpu, mem := "-", "-"
				if v.Metrics.Available {
					cpu = fmt.Sprintf("%.1f%%", v.Metrics.CPUPercent)
					mem = fmt.Sprintf("%s / %s",
						units.BytesSize(float64(v.Metrics.MemUsage)),
						units.BytesSize(float64(v.Metrics.MemLimit)))
				}
				created := "-"
				if !v.CreatedAt.IsZero() {
					created = v.CreatedAt.Local().Format(time.DateTime)
				}
				state := string(v.State)
				if v.StatusErr != "" {
					state = "UNAVAILABLE"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, v.ID, state, cpu, mem, created)
			}
			return w.Flush()
		},
	}
}

func newStopCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop a node's container without removing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			if err := a.ctrl.Stop(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ node %s stopped\n", args[0])
			return nil
		},
	}
}

func newDestroyCmd(cfgPath *string) *cobra.Command {
	var selectFlag string
	var all bool

	cmd := &cobra.Command{
		Use:   "destroy [id ...]",
		Short: "Destroy nodes: container, log file and cron entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && (selectFlag != "" || len(args) > 0) {
				return errors.New("--all cannot be combined with ids or --select")
			}
			if selectFlag != "" && len(args) > 0 {
				return errors.New("--select cannot be combined with ids")
			}
			if !all && selectFlag == "" && len(args) == 0 {
				return errors.New("nothing to destroy: pass ids, --select or --all")
			}

			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch {
			case all:
				report, err := a.batch.DestroyAll(cmd.Context())
				if err != nil {
					return err
				}
				printReport(out, report)
			case selectFlag != "":
				selections, err := parseSelections(selectFlag)
				if err != nil {
					return err
				}
				report, err := a.batch.DestroySelection(cmd.Context(), selections)
				if err != nil {
					return err
				}
				printReport(out, report)
			default:
				for _, id := range args {
					result, err := a.ctrl.Destroy(cmd.Context(), id)
					if err != nil {
						return err
					}
					printDestroy(out, result)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&selectFlag, "select", "", "comma-separated positions from the status listing, e.g. 2,3")
	cmd.Flags().BoolVar(&all, "all", false, "destroy every node")
	return cmd
}

func newLogsCmd(cfgPath *string) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs <id>",
		Short: "Print a node's container log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}

			rd, err := a.ctrl.Logs(cmd.Context(), args[0], follow)
			if err != nil {
				return err
			}
			defer rd.Close()

			if _, err := io.Copy(cmd.OutOrStdout(), rd); err != nil {
				// Interrupting a follow is the normal way out, not a failure.
				if cmd.Context().Err() != nil || errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep streaming new log lines until interrupted")
	return cmd
}

func parseSelections(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q", p)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, errors.New("empty selection")
	}
	return out, nil
}

func printDestroy(w io.Writer, result *model.DestroyResult) {
	if !result.HasErrors() {
		fmt.Fprintf(w, "✅ node %s destroyed\n", result.ID)
		return
	}
	fmt.Fprintf(w, "⚠️  node %s: partial cleanup\n", result.ID)
	for _, a := range result.Artifacts() {
		if a.Err != nil {
			fmt.Fprintf(w, "   %s: %v\n", a.Artifact, a.Err)
		} else {
			fmt.Fprintf(w, "   %s: removed\n", a.Artifact)
		}
	}
}

func printReport(w io.Writer, report *model.BatchReport) {
	for _, e := range report.Entries {
		if e.Skipped {
			fmt.Fprintf(w, "skipped selection %d: %s\n", e.Selection, e.Reason)
			continue
		}
		printDestroy(w, e.Result)
	}
	fmt.Fprintf(w, "%d destroyed, %d failed, %d skipped\n",
		report.Destroyed(), report.Failed(), report.Skipped())
}
