// Command gcstress runs a rooting workload against a collector runtime,
// optionally under a zeal setting, and reports collector statistics.
//
// Usage:
//
//	gcstress run [--zeal 2;7,10] [--config gc.toml] [--objects 200] [--rounds 50]
//	gcstress run --interactive
//	gcstress zeal-modes
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/gcroot/gc"
	"github.com/wippyai/gcroot/root"
	"github.com/wippyai/gcroot/zeal"
)

type runOptions struct {
	zeal        string
	config      string
	logLevel    string
	objects     int
	rounds      int
	interactive bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gcstress",
		Short:         "Stress the rooting protocol of a moving collector",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newRunCmd(), newZealModesCmd())
	return cmd
}

func newZealModesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "zeal-modes",
		Short: "List the zeal modes",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), zeal.Table())
		},
	}
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the workload",
		Long: `Run builds linked lists, traceable native structs, owning pointers,
persistent globals, weak slots and finalizable objects with native companions,
then compacts the heap every round and checks that everything rooted kept its
identity.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkload(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.zeal, "zeal", "", "zeal setting, e.g. \"2;7,10\" (\"help\" lists modes; default $"+zeal.EnvVar+")")
	f.StringVar(&opts.config, "config", "", "TOML collector configuration")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug uses the development logger)")
	f.IntVar(&opts.objects, "objects", 200, "list nodes allocated per round")
	f.IntVar(&opts.rounds, "rounds", 50, "number of rounds")
	f.BoolVarP(&opts.interactive, "interactive", "i", false, "show a live dashboard")
	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

func loadConfig(opts runOptions) (gc.Config, error) {
	cfg := gc.DefaultConfig()
	if opts.config != "" {
		var err error
		if cfg, err = gc.LoadConfig(opts.config); err != nil {
			return gc.Config{}, err
		}
	}
	if opts.zeal != "" {
		cfg.Zeal = opts.zeal
	}
	return cfg, nil
}

func runWorkload(cmd *cobra.Command, opts runOptions) error {
	log, err := newLogger(opts.logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	gc.SetLogger(log)
	root.SetLogger(log)
	zeal.SetLogger(log)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	cfg.Logger = log

	w, err := newWorkload(cfg, opts.objects)
	if stderrors.Is(err, zeal.ErrHelp) {
		fmt.Fprint(cmd.OutOrStdout(), zeal.Table())
		return nil
	}
	if err != nil {
		return err
	}

	if opts.interactive {
		err = runInteractive(w, opts.rounds)
	} else {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		err = w.run(ctx, opts.rounds, nil)
	}
	rep := w.close()
	if err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}
	printReport(cmd.OutOrStdout(), rep, w.rt.Zeal().Settings())
	return nil
}

func printReport(out io.Writer, rep report, z zeal.Settings) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	st := rep.Stats
	rows := []struct {
		name string
		val  any
	}{
		{"zeal", z},
		{"rounds", rep.Rounds},
		{"objects/round", rep.Objects},
		{"allocations", st.Allocations},
		{"minor collections", st.MinorGCs},
		{"major collections", st.MajorGCs},
		{"compactions", st.Compactions},
		{"incremental slices", st.Slices},
		{"promoted", st.Promoted},
		{"moved", st.Moved},
		{"swept", st.Swept},
		{"weak cleared", st.WeakCleared},
		{"finalized", st.Finalized},
		{"finalized in background", st.BackgroundFinalized},
		{"custom finalizers", rep.Finalized},
		{"blob finalizers", rep.Blobs},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%v\n", r.name, r.val)
	}
	_ = tw.Flush()
}
