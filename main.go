// Package main implements a CLI tool to stamp build versions into a version
// file and its output targets.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	buildstamp "github.com/bcomnes/buildstamp/pkg"
)

type globalFlags struct {
	config   string
	source   string
	logLevel string
}

func newRootCommand() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "buildstamp",
		Short: "Stamp major.minor.patch.build versions on build events",
		Long: `buildstamp keeps a major.minor.patch.build version in a version file.
A full build ("run") bumps patch and writes every configured output target;
an incremental build ("watch") bumps build.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("buildstamp CLI version {{.Version}}\n")

	root.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "config file (default is ./buildstamp.{json,yaml,yml})")
	root.PersistentFlags().StringVar(&flags.source, "source", "", "canonical version file (overrides config)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	root.AddCommand(newRunCommand(&flags))
	root.AddCommand(newWatchCommand(&flags))
	root.AddCommand(newShowCommand(&flags))
	root.AddCommand(newVersionCommand())
	return root
}

// setup loads the configuration, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, flags *globalFlags) (*buildstamp.Config, zerolog.Logger, error) {
	cfg, err := buildstamp.LoadConfig(flags.config, ".")
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if flags.source != "" {
		cfg.Source = flags.source
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	logger, err := buildstamp.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

func newRunCommand(flags *globalFlags) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fire a full build: bump patch and write all output targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, flags)
			if err != nil {
				return err
			}

			var res buildstamp.Result
			ctrl := cfg.NewController(logger, buildstamp.WithObserver(func(r buildstamp.Result, _ error) {
				res = r
			}))
			host := buildstamp.NewLocalHost()
			ctrl.Apply(host)

			if err := host.Fire(cmd.Context(), buildstamp.EventFullBuild); err != nil {
				return err
			}

			printSummary(cmd, res)
			if failed := res.Failed(); strict && len(failed) > 0 {
				return fmt.Errorf("%d output target(s) failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any output target fails")
	return cmd
}

func printSummary(cmd *cobra.Command, res buildstamp.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Version stamp successful!")
	fmt.Fprintf(out, "Old Version: %s\n", res.Previous)
	fmt.Fprintf(out, "New Version: %s\n", res.Record)
	fmt.Fprintf(out, "Event:       %s\n", res.Event)
	if res.Commit != "" {
		fmt.Fprintf(out, "Commit:      %s\n", res.Commit)
	}

	if len(res.Targets) > 0 {
		fmt.Fprintln(out, "Output targets:")
		for _, tr := range res.Targets {
			if tr.Err != nil {
				fmt.Fprintf(out, "  FAIL %-14s %s: %v\n", tr.Target.Type, tr.Target.Destination(), tr.Err)
				continue
			}
			fmt.Fprintf(out, "  ok   %-14s %s\n", tr.Target.Type, tr.Target.Destination())
		}
	}
}

func newWatchCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Bump the build component on every burst of file changes",
		Example: `  buildstamp watch
  buildstamp watch src assets`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, flags)
			if err != nil {
				return err
			}

			paths := args
			if len(paths) == 0 {
				paths = cfg.Watch.Paths
			}
			if len(paths) == 0 {
				paths = []string{"."}
			}

			ctrl := cfg.NewController(logger)
			watcher := buildstamp.NewWatcher(paths,
				buildstamp.WithDebounce(cfg.Watch.Debounce),
				buildstamp.WithWatcherLogger(logger),
			)
			watcher.IgnoreController(ctrl)
			ctrl.Apply(watcher)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watcher.Run(ctx)
		},
	}
}

func newShowCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			store := buildstamp.NewStore(cfg.Source, buildstamp.WithStoreLogger(logger))
			r, err := store.Load(cmd.Context(), false)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Component", "Value"})
			t.AppendRows([]table.Row{
				{"major", r.Major},
				{"minor", r.Minor},
				{"patch", r.Patch},
				{"build", r.Build},
			})
			t.AppendFooter(table.Row{"text", r.Text()})
			t.SetTitle(cfg.Source)
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "buildstamp CLI version %s\n", Version)
		},
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
