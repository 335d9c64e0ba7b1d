package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"matrixci/internal/core"
	"matrixci/internal/history"
	"matrixci/internal/storage"
)

var (
	verbose bool
	logger  *zap.Logger

	// run flags
	eventKind   string
	branch      string
	revision    string
	workdir     string
	logsDir     string
	historyPath string
	stepTimeout time.Duration

	// history flags
	historyReadPath string
)

var rootCmd = &cobra.Command{
	Use:   "matrixci",
	Short: "matrixci runs branch-triggered matrix workflows",
	Long: `matrixci executes GitHub-Actions-shaped workflow files: a trigger
(push or pull_request on a branch) fans a job's matrix out into independent
entries, each running the same ordered shell steps and stopping at the first
failure.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return errors.Wrap(err, "initialize logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run <workflow.yaml>",
	Short: "Run a workflow for an event",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflow,
}

var validateCmd = &cobra.Command{
	Use:   "validate <workflow.yaml>",
	Short: "Parse and validate a workflow file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := core.LoadWorkflow(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: ok (%d jobs)\n", w.Name, len(w.Jobs))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := history.Open(historyReadPath)
		if err != nil {
			return err
		}
		records := hist.Records()
		if len(records) == 0 {
			fmt.Println("no recorded runs")
			return nil
		}
		for _, rec := range records {
			fmt.Printf("%s  %-10s %-12s %s@%s  %s\n",
				rec.StartedAt.Format(time.RFC3339),
				rec.Conclusion,
				rec.Event.Kind,
				rec.Workflow,
				rec.Event.Branch,
				rec.ID)
		}
		return nil
	},
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	w, err := core.LoadWorkflow(args[0])
	if err != nil {
		return err
	}
	kind, err := core.ParseEventKind(eventKind)
	if err != nil {
		return err
	}
	ev := core.Event{Kind: kind, Branch: branch, Revision: revision}

	cmd.SilenceUsage = true

	if !w.Matches(ev) {
		fmt.Printf("workflow %q is not triggered by %s on %s\n", w.Name, ev.Kind, ev.Branch)
		return nil
	}

	runner := core.NewRunner(workdir, storage.NewLogStorage(logsDir), logger)
	if stepTimeout > 0 {
		runner.StepTimeout = stepTimeout
	}

	res, err := runner.RunWorkflow(cmd.Context(), w, ev)
	if err != nil {
		return err
	}

	for _, entry := range res.Entries {
		fmt.Printf("%-10s %s\n", entry.Conclusion, entry.Name)
	}
	fmt.Printf("run %s concluded: %s\n", res.ID, res.Conclusion)

	if historyPath != "" {
		hist, err := history.Open(historyPath)
		if err != nil {
			return err
		}
		if err := hist.Append(history.NewRecord(res)); err != nil {
			return err
		}
	}

	if res.Failed() {
		return errors.New("run concluded failure")
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	runCmd.Flags().StringVar(&eventKind, "event", "push", "event kind (push, pull_request)")
	runCmd.Flags().StringVar(&branch, "branch", "master", "branch the event refers to")
	runCmd.Flags().StringVar(&revision, "revision", "", "revision the event refers to")
	runCmd.Flags().StringVar(&workdir, "workdir", ".", "directory steps run in")
	runCmd.Flags().StringVar(&logsDir, "logs", "./logs", "directory for step logs")
	runCmd.Flags().StringVar(&historyPath, "history", "", "history file to record the run in")
	runCmd.Flags().DurationVar(&stepTimeout, "step-timeout", 0, "default timeout per step (0 = 30m)")

	historyCmd.Flags().StringVar(&historyReadPath, "history", "./history.jsonl", "history file to read")

	rootCmd.AddCommand(runCmd, validateCmd, historyCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
