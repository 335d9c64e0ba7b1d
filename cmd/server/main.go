package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"matrixci/internal/core"
	"matrixci/internal/history"
	"matrixci/internal/server"
	"matrixci/internal/storage"
)

var (
	verbose      bool
	addr         string
	workflowsDir string
	secretFile   string
	workdir      string
	logsDir      string
	historyPath  string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "matrixci-server",
	Short: "Webhook server that turns repository events into workflow runs",
	Args:  cobra.NoArgs,
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
	RunE: serve,
}

func serve(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	secret, err := loadSecret()
	if err != nil {
		return err
	}
	hist, err := history.Open(historyPath)
	if err != nil {
		return err
	}
	store, err := server.NewWorkflowStore(workflowsDir, logger)
	if err != nil {
		return err
	}
	runner := core.NewRunner(workdir, storage.NewLogStorage(logsDir), logger)
	srv := server.New(store, runner, hist, secret, logger)

	ctx := cmd.Context()
	if err := store.Watch(ctx); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", addr), zap.String("workflows", workflowsDir))
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	// Let queued runs finish before exiting.
	srv.Wait()
	return nil
}

// loadSecret reads the webhook secret from --secret-file or, failing that,
// the MATRIXCI_WEBHOOK_SECRET environment variable.
func loadSecret() ([]byte, error) {
	if secretFile != "" {
		data, err := os.ReadFile(secretFile)
		if err != nil {
			return nil, errors.Wrap(err, "read secret file")
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return nil, errors.New("secret file is empty")
		}
		return []byte(secret), nil
	}
	if secret := os.Getenv("MATRIXCI_WEBHOOK_SECRET"); secret != "" {
		return []byte(secret), nil
	}
	return nil, errors.New("no webhook secret: set --secret-file or MATRIXCI_WEBHOOK_SECRET")
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	rootCmd.Flags().StringVar(&workflowsDir, "workflows", "./workflows", "directory of workflow files")
	rootCmd.Flags().StringVar(&secretFile, "secret-file", "", "file holding the webhook secret")
	rootCmd.Flags().StringVar(&workdir, "workdir", ".", "directory steps run in")
	rootCmd.Flags().StringVar(&logsDir, "logs", "./logs", "directory for step logs")
	rootCmd.Flags().StringVar(&historyPath, "history", "./history.jsonl", "history file for run records")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
