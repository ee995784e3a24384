package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type flags struct {
	configPath  string
	secretsPath string
	input       string
	out         string
	workers     int
	reuse       bool
	inmem       bool
	watch       bool
	debounce    time.Duration
	verbose     bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "consult-batch",
		Short: "Extract company information from consultation reports into an Excel workbook",
		Long: `Sends every .docx report in the input directory to LlamaExtract, cleans each
result against the company-info schema and writes one workbook row per report.
A report that cannot be extracted still gets a row holding default values.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f, cmd)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "YAML config file (default config.yaml when present)")
	fs.StringVar(&f.secretsPath, "secrets", "", "dotenv secrets file (default secrets.env when present)")
	fs.StringVar(&f.input, "input", "", "directory of .docx reports")
	fs.StringVar(&f.out, "out", "", "output XLSX path")
	fs.IntVar(&f.workers, "workers", 0, "documents processed concurrently")
	fs.BoolVar(&f.reuse, "reuse", false, "reuse results of unchanged documents from the ledger")
	fs.BoolVar(&f.inmem, "inmem", false, "use an in-memory SQLite ledger")
	fs.BoolVar(&f.watch, "watch", false, "re-run whenever a report is added or changed")
	fs.DurationVar(&f.debounce, "debounce", 2*time.Second, "quiet period before a watch re-run")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "print every record and debug logs")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(level string, verbose bool) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
