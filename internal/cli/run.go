package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/telemetry"
	"github.com/spf13/cobra"
)

// optionFlags — флаги параметров запуска, общие для run и submit.
type optionFlags struct {
	fetch       bool
	concurrency int
	timeoutMs   int
	retries     int
	backoffMs   int
}

// register добавляет флаги к команде.
func (f *optionFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.fetch, "fetch", false, "Perform HTTP requests (default: dry-run, body becomes the response)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", orchestrator.DefaultConcurrency, "Maximum number of groups executed in parallel")
	cmd.Flags().IntVar(&f.timeoutMs, "timeout", 10000, "Per-attempt timeout in milliseconds")
	cmd.Flags().IntVar(&f.retries, "retries", 1, "Retries after a failed attempt")
	cmd.Flags().IntVar(&f.backoffMs, "backoff", 300, "Initial delay between attempts in milliseconds, doubled each retry")
}

// options возвращает только явно заданные флаги.
func (f *optionFlags) options(cmd *cobra.Command) domain.RunOptions {
	var opts domain.RunOptions
	flags := cmd.Flags()

	if flags.Changed("fetch") {
		opts.Fetch = domain.BoolPtr(f.fetch)
	}
	if flags.Changed("concurrency") {
		opts.Concurrency = domain.IntPtr(f.concurrency)
	}
	if flags.Changed("timeout") {
		opts.TimeoutMs = domain.IntPtr(f.timeoutMs)
	}
	if flags.Changed("retries") {
		opts.Retries = domain.IntPtr(f.retries)
	}
	if flags.Changed("backoff") {
		opts.BackoffMs = domain.IntPtr(f.backoffMs)
	}

	return opts
}

// NewRunCmd создаёт команду локального выполнения шагов.
//
// Документ шагов читается из --input или из stdin, OutputDocument
// печатается в stdout. Сообщения и логи пишутся в stderr.
func NewRunCmd(outputFn func() *Output) *cobra.Command {
	var input string
	var save string
	var showContext bool
	var opts optionFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a step document locally",
		Long: `Execute a step document (JSON or YAML array/object of steps) locally.

Without --fetch the run is a dry-run: each step's templated body becomes its response.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			steps, err := readSteps(input, cmd.InOrStdin())
			if err != nil {
				return err
			}

			logger := telemetry.NewLogger(out.errW, telemetry.LogLevelOr(slog.LevelWarn))
			orch := orchestrator.New(orchestrator.Config{Logger: logger})

			exec, err := orch.Execute(cmd.Context(), steps, orchestrator.RunConfigFrom(opts.options(cmd)))
			if err != nil {
				return &ExitError{Code: ExitFailure, Err: fmt.Errorf("processing error: %w", err)}
			}

			text, err := exec.Document.Indent()
			if err != nil {
				return &ExitError{Code: ExitFailure, Err: fmt.Errorf("processing error: %w", err)}
			}
			fmt.Fprintln(out.w, string(text))

			if showContext {
				snapshot, err := exec.Result.Context.MarshalJSON()
				if err != nil {
					return &ExitError{Code: ExitFailure, Err: fmt.Errorf("processing error: %w", err)}
				}
				fmt.Fprintln(out.errW, "Context:")
				if err := out.DocumentErr(snapshot); err != nil {
					return &ExitError{Code: ExitFailure, Err: err}
				}
			}

			if save != "" {
				if err := os.WriteFile(save, text, 0o644); err != nil {
					return &ExitError{Code: ExitFailure, Err: fmt.Errorf("processing error: %w", err)}
				}
				out.Success("Saved output to " + save)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Path to the step document (default: stdin)")
	cmd.Flags().StringVarP(&save, "save", "o", "", "Also write the output document to this file")
	cmd.Flags().BoolVar(&showContext, "context", false, "Print the execution context to stderr")
	opts.register(cmd)

	return cmd
}
