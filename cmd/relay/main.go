// Relay CLI — выполнение декларативных HTTP-workflow.
//
// Использование:
//
//	relay [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	run     Локальное выполнение документа шагов
//	submit  Отправка документа шагов в API
//	show    Просмотр run
//	list    Список runs
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Relay/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "relay",
		Short:         "Relay CLI — declarative HTTP workflow executor",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultAPI := "http://localhost:8080"
	if v := os.Getenv("RELAY_API_URL"); v != "" {
		defaultAPI = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultAPI, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(outputFn),
		cli.NewSubmitCmd(clientFn, outputFn),
		cli.NewShowCmd(clientFn, outputFn),
		cli.NewListCmd(clientFn, outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}
