// Botflow CLI — инструмент командной строки для управления
// flows, executions, триггерами и контактами через HTTP API.
//
// Использование:
//
//	botflow [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	flow       Управление flows
//	execution  Управление executions
//	trigger    Управление триггерами
//	event      Отправка прикладных событий
//	contact    Управление контактами
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/botflow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "botflow",
		Short:         "Botflow CLI — conversation flow automation tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewFlowCmd(clientFn, outputFn),
		cli.NewExecutionCmd(clientFn, outputFn),
		cli.NewTriggerCmd(clientFn, outputFn),
		cli.NewEventCmd(clientFn, outputFn),
		cli.NewContactCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
