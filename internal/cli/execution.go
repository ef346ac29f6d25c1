package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewExecutionCmd создаёт группу команд для управления executions.
func NewExecutionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execution",
		Short: "Manage flow executions",
	}

	cmd.AddCommand(
		newExecutionStartCmd(clientFn, outputFn),
		newExecutionShowCmd(clientFn, outputFn),
		newExecutionLogsCmd(clientFn, outputFn),
		newExecutionCancelCmd(clientFn, outputFn),
	)

	return cmd
}

var executionHeaders = []string{"ID", "FLOW_ID", "CONTACT_ID", "NODE", "STATUS", "STARTED"}

func executionRow(e *ExecutionResponse) []string {
	return []string{
		e.ID,
		e.FlowID,
		e.ContactID,
		strconv.Itoa(e.CurrentNodeIndex),
		e.Status,
		e.StartedAt,
	}
}

func newExecutionStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var contactID, stateJSON string

	cmd := &cobra.Command{
		Use:   "start FLOW_ID",
		Short: "Queue a flow execution for a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := StartExecutionRequest{ContactID: contactID}
			if stateJSON != "" {
				if err := json.Unmarshal([]byte(stateJSON), &req.InitialState); err != nil {
					return fmt.Errorf("invalid --state JSON: %w", err)
				}
			}

			if err := client.StartExecution(args[0], req); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Execution queued for flow %s, contact %s", args[0], contactID))
			return nil
		},
	}

	cmd.Flags().StringVar(&contactID, "contact-id", "", "Contact ID (required)")
	cmd.Flags().StringVar(&stateJSON, "state", "", "Initial state as JSON object")
	cmd.MarkFlagRequired("contact-id")

	return cmd
}

func newExecutionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show execution details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			e, err := client.GetExecution(args[0])
			if err != nil {
				return err
			}

			out.Print(executionHeaders, [][]string{executionRow(e)}, e)
			return nil
		},
	}
}

func newExecutionLogsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "logs ID",
		Short: "Show execution node log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			logs, err := client.ListExecutionLogs(args[0])
			if err != nil {
				return err
			}

			headers := []string{"NODE", "TYPE", "ACTION", "ERROR", "EXECUTED"}
			rows := make([][]string, len(logs))
			for i, l := range logs {
				rows[i] = []string{
					strconv.Itoa(l.NodeIndex),
					l.NodeType,
					l.Action,
					l.Error,
					l.ExecutedAt,
				}
			}

			out.Print(headers, rows, logs)
			return nil
		},
	}
}

func newExecutionCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel an active execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			e, err := client.CancelExecution(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Execution cancelled: %s", e.ID))
			out.Print(executionHeaders, [][]string{executionRow(e)}, e)
			return nil
		},
	}
}
