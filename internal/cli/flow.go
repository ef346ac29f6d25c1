package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewFlowCmd создаёт группу команд для управления flows.
func NewFlowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Manage flows",
	}

	cmd.AddCommand(
		newFlowListCmd(clientFn, outputFn),
		newFlowCreateCmd(clientFn, outputFn),
		newFlowShowCmd(clientFn, outputFn),
		newFlowUpdateCmd(clientFn, outputFn),
		newFlowDeleteCmd(clientFn, outputFn),
		newFlowValidateCmd(clientFn, outputFn),
	)

	return cmd
}

func flowRow(f *FlowResponse) []string {
	return []string{
		f.ID,
		f.Name,
		strconv.Itoa(len(f.Structure)),
		strconv.FormatBool(f.IsActive),
		f.CreatedAt,
	}
}

var flowHeaders = []string{"ID", "NAME", "NODES", "ACTIVE", "CREATED"}

func newFlowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var botID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List flows of a bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flows, err := client.ListFlows(botID)
			if err != nil {
				return err
			}

			rows := make([][]string, len(flows))
			for i := range flows {
				rows[i] = flowRow(&flows[i])
			}

			out.Print(flowHeaders, rows, flows)
			return nil
		},
	}

	cmd.Flags().StringVar(&botID, "bot-id", "", "Bot ID (required)")
	cmd.MarkFlagRequired("bot-id")

	return cmd
}

func newFlowCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var botID, name, description, structureFile string
	var active bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new flow from a structure file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(structureFile)
			if err != nil {
				return fmt.Errorf("failed to read structure file: %w", err)
			}
			if !json.Valid(data) {
				return fmt.Errorf("structure file is not valid JSON")
			}

			flow, err := client.CreateFlow(CreateFlowRequest{
				BotID:       botID,
				Name:        name,
				Description: description,
				Structure:   json.RawMessage(data),
				IsActive:    active,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow created: %s", flow.ID))
			out.Print(flowHeaders, [][]string{flowRow(flow)}, flow)
			return nil
		},
	}

	cmd.Flags().StringVar(&botID, "bot-id", "", "Bot ID (required)")
	cmd.Flags().StringVar(&name, "name", "", "Flow name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Flow description")
	cmd.Flags().StringVar(&structureFile, "file", "", "Path to structure JSON file (required)")
	cmd.Flags().BoolVar(&active, "active", false, "Create the flow as active")
	cmd.MarkFlagRequired("bot-id")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newFlowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show flow details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.GetFlow(args[0])
			if err != nil {
				return err
			}

			out.Print(flowHeaders, [][]string{flowRow(flow)}, flow)
			return nil
		},
	}
}

func newFlowUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name, description, structureFile, active string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateFlowRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("description") {
				req.Description = &description
			}
			if cmd.Flags().Changed("active") {
				b, err := strconv.ParseBool(active)
				if err != nil {
					return fmt.Errorf("invalid value for --active: %s", active)
				}
				req.IsActive = &b
			}
			if cmd.Flags().Changed("file") {
				data, err := os.ReadFile(structureFile)
				if err != nil {
					return fmt.Errorf("failed to read structure file: %w", err)
				}
				if !json.Valid(data) {
					return fmt.Errorf("structure file is not valid JSON")
				}
				req.Structure = json.RawMessage(data)
			}

			flow, err := client.UpdateFlow(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Flow updated")
			out.Print(flowHeaders, [][]string{flowRow(flow)}, flow)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New flow name")
	cmd.Flags().StringVar(&description, "description", "", "New flow description")
	cmd.Flags().StringVar(&structureFile, "file", "", "Path to new structure JSON file")
	cmd.Flags().StringVar(&active, "active", "", "Set active status (true/false)")

	return cmd
}

func newFlowDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteFlow(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow deleted: %s", args[0]))
			return nil
		},
	}
}

func newFlowValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var structureFile string

	cmd := &cobra.Command{
		Use:   "validate FLOW_ID",
		Short: "Validate a structure file without saving",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(structureFile)
			if err != nil {
				return fmt.Errorf("failed to read structure file: %w", err)
			}
			if !json.Valid(data) {
				return fmt.Errorf("structure file is not valid JSON")
			}

			result, err := client.ValidateFlow(args[0], json.RawMessage(data))
			if err != nil {
				return err
			}

			if result.Valid {
				out.Success("Structure is valid")
				return nil
			}

			out.Error("Structure is invalid:")
			for _, e := range result.Errors {
				out.Error("  " + e)
			}
			return fmt.Errorf("validation failed")
		},
	}

	cmd.Flags().StringVar(&structureFile, "file", "", "Path to structure JSON file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}
