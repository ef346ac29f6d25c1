package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewContactCmd создаёт группу команд для управления контактами.
func NewContactCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Manage contacts",
	}

	cmd.AddCommand(
		newContactListCmd(clientFn, outputFn),
		newContactShowCmd(clientFn, outputFn),
		newContactAttrsCmd(clientFn, outputFn),
		newContactSetAttrCmd(clientFn, outputFn),
		newContactExecutionsCmd(clientFn, outputFn),
	)

	return cmd
}

var contactHeaders = []string{"ID", "PHONE", "FIRST_NAME", "LAST_NAME", "CREATED"}

func contactRow(c *ContactResponse) []string {
	return []string{c.ID, c.PhoneNumber, c.FirstName, c.LastName, c.CreatedAt}
}

func newContactListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var botID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contacts of a bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			contacts, err := client.ListContacts(botID)
			if err != nil {
				return err
			}

			rows := make([][]string, len(contacts))
			for i := range contacts {
				rows[i] = contactRow(&contacts[i])
			}

			out.Print(contactHeaders, rows, contacts)
			return nil
		},
	}

	cmd.Flags().StringVar(&botID, "bot-id", "", "Bot ID (required)")
	cmd.MarkFlagRequired("bot-id")

	return cmd
}

func newContactShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show contact details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			c, err := client.GetContact(args[0])
			if err != nil {
				return err
			}

			out.Print(contactHeaders, [][]string{contactRow(c)}, c)
			return nil
		},
	}
}

func newContactAttrsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "attrs ID",
		Short: "Show contact attributes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			attrs, err := client.GetContactAttributes(args[0])
			if err != nil {
				return err
			}

			headers := []string{"KEY", "VALUE"}
			rows := make([][]string, 0, len(attrs))
			for k, v := range attrs {
				rows = append(rows, []string{k, v})
			}

			out.Print(headers, rows, attrs)
			return nil
		},
	}
}

func newContactSetAttrCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var value, valueType string

	cmd := &cobra.Command{
		Use:   "set-attr ID KEY",
		Short: "Set a contact attribute",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			err := client.SetContactAttribute(args[0], args[1], SetAttributeRequest{
				Value:     value,
				ValueType: valueType,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Attribute %s set for contact %s", args[1], args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "Attribute value (required)")
	cmd.Flags().StringVar(&valueType, "value-type", "string", "Value type: string, number, boolean, json")
	cmd.MarkFlagRequired("value")

	return cmd
}

func newContactExecutionsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "executions ID",
		Short: "List executions of a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			executions, err := client.ListContactExecutions(args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(executions))
			for i := range executions {
				rows[i] = executionRow(&executions[i])
			}

			out.Print(executionHeaders, rows, executions)
			return nil
		},
	}
}
