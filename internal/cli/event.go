package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewEventCmd создаёт группу команд для отправки событий.
func NewEventCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Fire automation events",
	}

	cmd.AddCommand(newEventFireCmd(clientFn, outputFn))

	return cmd
}

func newEventFireCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var botID, eventType, contactID, dataJSON string

	cmd := &cobra.Command{
		Use:   "fire",
		Short: "Fire an event against event triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := FireEventRequest{
				BotID:     botID,
				EventType: eventType,
			}
			if contactID != "" {
				req.ContactID = &contactID
			}
			if dataJSON != "" {
				if err := json.Unmarshal([]byte(dataJSON), &req.EventData); err != nil {
					return fmt.Errorf("invalid --data JSON: %w", err)
				}
			}

			result, err := client.FireEvent(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Event dispatched, %d executions launched", result.Launched))
			out.Print(
				[]string{"LAUNCHED"},
				[][]string{{fmt.Sprintf("%d", result.Launched)}},
				result,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&botID, "bot-id", "", "Bot ID (required)")
	cmd.Flags().StringVar(&eventType, "type", "", "Event type (required)")
	cmd.Flags().StringVar(&contactID, "contact-id", "", "Contact scope for specific filter")
	cmd.Flags().StringVar(&dataJSON, "data", "", "Event data as JSON object")
	cmd.MarkFlagRequired("bot-id")
	cmd.MarkFlagRequired("type")

	return cmd
}
