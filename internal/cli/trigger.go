package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewTriggerCmd создаёт группу команд для управления триггерами.
func NewTriggerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Manage automation triggers",
	}

	cmd.AddCommand(
		newTriggerListCmd(clientFn, outputFn),
		newTriggerCreateCmd(clientFn, outputFn),
		newTriggerShowCmd(clientFn, outputFn),
		newTriggerUpdateCmd(clientFn, outputFn),
		newTriggerDeleteCmd(clientFn, outputFn),
		newTriggerLogsCmd(clientFn, outputFn),
		newTriggerTestCmd(clientFn, outputFn),
		newTriggerSetActiveCmd(clientFn, outputFn, "enable", true),
		newTriggerSetActiveCmd(clientFn, outputFn, "disable", false),
	)

	return cmd
}

var triggerHeaders = []string{"ID", "NAME", "TYPE", "ACTIVE", "DETAIL", "NEXT_FIRE"}

func triggerRow(t *TriggerResponse) []string {
	detail := ""
	switch t.Type {
	case "keyword":
		detail = strings.Join(t.Keywords, ",")
	case "event":
		detail = t.EventType
	case "schedule":
		detail = t.ScheduleType + " " + t.ScheduleTime
	}

	return []string{
		t.ID,
		t.Name,
		t.Type,
		strconv.FormatBool(t.IsActive),
		detail,
		t.NextTriggerAt,
	}
}

func newTriggerListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var botID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List triggers of a bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			triggers, err := client.ListTriggers(botID)
			if err != nil {
				return err
			}

			rows := make([][]string, len(triggers))
			for i := range triggers {
				rows[i] = triggerRow(&triggers[i])
			}

			out.Print(triggerHeaders, rows, triggers)
			return nil
		},
	}

	cmd.Flags().StringVar(&botID, "bot-id", "", "Bot ID (required)")
	cmd.MarkFlagRequired("bot-id")

	return cmd
}

func newTriggerCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateTriggerRequest
	var conditionsJSON string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if conditionsJSON != "" {
				err := json.Unmarshal([]byte(conditionsJSON), &req.EventConditions)
				if err != nil {
					return fmt.Errorf("invalid --conditions JSON: %w", err)
				}
			}

			t, err := client.CreateTrigger(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Trigger created: %s", t.ID))
			out.Print(triggerHeaders, [][]string{triggerRow(t)}, t)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.BotID, "bot-id", "", "Bot ID (required)")
	cmd.Flags().StringVar(&req.FlowID, "flow-id", "", "Flow to launch (required)")
	cmd.Flags().StringVar(&req.Name, "name", "", "Trigger name (required)")
	cmd.Flags().StringVar(&req.Type, "type", "", "Trigger type: keyword, event, schedule (required)")
	cmd.Flags().BoolVar(&req.IsActive, "active", true, "Create the trigger as active")
	cmd.Flags().IntVar(&req.Priority, "priority", 0, "Keyword trigger priority")
	cmd.Flags().StringSliceVar(&req.Keywords, "keywords", nil, "Keywords (keyword type)")
	cmd.Flags().StringVar(&req.MatchType, "match-type", "", "Match type: exact, contains, starts_with, ends_with, regex")
	cmd.Flags().BoolVar(&req.CaseSensitive, "case-sensitive", false, "Case sensitive matching")
	cmd.Flags().StringVar(&req.EventType, "event-type", "", "Event type (event type)")
	cmd.Flags().StringVar(&conditionsJSON, "conditions", "", "Event conditions as JSON object")
	cmd.Flags().StringVar(&req.ScheduleType, "schedule-type", "", "Schedule type: once, daily, weekly, monthly, cron")
	cmd.Flags().StringVar(&req.ScheduleTime, "schedule-time", "", "Schedule time in the type's format")
	cmd.Flags().StringVar(&req.Timezone, "timezone", "", "IANA timezone for the schedule")
	cmd.Flags().StringVar(&req.ContactFilterType, "contact-filter", "", "Contact filter: all, specific, new_contacts, active_contacts")
	cmd.MarkFlagRequired("bot-id")
	cmd.MarkFlagRequired("flow-id")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("type")

	return cmd
}

func newTriggerShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show trigger details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			t, err := client.GetTrigger(args[0])
			if err != nil {
				return err
			}

			out.Print(triggerHeaders, [][]string{triggerRow(t)}, t)
			return nil
		},
	}
}

func newTriggerUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name, matchType, scheduleType, scheduleTime, timezone string
	var priority int
	var keywords []string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateTriggerRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("priority") {
				req.Priority = &priority
			}
			if cmd.Flags().Changed("keywords") {
				req.Keywords = &keywords
			}
			if cmd.Flags().Changed("match-type") {
				req.MatchType = &matchType
			}
			if cmd.Flags().Changed("schedule-type") {
				req.ScheduleType = &scheduleType
			}
			if cmd.Flags().Changed("schedule-time") {
				req.ScheduleTime = &scheduleTime
			}
			if cmd.Flags().Changed("timezone") {
				req.Timezone = &timezone
			}

			t, err := client.UpdateTrigger(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Trigger updated")
			out.Print(triggerHeaders, [][]string{triggerRow(t)}, t)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New trigger name")
	cmd.Flags().IntVar(&priority, "priority", 0, "New priority")
	cmd.Flags().StringSliceVar(&keywords, "keywords", nil, "New keywords")
	cmd.Flags().StringVar(&matchType, "match-type", "", "New match type")
	cmd.Flags().StringVar(&scheduleType, "schedule-type", "", "New schedule type")
	cmd.Flags().StringVar(&scheduleTime, "schedule-time", "", "New schedule time")
	cmd.Flags().StringVar(&timezone, "timezone", "", "New timezone")

	return cmd
}

func newTriggerDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteTrigger(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Trigger deleted: %s", args[0]))
			return nil
		},
	}
}

func newTriggerLogsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "logs ID",
		Short: "Show trigger fire log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			logs, err := client.ListTriggerLogs(args[0])
			if err != nil {
				return err
			}

			headers := []string{"CONTACT_ID", "EXECUTION_ID", "MATCHED", "SUCCESS", "ERROR", "FIRED"}
			rows := make([][]string, len(logs))
			for i, l := range logs {
				rows[i] = []string{
					l.ContactID,
					l.ExecutionID,
					l.MatchedValue,
					strconv.FormatBool(l.Success),
					l.Error,
					l.TriggeredAt,
				}
			}

			out.Print(headers, rows, logs)
			return nil
		},
	}
}

func newTriggerTestCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var message, eventType, dataJSON string

	cmd := &cobra.Command{
		Use:   "test ID",
		Short: "Dry-run a trigger against a sample message or event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := TestTriggerRequest{
				Message:   message,
				EventType: eventType,
			}
			if dataJSON != "" {
				if err := json.Unmarshal([]byte(dataJSON), &req.EventData); err != nil {
					return fmt.Errorf("invalid --data JSON: %w", err)
				}
			}

			result, err := client.TestTrigger(args[0], req)
			if err != nil {
				return err
			}

			headers := []string{"MATCHED", "VALUE"}
			rows := [][]string{{strconv.FormatBool(result.Matched), result.MatchedValue}}
			out.Print(headers, rows, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&message, "message", "", "Sample message (keyword trigger)")
	cmd.Flags().StringVar(&eventType, "event-type", "", "Sample event type (event trigger)")
	cmd.Flags().StringVar(&dataJSON, "data", "", "Sample event data as JSON object")

	return cmd
}

func newTriggerSetActiveCmd(clientFn func() *Client, outputFn func() *Output, use string, active bool) *cobra.Command {
	short := "Enable a trigger"
	if !active {
		short = "Disable a trigger"
	}

	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			t, err := client.UpdateTrigger(args[0], UpdateTriggerRequest{IsActive: &active})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Trigger %s: %s", use+"d", t.ID))
			out.Print(triggerHeaders, [][]string{triggerRow(t)}, t)
			return nil
		},
	}
}
