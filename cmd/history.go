package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/onyx/internal/app"
	"github.com/firefly-engineering/onyx/internal/audit"
	"github.com/firefly-engineering/onyx/internal/config"
	"github.com/firefly-engineering/onyx/internal/errors"
)

var historyCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "Display the audit trail for an image",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var (
	historyJSON    bool
	historyTypes   []string
	historyUID     int
	historySession string
	historyLast    int
)

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json-lines", false, "Output events as JSON lines")
	historyCmd.Flags().StringSliceVarP(&historyTypes, "type", "t", nil, "Only show these event types (create, delete, open, exec, apply-delta, degraded, error)")
	historyCmd.Flags().IntVar(&historyUID, "uid", -1, "Only show events of this uid")
	historyCmd.Flags().StringVar(&historySession, "session", "", "Only show events of this session")
	historyCmd.Flags().IntVarP(&historyLast, "last", "n", 0, "Only show the newest N events")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := config.ValidateName(name); err != nil {
		return errors.ValidationError(err.Error())
	}

	q := audit.Query{Session: historySession, Last: historyLast}
	for _, t := range historyTypes {
		q.Types = append(q.Types, audit.EventType(t))
	}
	if historyUID >= 0 {
		q.UID = &historyUID
	}

	events, err := app.Default.Audit.Query(name, q)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	if len(events) == 0 {
		logInfo("No events found for image %s", name)
		return nil
	}

	out := cmd.OutOrStdout()
	for _, e := range events {
		if historyJSON {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to marshal event: %w", err)
			}
			fmt.Fprintln(out, string(data))
			continue
		}

		ts := e.Timestamp.Local().Format("2006-01-02 15:04:05")
		who := ""
		if e.UID != nil {
			who = fmt.Sprintf(" uid=%d", *e.UID)
		}
		if e.Details != "" {
			fmt.Fprintf(out, "[%s] %-11s %s%s (%s)\n", ts, e.Type, e.Image, who, e.Details)
		} else {
			fmt.Fprintf(out, "[%s] %-11s %s%s\n", ts, e.Type, e.Image, who)
		}
	}

	return nil
}
