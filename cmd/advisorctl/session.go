package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ashureev/advisor/internal/api"
	"github.com/spf13/cobra"
)

var showJSON bool

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or reset the advising session",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(serverURL, userID, sessionID)
		if err != nil {
			return err
		}
		view, err := c.getSession(cmd.Context())
		if err != nil {
			return err
		}
		return printSession(cmd.OutOrStdout(), view, showJSON)
	},
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the stored session and its messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(serverURL, userID, sessionID)
		if err != nil {
			return err
		}
		if err := c.resetSession(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), statusStyle.Render("session "+sessionID+" reset"))
		return nil
	},
}

func init() {
	sessionShowCmd.Flags().BoolVar(&showJSON, "json", false, "print the raw JSON view")
}

func printSession(out io.Writer, view *api.SessionView, raw bool) error {
	if raw {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	fmt.Fprintln(out, headerStyle.Render("session "+view.SessionID))
	if !view.Exists {
		fmt.Fprintln(out, statusStyle.Render("no conversation yet"))
		return nil
	}

	a := view.Artifact
	stage := "-"
	if a.Stage != nil {
		stage = string(*a.Stage)
	}
	fmt.Fprintf(out, "topic:    %s\nstage:    %s\nprogress: %d%%\n", a.Topic, stage, view.Percent)
	if len(view.Missing) > 0 {
		fmt.Fprintf(out, "missing:  %s\n", strings.Join(view.Missing, ", "))
	}
	if a.Major != "" {
		fmt.Fprintf(out, "major:    %s\n", a.Major)
	}
	if len(a.CareerGoals) > 0 {
		fmt.Fprintf(out, "goals:    %s\n", strings.Join(a.CareerGoals, "; "))
	}
	if len(a.CoursesSelected) > 0 {
		fmt.Fprintf(out, "courses:  %s\n", strings.Join(a.CoursesSelected, ", "))
	}
	fmt.Fprintln(out, statusStyle.Render(fmt.Sprintf("%d messages · version %d", len(view.Messages), view.Version)))
	return nil
}
