package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/ussdflow"
	"github.com/aretw0/ussdflow/internal/cli"
	"github.com/aretw0/ussdflow/pkg/persistence/middleware"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage live sessions",
	Long:  `List, inspect, and remove sessions held by the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all active sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeStore, err := openService()
		if err != nil {
			return err
		}
		defer closeStore()

		ids, err := svc.Sessions().List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No active sessions found.")
			return nil
		}
		slices.Sort(ids)
		fmt.Fprintln(out, "Active Sessions:")
		for _, id := range ids {
			fmt.Fprintln(out, "- "+id)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Inspect the state of a session",
	Long:  `Prints the session with PIN hashes and recipients masked, then the prompt it is waiting on.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]
		svc, closeStore, err := openService()
		if err != nil {
			return err
		}
		defer closeStore()

		redact, err := middleware.NewRedactionMiddleware(middleware.DefaultRedactPatterns)
		if err != nil {
			return err
		}
		sess, err := redact(svc.Sessions().Store()).Get(cmd.Context(), sessionID)
		if err != nil {
			return fmt.Errorf("load session %q: %w", sessionID, err)
		}

		data, err := json.MarshalIndent(sess, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, string(data))

		if prompt, err := svc.Prompt(sess); err == nil {
			fmt.Fprintf(out, "\nWaiting on:\n%s\n", prompt)
		}
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm [session-id...]",
	Short: "Remove one or more sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if len(args) == 0 && !all {
			return errors.New("give session ids or --all")
		}

		svc, closeStore, err := openService()
		if err != nil {
			return err
		}
		defer closeStore()

		ids := args
		if all {
			if ids, err = svc.Sessions().List(cmd.Context()); err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		var errs []error
		for _, id := range ids {
			if err := svc.Sessions().Delete(cmd.Context(), id); err != nil {
				errs = append(errs, fmt.Errorf("remove %q: %w", id, err))
				continue
			}
			fmt.Fprintf(out, "Removed session '%s'\n", id)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
	sessionRmCmd.Flags().Bool("all", false, "Remove every session")
}

// openService builds the service on the configured store, for operator commands.
func openService() (*ussdflow.Service, func(), error) {
	b, err := cli.OpenStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if err := b.Close(); err != nil {
			logger.Warn("close store", "err", err)
		}
	}

	opts, err := cli.ServiceOptions(cfg, logger)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	svc, err := ussdflow.New(append(opts, ussdflow.WithStore(b.Store))...)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return svc, closeStore, nil
}
