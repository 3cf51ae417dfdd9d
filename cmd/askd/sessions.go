package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/askd/internal/config"
	"github.com/fyrsmithlabs/askd/internal/memory"
)

var (
	sessionsJSON bool
	searchK      int
	statusJSON   bool
)

func init() {
	sessionsCmd.PersistentFlags().BoolVar(&sessionsJSON, "json", false, "output as JSON")
	sessionsSearchCmd.Flags().IntVarP(&searchK, "k", "k", 5, "number of messages to return")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsClearCmd)
	sessionsCmd.AddCommand(sessionsSearchCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(statusCmd)
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored conversation sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored sessions, most recent first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Listing only reads session records, so no backends are needed.
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		root, err := config.ExpandPath(cfg.Memory.Path)
		if err != nil {
			return err
		}
		store, err := memory.NewFileStore(root)
		if err != nil {
			return err
		}
		sessions, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if sessionsJSON {
			if sessions == nil {
				sessions = []memory.Summary{}
			}
			return outputJSON(cmd.OutOrStdout(), sessions)
		}
		renderSessions(cmd.OutOrStdout(), sessions)
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a stored session and its indexed messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		existed, err := rt.engine.DeleteSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !existed {
			return fmt.Errorf("session %s not found", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("deleted session "+args[0]))
		return nil
	},
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.engine.ClearAllSessions(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("all sessions deleted"))
		return nil
	},
}

var sessionsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find past messages similar to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if searchK <= 0 {
			return fmt.Errorf("--k must be positive")
		}
		query, err := readQuestion(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		hits, err := rt.engine.SearchHistory(cmd.Context(), query, searchK)
		if err != nil {
			return err
		}
		if sessionsJSON {
			if hits == nil {
				hits = []memory.HistoryHit{}
			}
			return outputJSON(cmd.OutOrStdout(), hits)
		}
		renderHits(cmd.OutOrStdout(), hits)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the effective engine configuration",
	Long: `Start the engine with the current configuration and flags, and show which
backends it settled on after fallback.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		st := rt.engine.Status()
		if statusJSON {
			return outputJSON(cmd.OutOrStdout(), st)
		}
		renderStatus(cmd.OutOrStdout(), st)
		return nil
	},
}
