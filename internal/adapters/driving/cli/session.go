package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect retrieval sessions",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show the recorded history of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

func init() {
	sessionCmd.AddCommand(sessionShowCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}
	if svc.Sessions == nil {
		return errors.New("session store not configured")
	}

	session, err := svc.Sessions.GetSession(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("session %s not found", args[0])
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	cmd.Printf("Session %s (%d of %d entries)\n", session.ID, len(session.History), domain.MaxSessionHistory)
	for i, m := range session.History {
		cmd.Printf("  [%d] Q: %s\n", i+1, m.Query)
		if m.Response != "" {
			cmd.Printf("      A: %s\n", snippet(m.Response, 120))
		}
	}
	return nil
}
