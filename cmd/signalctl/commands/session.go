package commands

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect live signaling sessions",
	}

	cmd.AddCommand(sessionListCmd())

	return cmd
}

func sessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all live sessions",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			resp, err := httpClient.Get(serverAddr + "/api/admin/sessions")
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("list sessions: daemon returned %s", resp.Status)
			}

			var body sessionsResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return fmt.Errorf("decode sessions response: %w", err)
			}

			out, err := formatSessions(body.Sessions, outputFormat)
			if err != nil {
				return fmt.Errorf("format sessions: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}
