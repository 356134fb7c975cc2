package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func auditCmd() *cobra.Command {
	var n int
	var level string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit log entries",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			q := url.Values{}
			q.Set("n", strconv.Itoa(n))
			if level != "" {
				q.Set("level", level)
			}

			resp, err := httpClient.Get(serverAddr + "/api/admin/audit?" + q.Encode())
			if err != nil {
				return fmt.Errorf("fetch audit log: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("fetch audit log: daemon returned %s", resp.Status)
			}

			var body auditResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return fmt.Errorf("decode audit response: %w", err)
			}

			out, err := formatAudit(body.Entries, outputFormat)
			if err != nil {
				return fmt.Errorf("format audit entries: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().IntVar(&n, "n", 100, "number of entries to show")
	cmd.Flags().StringVar(&level, "level", "", "filter to one level: INFO, WARN, ERROR, SECURITY")

	return cmd
}
