package cmd

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/timmy/shareledger/internal/client"
)

type connectionFlags struct {
	url     string
	token   string
	timeout time.Duration
}

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	conn := &connectionFlags{}
	cmd := &cobra.Command{
		Use:           "shareledgerctl",
		Short:         "shareledgerctl uploads position files and follows their ingest jobs.",
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&conn.url, "url", envOr("SHARELEDGER_URL", "http://localhost:8080"), "API base URL")
	cmd.PersistentFlags().StringVar(&conn.token, "token", os.Getenv("SHARELEDGER_TOKEN"), "Bearer token")
	cmd.PersistentFlags().DurationVar(&conn.timeout, "timeout", 30*time.Second, "Per-request timeout")

	cmd.AddCommand(
		uploadCmd(conn),
		statusCmd(conn),
		tokenCmd(),
	)
	return cmd
}

func (c *connectionFlags) client() *client.Client {
	return client.New(client.Config{BaseURL: c.url, Token: c.token, Timeout: c.timeout})
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
