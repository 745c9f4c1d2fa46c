package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// grant talks to a running server because the ledger lives in memory; there
// is nothing to credit when the server is down.
func newGrantCmd() *cobra.Command {
	var (
		addr   string
		amount int
	)

	cmd := &cobra.Command{
		Use:   "grant <user-id>",
		Short: "Credit generation tokens to a user on a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]any{
				"user_id": args[0],
				"amount":  amount,
			})

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Post(addr+"/api/admin/credit", "application/json", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("credit request: %w", err)
			}
			defer resp.Body.Close()

			out, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("credit failed: %s: %s", resp.Status, out)
			}

			var result struct {
				TokensRemaining int `json:"tokens_remaining"`
			}
			if err := json.Unmarshal(out, &result); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Printf("credited %d tokens to %s, balance now %d\n", amount, args[0], result.TokensRemaining)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "base URL of the running server")
	cmd.Flags().IntVar(&amount, "amount", 5, "tokens to credit")
	return cmd
}
