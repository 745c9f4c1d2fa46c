package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/easygo-cv/cvforge/pkg/config"
	"github.com/easygo-cv/cvforge/pkg/tracker"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		caller     string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show generation token usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer tr.Close()

			summaries, err := tr.Summary(context.Background(), caller)
			if err != nil {
				return err
			}

			if len(summaries) == 0 {
				fmt.Println("No usage data found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CALLER\tMODEL\tREQUESTS\tPROMPT\tCOMPLETION\tTOTAL")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n",
					s.CallerID, s.Model, s.RequestCount, s.TotalPrompt, s.TotalCompletion, s.TotalTokens)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cvforge.yaml", "path to config file")
	cmd.Flags().StringVar(&caller, "caller", "", "filter by caller id")
	return cmd
}
