package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickchristie/agentcore/checkpoint"
)

// checkpointsCmd manages checkpoints from another terminal. Decisions reach a waiting
// run through the shared store, so this needs the sqlite store.
func checkpointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "List and resolve pending checkpoints",
	}
	cmd.AddCommand(checkpointsListCmd())
	cmd.AddCommand(checkpointsDecideCmd("approve", "approved", "Approve a pending checkpoint"))
	cmd.AddCommand(checkpointsDecideCmd("reject", "rejected", "Reject a pending checkpoint"))
	return cmd
}

func openManager() (*checkpoint.Manager, func() error, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := cfg.OpenCheckpointStore()
	if err != nil {
		return nil, nil, err
	}
	return checkpoint.NewManager(cfg.CheckpointManagerConfig(store, nil)), closeStore, nil
}

func checkpointsListCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending checkpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeStore, err := openManager()
			if err != nil {
				return err
			}
			defer closeStore()

			recs, err := m.Pending(cmd.Context())
			if err != nil {
				return err
			}
			return printRecords(recs, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func checkpointsDecideCmd(use, done, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id] [note]",
		Short: short,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeStore, err := openManager()
			if err != nil {
				return err
			}
			defer closeStore()

			note := done + " from cli"
			if len(args) == 2 {
				note = args[1]
			}
			if use == "approve" {
				err = m.Approve(cmd.Context(), args[0], note)
			} else {
				err = m.Reject(cmd.Context(), args[0], note)
			}
			if err != nil {
				return err
			}
			fmt.Printf("%s checkpoint %s\n", done, args[0])
			return nil
		},
	}
}

func printRecords(recs []checkpoint.Record, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}
	if len(recs) == 0 {
		fmt.Println("No pending checkpoints.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSESSION\tWAITING")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Name, r.SessionID, time.Since(r.CreatedAt).Round(time.Second))
	}
	return tw.Flush()
}
