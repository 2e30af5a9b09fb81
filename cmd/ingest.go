package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/memory"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Write to the memory store",
}

var ingestFragmentCmd = &cobra.Command{
	Use:   "fragment <content>",
	Short: "Append one applicant evidence fragment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openIngestStore()
		if err != nil {
			return err
		}
		defer store.Close()

		tags, _ := cmd.Flags().GetStringSlice("tags")

		id, err := store.IngestFragment(context.Background(), args[0], tags)
		if err != nil {
			return err
		}

		fmt.Printf("fragment %d stored\n", id)
		return nil
	},
}

var ingestOutcomeCmd = &cobra.Command{
	Use:   "outcome <record-id> <pending|rejected|interview|offer> [reason]",
	Short: "Append a status transition for a past application",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(_ *cobra.Command, args []string) error {
		store, err := openIngestStore()
		if err != nil {
			return err
		}
		defer store.Close()

		reason := ""
		if len(args) == 3 {
			reason = args[2]
		}

		ctx := context.Background()
		if err := store.AppendOutcome(ctx, args[0], args[1], reason); err != nil {
			return err
		}

		// Read the state back from the ledger so the confirmation reflects
		// what was actually stored.
		outcome, storedReason, err := store.CurrentOutcome(ctx, args[0])
		if err != nil {
			return err
		}

		if storedReason != "" {
			fmt.Printf("record %s is now %s (%s)\n", args[0], outcome, storedReason)
		} else {
			fmt.Printf("record %s is now %s\n", args[0], outcome)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestFragmentCmd)
	ingestCmd.AddCommand(ingestOutcomeCmd)

	ingestCmd.PersistentFlags().String("memory", "", "path to the memory store (default is "+defaultMemoryPath+")")
	ingestFragmentCmd.Flags().StringSlice("tags", nil, "comma-separated fragment tags")

	viper.BindPFlag("memory-path", ingestCmd.PersistentFlags().Lookup("memory"))
}

func openIngestStore() (*memory.Store, error) {
	path := strings.TrimSpace(viper.GetString("memory-path"))
	if path == "" {
		path = defaultMemoryPath
	}
	return memory.Open(path)
}
