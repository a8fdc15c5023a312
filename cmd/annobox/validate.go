package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"annobox/pkg/annotation"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE...",
	Short: "Check batch files against the batch schema",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		for _, path := range args {
			batch, err := annotation.LoadBatch(path)
			if err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
				continue
			}
			binary := 0
			for i := range batch {
				if batch[i].IsBinary() {
					binary++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d items (%d binary, %d multi-label)\n",
				path, len(batch), binary, len(batch)-binary)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files invalid", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
