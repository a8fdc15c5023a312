package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"annobox/pkg/annotation"
	"annobox/pkg/box"
	"annobox/pkg/submit"
)

var (
	submitBatch  string
	submitItem   int
	submitLabels []string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Annotate one batch item from the command line",
	Long: `Record judgments for one item and submit them, exactly as a click on
the page would. A single-label item submits as soon as its label is set.

Values are 1 (yes), -1 (no) or 0 (not sure).

Examples:
  annobox submit --batch items.json --item 3 --label spam=1
  annobox submit --batch items.json --item 4 --label spam=-1 --label ads=0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := setFlag(cfgManager, cmd, "batch", "batch_file", submitBatch); err != nil {
			return err
		}
		cfg := cfgManager.Get()
		batch, err := loadBatch(cfg)
		if err != nil {
			return err
		}
		if submitItem < 0 || submitItem >= len(batch) {
			return fmt.Errorf("item %d out of range, batch has %d items", submitItem, len(batch))
		}

		b, err := box.New(batch[submitItem],
			box.WithIndex(submitItem),
			box.WithLogger(logger),
			box.WithSubmitter(newSubmitClient(cfg)),
			box.WithNavigator(printNavigator{w: cmd.OutOrStdout(), base: cfg.ServerURL}),
		)
		if err != nil {
			return err
		}

		for _, kv := range submitLabels {
			label, raw, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("label %q: want LABEL=VALUE", kv)
			}
			v, err := annotation.ParseValue(raw)
			if err != nil {
				return fmt.Errorf("label %q: %w", label, err)
			}
			if _, err := b.SetLabel(ctx, label, v); err != nil {
				return err
			}
		}
		if b.State() != box.Submitted {
			if _, err := b.Submit(ctx); err != nil {
				return err
			}
		}

		snap := b.Snapshot()
		if snap.Outcome.DryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "testing: payload logged, not sent")
		} else if snap.Outcome.Redirect == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "submitted")
		}
		return nil
	},
}

// printNavigator reports the page the browser would move to.
type printNavigator struct {
	w    io.Writer
	base string
}

func (n printNavigator) Navigate(_ context.Context, url string) {
	fmt.Fprintf(n.w, "submitted, next: %s\n", submit.ResolveRedirect(n.base, url))
}

func init() {
	submitCmd.Flags().StringVar(&submitBatch, "batch", "", "batch file (.json, .yaml or .yml)")
	submitCmd.Flags().IntVar(&submitItem, "item", 0, "index of the item in the batch")
	submitCmd.Flags().StringArrayVarP(&submitLabels, "label", "l", nil, "LABEL=VALUE judgment, repeatable")

	rootCmd.AddCommand(submitCmd)
}
