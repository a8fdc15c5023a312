package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"annobox/pkg/box"
	"annobox/pkg/container"
	"annobox/pkg/render"
)

var (
	renderBatch  string
	renderOutput string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a batch to a static HTML page",
	Long: `Render a batch to HTML without serving it, for previewing item
markup. The forms in the output post to the serve command's routes.

Examples:
  annobox render --batch items.json > preview.html
  annobox render --batch items.yaml -o preview.html`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setFlag(cfgManager, cmd, "batch", "batch_file", renderBatch); err != nil {
			return err
		}
		cfg := cfgManager.Get()
		batch, err := loadBatch(cfg)
		if err != nil {
			return err
		}

		items, err := container.New(batch, box.WithLogger(logger))
		if err != nil {
			return err
		}
		renderer, err := render.New()
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if renderOutput != "" && renderOutput != "-" {
			f, err := os.Create(renderOutput)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		view := items.View(cfg.Title, func(i int) string { return fmt.Sprintf("/api/items/%d", i) })
		if err := renderer.Page(out, view); err != nil {
			return err
		}
		logger.Debug("rendered batch", "items", items.Len(), "output", renderOutput)
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderBatch, "batch", "", "batch file (.json, .yaml or .yml)")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "-", "output file, - for stdout")

	rootCmd.AddCommand(renderCmd)
}
