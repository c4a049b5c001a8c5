package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kesrev/rmanfetch/internal/rman"
)

func newJSONCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "json",
		Short: "Dump the filtered manifest in the json export format",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := loadPlan()
			if err != nil {
				return err
			}
			data, err := (rman.JSONSource{}).Encode(list)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write the json export to this path instead of stdout")
	return cmd
}
