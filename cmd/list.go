package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kesrev/rmanfetch/internal/output"
	"github.com/kesrev/rmanfetch/internal/rman"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the files a manifest (after filtering/upgrade elision) would download",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := loadPlan()
			if err != nil {
				return err
			}
			for _, f := range list.Files {
				fmt.Printf("%s  %s  %s\n", output.FormatBytes(uint64(f.Size)), rman.Hex(f.ID), f.Path)
			}
			output.PrintInfo(fmt.Sprintf("%d file(s)", len(list.Files)))
			return nil
		},
	}
}

func newListBundlesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-bundles",
		Short: "List the distinct bundles the filtered file set requires",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := loadPlan()
			if err != nil {
				return err
			}
			seen := make(map[rman.BundleID]struct{})
			var ordered []rman.BundleID
			for _, f := range list.Files {
				for _, c := range f.Chunks {
					if _, ok := seen[c.BundleID]; !ok {
						seen[c.BundleID] = struct{}{}
						ordered = append(ordered, c.BundleID)
					}
				}
			}
			for _, id := range ordered {
				fmt.Println(rman.Hex(id))
			}
			output.PrintInfo(fmt.Sprintf("%d bundle(s)", len(ordered)))
			return nil
		},
	}
}

func newListChunksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-chunks",
		Short: "List every chunk the filtered file set requires",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := loadPlan()
			if err != nil {
				return err
			}
			count := 0
			for _, f := range list.Files {
				for _, c := range f.Chunks {
					fmt.Printf("%s  bundle=%s  %s\n", rman.Hex(c.ID), rman.Hex(c.BundleID), f.Path)
					count++
				}
			}
			output.PrintInfo(fmt.Sprintf("%d chunk(s)", count))
			return nil
		},
	}
}
