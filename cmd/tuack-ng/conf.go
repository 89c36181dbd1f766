package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tuackng/internal/contest"
	appErr "tuackng/pkg/errors"
)

func newConfCmd(a *app) *cobra.Command {
	var (
		dir      string
		maxDepth int
	)
	cmd := &cobra.Command{
		Use:   "conf",
		Short: "Print the resolved contest configuration",
		Long:  "Load the contest, day and problem records and print the merged tree as YAML.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("max-depth") {
				maxDepth = a.cfg.Render.MaxDepth
			}
			start, err := startDir(dir)
			if err != nil {
				return err
			}
			c, err := contest.Load(cmd.Context(), start, contest.LocateOptions{MaxDepth: maxDepth})
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(a.outW)
			enc.SetIndent(2)
			if err := enc.Encode(c); err != nil {
				return appErr.Wrapf(err, appErr.InternalError, "failed to encode contest configuration")
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "C", "", "start the contest search here instead of the working directory")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "parent directories searched for the contest root, 0 for no limit")
	return cmd
}
