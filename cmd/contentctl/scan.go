package main

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"websites-content-system/pkg/models"
	"websites-content-system/pkg/sitescan"
	"websites-content-system/pkg/tree"
)

func newScanCmd(logger func() *zap.Logger) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "scan <repository>",
		Short: "Build the page tree of a site checkout from its templates directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := sitescan.New(logger()).ScanRepository(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(filepath.Clean(args[0]))
			}
			return writeJSON(cmd, models.ProjectTree{Name: name, Templates: tree.SortByName(root)})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name (defaults to the directory name)")
	return cmd
}
