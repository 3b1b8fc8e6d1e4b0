package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"websites-content-system/pkg/models"
	"websites-content-system/pkg/tree"
)

type filterOptions struct {
	owners    []string
	reviewers []string
	products  []string
	query     string
	policy    string
}

func newFilterCmd() *cobra.Command {
	var opts filterOptions
	cmd := &cobra.Command{
		Use:   "filter [tree.json|-]",
		Short: "Prune an exported project tree to the pages matching a filter",
		Long: `Reads a project tree ({"name", "templates"}) or a list of them, as returned
by /api/get-tree and /api/projects, and prints the pruned tree.

Example:
  contentctl filter ubuntu.json --owner ada@example.com --product Kubernetes`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runFilter(cmd, path, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.owners, "owner", nil, "owner email (repeatable)")
	cmd.Flags().StringSliceVar(&opts.reviewers, "reviewer", nil, "reviewer email (repeatable)")
	cmd.Flags().StringSliceVar(&opts.products, "product", nil, "product name (repeatable)")
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "substring of page name or url")
	cmd.Flags().StringVar(&opts.policy, "policy", "keep", "keep or promote non-matching ancestors")
	return cmd
}

func (o filterOptions) spec(cmd *cobra.Command) models.FilterSpec {
	f := models.FilterSpec{Owners: o.owners, Reviewers: o.reviewers, Products: o.products}
	if cmd.Flags().Changed("query") {
		q := o.query
		f.Query = &q
	}
	return f
}

func runFilter(cmd *cobra.Command, path string, opts filterOptions) error {
	policy, err := tree.ParsePolicy(opts.policy)
	if err != nil {
		return err
	}
	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	filter := opts.spec(cmd)

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var projects []models.ProjectTree
		if err := json.Unmarshal(trimmed, &projects); err != nil {
			return fmt.Errorf("decode projects: %w", err)
		}
		return writeJSON(cmd, tree.FilterProjects(projects, filter, policy))
	}

	var project models.ProjectTree
	if err := json.Unmarshal(data, &project); err != nil {
		return fmt.Errorf("decode project: %w", err)
	}
	if project.Templates == nil {
		return fmt.Errorf("%s: no templates root", path)
	}
	return writeJSON(cmd, tree.FilterProjectWithPolicy(project, filter, policy))
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
