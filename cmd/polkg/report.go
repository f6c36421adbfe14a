package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/systemshift/polkg/internal/report"
)

var reportFormat string

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Print every node in the graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, func(r *report.Reporter, ctx context.Context, w io.Writer) error {
			return r.Nodes(ctx, w)
		})
	},
}

var relationshipsCmd = &cobra.Command{
	Use:     "relationships",
	Aliases: []string{"rels"},
	Short:   "Print every relationship in the graph",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, func(r *report.Reporter, ctx context.Context, w io.Writer) error {
			return r.Relationships(ctx, w)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{nodesCmd, relationshipsCmd} {
		c.Flags().StringVar(&reportFormat, "format", "text", "output format (text, json)")
	}
}

func runReport(cmd *cobra.Command, show func(*report.Reporter, context.Context, io.Writer) error) error {
	format, err := report.ParseFormat(reportFormat)
	if err != nil {
		return err
	}

	cfg, err := setup(false)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	return show(report.New(store, format, stdoutStyled()), ctx, cmd.OutOrStdout())
}
