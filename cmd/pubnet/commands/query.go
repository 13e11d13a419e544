package commands

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/sanonone/pubnet/pkg/core/table"
	"github.com/sanonone/pubnet/pkg/edge"
	"github.com/sanonone/pubnet/pkg/network"
	"github.com/sanonone/pubnet/pkg/storage"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the node and edge collections of a graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph(cmd)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), g.String())
		return nil
	},
}

var (
	sliceOut    string
	sliceFormat string
)

var sliceCmd = &cobra.Command{
	Use:   "slice ID...",
	Short: "Restrict a graph to the given root ids and save it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		g, err := loadGraph(cmd)
		if err != nil {
			return err
		}
		s, err := g.Slice(ids)
		if err != nil {
			return err
		}
		return save(cmd, s, sliceOut, sliceFormat, false)
	},
}

var (
	convertOut       string
	convertFormat    string
	convertOverwrite bool
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Rewrite a graph in another file format",
	Long: `Rewrite every collection of a graph. Without --out the graph is
rewritten in place; --overwrite then removes the files of the old format.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph(cmd)
		if err != nil {
			return err
		}
		out := convertOut
		if out == "" {
			out = cfg.GraphDir()
		}
		return save(cmd, g, out, convertFormat, convertOverwrite)
	},
}

func save(cmd *cobra.Command, g *network.PubNet, dir, format string, overwrite bool) error {
	if format == "" {
		format = cfg.Format
	}
	f, err := storage.ParseFormat(format)
	if err != nil {
		return err
	}
	paths, err := g.ToDir(dir, network.SaveOptions{Format: f, Overwrite: overwrite})
	if err != nil {
		return err
	}
	slog.Info("Graph saved", "dir", dir, "format", f, "files", len(paths))
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s files to %s\n", humanize.Comma(int64(len(paths))), dir)
	return nil
}

var pathsCmd = &cobra.Command{
	Use:   "paths EDGE ID...",
	Short: "Shortest co-occurrence distances between start-type ids",
	Long: `Build the co-occurrence graph of an edge collection (two start-type ids
are joined with weight 1/shared neighbors) and print the distance of every
pair of requested ids that is connected. EDGE is a key such as
Author-Publication. The edge is always loaded with the compressed backend.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args[1:])
		if err != nil {
			return err
		}
		cfg.Representation = string(edge.BackendCompressed)
		g, err := loadGraph(cmd)
		if err != nil {
			return err
		}
		lengths, err := g.ShortestPath(args[0], ids)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "A\tB\tDISTANCE")
		for _, l := range lengths {
			fmt.Fprintf(w, "%d\t%d\t%g\n", l.A, l.B, l.Distance)
		}
		return w.Flush()
	},
}

var overlapCmd = &cobra.Command{
	Use:   "overlap EDGE",
	Short: "Shared-neighbor counts between start-type ids",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph(cmd)
		if err != nil {
			return err
		}
		counts, err := g.Overlap(args[0])
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "A\tB\tSHARED")
		for _, o := range counts {
			fmt.Fprintf(w, "%d\t%d\t%d\n", o.A, o.B, o.Count)
		}
		return w.Flush()
	},
}

var containingSteps int

var containingCmd = &cobra.Command{
	Use:   "containing TYPE COLUMN VALUE...",
	Short: "Root ids linked to rows whose column matches one of the values",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph(cmd)
		if err != nil {
			return err
		}
		n, err := g.Node(args[0])
		if err != nil {
			return err
		}
		col, err := n.Get(args[1])
		if err != nil {
			return err
		}
		values := make([]any, 0, len(args)-2)
		for _, raw := range args[2:] {
			v, err := table.Parse(col.Kind(), raw)
			if err != nil {
				return fmt.Errorf("value %q for %s column %s: %w", raw, col.Kind(), args[1], err)
			}
			values = append(values, v)
		}
		ids, err := g.IDsContaining(args[0], args[1], values, containingSteps)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	sliceCmd.Flags().StringVarP(&sliceOut, "out", "o", "", "Directory to write the sliced graph to")
	sliceCmd.Flags().StringVarP(&sliceFormat, "format", "f", "", "Save format: tsv, gzip or binary")
	sliceCmd.MarkFlagRequired("out")

	convertCmd.Flags().StringVarP(&convertOut, "out", "o", "", "Target directory (default: the source graph directory)")
	convertCmd.Flags().StringVarP(&convertFormat, "format", "f", "binary", "Save format: tsv, gzip or binary")
	convertCmd.Flags().BoolVar(&convertOverwrite, "overwrite", false, "Remove graph files not rewritten by this conversion")

	containingCmd.Flags().IntVar(&containingSteps, "steps", 1, "Number of expansion steps through TYPE")
}
