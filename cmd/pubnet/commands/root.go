// Package commands implements the pubnet command line.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/natefinch/lumberjack"
	"github.com/sanonone/pubnet/pkg/config"
	"github.com/sanonone/pubnet/pkg/core/types"
	"github.com/sanonone/pubnet/pkg/network"
	"github.com/spf13/cobra"
)

// Rotation limits of the log file.
const (
	logMaxSizeMB = 50
	logMaxAgeDay = 14
)

var (
	cfgFile string
	cfg     config.Config

	// Flag overrides applied on top of the config file.
	dirFlag            string
	rootFlag           string
	representationFlag string
	verbose            bool
)

var rootCmd = &cobra.Command{
	Use:   "pubnet",
	Short: "Inspect, slice and convert publication graphs",
	Long: `pubnet loads a publication graph from a directory of node and edge
files and runs queries against it.

Node files are named {Type}_nodes.{feather,tsv,tsv.gz}; edge files are named
{TypeA}_{TypeB}_edges.{npy,tsv,tsv.gz,ig}.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&dirFlag, "dir", "d", "", "Graph directory (overrides data_dir/graph_name)")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Root node type")
	rootCmd.PersistentFlags().StringVar(&representationFlag, "representation", "", "Edge backend: dense or compressed")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	rootCmd.AddCommand(infoCmd, sliceCmd, convertCmd, pathsCmd, overlapCmd, containingCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}
	if dirFlag != "" {
		cfg.DataDir, cfg.GraphName = dirFlag, ""
	}
	if rootFlag != "" {
		cfg.Root = rootFlag
	}
	if representationFlag != "" {
		cfg.Representation = representationFlag
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	slog.SetDefault(newLogger(cfg))
	return nil
}

func newLogger(c config.Config) *slog.Logger {
	var out io.Writer = os.Stderr
	if c.LogFile != "" {
		out = &lumberjack.Logger{
			Filename: c.LogFile,
			MaxSize:  logMaxSizeMB,
			MaxAge:   logMaxAgeDay,
		}
	}

	level := slog.LevelInfo
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

// loadGraph reads the configured graph directory.
func loadGraph(cmd *cobra.Command) (*network.PubNet, error) {
	backend, err := cfg.Backend()
	if err != nil {
		return nil, err
	}
	opts := network.DirOptions{
		Options: network.Options{
			Root:    cfg.Root,
			Backend: backend,
			Logger:  slog.Default(),
		},
		Nodes:   cfg.Nodes,
		Edges:   cfg.Edges,
		Workers: cfg.Workers,
	}
	return network.FromDir(cmd.Context(), cfg.GraphDir(), opts)
}

// parseIDs accepts ids as separate arguments or comma-separated lists.
func parseIDs(args []string) ([]types.ID, error) {
	var ids []types.ID
	for _, arg := range args {
		for _, field := range strings.Split(arg, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			n, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: id %q", types.ErrInvalidArgument, field)
			}
			ids = append(ids, types.ID(n))
		}
	}
	return ids, nil
}
