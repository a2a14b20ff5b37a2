package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ankoh/dashql-sub001/manager"
	"github.com/ankoh/dashql-sub001/transform"
	"github.com/ankoh/dashql-sub001/utils"
	"github.com/ankoh/dashql-sub001/worker"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
)

const tableID = 1

type analyzeFlags struct {
	bins    int
	filters []string
	order   string
	ipc     bool
	dump    bool
	verbose bool
}

func main() {
	root := &cobra.Command{
		Use:          "tablestats",
		Short:        "Column statistics for tabular files",
		SilenceUsage: true,
	}
	root.AddCommand(analyzeCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func analyzeCommand() *cobra.Command {
	var flags analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze <file.csv>",
		Short: "Summarize every column of a csv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return analyze(cmd.Context(), args[0], flags)
		},
	}

	defaults := manager.DefaultConfig()
	cmd.Flags().IntVar(&flags.bins, "bins", defaults.BinCount, "histogram bins per ordinal column")
	cmd.Flags().StringArrayVar(&flags.filters, "filter", nil, "row filter such as score<20, repeatable")
	cmd.Flags().StringVar(&flags.order, "order", "", "ordering such as score:desc")
	cmd.Flags().BoolVar(&flags.ipc, "ipc", false, "route tables through the lz4 ipc codec")
	cmd.Flags().BoolVar(&flags.dump, "dump", false, "dump the computation state")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "log task lifecycle")
	return cmd
}

func analyze(ctx context.Context, path string, flags analyzeFlags) error {
	level := slog.LevelWarn
	if flags.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	filters := make([]transform.FilterTransform, 0, len(flags.filters))
	for _, expr := range flags.filters {
		f, err := transform.ParseFilter(expr)
		if err != nil {
			return err
		}
		filters = append(filters, f)
	}

	rec, err := readCSV(path)
	if err != nil {
		return err
	}
	defer rec.Release()

	wc := worker.DefaultConfig()
	wc.Routines = int(utils.GetEnvOrDefaultInt("TABLESTATS_WORKERS", int64(wc.Routines)))
	wc.IPC = flags.ipc
	wc.Debug = flags.verbose
	wc.Logger = logger
	w, err := worker.New(wc)
	if err != nil {
		return fmt.Errorf("unable to start worker: %w", err)
	}
	defer w.Close()

	mc := manager.DefaultConfig()
	mc.BinCount = flags.bins
	mc.Logger = logger
	m, err := manager.New(w, mc)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.ComputeTable(ctx, tableID, rec); err != nil {
		return err
	}
	if err := m.AnalyzeTable(ctx, tableID); err != nil {
		return err
	}

	if flags.order != "" {
		c, err := transform.ParseOrder(flags.order)
		if err != nil {
			return err
		}
		if err := m.SortTable(ctx, tableID, []transform.OrderByConstraint{c}); err != nil {
			return err
		}
	}

	if len(filters) > 0 {
		if err := m.FilterTable(ctx, tableID, filters); err != nil {
			return err
		}
		if err := m.FilterColumns(ctx, tableID); err != nil {
			return err
		}
	}

	s := m.State()
	t, ok := s.Table(tableID)
	if !ok {
		return manager.ErrUnknownTable
	}
	printSummary(os.Stdout, path, t)

	if flags.dump {
		cfg := spew.ConfigState{Indent: "  ", MaxDepth: 4, DisablePointerAddresses: true, SortKeys: true}
		cfg.Fdump(os.Stdout, s)
	}
	return nil
}

func readCSV(path string) (arrow.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open `%s`: %w", path, err)
	}
	defer f.Close()

	r := csv.NewInferringReader(f,
		csv.WithHeader(true),
		csv.WithChunk(-1),
		csv.WithNullReader(true, ""),
	)
	defer r.Release()

	if !r.Next() {
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("unable to read `%s`: %w", path, err)
		}
		return nil, fmt.Errorf("`%s` contains no rows", path)
	}

	rec := r.Record()
	rec.Retain()
	return rec, nil
}
