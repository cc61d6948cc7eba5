package cli

import (
	"time"

	"github.com/lintang-b-s/roadgraph/pkg/contractor"
	"github.com/lintang-b-s/roadgraph/pkg/enrich"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/lintang-b-s/roadgraph/pkg/grid"
	"github.com/lintang-b-s/roadgraph/pkg/kv"
	"github.com/lintang-b-s/roadgraph/pkg/logging"
	"github.com/lintang-b-s/roadgraph/pkg/osmparser"
	"github.com/lintang-b-s/roadgraph/pkg/splitter"
	"github.com/lintang-b-s/roadgraph/pkg/tracer"
	"github.com/spf13/cobra"
)

// attempts and pauses for the remote elevation calls
const (
	enrichAttempts = 5
	enrichDelay    = 3 * time.Second
	nodesAttempts  = 3
	nodesDelay     = 2 * time.Second
)

func (c *CLI) ingestCommand() *cobra.Command {
	var mapFile string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load highways and intersections from an .osm.pbf extract",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			_, err = osmparser.NewOSMParser(c.cfg.Boundary.BoundingBox()).Parse(ctx, mapFile, st)
			return err
		},
	}
	cmd.Flags().StringVarP(&mapFile, "file", "f", "", "openstreetmap .osm.pbf file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (c *CLI) enrichCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enrich",
		Short: "Add elevation, traffic signals and way ids to intersections",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			elev := c.elevationClient(ctx, enrichAttempts, enrichDelay)
			_, err = enrich.NewEnricher(st, elev, enrich.DefaultBatchSize).Run(ctx)
			return err
		},
	}
}

func (c *CLI) discoverCommand() *cobra.Command {
	var (
		multi bool
		size  int
	)
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Trace pathways between intersections, cell by cell",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("multi") {
				c.cfg.Grid.Multi = multi
			}
			c.cfg.Grid.Size = gridSize(c.cfg.Grid.Size, c.cfg.Grid.DefaultSize(), cmd.Flags().Changed("multi"), size)

			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			progress, closeProgress, err := c.openProgress()
			if err != nil {
				return err
			}
			defer closeProgress()

			elev := c.elevationClient(ctx, nodesAttempts, nodesDelay)
			t := tracer.NewTracer(st, elev, progress, c.metrics, nil, tracer.DefaultOptions())
			g := grid.NewGrid(c.cfg.Boundary.BoundingBox(), c.cfg.Grid.Size)
			logging.FromContext(ctx).Infof("discovering pathways on a %dx%d grid", g.Size(), g.Size())

			stats, err := t.Run(ctx, g, c.cfg.Grid.Workers)
			if err != nil {
				return err
			}
			if n := stats.Failed.Load(); n > 0 {
				return errs.New(errs.ErrCodeTransientRemote,
					"%d intersections failed and stay unaddressed, run discover again to resume", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&multi, "multi", false, "split the boundary into a grid and trace cells concurrently")
	cmd.Flags().IntVar(&size, "grid", 0, "grid side length in cells (default 28 with --multi, else 1)")
	return cmd
}

// gridSize picks the grid side: an explicit --grid wins, toggling --multi
// resets the side to that mode's default, otherwise the config value stays.
func gridSize(configured, modeDefault int, multiChanged bool, flag int) int {
	switch {
	case flag > 0:
		return flag
	case multiChanged:
		return modeDefault
	default:
		return configured
	}
}

func (c *CLI) mergeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Contract degree-2 intersections and report duplicate edges",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			_, err = contractor.NewContractor(st, c.metrics, c.cfg.Contraction.Workers).Run(ctx)
			return err
		},
	}
}

func (c *CLI) splitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "split",
		Short: "Expand intersections into direction-aware sub-nodes with turn transitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			_, err = splitter.NewSplitter(st, c.metrics, c.cfg.Contraction.Workers).Split(ctx)
			return err
		},
	}
}

func (c *CLI) exportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the split graph and its h3 index to badger",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			db, err := kv.OpenKVDB(c.cfg.Export.Dir)
			if err != nil {
				return err
			}
			defer db.Close()

			_, err = kv.NewGraphExporter(db, c.cfg.Export.Resolution).Export(ctx, st)
			return err
		},
	}
}

func (c *CLI) resetCommand() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop derived collections and clear the discovery checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			if err := st.Reset(ctx, all); err != nil {
				return err
			}

			progress, closeProgress, err := c.openProgress()
			if err != nil {
				return err
			}
			defer closeProgress()
			if err := progress.Clear(ctx); err != nil {
				return err
			}
			logging.FromContext(ctx).Info("reset done", "all", all)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "also drop intersections and the helper collections")
	return cmd
}
