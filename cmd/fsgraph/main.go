/*
 * fsgraph visualizes a directory tree as a force-directed graph.
 *
 * `fsgraph serve` scans a directory, keeps the layout simulation running and
 * serves stats, metrics and debug frames over HTTP. `fsgraph layout` is the
 * offline variant: scan once, simulate to convergence, dump positions as JSON
 * and optionally a PNG.
 */
package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/suxatcode/fsgraph/internal/app"
	"github.com/suxatcode/fsgraph/internal/controller"
	"github.com/suxatcode/fsgraph/render"
	"github.com/suxatcode/fsgraph/source"
)

func main() {
	root := &cobra.Command{
		Use:          "fsgraph",
		Short:        "force-directed filesystem graph",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), layoutCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "watch a directory and serve the running layout (config via environment)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx)
		},
	}
}

func layoutCmd() *cobra.Command {
	var (
		tuningFile string
		pngFile    string
		maxSteps   int
		zoom       float64
	)
	cmd := &cobra.Command{
		Use:   "layout <dir>",
		Short: "scan a directory, simulate to convergence, print positions as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := source.Scan(args[0])
			if err != nil {
				return err
			}
			simConf, err := app.LoadTuning(tuningFile)
			if err != nil {
				return err
			}
			engine := controller.NewGraphEngine(controller.Config{Simulation: simConf})
			if err := engine.ApplySnapshot(snap); err != nil {
				return err
			}
			steps := 0
			for ; steps < maxSteps; steps++ {
				engine.Step(1.0 / 60.0)
				if engine.Stats().Converged {
					break
				}
			}
			stats := engine.Stats()
			okOrNot := color.GreenString("converged")
			if !stats.Converged {
				okOrNot = color.YellowString("not converged")
			}
			color.New(color.Bold).Fprintf(cmd.ErrOrStderr(),
				"%d nodes, %d steps, kinetic energy %.6f, %s\n",
				stats.Nodes, steps, stats.KineticEnergy, okOrNot)
			if pngFile != "" {
				if err := writePNG(engine, pngFile, zoom); err != nil {
					return err
				}
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(engine.Positions())
		},
	}
	cmd.Flags().StringVar(&tuningFile, "tuning", "", "yaml file with simulation overrides")
	cmd.Flags().StringVar(&pngFile, "png", "", "also render the final layout to this file")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 10000, "give up after this many steps")
	cmd.Flags().Float64Var(&zoom, "zoom", 1.0, "zoom level for --png")
	return cmd
}

func writePNG(engine *controller.GraphEngine, path string, zoom float64) error {
	engine.ZoomBy(zoom)
	engine.Step(0)
	buf, uniforms := engine.CopyFrame(nil)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return render.WritePNG(f, buf, engine.Camera(), uniforms)
}
