package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/venue-sim/venue-sim/sim"
	"github.com/venue-sim/venue-sim/sim/world"
)

var (
	// CLI flags for the run command
	seed         int64  // Master seed for all RNG subsystems
	horizon      int64  // Total simulation time (in ticks)
	logLevel     string // Log verbosity level
	scenarioPath string // YAML scenario file ("" = baked-in default)
	gridRows     int    // Analytics grid rows (overrides scenario if > 0)
	gridCols     int    // Analytics grid cols (overrides scenario if > 0)
	neighborK    int    // Routing graph nearest-neighbor count (overrides scenario if > 0)
	exportPath   string // Analytics export destination ("" = no export)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "venue-sim",
	Short: "Tick-driven coordination simulator for multi-venue events",
}

// runCmd executes one simulation run using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the venue coordination simulation",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		scenario := DefaultScenario()
		if scenarioPath != "" {
			scenario, err = LoadScenario(scenarioPath)
			if err != nil {
				logrus.Fatalf("Could not load scenario: %v", err)
			}
		}
		if gridRows > 0 {
			scenario.GridRows = gridRows
		}
		if gridCols > 0 {
			scenario.GridCols = gridCols
		}
		if neighborK > 0 {
			scenario.NeighborK = neighborK
		}

		logrus.Infof("Starting scenario %q: horizon=%d ticks, seed=%d, grid=%dx%d",
			scenario.Name, horizon, seed, scenario.GridRows, scenario.GridCols)

		runner, err := world.NewRunner(world.RunnerConfig{
			Horizon:   sim.Tick(horizon),
			Seed:      seed,
			GridRows:  scenario.GridRows,
			GridCols:  scenario.GridCols,
			NeighborK: scenario.NeighborK,
			World:     scenario.World,
			Locations: scenario.Locations,
			Itinerary: scenario.Itinerary,
		})
		if err != nil {
			logrus.Fatalf("Could not initialize run: %v", err)
		}

		runner.Run()
		runner.Metrics.Print()
		printHotspots(runner.Analytics)

		if exportPath != "" {
			f, err := os.Create(exportPath)
			if err != nil {
				logrus.Fatalf("Could not create export file: %v", err)
			}
			defer f.Close()
			if err := runner.Analytics.ExportData(f); err != nil {
				logrus.Fatalf("Could not export analytics: %v", err)
			}
			logrus.Infof("Analytics exported to %s", exportPath)
		}

		logrus.Info("Simulation complete.")
	},
}

func init() {
	runCmd.Flags().Int64Var(&seed, "seed", 42, "master seed for deterministic runs")
	runCmd.Flags().Int64Var(&horizon, "horizon", 500, "simulation horizon in ticks")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (trace|debug|info|warn|error)")
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "scenario YAML file (default: baked-in scenario)")
	runCmd.Flags().IntVar(&gridRows, "grid-rows", 0, "analytics grid rows (0 = scenario value)")
	runCmd.Flags().IntVar(&gridCols, "grid-cols", 0, "analytics grid cols (0 = scenario value)")
	runCmd.Flags().IntVar(&neighborK, "neighbor-k", 0, "routing nearest-neighbor count (0 = scenario value)")
	runCmd.Flags().StringVar(&exportPath, "export", "", "write analytics export JSON to this path")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
}

// printHotspots lists the crowd-density cells still hot at end of run.
func printHotspots(engine *sim.AnalyticsEngine) {
	spots, err := engine.Hotspots(sim.MetricCrowdDensity, 0.7)
	if err != nil || len(spots) == 0 {
		return
	}
	if len(spots) > 5 {
		spots = spots[:5]
	}
	fmt.Println("=== Crowd Hotspots ===")
	for _, s := range spots {
		fmt.Printf("cell (%d,%d): %.2f\n", s.Row, s.Col, s.Value)
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
