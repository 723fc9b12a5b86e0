package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/venue-sim/venue-sim/sim"
)

var hotspotThreshold float64

// reportCmd pretty-prints a previously exported analytics document.
var reportCmd = &cobra.Command{
	Use:   "report <export.json>",
	Short: "Summarize an exported analytics document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f, err := os.Open(args[0])
		if err != nil {
			logrus.Fatalf("Could not open export: %v", err)
		}
		defer f.Close()
		doc, err := sim.ImportSnapshot(f)
		if err != nil {
			logrus.Fatalf("Could not parse export: %v", err)
		}
		printReport(doc)
	},
}

func init() {
	reportCmd.Flags().Float64Var(&hotspotThreshold, "threshold", 0.7, "hotspot highlight threshold")
}

func printReport(doc *sim.ExportSnapshot) {
	header := color.New(color.FgCyan, color.Bold)
	warn := color.New(color.FgRed, color.Bold)
	ok := color.New(color.FgGreen)

	header.Printf("Analytics export (schema v%d, grid %dx%d)\n", doc.Version, doc.Rows, doc.Cols)

	fmt.Println()
	header.Println("Grid metrics")
	for _, name := range doc.GridMetrics() {
		flat := doc.Grids[name]
		max := doc.Maxima[name]
		hot := 0
		if max > 0 {
			for _, v := range flat {
				if v/max >= hotspotThreshold {
					hot++
				}
			}
		}
		line := fmt.Sprintf("  %-18s max=%-8.2f hotspots=%d", name, max, hot)
		if hot > 0 {
			warn.Println(line)
		} else {
			fmt.Println(line)
		}
	}

	fmt.Println()
	header.Println("Time series")
	seriesNames := make([]string, 0, len(doc.Series))
	for name := range doc.Series {
		seriesNames = append(seriesNames, name)
	}
	sort.Strings(seriesNames)
	for _, name := range seriesNames {
		pts := doc.Series[name]
		if len(pts) == 0 {
			fmt.Printf("  %-18s (empty)\n", name)
			continue
		}
		last := pts[len(pts)-1]
		fmt.Printf("  %-18s %d points, last=%.2f at tick %d\n", name, len(pts), last.Value, last.Timestamp)
	}

	fmt.Println()
	header.Println("Incidents")
	inc := doc.Incidents
	fmt.Printf("  open=%d resolved=%d\n", inc.OpenCount, inc.ResolvedCount)
	if inc.ResolvedCount > 0 {
		ok.Printf("  mean time to resolve: %.1f ticks\n", inc.MeanTimeToResolve)
	}
	printCategoryCounts("open", inc.OpenByCategory)
	printCategoryCounts("resolved", inc.ResolvedByCategory)
}

func printCategoryCounts(label string, counts map[sim.AlertCategory]int) {
	cats := make([]string, 0, len(counts))
	for cat := range counts {
		cats = append(cats, string(cat))
	}
	sort.Strings(cats)
	for _, cat := range cats {
		fmt.Printf("    %s %-16s %d\n", label, cat, counts[sim.AlertCategory(cat)])
	}
}
