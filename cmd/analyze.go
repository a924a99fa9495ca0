package cmd

import (
	"encoding/json"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"example.com/coastwatch/config"
	"example.com/coastwatch/internal/catalog"
	"example.com/coastwatch/internal/geo"
	"example.com/coastwatch/internal/models"
	"example.com/coastwatch/internal/spatial"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	analyzeInput     string
	analyzeSynthetic int
	analyzeK         int
	analyzeLat       float64
	analyzeLon       float64
	analyzeRadius    float64
	analyzeRows      int
	analyzeCols      int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run spatial analytics offline and print JSON",
}

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "Group location events into k clusters",
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := loadEvents()
		if err != nil {
			return err
		}
		clusters := spatial.NewClusterer(nil).Cluster(events, analyzeK)
		return printJSON(cmd.OutOrStdout(), clusters)
	},
}

var proximityCmd = &cobra.Command{
	Use:   "proximity",
	Short: "Score a location against the risk zone catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		analyzer, err := loadAnalyzer()
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), analyzer.AssessProximity(analyzeLat, analyzeLon, analyzeRadius))
	},
}

var evacuationCmd = &cobra.Command{
	Use:   "evacuation",
	Short: "Find the nearest evacuation route for a location",
	RunE: func(cmd *cobra.Command, args []string) error {
		analyzer, err := loadAnalyzer()
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), analyzer.NearestEvacuation(analyzeLat, analyzeLon))
	},
}

var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Bin location events into a normalised grid",
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := loadEvents()
		if err != nil {
			return err
		}
		// file input is binned over its own bounds
		box := spatial.DefaultRegion
		if analyzeInput != "" {
			box = geo.BoundingBox{}
		}
		return printJSON(cmd.OutOrStdout(), spatial.Heatmap(events, box, analyzeRows, analyzeCols))
	},
}

func init() {
	for _, c := range []*cobra.Command{clustersCmd, heatmapCmd} {
		c.Flags().StringVarP(&analyzeInput, "input", "i", "", "JSON file with an array of {lat, lon, timestamp} events")
		c.Flags().IntVar(&analyzeSynthetic, "synthetic", 500, "number of synthetic events when no input is given")
	}
	clustersCmd.Flags().IntVar(&analyzeK, "k", 5, "number of clusters")
	heatmapCmd.Flags().IntVar(&analyzeRows, "rows", spatial.DefaultHeatmapSize, "grid rows")
	heatmapCmd.Flags().IntVar(&analyzeCols, "cols", spatial.DefaultHeatmapSize, "grid columns")

	for _, c := range []*cobra.Command{proximityCmd, evacuationCmd} {
		c.Flags().Float64Var(&analyzeLat, "lat", 0, "latitude in degrees")
		c.Flags().Float64Var(&analyzeLon, "lon", 0, "longitude in degrees")
		_ = c.MarkFlagRequired("lat")
		_ = c.MarkFlagRequired("lon")
	}
	proximityCmd.Flags().Float64VarP(&analyzeRadius, "radius", "r", 10, "search radius in kilometres")

	analyzeCmd.AddCommand(clustersCmd, proximityCmd, evacuationCmd, heatmapCmd)
	rootCmd.AddCommand(analyzeCmd)
}

func loadEvents() ([]models.LocationEvent, error) {
	if analyzeInput == "" {
		rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
		return spatial.SyntheticEvents(spatial.DefaultRegion, analyzeSynthetic, time.Now().UTC(), 24*time.Hour, rng), nil
	}

	data, err := os.ReadFile(analyzeInput)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read events from %s", analyzeInput)
	}
	var events []models.LocationEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, errors.Wrapf(err, "failed to decode events from %s", analyzeInput)
	}
	return events, nil
}

func loadAnalyzer() (*spatial.Analyzer, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	zones, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	return spatial.NewAnalyzer(zones), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
