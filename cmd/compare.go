package cmd

import (
	"context"

	"cmrset-tools/experiment"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// compareCmd represents the compare command
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run the SWIR1 against SWIR2 comparison of RMI, Kc and irrigation estimates",
	Long: `Run both parts of the experiment:

	1. Monthly RMI and Kc from cloud masked Landsat 8, computed with GVMI from
	   SWIR1 and from SWIR2, and their mean summer difference.
	2. ETa and irrigation estimates from the monthly Kc joined with ERA5-Land
	   evaporation and precipitation, their summer difference, and a time
	   series chart over the selected irrigation district.

Inputs are CSV manifests (path,date,index,bands) of GeoTIFFs and a GeoJSON
file of districts. Outputs are written under --output.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevels()
		cfg := loadConfig(cmd)

		e := experiment.New(cfg)
		ctx := context.Background()
		in, err := e.LoadInputs(ctx)
		if err != nil {
			logrus.Error(err)
			logrus.Exit(1)
		}
		if _, err := e.Run(ctx, in); err != nil {
			logrus.Error(err)
			logrus.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)

	flags := []struct {
		name, short, value, usage string
	}{
		{"landsat", "", "", "Manifest of raw Landsat 8 surface reflectance scenes"},
		{"era5", "", "", "Manifest of ERA5-Land monthly images"},
		{"districts", "", "", "GeoJSON file of irrigation districts"},
		{"output", "o", "", "Output directory"},
		{"start", "", "", "First day of the period, YYYY-MM-DD"},
		{"end", "", "", "Day after the period, YYYY-MM-DD"},
	}
	for _, f := range flags {
		compareCmd.Flags().StringP(f.name, f.short, f.value, f.usage)
		if err := viper.BindPFlag(f.name, compareCmd.Flags().Lookup(f.name)); err != nil {
			logrus.Exit(1)
		}
	}
	compareCmd.Flags().Bool("progress", false, "Show progress bars")
	if err := viper.BindPFlag("progress", compareCmd.Flags().Lookup("progress")); err != nil {
		logrus.Exit(1)
	}
}
