package cmd

import (
	"path/filepath"
	"strings"

	"cmrset-tools/cellsio"
	"cmrset-tools/celltools"
	"cmrset-tools/sceneio"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// indexrasterCmd represents the indexraster command
var indexrasterCmd = &cobra.Command{
	Use:   "indexraster [in.tif] [out.parquet|out.csv]",
	Short: "Convert a raster band to S2 cells, aggregating over each cell",
	Long: `Convert one band of a GeoTIFF to a parquet (or, for a .csv output, CSV)
file containing S2 cell IDs, aggregated values and cell geometries for the
valid pixels contained.

	Options:
		--band:       Band to index, by description or B1..Bn. Defaults to the first band.
		--s2Lvl:      S2 cell level to generate results for. Essentially output resolution.
		--aggFunc:    Function to use when aggregating to S2 cell. Default is the mean,
		              choose from: mean, sum, max, min
		--areaWeight: Scale pixel values by the share of the pixel covered by the cell.
		--memLimitGB: Memory limit for parquet write buffers.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevels()
		if err := runIndexRaster(args[0], args[1]); err != nil {
			logrus.Error(err)
			logrus.Exit(1)
		}
	},
}

func runIndexRaster(in, out string) error {
	img, err := sceneio.ReadGeoTIFF(in, nil)
	if err != nil {
		return err
	}
	band := viper.GetString("band")
	if band == "" {
		band = img.BandNames()[0]
	}
	aggFunc, err := celltools.ParseAggFunc(viper.GetString("aggFunc"))
	if err != nil {
		return err
	}
	numWorkers := viper.GetInt("workers")
	opts := celltools.ConfigOpts{
		NumWorkers:   numWorkers,
		S2Lvl:        viper.GetInt("s2Lvl"),
		AggFunc:      aggFunc,
		AreaWeighted: viper.GetBool("areaWeight"),
	}

	if strings.EqualFold(filepath.Ext(out), ".csv") {
		cells, err := celltools.BandToS2(img, band, opts)
		if err != nil {
			return err
		}
		return cellsio.WriteToCSV(cells, out)
	}
	sink := func(cellData chan celltools.S2CellData) error {
		return cellsio.StreamToParquet(cellData, out, numWorkers, viper.GetInt("memLimitGB"))
	}
	return celltools.StreamBandToS2(img, band, opts, sink)
}

func init() {
	rootCmd.AddCommand(indexrasterCmd)

	indexrasterCmd.Flags().StringP("band", "b", "", "Band to index")
	err := viper.BindPFlag("band", indexrasterCmd.Flags().Lookup("band"))
	if err != nil {
		logrus.Exit(1)
	}

	indexrasterCmd.Flags().IntP("s2Lvl", "l", 13, "S2 cell level to generate results for. Essentially output resolution")
	err = viper.BindPFlag("s2Lvl", indexrasterCmd.Flags().Lookup("s2Lvl"))
	if err != nil {
		logrus.Exit(1)
	}

	indexrasterCmd.Flags().StringP("aggFunc", "a", "mean", "Function to use when aggregating to S2 cell, choose from: mean, sum, max, min")
	err = viper.BindPFlag("aggFunc", indexrasterCmd.Flags().Lookup("aggFunc"))
	if err != nil {
		logrus.Exit(1)
	}

	indexrasterCmd.Flags().Bool("areaWeight", false, "Scale pixel values by the share of the pixel covered by the cell")
	err = viper.BindPFlag("areaWeight", indexrasterCmd.Flags().Lookup("areaWeight"))
	if err != nil {
		logrus.Exit(1)
	}

	indexrasterCmd.Flags().IntP("memLimitGB", "m", 4, "Memory limit in GB for parquet write buffers")
	err = viper.BindPFlag("memLimitGB", indexrasterCmd.Flags().Lookup("memLimitGB"))
	if err != nil {
		logrus.Exit(1)
	}
}
