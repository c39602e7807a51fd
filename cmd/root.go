// Package cmd holds the cmrset command line.
package cmd

import (
	"os"

	"cmrset-tools/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Verbose bool
var Debug bool
var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cmrset",
	Short: "Compare CMRSET evapotranspiration computed with Landsat 8 SWIR1 and SWIR2",
	Long: `Tools for the CMRSET SWIR1/SWIR2 experiment over the Murray-Darling Basin.

	./cmrset compare [opts]                       run both parts of the experiment
	./cmrset indices [opts] [in.tif] [out.tif]    compute named indices on a GeoTIFF
	./cmrset indexraster [opts] [in.tif] [out]    aggregate a band onto S2 cells

Settings are read from --config (default ./cmrset.yaml), a .env file and
CMRSET_ environment variables.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func setLogLevels() {
	if viper.GetBool("debug") {
		logrus.SetLevel(logrus.DebugLevel)
	} else if viper.GetBool("verbose") {
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}
}

// loadConfig reads the configuration into the global viper instance, which
// the command flags are bound to.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load(viper.GetViper(), cfgFile, cmd.Flags().Changed("config"))
	if err != nil {
		logrus.Error(err)
		logrus.Exit(1)
	}
	return cfg
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultFile, "config file")

	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "Verbose output")
	err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	if err != nil {
		logrus.Exit(1)
	}
	rootCmd.PersistentFlags().BoolVarP(&Debug, "debug", "d", false, "Debug output")
	err = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	if err != nil {
		logrus.Exit(1)
	}
	rootCmd.PersistentFlags().IntP("workers", "n", 8, "Number of workers to spawn for parallel processing")
	err = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	if err != nil {
		logrus.Exit(1)
	}
}
