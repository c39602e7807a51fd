package cmd

import (
	"fmt"
	"strings"

	"cmrset-tools/indices"
	"cmrset-tools/sceneio"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// indicesCmd represents the indices command
var indicesCmd = &cobra.Command{
	Use:   "indices [in.tif] [out.tif]",
	Short: "Compute named indices on a GeoTIFF",
	Long: `Apply registered index formulas, in order, to every pixel of a GeoTIFF
and write the produced bands to a new GeoTIFF. Input bands are named from
--bands, else from the band descriptions.

	--names:      Comma separated formulas, e.g. EVI,NDVI,GVMI. Each formula
	              sees the bands of the ones before it.
	--expr:       Band expressions evaluated after the formulas, e.g.
	              'RMI = b("RMI2") - b("RMI")'. Repeatable.
	--keep:       Keep the input bands in the output.
	--positive:   Mask values that are not positive.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevels()
		exprs, err := cmd.Flags().GetStringArray("expr")
		if err != nil {
			logrus.Exit(1)
		}
		if err := runIndices(args[0], args[1], exprs); err != nil {
			logrus.Error(err)
			logrus.Exit(1)
		}
	},
}

// runIndices reads the expressions from the flag set rather than viper, which
// would split them on commas.
func runIndices(in, out string, exprs []string) error {
	names := splitList(viper.GetString("names"))
	if len(names) == 0 && len(exprs) == 0 {
		return fmt.Errorf("nothing to compute, registered formulas are: %s", strings.Join(indices.Names(), ", "))
	}

	img, err := sceneio.ReadGeoTIFF(in, splitList(viper.GetString("bands")))
	if err != nil {
		return err
	}
	opts := indices.Options{IncludeOrigin: viper.GetBool("keep")}
	if len(names) > 0 {
		mutate, err := indices.Mutate(names, indices.Options{IncludeOrigin: opts.IncludeOrigin || len(exprs) > 0})
		if err != nil {
			return err
		}
		if img, err = mutate(img); err != nil {
			return err
		}
	}
	if viper.GetBool("positive") {
		opts.Func = indices.MaskPositive
	}
	if len(exprs) > 0 {
		transform, err := indices.Transform(exprs, opts)
		if err != nil {
			return err
		}
		if img, err = transform(img); err != nil {
			return err
		}
	} else if opts.Func != nil {
		if img, err = opts.Func(img); err != nil {
			return err
		}
	}
	return sceneio.WriteGeoTIFF(img, out)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(indicesCmd)

	indicesCmd.Flags().String("names", "", "Comma separated index formulas to apply")
	err := viper.BindPFlag("names", indicesCmd.Flags().Lookup("names"))
	if err != nil {
		logrus.Exit(1)
	}
	indicesCmd.Flags().StringArray("expr", nil, "Band expression NAME = expr, repeatable")
	indicesCmd.Flags().String("bands", "", "Comma separated names for the input bands")
	err = viper.BindPFlag("bands", indicesCmd.Flags().Lookup("bands"))
	if err != nil {
		logrus.Exit(1)
	}
	indicesCmd.Flags().Bool("keep", false, "Keep the input bands")
	err = viper.BindPFlag("keep", indicesCmd.Flags().Lookup("keep"))
	if err != nil {
		logrus.Exit(1)
	}
	indicesCmd.Flags().Bool("positive", false, "Mask values that are not positive")
	err = viper.BindPFlag("positive", indicesCmd.Flags().Lookup("positive"))
	if err != nil {
		logrus.Exit(1)
	}
}
