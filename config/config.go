// Package config holds the settings of the CMRSET comparison and loads them
// from defaults, an optional YAML file, a .env file and CMRSET_ environment
// variables, in increasing order of precedence. Flags bound to the same
// viper instance override all of these.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cmrset-tools/region"
	"github.com/joho/godotenv"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	EnvPrefix     = "CMRSET"
	DefaultFile   = "cmrset.yaml"
	DefaultEnv    = ".env"
	DateLayout    = "2006-01-02"
	defaultOutput = "out"
)

type Config struct {
	// ROI is minLon, minLat, maxLon, maxLat.
	ROI          []float64 `mapstructure:"roi"`
	Start        string    `mapstructure:"start"`
	End          string    `mapstructure:"end"`
	Years        int       `mapstructure:"years"`
	SummerMonths []int     `mapstructure:"summer_months"`

	Landsat     string `mapstructure:"landsat"`
	ERA5        string `mapstructure:"era5"`
	Districts   string `mapstructure:"districts"`
	DistrictKey string `mapstructure:"district_key"`
	DistrictID  int    `mapstructure:"district_id"`

	Output   string `mapstructure:"output"`
	MapScale int    `mapstructure:"map_scale"`
	FontPath string `mapstructure:"font"`

	Workers    int    `mapstructure:"workers"`
	S2Level    int    `mapstructure:"s2_level"`
	AggFunc    string `mapstructure:"agg_func"`
	MemLimitGB int    `mapstructure:"mem_limit_gb"`
	Progress   bool   `mapstructure:"progress"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("roi", []float64{138.525, -37.725, 152.525, -24.575})
	v.SetDefault("start", "2014-01-01")
	v.SetDefault("end", "2018-01-02")
	v.SetDefault("years", 4)
	v.SetDefault("summer_months", []int{12, 1, 2})
	v.SetDefault("landsat", "data/landsat/manifest.csv")
	v.SetDefault("era5", "data/era5/manifest.csv")
	v.SetDefault("districts", "data/iios.geojson")
	v.SetDefault("district_key", "Id")
	v.SetDefault("district_id", 2)
	v.SetDefault("output", defaultOutput)
	v.SetDefault("map_scale", 4)
	v.SetDefault("font", "")
	v.SetDefault("workers", 8)
	v.SetDefault("s2_level", 13)
	v.SetDefault("agg_func", "mean")
	v.SetDefault("mem_limit_gb", 4)
	v.SetDefault("progress", false)
}

// Load reads the config file at path, when it exists, over the defaults.
// A missing file is only an error when required is set.
func Load(v *viper.Viper, path string, required bool) (*Config, error) {
	logrus.Debug("Entered Load")
	defer logrus.Debug("Exited Load")

	if err := godotenv.Load(DefaultEnv); err != nil {
		logrus.Debugf("No %s loaded: %v", DefaultEnv, err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
			logrus.Infof("Using config file %s", v.ConfigFileUsed())
		case errors.Is(statErr, os.ErrNotExist) && !required:
			logrus.Debugf("Config file %s not found, using defaults", path)
		default:
			return nil, fmt.Errorf("config file %s: %w", path, statErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.ROI) != 4 {
		return fmt.Errorf("roi needs 4 values (minLon, minLat, maxLon, maxLat), got %d", len(c.ROI))
	}
	start, end, err := c.Period()
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return fmt.Errorf("start %s is not before end %s", c.Start, c.End)
	}
	if c.Years < 1 {
		return fmt.Errorf("years must be positive, got %d", c.Years)
	}
	if len(c.SummerMonths) == 0 {
		return errors.New("summer_months is empty")
	}
	for _, m := range c.SummerMonths {
		if m < 1 || m > 12 {
			return fmt.Errorf("summer month %d out of range", m)
		}
	}
	if c.S2Level < 0 || c.S2Level > 30 {
		return fmt.Errorf("s2_level %d out of range [0, 30]", c.S2Level)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}

// Period is the [start, end) range of the experiment.
func (c *Config) Period() (time.Time, time.Time, error) {
	start, err := time.Parse(DateLayout, c.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
	}
	end, err := time.Parse(DateLayout, c.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
	}
	return start, end, nil
}

func (c *Config) Bounds() orb.Bound {
	return region.Rectangle(c.ROI[0], c.ROI[1], c.ROI[2], c.ROI[3])
}
