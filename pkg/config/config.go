package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/Joao-Silverio/Fisiologia/types"
)

type Config struct {
	// Environment
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Model artifacts
	ModelDir string `mapstructure:"MODEL_DIR"`

	// Fallback estimation
	FallbackStrategy   string  `mapstructure:"FALLBACK_STRATEGY"` // "pace_blend", "fatigue_curve", "metabolic"
	BlendWeightFull    float64 `mapstructure:"BLEND_WEIGHT_FULL"`
	BlendWeightPartial float64 `mapstructure:"BLEND_WEIGHT_PARTIAL"`
	BlendMinGames      int     `mapstructure:"BLEND_MIN_GAMES"`

	// Period regulation lengths in minutes
	FirstHalfMinutes  int `mapstructure:"FIRST_HALF_MINUTES"`
	SecondHalfMinutes int `mapstructure:"SECOND_HALF_MINUTES"`

	// Baseline windows
	RecentGamesWindow int `mapstructure:"RECENT_GAMES_WINDOW"`
	LoadGamesWindow   int `mapstructure:"LOAD_GAMES_WINDOW"`
	RestDaysMin       int `mapstructure:"REST_DAYS_MIN"`
	RestDaysMax       int `mapstructure:"REST_DAYS_MAX"`
	RestDaysDefault   int `mapstructure:"REST_DAYS_DEFAULT"`

	// Peak/record tracking
	PeakWindowMinutes int `mapstructure:"PEAK_WINDOW_MINUTES"`

	// Fallback confidence envelope, 4%..12% by default
	BandBasePct   float64 `mapstructure:"BAND_BASE_PCT"`
	BandGrowthPct float64 `mapstructure:"BAND_GROWTH_PCT"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	setDefaults()

	// Read from environment
	viper.AutomaticEnv()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "")
	viper.SetDefault("MODEL_DIR", "models")
	viper.SetDefault("FALLBACK_STRATEGY", "pace_blend")
	viper.SetDefault("BLEND_WEIGHT_FULL", 0.6)
	viper.SetDefault("BLEND_WEIGHT_PARTIAL", 0.3)
	viper.SetDefault("BLEND_MIN_GAMES", 3)
	viper.SetDefault("FIRST_HALF_MINUTES", 45)
	viper.SetDefault("SECOND_HALF_MINUTES", 50)
	viper.SetDefault("RECENT_GAMES_WINDOW", 3)
	viper.SetDefault("LOAD_GAMES_WINDOW", 7)
	viper.SetDefault("REST_DAYS_MIN", 1)
	viper.SetDefault("REST_DAYS_MAX", 30)
	viper.SetDefault("REST_DAYS_DEFAULT", 7)
	viper.SetDefault("PEAK_WINDOW_MINUTES", 5)
	viper.SetDefault("BAND_BASE_PCT", 0.04)
	viper.SetDefault("BAND_GROWTH_PCT", 0.08)
}

// DefaultConfig returns a Config populated with the package defaults, for
// hosts that embed the library without a config file.
func DefaultConfig() *Config {
	return &Config{
		Env:                "development",
		ModelDir:           "models",
		FallbackStrategy:   "pace_blend",
		BlendWeightFull:    0.6,
		BlendWeightPartial: 0.3,
		BlendMinGames:      3,
		FirstHalfMinutes:   45,
		SecondHalfMinutes:  50,
		RecentGamesWindow:  3,
		LoadGamesWindow:    7,
		RestDaysMin:        1,
		RestDaysMax:        30,
		RestDaysDefault:    7,
		PeakWindowMinutes:  5,
		BandBasePct:        0.04,
		BandGrowthPct:      0.08,
	}
}

// NominalPeriodEnd returns the regulation length in minutes of a period.
func (c *Config) NominalPeriodEnd(p types.Period) int {
	if p == types.SecondHalf {
		return c.SecondHalfMinutes
	}
	return c.FirstHalfMinutes
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
