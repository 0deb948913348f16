package config

import (
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	App struct {
		Env      string
		Currency string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Costing struct {
		// Defaults applied when a recalculation request leaves a
		// coefficient unset. All are multiplicative, floor 1.0.
		OverheadCoeff float64 `mapstructure:"overhead_coeff"`
		MarginCoeff   float64 `mapstructure:"margin_coeff"`
		WasteCoeff    float64 `mapstructure:"waste_coeff"`
	} `mapstructure:"costing"`
}

func Load(path string) (Config, error) {
	// Best-effort local .env; production injects real env vars.
	_ = gotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	v.SetDefault("app.currency", "EUR")
	v.SetDefault("costing.overhead_coeff", 1.0)
	v.SetDefault("costing.margin_coeff", 1.0)
	v.SetDefault("costing.waste_coeff", 1.0)

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}
