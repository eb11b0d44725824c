package config

import (
	"fmt"
	"time"

	"github.com/Veraticus/sheetlog/internal/common"
	"github.com/Veraticus/sheetlog/internal/connectivity"
	"github.com/spf13/viper"
)

// LoadConnectivityConfig reads connectivity.probe_url and connectivity.interval.
func LoadConnectivityConfig() (connectivity.Config, error) {
	config := connectivity.DefaultConfig()

	if v := viper.GetString("connectivity.probe_url"); v != "" {
		config.ProbeURL = v
	}
	if viper.IsSet("connectivity.interval") {
		config.Interval = viper.GetDuration("connectivity.interval")
	}
	if viper.IsSet("connectivity.timeout") {
		config.Timeout = viper.GetDuration("connectivity.timeout")
	}

	if config.Interval < time.Second {
		return config, fmt.Errorf("%w: connectivity.interval must be at least 1s", common.ErrInvalidConfig)
	}
	if config.Timeout <= 0 {
		return config, fmt.Errorf("%w: connectivity.timeout must be positive", common.ErrInvalidConfig)
	}
	return config, nil
}
