package config

import (
	"strings"

	"bracket/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// WatchLogLevel re-applies app.log_level whenever the config file on
// disk changes. Only the log level is hot-reloadable; everything else
// requires a restart.
func WatchLogLevel(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := v.ReadInConfig(); err != nil {
			logger.Errorf("config reload failed: %v", err)
			return
		}
		level := strings.TrimSpace(v.GetString("app.log_level"))
		if level == "" {
			return
		}
		logger.SetLevel(level)
		logger.Infof("log level set to %s (config change: %s)", level, evt.Name)
	})
	v.WatchConfig()
	return nil
}
