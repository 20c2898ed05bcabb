package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// WatchLogLevel reloads logging.level into level whenever the config file
// changes. It returns false when no config file is in use.
func WatchLogLevel(level *slog.LevelVar, logger *slog.Logger) bool {
	v := configViper
	if v == nil || v.ConfigFileUsed() == "" {
		return false
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		parsed, err := ParseLogLevel(v.GetString("logging.level"))
		if err != nil {
			logger.Warn("ignoring config reload", slog.String("error", err.Error()))
			return
		}
		if parsed != level.Level() {
			level.Set(parsed)
			logger.Info("log level reloaded",
				slog.String("level", parsed.String()),
				slog.String("file", e.Name),
			)
		}
	})
	v.WatchConfig()

	return true
}
