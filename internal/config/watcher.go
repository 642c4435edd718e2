package config

import (
	"context"
	"os"
	"sync"
	"time"

	"gatewaymon/internal/models"

	"github.com/sirupsen/logrus"
)

// ConfigWatcher polls the configuration file for changes and reloads it,
// notifying registered callbacks so long-lived components can pick up new
// thresholds and intervals without a process restart.
type ConfigWatcher struct {
	configPath string
	logger     *logrus.Logger

	mu        sync.RWMutex
	config    *models.Config
	callbacks []func(*models.Config)
}

// NewConfigWatcher builds a watcher bound to one config file.
func NewConfigWatcher(configPath string, logger *logrus.Logger) *ConfigWatcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &ConfigWatcher{
		configPath: configPath,
		logger:     logger,
	}
}

// Start loads the configuration, then polls its mtime every 5 seconds until
// ctx is cancelled, reloading and notifying callbacks on each change.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	cfg, err := LoadConfig(cw.configPath)
	if err != nil {
		return err
	}

	cw.mu.Lock()
	cw.config = cfg
	cw.mu.Unlock()

	stat, err := os.Stat(cw.configPath)
	if err != nil {
		return err
	}
	lastModTime := stat.ModTime()

	cw.logger.WithField("path", cw.configPath).Info("configuration watcher started")

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cw.logger.Info("configuration watcher stopping")
			return nil
		case <-ticker.C:
			stat, err := os.Stat(cw.configPath)
			if err != nil {
				cw.logger.WithError(err).Error("failed to stat configuration file")
				continue
			}
			if stat.ModTime().After(lastModTime) {
				lastModTime = stat.ModTime()
				time.Sleep(100 * time.Millisecond)
				cw.reload()
			}
		}
	}
}

// GetConfig returns the most recently loaded configuration.
func (cw *ConfigWatcher) GetConfig() *models.Config {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.config
}

// OnConfigChange registers a callback invoked, on its own goroutine, every
// time a reload succeeds.
func (cw *ConfigWatcher) OnConfigChange(callback func(*models.Config)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

func (cw *ConfigWatcher) reload() {
	newCfg, err := LoadConfig(cw.configPath)
	if err != nil {
		cw.logger.WithError(err).Error("failed to reload configuration")
		return
	}

	cw.mu.Lock()
	oldCfg := cw.config
	cw.config = newCfg
	callbacks := make([]func(*models.Config), len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mu.Unlock()

	cw.logger.Info("configuration reloaded")

	for _, cb := range callbacks {
		go func(cb func(*models.Config)) {
			defer func() {
				if r := recover(); r != nil {
					cw.logger.WithField("panic", r).Error("config change callback panicked")
				}
			}()
			cb(newCfg)
		}(cb)
	}

	cw.logChanges(oldCfg, newCfg)
}

func (cw *ConfigWatcher) logChanges(old, new *models.Config) {
	if old == nil {
		return
	}
	if old.RetentionDays != new.RetentionDays {
		cw.logger.WithFields(logrus.Fields{"old": old.RetentionDays, "new": new.RetentionDays}).Info("retention days changed")
	}
	if old.Scheduler.IntervalMinutes != new.Scheduler.IntervalMinutes {
		cw.logger.WithFields(logrus.Fields{"old": old.Scheduler.IntervalMinutes, "new": new.Scheduler.IntervalMinutes}).Info("scheduler interval changed")
	}
	if old.Alerts.CooldownMinutes != new.Alerts.CooldownMinutes {
		cw.logger.WithFields(logrus.Fields{"old": old.Alerts.CooldownMinutes, "new": new.Alerts.CooldownMinutes}).Info("alert cooldown changed")
	}
}
