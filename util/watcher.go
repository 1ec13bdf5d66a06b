package util

import (
	"context"
	"log"
	"os"
	"sync/atomic"
	"time"
)

// ConfigHolder hands the current configuration to long-lived components.
// Replace swaps the whole snapshot atomically, so readers never observe a
// partially updated config. Components that want hot-reloadable options keep
// the holder and call Conf() per operation instead of caching the struct.
type ConfigHolder struct {
	current atomic.Pointer[AppConfig]
}

func NewConfigHolder(conf *AppConfig) *ConfigHolder {
	h := &ConfigHolder{}
	h.current.Store(conf)
	return h
}

func (h *ConfigHolder) Conf() *AppConfig {
	return h.current.Load()
}

func (h *ConfigHolder) Replace(conf *AppConfig) {
	h.current.Store(conf)
}

// WatchConfig polls the resolved config file and reloads it whenever the
// modification time advances. Thresholds, keyword lists and backoff tuning
// take effect without a restart; a reload failure keeps the previous
// snapshot. Blocks until the context is cancelled.
func (h *ConfigHolder) WatchConfig(ctx context.Context, interval time.Duration) {
	path := ResolveFilePath(ConfigFileName)

	var lastMod time.Time
	if info, err := os.Stat(path); err == nil {
		lastMod = info.ModTime()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Config watcher started for %s (every %s)", path, interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("Config watcher stopped")
			return
		case <-ticker.C:
			lastMod = h.pollOnce(path, lastMod)
		}
	}
}

// pollOnce reloads the config when the file changed since lastMod and returns
// the latest known modification time.
func (h *ConfigHolder) pollOnce(path string, lastMod time.Time) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return lastMod
	}

	if !info.ModTime().After(lastMod) {
		return lastMod
	}

	conf, err := ReadConf()
	if err != nil {
		log.Printf("Config reload failed, keeping previous config: %v", err)
		return info.ModTime()
	}

	h.Replace(conf)
	log.Printf("Config reloaded from %s", path)
	return info.ModTime()
}
