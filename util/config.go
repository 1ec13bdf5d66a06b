package util

import (
	_ "embed"
	"fmt"
	"gopkg.in/yaml.v3"
	"log"
	"os"
	"strconv"
)

const Name = "smilodon"
const ConfigFileName = "config.yaml"

// Defaults applied when the corresponding option is unconfigured (<= 0).
const (
	DefaultDelistThreshold      = 10
	DefaultRejectThreshold      = 20
	DefaultBackoffSeconds       = 300
	DefaultMaxBackoffSeconds    = 3600
	DefaultSweepIntervalSeconds = 60
)

//go:embed config_default.yaml
var embeddedConfig []byte

// ReplaceRule is one ordered pattern -> replacement pair of the keyword
// filter. Patterns compile as regular expressions and fall back to literal
// substring matching when they do not compile.
type ReplaceRule struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// KeywordConf holds the four independent keyword filter lists.
type KeywordConf struct {
	Reject                   []string      `yaml:"reject"`
	FederatedTimelineRemoval []string      `yaml:"federatedTimelineRemoval"`
	MarkSensitive            []string      `yaml:"markSensitive"`
	Replace                  []ReplaceRule `yaml:"replace"`
}

type AppConfig struct {
	Conf struct {
		Host       string   `yaml:"host"`
		SshPort    int      `yaml:"sshPort"`
		HttpPort   int      `yaml:"httpPort"`
		AdminToken string   `yaml:"adminToken"`
		AdminKeys  []string `yaml:"adminKeys"`
	}
	Moderation struct {
		DelistThreshold int         `yaml:"delistThreshold"`
		RejectThreshold int         `yaml:"rejectThreshold"`
		Keyword         KeywordConf `yaml:"keyword"`
	}
	Delivery struct {
		DefaultBackoffSeconds int `yaml:"defaultBackoffSeconds"`
		MaxBackoffSeconds     int `yaml:"maxBackoffSeconds"`
		SweepIntervalSeconds  int `yaml:"sweepIntervalSeconds"`
	}
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	var buf []byte
	var err error

	// Try to read from resolved path
	buf, err = os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		// Try to write default config to user config directory
		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	applyEnvOverrides(c)
	applyDefaults(c)

	return c, nil
}

func applyEnvOverrides(c *AppConfig) {
	if v := os.Getenv("SMILODON_HOST"); v != "" {
		c.Conf.Host = v
	}

	if v := os.Getenv("SMILODON_SSHPORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("Ignoring SMILODON_SSHPORT: %v", err)
		} else {
			c.Conf.SshPort = port
		}
	}

	if v := os.Getenv("SMILODON_HTTPPORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("Ignoring SMILODON_HTTPPORT: %v", err)
		} else {
			c.Conf.HttpPort = port
		}
	}

	if v := os.Getenv("SMILODON_ADMIN_TOKEN"); v != "" {
		c.Conf.AdminToken = v
	}

	if v := os.Getenv("SMILODON_DELIST_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("Ignoring SMILODON_DELIST_THRESHOLD: %v", err)
		} else {
			c.Moderation.DelistThreshold = n
		}
	}

	if v := os.Getenv("SMILODON_REJECT_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("Ignoring SMILODON_REJECT_THRESHOLD: %v", err)
		} else {
			c.Moderation.RejectThreshold = n
		}
	}
}

// applyDefaults fills unconfigured moderation and delivery options. A zero or
// negative value counts as unconfigured.
func applyDefaults(c *AppConfig) {
	if c.Moderation.DelistThreshold <= 0 {
		c.Moderation.DelistThreshold = DefaultDelistThreshold
	}
	if c.Moderation.RejectThreshold <= 0 {
		c.Moderation.RejectThreshold = DefaultRejectThreshold
	}
	if c.Delivery.DefaultBackoffSeconds <= 0 {
		c.Delivery.DefaultBackoffSeconds = DefaultBackoffSeconds
	}
	if c.Delivery.MaxBackoffSeconds <= 0 {
		c.Delivery.MaxBackoffSeconds = DefaultMaxBackoffSeconds
	}
	if c.Delivery.SweepIntervalSeconds <= 0 {
		c.Delivery.SweepIntervalSeconds = DefaultSweepIntervalSeconds
	}
}
