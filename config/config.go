// Package config loads CLI settings from a yaml file and NOVELCRAWLER_ environment variables.
package config

import (
	"strings"
	"time"

	"github.com/Ezekail/novelcrawler/collect"
	"github.com/Ezekail/novelcrawler/pattern"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "NOVELCRAWLER"

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Fetcher FetcherConfig `mapstructure:"fetcher"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Pattern PatternConfig `mapstructure:"pattern"`
	Convert ConvertConfig `mapstructure:"convert"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"` // 为空时只输出到 stderr
}

type FetcherConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"userAgent"`
	Proxies   []string      `mapstructure:"proxies"`
	QPS       float64       `mapstructure:"qps"` // 0 表示不限速
	Burst     int           `mapstructure:"burst"`
}

type EngineConfig struct {
	WorkCount int    `mapstructure:"workCount"`
	MaxPages  int    `mapstructure:"maxPages"`
	Separator string `mapstructure:"separator"`
}

type PatternConfig struct {
	CacheSize int `mapstructure:"cacheSize"`
}

type ConvertConfig struct {
	Table string `mapstructure:"table"` // OpenCC 格式的繁简对照表
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("fetcher.timeout", 30*time.Second)
	v.SetDefault("fetcher.userAgent", collect.DefaultUserAgent)
	v.SetDefault("fetcher.proxies", []string{})
	v.SetDefault("fetcher.qps", 0)
	v.SetDefault("fetcher.burst", 1)
	v.SetDefault("engine.workCount", 1)
	v.SetDefault("engine.maxPages", 0)
	v.SetDefault("engine.separator", "\n")
	v.SetDefault("pattern.cacheSize", pattern.DefaultMaxEntries)
	v.SetDefault("convert.table", "")
}

// Load reads path (if not empty) over the defaults. Environment variables
// such as NOVELCRAWLER_FETCHER_TIMEOUT override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.Fetcher.Timeout <= 0 {
		return errors.Errorf("fetcher.timeout must be positive, got %s", c.Fetcher.Timeout)
	}
	if c.Fetcher.QPS < 0 {
		return errors.Errorf("fetcher.qps must not be negative, got %v", c.Fetcher.QPS)
	}
	if c.Engine.WorkCount < 1 {
		c.Engine.WorkCount = 1
	}
	if c.Fetcher.Burst < 1 {
		c.Fetcher.Burst = 1
	}
	return nil
}
