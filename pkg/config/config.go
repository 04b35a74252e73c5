// Package config は、YAMLファイル・.env・環境変数からの設定読み込みを提供します。
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "EARNINGS_CAL_CONFIG"
	seedURLEnv        = "EARNINGS_CAL_SEED_URL"
	csvPathEnv        = "EARNINGS_CAL_CSV"
	jsonPathEnv       = "EARNINGS_CAL_JSON"
	maxConcurrencyEnv = "EARNINGS_CAL_MAX_CONCURRENCY"

	// DefaultSeedURL は、決算カレンダーのシードURLのデフォルトです。
	DefaultSeedURL = "https://kabuyoho.jp/calender?lst=20251119&ym=202511&sett=&publ=off#stocklist"
)

// Config は、アプリケーション全体で必要となる設定を保持します。
type Config struct {
	SeedURL string       `yaml:"seedUrl"`
	Fetch   FetchConfig  `yaml:"fetch"`
	Batch   BatchConfig  `yaml:"batch"`
	Output  OutputConfig `yaml:"output"`
}

// FetchConfig は、ドキュメント取得の動作を定義します。
type FetchConfig struct {
	TimeoutSec     int `yaml:"timeoutSec"`
	MaxConcurrency int `yaml:"maxConcurrency"`
	MaxRetries     int `yaml:"maxRetries"`
}

// BatchConfig は、詳細補完のバッチ駆動を定義します。
type BatchConfig struct {
	Size           int `yaml:"size"`
	MaxConcurrency int `yaml:"maxConcurrency"`
	DelayMS        int `yaml:"delayMs"`
}

// OutputConfig は、出力ファイルとコンソール表示件数を定義します。
type OutputConfig struct {
	CSVPath      string `yaml:"csvPath"`
	JSONPath     string `yaml:"jsonPath"`
	SummaryLimit int    `yaml:"summaryLimit"`
}

func defaultConfig() Config {
	return Config{
		SeedURL: DefaultSeedURL,
		Fetch: FetchConfig{
			TimeoutSec:     30,
			MaxConcurrency: 10,
			MaxRetries:     2,
		},
		Batch: BatchConfig{
			Size:           50,
			MaxConcurrency: 10,
			DelayMS:        100,
		},
		Output: OutputConfig{
			CSVPath:      "earnings_schedule.csv",
			JSONPath:     "earnings_schedule.json",
			SummaryLimit: 20,
		},
	}
}

// Load は、YAML設定ファイル（存在する場合）を読み込み、環境変数による上書きを適用します。
// .env ファイルがあれば先に取り込みます。
func Load() Config {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: %s を読み込めません: %v (デフォルト設定を使用します)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: %s を解析できません: %v (デフォルト設定を使用します)", path, err)
			cfg = defaultConfig()
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyBounds()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(seedURLEnv); v != "" {
		c.SeedURL = v
	}
	if v := os.Getenv(csvPathEnv); v != "" {
		c.Output.CSVPath = v
	}
	if v := os.Getenv(jsonPathEnv); v != "" {
		c.Output.JSONPath = v
	}
	if v := os.Getenv(maxConcurrencyEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Fetch.MaxConcurrency = n
		}
	}
}

// applyBounds は、不正な値をデフォルトに引き戻します。
func (c *Config) applyBounds() {
	def := defaultConfig()
	if c.Fetch.TimeoutSec <= 0 {
		c.Fetch.TimeoutSec = def.Fetch.TimeoutSec
	}
	if c.Fetch.MaxConcurrency <= 0 {
		c.Fetch.MaxConcurrency = def.Fetch.MaxConcurrency
	}
	if c.Fetch.MaxRetries < 0 {
		c.Fetch.MaxRetries = def.Fetch.MaxRetries
	}
	if c.Batch.Size <= 0 {
		c.Batch.Size = def.Batch.Size
	}
	if c.Batch.MaxConcurrency <= 0 {
		c.Batch.MaxConcurrency = def.Batch.MaxConcurrency
	}
	if c.Batch.DelayMS < 0 {
		c.Batch.DelayMS = def.Batch.DelayMS
	}
	if c.Output.SummaryLimit <= 0 {
		c.Output.SummaryLimit = def.Output.SummaryLimit
	}
	if c.SeedURL == "" {
		c.SeedURL = def.SeedURL
	}
	if c.Output.CSVPath == "" {
		c.Output.CSVPath = def.Output.CSVPath
	}
	if c.Output.JSONPath == "" {
		c.Output.JSONPath = def.Output.JSONPath
	}
}
