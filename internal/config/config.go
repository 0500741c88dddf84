package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

// The fixed question set of the attribution study, in evaluation order.
var DefaultTargetIDs = []int64{
	2201, 141, 2017, 1320, 1055, 495, 1825, 965, 1356,
	1613, 667, 2210, 32, 1725, 326, 1524, 1342, 84,
}

const (
	TokenMatchExact = "exact"
	TokenMatchCount = "count"
)

type Config struct {
	InputFile string           `json:"input_file"`
	TargetIDs []int64          `json:"target_ids"`
	LogConfig logger.LogConfig `json:"log_config"`
	FileStore FileStoreConfig  `json:"file_store"`
	LLM       LLMConfig        `json:"llm"`
	Evaluator EvaluatorConfig  `json:"evaluator"`
}

type FileStoreConfig struct {
	Type string   `json:"type"`
	Dir  string   `json:"dir"`
	S3   S3Config `json:"s3"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	UseSSL    bool   `json:"use_ssl"`
}

type LLMConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Timeout  int         `json:"timeout"`
	Data     interface{} `json:"data"`
}

type EvaluatorConfig struct {
	RequestDelay       float64 `json:"request_delay"`
	Temperature        float32 `json:"temperature"`
	MaxTokens          int     `json:"max_tokens"`
	WeightSumTolerance float64 `json:"weight_sum_tolerance"`
	TokenMatch         string  `json:"token_match"`
}

func Default() *Config {
	return &Config{
		InputFile: "data/input/abc_2013_2014_tokenized.csv",
		TargetIDs: append([]int64(nil), DefaultTargetIDs...),
		LogConfig: logger.LogConfig{
			Level:   "info",
			Console: true,
		},
		FileStore: FileStoreConfig{
			Type: "local",
			Dir:  "data/output",
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4.1",
			Timeout:  120,
		},
		Evaluator: EvaluatorConfig{
			RequestDelay:       2.0,
			Temperature:        0.1,
			MaxTokens:          2000,
			WeightSumTolerance: 0.01,
			TokenMatch:         TokenMatchExact,
		},
	}
}

// Load decodes the file on top of the defaults, so a partial config only
// overrides what it names. An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input_file is required")
	}
	if len(c.TargetIDs) == 0 {
		return fmt.Errorf("target_ids must not be empty")
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	switch c.FileStore.Type {
	case "local":
		if c.FileStore.Dir == "" {
			return fmt.Errorf("file_store.dir is required for local store")
		}
	case "s3":
		if c.FileStore.S3.Endpoint == "" || c.FileStore.S3.Bucket == "" || c.FileStore.S3.SecretID == "" || c.FileStore.S3.SecretKey == "" {
			return fmt.Errorf("file_store.s3 endpoint/bucket/secret_id/secret_key are required for s3 store")
		}
		if c.FileStore.S3.Region == "" {
			c.FileStore.S3.Region = "us-east-1"
		}
	default:
		return fmt.Errorf("file_store.type must be local or s3")
	}
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout must not be negative")
	}
	if c.Evaluator.RequestDelay < 0 {
		return fmt.Errorf("evaluator.request_delay must not be negative")
	}
	if c.Evaluator.WeightSumTolerance < 0 {
		return fmt.Errorf("evaluator.weight_sum_tolerance must not be negative")
	}
	switch c.Evaluator.TokenMatch {
	case TokenMatchExact, TokenMatchCount:
	default:
		return fmt.Errorf("evaluator.token_match must be %s or %s", TokenMatchExact, TokenMatchCount)
	}
	return nil
}
