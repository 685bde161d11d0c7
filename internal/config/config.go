// Package config loads gateway settings from defaults, an optional YAML
// file, a .env file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/confirm"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/store"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/plugin"
)

// ProviderNone disables a speech provider.
const ProviderNone = "none"

type Config struct {
	Server      ServerConfig  `yaml:"server"`
	LLM         LLMConfig     `yaml:"llm"`
	STT         SpeechConfig  `yaml:"stt"`
	TTS         SpeechConfig  `yaml:"tts"`
	DB          DBConfig      `yaml:"db"`
	Confirm     ConfirmConfig `yaml:"confirm"`
	Credentials Credentials   `yaml:"credentials"`
	Log         LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	ListenAddr       string `yaml:"listen_addr"`
	WSPath           string `yaml:"ws_path"`
	DefaultUserID    string `yaml:"default_user_id"`
	TranscodeWorkers int    `yaml:"transcode_workers"`
}

type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	URL         string        `yaml:"url"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	TopP        float32       `yaml:"top_p"`
	Referer     string        `yaml:"referer"`
}

// SpeechConfig selects a recognizer or synthesizer.
type SpeechConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Voice    string `yaml:"voice"`
	Language string `yaml:"language"`
}

type DBConfig struct {
	store.Config `yaml:",inline"`
	Migrate      bool `yaml:"migrate"`
}

type ConfirmConfig struct {
	Mode confirm.Mode  `yaml:"mode"`
	TTL  time.Duration `yaml:"ttl"`
}

// Credentials holds provider keys. Empty keys fall back to each provider's
// own environment lookup.
type Credentials struct {
	OpenRouter string `yaml:"openrouter"`
	OpenAI     string `yaml:"openai"`
	AssemblyAI string `yaml:"assemblyai"`
	Deepgram   string `yaml:"deepgram"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:       ":8000",
			WSPath:           "/ai/stream",
			DefaultUserID:    "1",
			TranscodeWorkers: 4,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			URL:         "https://openrouter.ai/api/v1/chat/completions",
			Model:       "mistralai/mistral-7b-instruct",
			Timeout:     30 * time.Second,
			Temperature: 0.7,
			MaxTokens:   1500,
			TopP:        0.9,
			Referer:     "https://smarttask.app",
		},
		STT: SpeechConfig{Provider: "openai", Model: "whisper-1"},
		TTS: SpeechConfig{Provider: "openai"},
		DB: DBConfig{Config: store.Config{
			Driver: store.DriverMySQL,
			Host:   "localhost",
			User:   "root",
			Name:   "smarttask_db",
		}},
		Confirm: ConfirmConfig{Mode: confirm.ModeStrict, TTL: confirm.DefaultTTL},
		Log:     LogConfig{Format: "json", Level: "info"},
	}
}

// Load builds the configuration. path may be empty, in which case
// STM_CONFIG is consulted; a missing .env file is not an error.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("STM_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := os.LookupEnv(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	dur := func(dst *time.Duration, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	f32 := func(dst *float32, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 32)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = float32(f)
		}
	}
	integer := func(dst *int, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(dst *bool, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str(&c.Server.ListenAddr, "STM_LISTEN_ADDR")
	str(&c.Server.WSPath, "STM_WS_PATH")
	str(&c.Server.DefaultUserID, "STM_DEFAULT_USER_ID")
	integer(&c.Server.TranscodeWorkers, "STM_TRANSCODE_WORKERS")

	str(&c.LLM.Provider, "LLM_PROVIDER")
	str(&c.LLM.URL, "OPENROUTER_URL")
	str(&c.LLM.Model, "LLM_MODEL")
	dur(&c.LLM.Timeout, "LLM_TIMEOUT")
	f32(&c.LLM.Temperature, "LLM_TEMPERATURE")
	integer(&c.LLM.MaxTokens, "LLM_MAX_TOKENS")
	f32(&c.LLM.TopP, "LLM_TOP_P")
	str(&c.LLM.Referer, "LLM_REFERER")

	str(&c.STT.Provider, "STT_PROVIDER")
	str(&c.STT.Model, "STT_MODEL")
	str(&c.STT.Language, "STT_LANGUAGE")

	str(&c.TTS.Provider, "TTS_PROVIDER")
	str(&c.TTS.Model, "TTS_MODEL")
	str(&c.TTS.Voice, "TTS_VOICE")

	str(&c.Credentials.OpenRouter, "OPENROUTER_API_KEY")
	str(&c.Credentials.OpenAI, "OPENAI_API_KEY")
	str(&c.Credentials.AssemblyAI, "ASSEMBLYAI_API_KEY")
	str(&c.Credentials.Deepgram, "DEEPGRAM_API_KEY")

	str(&c.DB.Driver, "DB_DRIVER")
	str(&c.DB.DSN, "DB_DSN")
	str(&c.DB.Host, "DB_HOST")
	integer(&c.DB.Port, "DB_PORT")
	str(&c.DB.User, "DB_USER")
	str(&c.DB.Password, "DB_PASSWORD")
	str(&c.DB.Name, "DB_NAME")
	boolean(&c.DB.Migrate, "DB_MIGRATE")

	mode := string(c.Confirm.Mode)
	str(&mode, "CONFIRM_MODE")
	c.Confirm.Mode = confirm.Mode(mode)
	dur(&c.Confirm.TTL, "CONFIRM_TTL")

	str(&c.Log.Format, "STM_LOG_FORMAT")
	str(&c.Log.Level, "STM_LOG_LEVEL")

	return errors.Join(errs...)
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server listen address is empty"))
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		errs = append(errs, fmt.Errorf("websocket path %q must start with /", c.Server.WSPath))
	}
	if c.Server.DefaultUserID == "" {
		errs = append(errs, errors.New("STM_DEFAULT_USER_ID is empty"))
	}

	switch c.DB.Driver {
	case store.DriverMySQL, store.DriverPostgres, store.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not one of mysql, postgres, sqlite", c.DB.Driver))
	}

	if _, err := confirm.ParseMode(string(c.Confirm.Mode)); err != nil {
		errs = append(errs, fmt.Errorf("CONFIRM_MODE: %w", err))
	}
	if c.Confirm.TTL <= 0 {
		errs = append(errs, errors.New("CONFIRM_TTL must be positive"))
	}

	if c.LLM.Provider == "" {
		errs = append(errs, errors.New("LLM_PROVIDER is empty"))
	}
	if c.LLM.Provider == "openai" && c.Credentials.OpenRouter == "" && c.Credentials.OpenAI == "" {
		errs = append(errs, errors.New("OPENROUTER_API_KEY or OPENAI_API_KEY is required"))
	}
	if key, name := c.speechKey(c.STT.Provider); c.STTEnabled() && key == "" {
		errs = append(errs, fmt.Errorf("%s is required for STT_PROVIDER=%s", name, c.STT.Provider))
	}
	if key, name := c.speechKey(c.TTS.Provider); c.TTSEnabled() && key == "" {
		errs = append(errs, fmt.Errorf("%s is required for TTS_PROVIDER=%s", name, c.TTS.Provider))
	}
	return errors.Join(errs...)
}

func (c *Config) speechKey(provider string) (key, env string) {
	switch provider {
	case "assemblyai":
		return c.Credentials.AssemblyAI, "ASSEMBLYAI_API_KEY"
	case "deepgram":
		return c.Credentials.Deepgram, "DEEPGRAM_API_KEY"
	default:
		return c.Credentials.OpenAI, "OPENAI_API_KEY"
	}
}

// STTEnabled reports whether a recognizer should be created.
func (c *Config) STTEnabled() bool {
	return c.STT.Provider != "" && c.STT.Provider != ProviderNone
}

// TTSEnabled reports whether replies are spoken in voice mode.
func (c *Config) TTSEnabled() bool {
	return c.TTS.Provider != "" && c.TTS.Provider != ProviderNone
}

// LLMOptions returns the provider options for the completer.
func (c *Config) LLMOptions(logger *slog.Logger) plugin.Options {
	key := c.Credentials.OpenRouter
	if key == "" {
		key = c.Credentials.OpenAI
	}
	return plugin.Options{
		APIKey:      key,
		BaseURL:     c.LLM.URL,
		Model:       c.LLM.Model,
		Referer:     c.LLM.Referer,
		Timeout:     c.LLM.Timeout,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
		TopP:        c.LLM.TopP,
		Logger:      logger,
	}
}

// STTOptions returns the provider options for the recognizer.
func (c *Config) STTOptions(logger *slog.Logger) plugin.Options {
	key, _ := c.speechKey(c.STT.Provider)
	return plugin.Options{
		APIKey:   key,
		Model:    c.STT.Model,
		Language: c.STT.Language,
		Timeout:  c.LLM.Timeout,
		Logger:   logger,
	}
}

// TTSOptions returns the provider options for the synthesizer.
func (c *Config) TTSOptions(logger *slog.Logger) plugin.Options {
	key, _ := c.speechKey(c.TTS.Provider)
	return plugin.Options{
		APIKey:  key,
		Model:   c.TTS.Model,
		Voice:   c.TTS.Voice,
		Timeout: c.LLM.Timeout,
		Logger:  logger,
	}
}
