package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/confirm"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/store"
)

// clearEnv unsets every key Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	for _, k := range []string{
		"STM_CONFIG", "STM_LISTEN_ADDR", "STM_WS_PATH", "STM_DEFAULT_USER_ID", "STM_TRANSCODE_WORKERS",
		"LLM_PROVIDER", "OPENROUTER_URL", "LLM_MODEL", "LLM_TIMEOUT", "LLM_TEMPERATURE", "LLM_MAX_TOKENS",
		"LLM_TOP_P", "LLM_REFERER", "STT_PROVIDER", "STT_MODEL", "STT_LANGUAGE", "TTS_PROVIDER", "TTS_MODEL",
		"TTS_VOICE", "OPENROUTER_API_KEY", "OPENAI_API_KEY", "ASSEMBLYAI_API_KEY", "DEEPGRAM_API_KEY",
		"DB_DRIVER", "DB_DSN", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_MIGRATE",
		"CONFIRM_MODE", "CONFIRM_TTL", "STM_LOG_FORMAT", "STM_LOG_LEVEL",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadDefaults(t *testing.T) {
	is := is.New(t)
	clearEnv(t)

	cfg, err := Load("", missingEnvFile(t))
	is.NoErr(err)
	is.Equal(cfg.Server.ListenAddr, ":8000")
	is.Equal(cfg.Server.WSPath, "/ai/stream")
	is.Equal(cfg.Server.DefaultUserID, "1")
	is.Equal(cfg.LLM.Model, "mistralai/mistral-7b-instruct")
	is.Equal(cfg.LLM.MaxTokens, 1500)
	is.Equal(cfg.DB.Driver, store.DriverMySQL)
	is.Equal(cfg.Confirm.Mode, confirm.ModeStrict)
	is.Equal(cfg.Confirm.TTL, 10*time.Minute)
}

func TestLoadLayers(t *testing.T) {
	is := is.New(t)
	clearEnv(t)
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "stm.yaml")
	is.NoErr(os.WriteFile(yamlPath, []byte(`
server:
  listen_addr: ":9000"
  ws_path: /ws
llm:
  model: from-yaml
  timeout: 5s
db:
  driver: sqlite
  name: dev.db
  migrate: true
confirm:
  ttl: 2m
`), 0o600))

	envPath := filepath.Join(dir, ".env")
	is.NoErr(os.WriteFile(envPath, []byte("LLM_MODEL=from-dotenv\nOPENROUTER_API_KEY=sk-or\n"), 0o600))
	t.Setenv("STM_LISTEN_ADDR", ":7000")

	cfg, err := Load(yamlPath, envPath)
	is.NoErr(err)
	is.Equal(cfg.Server.ListenAddr, ":7000") // env beats yaml
	is.Equal(cfg.Server.WSPath, "/ws")       // yaml beats defaults
	is.Equal(cfg.LLM.Model, "from-dotenv")   // .env beats yaml
	is.Equal(cfg.LLM.Timeout, 5*time.Second)
	is.Equal(cfg.LLM.Temperature, float32(0.7)) // untouched default
	is.Equal(cfg.DB.Driver, store.DriverSQLite)
	is.Equal(cfg.DB.Name, "dev.db")
	is.True(cfg.DB.Migrate)
	is.Equal(cfg.Confirm.TTL, 2*time.Minute)
	is.Equal(cfg.Credentials.OpenRouter, "sk-or")
}

func TestLoadBadValues(t *testing.T) {
	is := is.New(t)
	clearEnv(t)
	t.Setenv("LLM_TIMEOUT", "soon")
	t.Setenv("DB_PORT", "abc")

	_, err := Load("", missingEnvFile(t))
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "LLM_TIMEOUT"))
	is.True(strings.Contains(err.Error(), "DB_PORT"))
}

func TestLoadMissingFile(t *testing.T) {
	is := is.New(t)
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), missingEnvFile(t))
	is.True(err != nil)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Credentials.OpenAI = "sk"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"no llm key", func(c *Config) { c.Credentials.OpenAI = "" }, "OPENROUTER_API_KEY"},
		{"assemblyai without key", func(c *Config) { c.STT.Provider = "assemblyai" }, "ASSEMBLYAI_API_KEY"},
		{"deepgram without key", func(c *Config) { c.TTS.Provider = "deepgram" }, "DEEPGRAM_API_KEY"},
		{"speech disabled", func(c *Config) {
			c.Credentials = Credentials{OpenRouter: "sk-or"}
			c.STT.Provider = ProviderNone
			c.TTS.Provider = ProviderNone
		}, ""},
		{"bad driver", func(c *Config) { c.DB.Driver = "oracle" }, "DB_DRIVER"},
		{"bad mode", func(c *Config) { c.Confirm.Mode = "yolo" }, "CONFIRM_MODE"},
		{"bad path", func(c *Config) { c.Server.WSPath = "ai/stream" }, "must start with /"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestProviderOptions(t *testing.T) {
	is := is.New(t)
	cfg := DefaultConfig()
	cfg.Credentials = Credentials{OpenRouter: "sk-or", OpenAI: "sk-oa", Deepgram: "dg"}
	cfg.TTS.Provider = "deepgram"
	cfg.TTS.Voice = "aura-orion-en"

	is.Equal(cfg.LLMOptions(nil).APIKey, "sk-or") // OpenRouter preferred for completions
	is.Equal(cfg.LLMOptions(nil).MaxTokens, 1500)
	is.Equal(cfg.STTOptions(nil).APIKey, "sk-oa")
	is.Equal(cfg.TTSOptions(nil).APIKey, "dg")
	is.Equal(cfg.TTSOptions(nil).Voice, "aura-orion-en")
}
