package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/neboloop/wikirace/internal/browser"
	"github.com/neboloop/wikirace/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. WIKIRACE_SERVER_PORT.
const EnvPrefix = "WIKIRACE_"

// LoadFromBytes loads configuration from YAML bytes with environment variable
// expansion, then applies WIKIRACE_* overrides and defaults.
func LoadFromBytes(data []byte) (Config, error) {
	var c Config
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return c, fmt.Errorf("env overrides: %w", err)
	}
	c.applyDefaults()
	return c, nil
}

// LoadFile reads path and calls LoadFromBytes.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return LoadFromBytes(data)
}

// parseBool parses a string as boolean with a default value.
// Accepts: "true", "1", "yes" as true; empty or other values return default.
func parseBool(s string, defaultVal bool) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return defaultVal
	}
	return s == "true" || s == "1" || s == "yes"
}

type Config struct {
	Name   string `yaml:"Name"`
	Server struct {
		Host           string   `yaml:"Host" env:"HOST"`
		Port           int      `yaml:"Port" env:"PORT"`
		AllowedOrigins []string `yaml:"AllowedOrigins" env:"ALLOWED_ORIGINS"`
	} `yaml:"Server" envPrefix:"SERVER_"`
	Log struct {
		Level      string `yaml:"Level" env:"LEVEL"`
		File       string `yaml:"File" env:"FILE"`
		MaxSizeMB  int    `yaml:"MaxSizeMB"`
		MaxBackups int    `yaml:"MaxBackups"`
		MaxAgeDays int    `yaml:"MaxAgeDays"`
		JSON       string `yaml:"JSON" env:"JSON"`
	} `yaml:"Log" envPrefix:"LOG_"`
	Wiki struct {
		BaseURL string        `yaml:"BaseURL" env:"BASE_URL"`
		Timeout time.Duration `yaml:"Timeout" env:"TIMEOUT"`
	} `yaml:"Wiki" envPrefix:"WIKI_"`
	Browser struct {
		Driver         string        `yaml:"Driver" env:"DRIVER"`
		Headless       string        `yaml:"Headless" env:"HEADLESS"`
		NoSandbox      string        `yaml:"NoSandbox" env:"NO_SANDBOX"`
		ExecutablePath string        `yaml:"ExecutablePath" env:"EXECUTABLE_PATH"`
		CDPURL         string        `yaml:"CDPURL" env:"CDP_URL"`
		Timeout        time.Duration `yaml:"Timeout" env:"TIMEOUT"`
		Install        string        `yaml:"Install" env:"INSTALL"`
	} `yaml:"Browser" envPrefix:"BROWSER_"`
	AI struct {
		Provider        string `yaml:"Provider" env:"PROVIDER"` // anthropic, openai, ollama
		Fallback        string `yaml:"Fallback" env:"FALLBACK"` // optional second provider
		Model           string `yaml:"Model" env:"MODEL"`
		CommentaryModel string `yaml:"CommentaryModel" env:"COMMENTARY_MODEL"`
		AnthropicAPIKey string `yaml:"AnthropicAPIKey" env:"ANTHROPIC_API_KEY"`
		OpenAIAPIKey    string `yaml:"OpenAIAPIKey" env:"OPENAI_API_KEY"`
		OpenAIBaseURL   string `yaml:"OpenAIBaseURL" env:"OPENAI_BASE_URL"`
		OllamaURL       string `yaml:"OllamaURL" env:"OLLAMA_URL"`
		OllamaModel     string `yaml:"OllamaModel" env:"OLLAMA_MODEL"`
	} `yaml:"AI" envPrefix:"AI_"`
	Daily struct {
		Enabled  string `yaml:"Enabled" env:"ENABLED"`
		Schedule string `yaml:"Schedule" env:"SCHEDULE"`
	} `yaml:"Daily" envPrefix:"DAILY_"`
	Game struct {
		TuningFile string `yaml:"TuningFile" env:"TUNING_FILE"`
		Watch      string `yaml:"Watch" env:"WATCH"`
	} `yaml:"Game" envPrefix:"GAME_"`
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "wikirace"
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 27480
	}
	if c.Wiki.BaseURL == "" {
		c.Wiki.BaseURL = "https://en.wikipedia.org"
	}
	if c.Wiki.Timeout <= 0 {
		c.Wiki.Timeout = 15 * time.Second
	}
	if c.Browser.Driver == "" {
		c.Browser.Driver = browser.DriverPlaywright
	}
	if c.Browser.Timeout <= 0 {
		c.Browser.Timeout = browser.DefaultConfig().Timeout
	}
	if c.AI.Provider == "" {
		c.AI.Provider = ProviderAnthropic
	}
	if c.Daily.Schedule == "" {
		c.Daily.Schedule = "@daily"
	}
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c Config) IsHeadless() bool {
	return parseBool(c.Browser.Headless, true)
}

func (c Config) IsDailyEnabled() bool {
	return parseBool(c.Daily.Enabled, true)
}

func (c Config) IsTuningWatchEnabled() bool {
	return parseBool(c.Game.Watch, true)
}

// BrowserConfig returns the automation driver settings.
func (c Config) BrowserConfig() browser.Config {
	return browser.Config{
		Driver:         c.Browser.Driver,
		Headless:       c.IsHeadless(),
		NoSandbox:      parseBool(c.Browser.NoSandbox, false),
		ExecutablePath: c.Browser.ExecutablePath,
		CDPURL:         c.Browser.CDPURL,
		Timeout:        c.Browser.Timeout,
		InstallDeps:    parseBool(c.Browser.Install, false),
	}
}

// LogOptions returns the logger settings.
func (c Config) LogOptions() logging.Options {
	return logging.Options{
		Level:      c.Log.Level,
		FilePath:   c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		JSON:       parseBool(c.Log.JSON, false),
	}
}
