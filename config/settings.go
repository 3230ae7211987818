// Package config provides application settings loaded from an optional YAML
// file and environment variables.
//
// Settings are created via Load() which handles:
// - Default value application
// - YAML file decoding (unknown keys rejected)
// - Environment variable overrides with validation
// - Provider-specific configuration lookup

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfiguration marks every error caused by missing or invalid configuration.
var ErrConfiguration = errors.New("configuration error")

// EnvConfigPath names the variable holding the YAML config path.
const EnvConfigPath = "SANDBOXAGENT_CONFIG"

// Journal backends.
const (
	JournalMemory = "memory"
	JournalSqlite = "sqlite"
	JournalRedis  = "redis"
	JournalNone   = "none"
)

// Settings holds all application configuration.
type Settings struct {
	LLM     LLMConfig     `yaml:"llm"`
	Agent   AgentConfig   `yaml:"agent"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	HTTP    HTTPConfig    `yaml:"http"`
	Journal JournalConfig `yaml:"journal"`
	Log     LogConfig     `yaml:"log"`
}

// LLMConfig holds LLM provider configuration.
// The API key is only read from the environment.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	MaxTokens   uint32  `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	APIKey      string  `yaml:"-"`
}

// AgentConfig holds agent execution configuration.
type AgentConfig struct {
	MaxIterations      int `yaml:"max_iterations"`
	MaxIterationsLimit int `yaml:"max_iterations_limit"`
}

// SandboxConfig holds the sandbox root and file size limit.
type SandboxConfig struct {
	Root         string `yaml:"root"`
	MaxFileBytes int64  `yaml:"max_file_bytes"`
}

// HTTPConfig holds server settings.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// JournalConfig selects where run records are kept.
type JournalConfig struct {
	Backend  string `yaml:"backend"`
	DSN      string `yaml:"dsn"`
	Capacity int    `yaml:"capacity"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
	baseURLEnv   string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", "gpt-4o-mini", "OPENAI_API_KEY", "OPENAI_BASE_URL"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL"},
	"deepseek":  {"DEEPSEEK_MODEL", "deepseek-chat", "DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL"},
	"gemini":    {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY", "GEMINI_BASE_URL"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// Default returns settings with every default applied and no provider model resolved.
func Default() Settings {
	return Settings{
		LLM: LLMConfig{
			Provider:    "openai",
			MaxTokens:   4096,
			Temperature: 0.2,
		},
		Agent: AgentConfig{
			MaxIterations:      6,
			MaxIterationsLimit: 50,
		},
		Sandbox: SandboxConfig{
			Root:         "./sandbox",
			MaxFileBytes: 1024 * 1024,
		},
		HTTP: HTTPConfig{
			Addr:            "127.0.0.1:3000",
			ShutdownTimeout: 5 * time.Second,
		},
		Journal: JournalConfig{
			Backend:  JournalMemory,
			Capacity: 200,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds settings from defaults, then the YAML file at path (if any),
// then environment variables. Every error wraps ErrConfiguration.
func Load(path string) (Settings, error) {
	settings := Default()

	if path != "" {
		if err := loadFile(path, &settings); err != nil {
			return Settings{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}

	if err := applyEnv(&settings); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	if err := settings.finalize(); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// MustLoad loads settings.
// Panics if the configuration is invalid.
// Use this only when configuration errors should be fatal.
func MustLoad(path string) Settings {
	settings, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

func loadFile(path string, settings *Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty document leaves the defaults untouched.
	if err := dec.Decode(settings); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(s *Settings) error {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		s.LLM.Provider = v
	}
	s.LLM.Provider = normalizeProvider(s.LLM.Provider)

	var err error
	if s.LLM.MaxTokens, err = getEnvUint32("LLM_MAX_TOKENS", s.LLM.MaxTokens); err != nil {
		return err
	}
	if s.LLM.Temperature, err = getEnvFloat64("LLM_TEMPERATURE", s.LLM.Temperature); err != nil {
		return err
	}
	if s.Agent.MaxIterations, err = getEnvInt("AGENT_MAX_ITERATIONS", s.Agent.MaxIterations); err != nil {
		return err
	}
	if s.Agent.MaxIterationsLimit, err = getEnvInt("AGENT_MAX_ITERATIONS_LIMIT", s.Agent.MaxIterationsLimit); err != nil {
		return err
	}
	if s.Sandbox.MaxFileBytes, err = getEnvInt64("SANDBOX_MAX_FILE_BYTES", s.Sandbox.MaxFileBytes); err != nil {
		return err
	}
	if s.HTTP.ShutdownTimeout, err = getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", s.HTTP.ShutdownTimeout); err != nil {
		return err
	}
	if s.Journal.Capacity, err = getEnvInt("JOURNAL_CAPACITY", s.Journal.Capacity); err != nil {
		return err
	}

	s.Sandbox.Root = getEnvString("SANDBOX_ROOT", s.Sandbox.Root)
	s.HTTP.Addr = getEnvString("HTTP_ADDR", s.HTTP.Addr)
	s.Journal.Backend = strings.ToLower(getEnvString("JOURNAL_BACKEND", s.Journal.Backend))
	s.Journal.DSN = getEnvString("JOURNAL_DSN", s.Journal.DSN)
	s.Log.Level = strings.ToLower(getEnvString("LOG_LEVEL", s.Log.Level))
	s.Log.Format = strings.ToLower(getEnvString("LOG_FORMAT", s.Log.Format))
	s.Log.File = getEnvString("LOG_FILE", s.Log.File)

	// Provider-scoped values only apply once the provider is known.
	if info, ok := providers[s.LLM.Provider]; ok {
		s.LLM.Model = getEnvString(info.modelEnv, s.LLM.Model)
		s.LLM.BaseURL = getEnvString(info.baseURLEnv, s.LLM.BaseURL)
		s.LLM.APIKey = os.Getenv(info.apiKeyEnv)
	}
	return nil
}

// finalize fills derived values.
func (s *Settings) finalize() error {
	if info, ok := providers[s.LLM.Provider]; ok && s.LLM.Model == "" {
		s.LLM.Model = info.defaultModel
	}
	if s.Sandbox.Root != "" {
		abs, err := filepath.Abs(s.Sandbox.Root)
		if err != nil {
			return fmt.Errorf("resolve sandbox root: %w", err)
		}
		s.Sandbox.Root = abs
	}
	return nil
}

// Validate reports the first invalid setting, wrapped in ErrConfiguration.
func (s Settings) Validate() error {
	var problems []string

	if _, ok := providers[s.LLM.Provider]; !ok {
		problems = append(problems, fmt.Sprintf("unknown provider: %q", s.LLM.Provider))
	}
	if strings.TrimSpace(s.LLM.Model) == "" {
		problems = append(problems, "model must not be empty")
	}
	if s.LLM.Temperature < 0 || s.LLM.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("temperature must be between 0 and 2, got %g", s.LLM.Temperature))
	}
	if s.Agent.MaxIterations < 1 {
		problems = append(problems, fmt.Sprintf("max iterations must be positive, got %d", s.Agent.MaxIterations))
	}
	if s.Agent.MaxIterationsLimit < s.Agent.MaxIterations {
		problems = append(problems, fmt.Sprintf("max iterations limit %d is below max iterations %d",
			s.Agent.MaxIterationsLimit, s.Agent.MaxIterations))
	}
	if strings.TrimSpace(s.Sandbox.Root) == "" {
		problems = append(problems, "sandbox root must not be empty")
	}
	if s.Sandbox.MaxFileBytes < 1 {
		problems = append(problems, fmt.Sprintf("sandbox max file bytes must be positive, got %d", s.Sandbox.MaxFileBytes))
	}
	if s.HTTP.ShutdownTimeout <= 0 {
		problems = append(problems, "http shutdown timeout must be positive")
	}

	switch s.Journal.Backend {
	case JournalMemory:
		if s.Journal.Capacity < 1 {
			problems = append(problems, fmt.Sprintf("journal capacity must be positive, got %d", s.Journal.Capacity))
		}
	case JournalSqlite, JournalRedis:
		if s.Journal.DSN == "" {
			problems = append(problems, fmt.Sprintf("journal backend %s requires JOURNAL_DSN", s.Journal.Backend))
		}
	case JournalNone:
	default:
		problems = append(problems, fmt.Sprintf("unknown journal backend: %q", s.Journal.Backend))
	}

	switch s.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("unknown log level: %q", s.Log.Level))
	}
	switch s.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("unknown log format: %q", s.Log.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("%w: unknown provider: %q", ErrConfiguration, provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	info, err := getProviderInfo(normalizeProvider(provider))
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%w: %s environment variable not set", ErrConfiguration, info.apiKeyEnv)
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	info, err := getProviderInfo(normalizeProvider(provider))
	if err != nil {
		return "", err
	}

	if val := os.Getenv(info.modelEnv); val != "" {
		return val, nil
	}
	return info.defaultModel, nil
}

// BaseURLFor returns the base URL override for a provider, or "".
func BaseURLFor(provider string) (string, error) {
	info, err := getProviderInfo(normalizeProvider(provider))
	if err != nil {
		return "", err
	}
	return os.Getenv(info.baseURLEnv), nil
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return d, nil
}
