package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Journal     JournalConfig   `yaml:"journal"`
	Capture     CaptureConfig   `yaml:"capture"`
	STT         STTConfig       `yaml:"stt"`
	Analysis    AnalysisConfig  `yaml:"analysis"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type JournalConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type CaptureConfig struct {
	Enabled            bool    `yaml:"enabled"`
	Mode               string  `yaml:"mode"` // mock, arecord, ffmpeg, exec
	Command            string  `yaml:"command"`
	Device             string  `yaml:"device"`
	RecordingsDir      string  `yaml:"recordings_dir"`
	SampleRate         int     `yaml:"sample_rate"`
	Channels           int     `yaml:"channels"`
	MaxWaitMS          int     `yaml:"max_wait_ms"`
	PhraseLimitMS      int     `yaml:"phrase_limit_ms"`
	OnsetThresholdDBFS float64 `yaml:"onset_threshold_dbfs"`
	Bitrate            string  `yaml:"bitrate"`
}

type STTConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Mode      string `yaml:"mode"` // mock, exec
	Command   string `yaml:"command"`
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
}

type AnalysisConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Mode        string  `yaml:"mode"` // mock, gemini, ollama
	Model       string  `yaml:"model"`
	Endpoint    string  `yaml:"endpoint"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

func Default() Config {
	return Config{
		RuntimeName: "medvoice-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Journal: JournalConfig{
			Path:          "./data/medvoice-journal.db",
			RetentionMode: "ephemeral",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Capture: CaptureConfig{
			Enabled:            true,
			Mode:               "mock",
			RecordingsDir:      "./data/recordings",
			SampleRate:         16000,
			Channels:           1,
			MaxWaitMS:          20000,
			PhraseLimitMS:      30000,
			OnsetThresholdDBFS: -40,
			Bitrate:            "128k",
		},
		STT: STTConfig{
			Enabled: true,
			Mode:    "mock",
		},
		Analysis: AnalysisConfig{
			Enabled:     true,
			Mode:        "mock",
			Model:       "gemini-1.5-flash",
			Endpoint:    "http://localhost:11434",
			APIKeyEnv:   "GOOGLE_API_KEY",
			MaxTokens:   1024,
			Temperature: 0.4,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "MEDVOICE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "MEDVOICE_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "MEDVOICE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "MEDVOICE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "MEDVOICE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "MEDVOICE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "MEDVOICE_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "MEDVOICE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "MEDVOICE_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "MEDVOICE_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "MEDVOICE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "MEDVOICE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "MEDVOICE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "MEDVOICE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "MEDVOICE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "MEDVOICE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Journal.Path, "MEDVOICE_JOURNAL_PATH")
	overrideString(&cfg.Journal.RetentionMode, "MEDVOICE_JOURNAL_RETENTION_MODE")
	overrideInt(&cfg.Journal.RetentionDays, "MEDVOICE_JOURNAL_RETENTION_DAYS")
	overrideInt(&cfg.Journal.MaxSessions, "MEDVOICE_JOURNAL_MAX_SESSIONS")
	overrideBool(&cfg.Journal.VacuumOnStart, "MEDVOICE_JOURNAL_VACUUM_ON_START")
	overrideBool(&cfg.Capture.Enabled, "MEDVOICE_CAPTURE_ENABLED")
	overrideString(&cfg.Capture.Mode, "MEDVOICE_CAPTURE_MODE")
	overrideString(&cfg.Capture.Command, "MEDVOICE_CAPTURE_COMMAND")
	overrideString(&cfg.Capture.Device, "MEDVOICE_CAPTURE_DEVICE")
	overrideString(&cfg.Capture.RecordingsDir, "MEDVOICE_CAPTURE_RECORDINGS_DIR")
	overrideInt(&cfg.Capture.SampleRate, "MEDVOICE_CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Capture.Channels, "MEDVOICE_CAPTURE_CHANNELS")
	overrideInt(&cfg.Capture.MaxWaitMS, "MEDVOICE_CAPTURE_MAX_WAIT_MS")
	overrideInt(&cfg.Capture.PhraseLimitMS, "MEDVOICE_CAPTURE_PHRASE_LIMIT_MS")
	overrideFloat(&cfg.Capture.OnsetThresholdDBFS, "MEDVOICE_CAPTURE_ONSET_THRESHOLD_DBFS")
	overrideString(&cfg.Capture.Bitrate, "MEDVOICE_CAPTURE_BITRATE")
	overrideBool(&cfg.STT.Enabled, "MEDVOICE_STT_ENABLED")
	overrideString(&cfg.STT.Mode, "MEDVOICE_STT_MODE")
	overrideString(&cfg.STT.Command, "MEDVOICE_STT_COMMAND")
	overrideString(&cfg.STT.ModelPath, "MEDVOICE_STT_MODEL_PATH")
	overrideString(&cfg.STT.Language, "MEDVOICE_STT_LANGUAGE")
	overrideBool(&cfg.Analysis.Enabled, "MEDVOICE_ANALYSIS_ENABLED")
	overrideString(&cfg.Analysis.Mode, "MEDVOICE_ANALYSIS_MODE")
	overrideString(&cfg.Analysis.Model, "MEDVOICE_ANALYSIS_MODEL")
	overrideString(&cfg.Analysis.Endpoint, "MEDVOICE_ANALYSIS_ENDPOINT")
	overrideString(&cfg.Analysis.APIKeyEnv, "MEDVOICE_ANALYSIS_API_KEY_ENV")
	overrideInt(&cfg.Analysis.MaxTokens, "MEDVOICE_ANALYSIS_MAX_TOKENS")
	overrideFloat(&cfg.Analysis.Temperature, "MEDVOICE_ANALYSIS_TEMPERATURE")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Journal.Path == "" {
		return errors.New("journal.path must not be empty")
	}
	switch cfg.Journal.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("journal.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Journal.RetentionDays < 0 {
		return errors.New("journal.retention_days must be >= 0")
	}
	if cfg.Capture.Enabled {
		switch cfg.Capture.Mode {
		case "mock", "arecord", "ffmpeg", "exec":
		default:
			return errors.New("capture.mode must be one of mock|arecord|ffmpeg|exec")
		}
		if cfg.Capture.Mode == "exec" && cfg.Capture.Command == "" {
			return errors.New("capture.command must be set when mode=exec")
		}
		if cfg.Capture.RecordingsDir == "" {
			return errors.New("capture.recordings_dir must not be empty")
		}
		if cfg.Capture.SampleRate <= 0 {
			return errors.New("capture.sample_rate must be positive")
		}
		if cfg.Capture.Channels <= 0 {
			return errors.New("capture.channels must be positive")
		}
		if cfg.Capture.MaxWaitMS <= 0 {
			return errors.New("capture.max_wait_ms must be positive")
		}
		if cfg.Capture.PhraseLimitMS <= 0 {
			return errors.New("capture.phrase_limit_ms must be positive")
		}
		if cfg.Capture.OnsetThresholdDBFS >= 0 {
			return errors.New("capture.onset_threshold_dbfs must be negative")
		}
	}
	if cfg.STT.Enabled {
		switch cfg.STT.Mode {
		case "mock", "exec":
		default:
			return errors.New("stt.mode must be one of mock|exec")
		}
		if cfg.STT.Mode == "exec" && cfg.STT.Command == "" {
			return errors.New("stt.command must be set when mode=exec")
		}
	}
	if cfg.Analysis.Enabled {
		switch cfg.Analysis.Mode {
		case "mock", "gemini", "ollama":
		default:
			return errors.New("analysis.mode must be one of mock|gemini|ollama")
		}
		if cfg.Analysis.Mode == "gemini" && cfg.Analysis.APIKeyEnv == "" {
			return errors.New("analysis.api_key_env must be set when mode=gemini")
		}
		if cfg.Analysis.Mode == "ollama" && cfg.Analysis.Endpoint == "" {
			return errors.New("analysis.endpoint must be set when mode=ollama")
		}
		if cfg.Analysis.Model == "" {
			return errors.New("analysis.model must not be empty")
		}
		if cfg.Analysis.MaxTokens < 0 {
			return errors.New("analysis.max_tokens must be >= 0")
		}
	}
	return nil
}
