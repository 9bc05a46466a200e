package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sjawhar/ghost-recorder/internal/audio"
)

// EnvPrefix is the namespace prefix for all Ghost Recorder environment variables.
const EnvPrefix = "GHOST_RECORDER_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr    string `yaml:"listen_addr"`
	DBPath        string `yaml:"db_path"`
	AudioDir      string `yaml:"audio_dir"`
	TranscriptDir string `yaml:"transcript_dir"`
	ArchiveFormat string `yaml:"archive_format"`

	CaptureEnabled  bool    `yaml:"capture_enabled"`
	MicSampleRate   int     `yaml:"mic_sample_rate"`
	MicSampleRates  []int   `yaml:"mic_sample_rates"`
	MicChannels     int     `yaml:"mic_channels"`
	FramesPerBuffer int     `yaml:"frames_per_buffer"`
	SilenceTimeout  string  `yaml:"silence_timeout"`
	VADThreshold    float64 `yaml:"vad_threshold"`

	ExportMIMEType    string `yaml:"export_mime_type"`
	CanonicalByteRate bool   `yaml:"canonical_byte_rate"`
	RejectEmptyExport bool   `yaml:"reject_empty_export"`
	DownsampleRate    int    `yaml:"downsample_rate"`

	TranscriptionModel string `yaml:"transcription_model"`
	LiveModel          string `yaml:"live_model"`
	Language           string `yaml:"language"`
	AssistantModel     string `yaml:"assistant_model"`
	AssistantPrompt    string `yaml:"assistant_prompt"`

	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	// Secrets, env vars only.
	DeepgramAPIKey  string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
}

const defaultAssistantPrompt = "You are a voice assistant. Answer the user's spoken request in one or two short sentences suitable for reading aloud."

func defaults() Config {
	return Config{
		ListenAddr:            ":8080",
		DBPath:                "data/ghost-recorder.db",
		AudioDir:              "data/audio",
		TranscriptDir:         "data/transcripts",
		ArchiveFormat:         audio.FormatWAV,
		MicSampleRate:         16000,
		MicSampleRates:        []int{48000, 44100, 32000, 24000},
		MicChannels:           1,
		FramesPerBuffer:       1024,
		SilenceTimeout:        "1.5s",
		VADThreshold:          0.015,
		ExportMIMEType:        "audio/wav",
		TranscriptionModel:    "whisper-1",
		LiveModel:             "nova-2",
		Language:              "en-US",
		AssistantModel:        "openai/gpt-4o-mini",
		AssistantPrompt:       defaultAssistantPrompt,
		GoogleCredentialsFile: "./service-account.json",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedSilenceTimeout returns SilenceTimeout as a time.Duration,
// falling back to 1.5s if the value is invalid.
func (c *Config) ParsedSilenceTimeout() time.Duration {
	d, err := time.ParseDuration(c.SilenceTimeout)
	if err != nil || d <= 0 {
		return 1500 * time.Millisecond
	}
	return d
}

// SampleRateCandidates returns a deduplicated ordered list of sample rates
// to try: preferred rate first, then configured alternatives, then defaults.
func (c *Config) SampleRateCandidates() []int {
	hardcoded := []int{16000, 48000, 44100, 32000, 24000}

	combined := make([]int, 0, 1+len(c.MicSampleRates)+len(hardcoded))
	combined = append(combined, c.MicSampleRate)
	combined = append(combined, c.MicSampleRates...)
	combined = append(combined, hardcoded...)

	seen := make(map[int]struct{}, len(combined))
	result := make([]int, 0, len(combined))
	for _, rate := range combined {
		if rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}
	return result
}

// EncoderOptions maps the WAV export settings onto encoder options.
func (c *Config) EncoderOptions() []audio.Option {
	var opts []audio.Option
	if c.CanonicalByteRate {
		opts = append(opts, audio.WithCanonicalByteRate())
	}
	if c.RejectEmptyExport {
		opts = append(opts, audio.WithRejectEmpty())
	}
	if c.DownsampleRate > 0 {
		opts = append(opts, audio.WithDownsample(c.DownsampleRate))
	}
	return opts
}

// AssistantAPIKey picks the secret matching the provider of AssistantModel.
func (c *Config) AssistantAPIKey(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return ""
	}
}

func applyEnvOverrides(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
				*dst = n
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}

	str("LISTEN_ADDR", &cfg.ListenAddr)
	str("DB_PATH", &cfg.DBPath)
	str("AUDIO_DIR", &cfg.AudioDir)
	str("TRANSCRIPT_DIR", &cfg.TranscriptDir)
	str("ARCHIVE_FORMAT", &cfg.ArchiveFormat)
	flag("CAPTURE_ENABLED", &cfg.CaptureEnabled)
	num("MIC_SAMPLE_RATE", &cfg.MicSampleRate)
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATES"); v != "" {
		cfg.MicSampleRates = parseSampleRates(v)
	}
	num("MIC_CHANNELS", &cfg.MicChannels)
	num("FRAMES_PER_BUFFER", &cfg.FramesPerBuffer)
	str("SILENCE_TIMEOUT", &cfg.SilenceTimeout)
	if v := os.Getenv(EnvPrefix + "VAD_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 0 {
			cfg.VADThreshold = f
		}
	}
	str("EXPORT_MIME_TYPE", &cfg.ExportMIMEType)
	flag("CANONICAL_BYTE_RATE", &cfg.CanonicalByteRate)
	flag("REJECT_EMPTY_EXPORT", &cfg.RejectEmptyExport)
	num("DOWNSAMPLE_RATE", &cfg.DownsampleRate)
	str("TRANSCRIPTION_MODEL", &cfg.TranscriptionModel)
	str("LIVE_MODEL", &cfg.LiveModel)
	str("LANGUAGE", &cfg.Language)
	str("ASSISTANT_MODEL", &cfg.AssistantModel)
	str("ASSISTANT_PROMPT", &cfg.AssistantPrompt)
	str("GDRIVE_FOLDER_ID", &cfg.GDriveFolderID)
	str("GOOGLE_CREDENTIALS_FILE", &cfg.GoogleCredentialsFile)
}

func loadSecrets(cfg *Config) {
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured, live transcription is disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}
	if cfg.OpenAIAPIKey == "" {
		warnings = append(warnings, "OpenAI API key not configured, clip transcription is disabled. Set "+EnvPrefix+"OPENAI_API_KEY.")
	}
	if _, err := time.ParseDuration(cfg.SilenceTimeout); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid silence_timeout %q, using default 1.5s.", cfg.SilenceTimeout))
	}
	if cfg.MicChannels != 1 && cfg.MicChannels != 2 {
		warnings = append(warnings, fmt.Sprintf("Unsupported mic_channels %d, using mono.", cfg.MicChannels))
		cfg.MicChannels = 1
	}
	if cfg.DownsampleRate > 0 && cfg.DownsampleRate > cfg.MicSampleRate {
		warnings = append(warnings, fmt.Sprintf("downsample_rate %d is above mic_sample_rate %d, exports will fail.", cfg.DownsampleRate, cfg.MicSampleRate))
	}
	if cfg.ArchiveFormat != audio.FormatWAV && cfg.ArchiveFormat != audio.FormatMP3 {
		warnings = append(warnings, fmt.Sprintf("Unknown archive_format %q, using wav.", cfg.ArchiveFormat))
		cfg.ArchiveFormat = audio.FormatWAV
	}

	return warnings
}

func parseSampleRates(raw string) []int {
	parts := strings.Split(raw, ",")
	seen := make(map[int]struct{}, len(parts))
	result := make([]int, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		rate, err := strconv.Atoi(trimmed)
		if err != nil || rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}

	return result
}
