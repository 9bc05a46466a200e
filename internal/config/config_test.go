package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/sjawhar/ghost-recorder/internal/audio"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LISTEN_ADDR", "DB_PATH", "AUDIO_DIR", "TRANSCRIPT_DIR", "ARCHIVE_FORMAT",
		"CAPTURE_ENABLED", "MIC_SAMPLE_RATE", "MIC_SAMPLE_RATES", "MIC_CHANNELS",
		"FRAMES_PER_BUFFER", "SILENCE_TIMEOUT", "VAD_THRESHOLD",
		"EXPORT_MIME_TYPE", "CANONICAL_BYTE_RATE", "REJECT_EMPTY_EXPORT", "DOWNSAMPLE_RATE",
		"TRANSCRIPTION_MODEL", "LIVE_MODEL", "LANGUAGE", "ASSISTANT_MODEL", "ASSISTANT_PROMPT",
		"GDRIVE_FOLDER_ID", "GOOGLE_CREDENTIALS_FILE",
		"DEEPGRAM_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "CONFIG",
	} {
		t.Setenv(EnvPrefix+key, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "data/ghost-recorder.db" {
		t.Fatalf("expected default db_path, got %q", cfg.DBPath)
	}
	if cfg.AudioDir != "data/audio" {
		t.Fatalf("expected default audio_dir, got %q", cfg.AudioDir)
	}
	if cfg.SilenceTimeout != "1.5s" {
		t.Fatalf("expected default silence_timeout, got %q", cfg.SilenceTimeout)
	}
	if cfg.MicSampleRate != 16000 || cfg.MicChannels != 1 {
		t.Fatalf("expected 16kHz mono default, got %d/%d", cfg.MicSampleRate, cfg.MicChannels)
	}
	if cfg.ExportMIMEType != "audio/wav" {
		t.Fatalf("expected default export_mime_type, got %q", cfg.ExportMIMEType)
	}
	if cfg.CaptureEnabled {
		t.Fatal("expected capture disabled by default")
	}
	if len(cfg.EncoderOptions()) != 0 {
		t.Fatal("expected no encoder options by default")
	}
}

func TestYAMLLoading(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
db_path: /custom/db.sqlite
audio_dir: /custom/audio
archive_format: mp3
capture_enabled: true
silence_timeout: 2s
mic_sample_rate: 48000
mic_sample_rates: [44100, 32000]
mic_channels: 2
canonical_byte_rate: true
reject_empty_export: true
downsample_rate: 16000
assistant_model: anthropic/claude-3-5-haiku-latest
gdrive_folder_id: my-folder
google_credentials_file: /path/to/creds.json
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "/custom/db.sqlite" {
		t.Fatalf("expected yaml db_path, got %q", cfg.DBPath)
	}
	if cfg.AudioDir != "/custom/audio" {
		t.Fatalf("expected yaml audio_dir, got %q", cfg.AudioDir)
	}
	if cfg.ArchiveFormat != audio.FormatMP3 {
		t.Fatalf("expected yaml archive_format, got %q", cfg.ArchiveFormat)
	}
	if !cfg.CaptureEnabled {
		t.Fatal("expected yaml capture_enabled")
	}
	if cfg.ParsedSilenceTimeout() != 2*time.Second {
		t.Fatalf("expected yaml silence_timeout, got %v", cfg.ParsedSilenceTimeout())
	}
	if cfg.MicSampleRate != 48000 || cfg.MicChannels != 2 {
		t.Fatalf("expected yaml mic settings, got %d/%d", cfg.MicSampleRate, cfg.MicChannels)
	}
	if !reflect.DeepEqual(cfg.MicSampleRates, []int{44100, 32000}) {
		t.Fatalf("expected yaml mic_sample_rates, got %v", cfg.MicSampleRates)
	}
	if len(cfg.EncoderOptions()) != 3 {
		t.Fatalf("expected three encoder options, got %d", len(cfg.EncoderOptions()))
	}
	if cfg.AssistantModel != "anthropic/claude-3-5-haiku-latest" {
		t.Fatalf("expected yaml assistant_model, got %q", cfg.AssistantModel)
	}
	if cfg.GDriveFolderID != "my-folder" {
		t.Fatalf("expected yaml gdrive_folder_id, got %q", cfg.GDriveFolderID)
	}
	if cfg.GoogleCredentialsFile != "/path/to/creds.json" {
		t.Fatalf("expected yaml google_credentials_file, got %q", cfg.GoogleCredentialsFile)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
db_path: /from/yaml
assistant_model: openai/gpt-yaml
canonical_byte_rate: false
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	clearEnv(t)
	t.Setenv(EnvPrefix+"DB_PATH", "/from/env")
	t.Setenv(EnvPrefix+"ASSISTANT_MODEL", "gemini/gemini-2.0-flash")
	t.Setenv(EnvPrefix+"AUDIO_DIR", "/env/audio")
	t.Setenv(EnvPrefix+"CANONICAL_BYTE_RATE", "true")
	t.Setenv(EnvPrefix+"VAD_THRESHOLD", "0.2")

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "/from/env" {
		t.Fatalf("expected env override for db_path, got %q", cfg.DBPath)
	}
	if cfg.AssistantModel != "gemini/gemini-2.0-flash" {
		t.Fatalf("expected env override for assistant_model, got %q", cfg.AssistantModel)
	}
	if cfg.AudioDir != "/env/audio" {
		t.Fatalf("expected env override for audio_dir, got %q", cfg.AudioDir)
	}
	if !cfg.CanonicalByteRate {
		t.Fatal("expected env override for canonical_byte_rate")
	}
	if cfg.VADThreshold != 0.2 {
		t.Fatalf("expected env override for vad_threshold, got %v", cfg.VADThreshold)
	}
}

func TestSecretsFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"DEEPGRAM_API_KEY", "dg-secret")
	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "oai-secret")
	t.Setenv(EnvPrefix+"ANTHROPIC_API_KEY", "ant-secret")
	t.Setenv(EnvPrefix+"GEMINI_API_KEY", "gem-secret")

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "dg-secret" {
		t.Fatalf("expected deepgram key from env, got %q", cfg.DeepgramAPIKey)
	}
	for provider, want := range map[string]string{
		"openai":    "oai-secret",
		"anthropic": "ant-secret",
		"gemini":    "gem-secret",
		"other":     "",
	} {
		if got := cfg.AssistantAPIKey(provider); got != want {
			t.Fatalf("AssistantAPIKey(%q) = %q, want %q", provider, got, want)
		}
	}
}

func TestSecretsIgnoredInYAML(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
deepgram_api_key: should-be-ignored
openai_api_key: also-ignored
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "" {
		t.Fatalf("expected empty deepgram key (yaml should be ignored), got %q", cfg.DeepgramAPIKey)
	}
	if cfg.OpenAIAPIKey != "" {
		t.Fatalf("expected empty openai key (yaml should be ignored), got %q", cfg.OpenAIAPIKey)
	}
}

func TestValidationWarnings(t *testing.T) {
	clearEnv(t)

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var deepgramWarning, openaiWarning bool
	for _, w := range warnings {
		if strings.Contains(w, "Deepgram") {
			deepgramWarning = true
		}
		if strings.Contains(w, "OpenAI") {
			openaiWarning = true
		}
	}

	if !deepgramWarning {
		t.Fatalf("expected Deepgram warning when key is missing, got warnings: %v", warnings)
	}
	if !openaiWarning {
		t.Fatalf("expected OpenAI warning when key is missing, got warnings: %v", warnings)
	}
}

func TestValidationNoWarningsWhenConfigured(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"DEEPGRAM_API_KEY", "key")
	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "key")

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(warnings) != 0 {
		t.Fatalf("expected no warnings when fully configured, got: %v", warnings)
	}
}

func TestInvalidSilenceTimeoutWarning(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"DEEPGRAM_API_KEY", "key")
	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "key")
	t.Setenv(EnvPrefix+"SILENCE_TIMEOUT", "not-a-duration")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(warnings) != 1 || !strings.Contains(warnings[0], "silence_timeout") {
		t.Fatalf("expected silence_timeout warning, got: %v", warnings)
	}

	if cfg.ParsedSilenceTimeout() != 1500*time.Millisecond {
		t.Fatalf("expected fallback to 1.5s, got %v", cfg.ParsedSilenceTimeout())
	}
}

func TestInvalidChannelsAndFormatAreCorrected(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"DEEPGRAM_API_KEY", "key")
	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "key")
	t.Setenv(EnvPrefix+"MIC_CHANNELS", "6")
	t.Setenv(EnvPrefix+"ARCHIVE_FORMAT", "flac")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(warnings) != 2 {
		t.Fatalf("expected two warnings, got %v", warnings)
	}
	if cfg.MicChannels != 1 {
		t.Fatalf("expected mono fallback, got %d", cfg.MicChannels)
	}
	if cfg.ArchiveFormat != audio.FormatWAV {
		t.Fatalf("expected wav fallback, got %q", cfg.ArchiveFormat)
	}
}

func TestDownsampleAboveCaptureRateWarns(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"DEEPGRAM_API_KEY", "key")
	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "key")
	t.Setenv(EnvPrefix+"DOWNSAMPLE_RATE", "44100")

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(warnings) != 1 || !strings.Contains(warnings[0], "downsample_rate") {
		t.Fatalf("expected downsample_rate warning, got: %v", warnings)
	}
}

func TestMissingConfigFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load should not fail for missing config file, got: %v", err)
	}

	if cfg.DBPath != "data/ghost-recorder.db" {
		t.Fatalf("expected defaults when config file missing, got db_path=%q", cfg.DBPath)
	}
}

func TestInvalidConfigFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte(":::invalid yaml"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	clearEnv(t)

	_, _, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for invalid yaml, got nil")
	}
}

func TestSampleRateCandidatesDefault(t *testing.T) {
	cfg := defaults()
	got := cfg.SampleRateCandidates()
	want := []int{16000, 48000, 44100, 32000, 24000}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected default sample rates: got=%v want=%v", got, want)
	}
}

func TestSampleRateCandidatesCustom(t *testing.T) {
	cfg := defaults()
	cfg.MicSampleRate = 48000
	cfg.MicSampleRates = []int{44100, 16000, 48000, 32000}

	got := cfg.SampleRateCandidates()
	want := []int{48000, 44100, 16000, 32000, 24000}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected custom sample rates: got=%v want=%v", got, want)
	}
}

func TestSampleRateCandidatesEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"MIC_SAMPLE_RATE", "48000")
	t.Setenv(EnvPrefix+"MIC_SAMPLE_RATES", "44100,16000,48000,abc,32000")

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got := cfg.SampleRateCandidates()
	want := []int{48000, 44100, 16000, 32000, 24000}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected env sample rates: got=%v want=%v", got, want)
	}
}

func TestParseSampleRates(t *testing.T) {
	got := parseSampleRates(" 16000,  ,invalid,0,-1,44100,16000 ")
	want := []int{16000, 44100}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected parsed sample rates: got=%v want=%v", got, want)
	}
}
