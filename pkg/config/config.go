package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/errors"
)

// Config holds the complete service configuration
type Config struct {
	HTTP      HTTPConfig      `json:"http"`
	Logging   LoggingConfig   `json:"logging"`
	Capture   CaptureConfig   `json:"capture"`
	Recording RecordingConfig `json:"recording"`
	STT       STTConfig       `json:"stt"`
	Sentiment SentimentConfig `json:"sentiment"`
	Analysis  AnalysisConfig  `json:"analysis"`
	Backend   BackendConfig   `json:"backend"`
	Store     StoreConfig     `json:"store"`
	Messaging MessagingConfig `json:"messaging"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port           int           `json:"port" env:"HTTP_PORT" default:"8080"`
	Enabled        bool          `json:"enabled" env:"HTTP_ENABLED" default:"true"`
	EnableMetrics  bool          `json:"enable_metrics" env:"HTTP_ENABLE_METRICS" default:"true"`
	ReadTimeout    time.Duration `json:"read_timeout" env:"HTTP_READ_TIMEOUT" default:"30s"`
	WriteTimeout   time.Duration `json:"write_timeout" env:"HTTP_WRITE_TIMEOUT" default:"3m"`
	MaxUploadBytes int64         `json:"max_upload_bytes" env:"HTTP_MAX_UPLOAD_BYTES" default:"33554432"`
	RateLimitRPS   float64       `json:"rate_limit_rps" env:"HTTP_RATE_LIMIT_RPS" default:"0"`
	RateLimitBurst int           `json:"rate_limit_burst" env:"HTTP_RATE_LIMIT_BURST" default:"5"`
	TLSEnabled     bool          `json:"tls_enabled" env:"HTTP_TLS_ENABLED" default:"false"`
	TLSCertFile    string        `json:"tls_cert_file" env:"HTTP_TLS_CERT_FILE"`
	TLSKeyFile     string        `json:"tls_key_file" env:"HTTP_TLS_KEY_FILE"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL" default:"info"`
	Format     string `json:"format" env:"LOG_FORMAT" default:"json"`
	OutputFile string `json:"output_file" env:"LOG_OUTPUT_FILE"`
}

// CaptureConfig describes the microphone used by the recorder
type CaptureConfig struct {
	// Source is "command" (external recorder binary) or "stdin"
	Source      string        `json:"source" env:"CAPTURE_SOURCE" default:"command"`
	Command     string        `json:"command" env:"CAPTURE_COMMAND" default:"arecord"`
	Args        []string      `json:"args" env:"CAPTURE_ARGS"`
	Device      string        `json:"device" env:"CAPTURE_DEVICE" default:"default"`
	SampleRate  int           `json:"sample_rate" env:"CAPTURE_SAMPLE_RATE" default:"16000"`
	Channels    int           `json:"channels" env:"CAPTURE_CHANNELS" default:"1"`
	MaxDuration time.Duration `json:"max_duration" env:"CAPTURE_MAX_DURATION" default:"0"`
	ChunkSize   int           `json:"chunk_size" env:"CAPTURE_CHUNK_SIZE" default:"3200"`
}

// RecordingConfig controls where captured audio is persisted
type RecordingConfig struct {
	Directory string `json:"directory" env:"RECORDING_DIR" default:"./recordings"`
	Persist   bool   `json:"persist" env:"RECORDING_PERSIST" default:"false"`
}

// STTConfig holds speech-to-text provider configuration
type STTConfig struct {
	DefaultProvider  string           `json:"default_provider" env:"STT_DEFAULT_PROVIDER" default:"whisper"`
	TargetSampleRate int              `json:"target_sample_rate" env:"STT_SAMPLE_RATE" default:"16000"`
	Whisper          WhisperSTTConfig `json:"whisper"`
	OpenAI           OpenAISTTConfig  `json:"openai"`
	Google           GoogleSTTConfig  `json:"google"`
	Amazon           AmazonSTTConfig  `json:"amazon"`
	Mock             MockSTTConfig    `json:"mock"`
}

// WhisperSTTConfig configures the local whisper CLI
type WhisperSTTConfig struct {
	Enabled            bool          `json:"enabled" env:"WHISPER_ENABLED" default:"true"`
	BinaryPath         string        `json:"binary_path" env:"WHISPER_BINARY_PATH" default:"whisper"`
	Model              string        `json:"model" env:"WHISPER_MODEL" default:"base"`
	ModelDir           string        `json:"model_dir" env:"WHISPER_MODEL_DIR"`
	Language           string        `json:"language" env:"WHISPER_LANGUAGE" default:"en"`
	Task               string        `json:"task" env:"WHISPER_TASK" default:"transcribe"`
	OutputFormat       string        `json:"output_format" env:"WHISPER_OUTPUT_FORMAT" default:"json"`
	ExtraArgs          string        `json:"extra_args" env:"WHISPER_EXTRA_ARGS"`
	Timeout            time.Duration `json:"timeout" env:"WHISPER_TIMEOUT" default:"10m"`
	MaxConcurrentCalls int           `json:"max_concurrent_calls" env:"WHISPER_MAX_CONCURRENT" default:"-1"`
}

// OpenAISTTConfig configures OpenAI audio transcription
type OpenAISTTConfig struct {
	Enabled  bool   `json:"enabled" env:"OPENAI_STT_ENABLED" default:"false"`
	APIKey   string `json:"-" env:"OPENAI_API_KEY"`
	BaseURL  string `json:"base_url" env:"OPENAI_BASE_URL"`
	Model    string `json:"model" env:"OPENAI_STT_MODEL" default:"whisper-1"`
	Language string `json:"language" env:"OPENAI_STT_LANGUAGE"`
	Prompt   string `json:"prompt" env:"OPENAI_STT_PROMPT"`
}

// GoogleSTTConfig configures Google Cloud Speech
type GoogleSTTConfig struct {
	Enabled            bool   `json:"enabled" env:"GOOGLE_STT_ENABLED" default:"false"`
	CredentialsFile    string `json:"credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS"`
	APIKey             string `json:"-" env:"GOOGLE_STT_API_KEY"`
	Language           string `json:"language" env:"GOOGLE_STT_LANGUAGE" default:"en-US"`
	Model              string `json:"model" env:"GOOGLE_STT_MODEL" default:"latest_short"`
	EnhancedModels     bool   `json:"enhanced_models" env:"GOOGLE_STT_ENHANCED" default:"false"`
	EnablePunctuation  bool   `json:"enable_punctuation" env:"GOOGLE_STT_PUNCTUATION" default:"true"`
	MaxAlternatives    int    `json:"max_alternatives" env:"GOOGLE_STT_MAX_ALTERNATIVES" default:"1"`
	ProfanityFilter    bool   `json:"profanity_filter" env:"GOOGLE_STT_PROFANITY_FILTER" default:"false"`
	EnableWordTimeOffs bool   `json:"enable_word_time_offsets" env:"GOOGLE_STT_WORD_TIME_OFFSETS" default:"false"`
}

// AmazonSTTConfig configures Amazon Transcribe Streaming
type AmazonSTTConfig struct {
	Enabled         bool   `json:"enabled" env:"AMAZON_STT_ENABLED" default:"false"`
	AccessKeyID     string `json:"-" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `json:"-" env:"AWS_SECRET_ACCESS_KEY"`
	Region          string `json:"region" env:"AWS_REGION" default:"us-east-1"`
	Language        string `json:"language" env:"AMAZON_STT_LANGUAGE" default:"en-US"`
	VocabularyName  string `json:"vocabulary_name" env:"AMAZON_STT_VOCABULARY"`
}

// MockSTTConfig configures the fixed-transcript provider used for demos
type MockSTTConfig struct {
	Enabled    bool   `json:"enabled" env:"MOCK_STT_ENABLED" default:"false"`
	Transcript string `json:"transcript" env:"MOCK_STT_TRANSCRIPT" default:"I am feeling fine today"`
}

// SentimentConfig selects and configures the sentiment classifier
type SentimentConfig struct {
	// Classifier is "lexicon", "http" or "openai"
	Classifier    string        `json:"classifier" env:"SENTIMENT_CLASSIFIER" default:"lexicon"`
	HTTPURL       string        `json:"http_url" env:"SENTIMENT_HTTP_URL"`
	OpenAIModel   string        `json:"openai_model" env:"SENTIMENT_OPENAI_MODEL" default:"gpt-4o-mini"`
	Timeout       time.Duration `json:"timeout" env:"SENTIMENT_TIMEOUT" default:"30s"`
	MinTextLength int           `json:"min_text_length" env:"SENTIMENT_MIN_TEXT_LENGTH" default:"1"`
}

// AnalysisConfig selects the analysis backend
type AnalysisConfig struct {
	// Mode is "local" (in-process pipeline) or "remote" (backend client)
	Mode    string        `json:"mode" env:"ANALYSIS_MODE" default:"local"`
	Timeout time.Duration `json:"timeout" env:"ANALYSIS_TIMEOUT" default:"2m"`
	// FFmpegPath transcodes uploads that are not already WAV
	FFmpegPath string `json:"ffmpeg_path" env:"FFMPEG_PATH" default:"ffmpeg"`
	// SilenceRMS is the level below which a recording counts as no speech; 0 disables it
	SilenceRMS float64 `json:"silence_rms" env:"ANALYSIS_SILENCE_RMS" default:"0.001"`
	// Enabled turns analysis on during submission
	Enabled bool `json:"enabled" env:"ANALYSIS_ON_SUBMIT" default:"true"`
}

// BackendConfig configures the remote analysis backend client
type BackendConfig struct {
	URL     string        `json:"url" env:"BACKEND_URL" default:"http://localhost:8000"`
	UserID  string        `json:"user_id" env:"BACKEND_USER_ID" default:"demo-user"`
	Timeout time.Duration `json:"timeout" env:"BACKEND_TIMEOUT" default:"2m"`
}

// StoreConfig selects the collection store backend
type StoreConfig struct {
	// Backend is "memory", "sqlite" or "redis"
	Backend        string `json:"backend" env:"STORE_BACKEND" default:"memory"`
	SQLitePath     string `json:"sqlite_path" env:"STORE_SQLITE_PATH" default:"./cognivox.db"`
	RedisAddr      string `json:"redis_addr" env:"STORE_REDIS_ADDR" default:"localhost:6379"`
	RedisPassword  string `json:"-" env:"STORE_REDIS_PASSWORD"`
	RedisDB        int    `json:"redis_db" env:"STORE_REDIS_DB" default:"0"`
	RedisKeyPrefix string `json:"redis_key_prefix" env:"STORE_REDIS_PREFIX" default:"cognivox:"`
	SeedFile       string `json:"seed_file" env:"STORE_SEED_FILE"`
}

// MessagingConfig holds AMQP publication settings
type MessagingConfig struct {
	Enabled      bool   `json:"enabled" env:"AMQP_ENABLED" default:"false"`
	AMQPURL      string `json:"amqp_url" env:"AMQP_URL"`
	QueueName    string `json:"queue_name" env:"AMQP_QUEUE_NAME" default:"cognivox-analyses"`
	ExchangeName string `json:"exchange_name" env:"AMQP_EXCHANGE_NAME"`
	RoutingKey   string `json:"routing_key" env:"AMQP_ROUTING_KEY" default:"analysis.completed"`
	Durable      bool   `json:"durable" env:"AMQP_DURABLE" default:"true"`
}

// Load reads configuration from the environment, loading a .env file first if one exists
func Load(logger *logrus.Logger) (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		logger.WithError(err).Warn("Failed to get current working directory")
		wd = "unknown"
	}

	possibleEnvFiles := []string{
		".env",
		"../.env",
		filepath.Join(wd, ".env"),
	}

	var loadedFrom string
	for _, envFile := range possibleEnvFiles {
		if _, statErr := os.Stat(envFile); statErr != nil {
			continue
		}
		absPath, _ := filepath.Abs(envFile)
		logger.WithField("path", absPath).Debug("Attempting to load .env file")
		if godotenv.Load(envFile) == nil {
			loadedFrom = absPath
			break
		}
	}

	if loadedFrom != "" {
		logger.WithFields(logrus.Fields{
			"working_dir": wd,
			"path":        loadedFrom,
		}).Info("Loaded .env file")
	} else {
		logger.WithField("working_dir", wd).Debug("No .env file found, using environment variables only")
	}

	config := &Config{}

	loaders := []struct {
		name string
		load func() error
	}{
		{"HTTP", func() error { return loadHTTPConfig(logger, &config.HTTP) }},
		{"logging", func() error { return loadLoggingConfig(logger, &config.Logging) }},
		{"capture", func() error { return loadCaptureConfig(logger, &config.Capture) }},
		{"recording", func() error { return loadRecordingConfig(logger, &config.Recording) }},
		{"STT", func() error { return loadSTTConfig(logger, &config.STT) }},
		{"sentiment", func() error { return loadSentimentConfig(logger, &config.Sentiment) }},
		{"analysis", func() error { return loadAnalysisConfig(logger, &config.Analysis) }},
		{"backend", func() error { return loadBackendConfig(logger, &config.Backend) }},
		{"store", func() error { return loadStoreConfig(logger, &config.Store) }},
		{"messaging", func() error { return loadMessagingConfig(logger, &config.Messaging) }},
	}
	for _, l := range loaders {
		if err := l.load(); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("failed to load %s configuration", l.name))
		}
	}

	if err := validateConfig(logger, config); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return config, nil
}

func loadHTTPConfig(logger *logrus.Logger, config *HTTPConfig) error {
	port := getEnvInt("HTTP_PORT", 8080)
	if port < 1 || port > 65535 {
		logger.Warn("Invalid HTTP_PORT value, using default: 8080")
		port = 8080
	}
	config.Port = port

	config.Enabled = getEnvBool("HTTP_ENABLED", true)
	config.EnableMetrics = getEnvBool("HTTP_ENABLE_METRICS", true)
	config.ReadTimeout = getEnvDuration("HTTP_READ_TIMEOUT", 30*time.Second)
	config.WriteTimeout = getEnvDuration("HTTP_WRITE_TIMEOUT", 3*time.Minute)

	maxUpload, err := strconv.ParseInt(getEnv("HTTP_MAX_UPLOAD_BYTES", "33554432"), 10, 64)
	if err != nil || maxUpload <= 0 {
		logger.Warn("Invalid HTTP_MAX_UPLOAD_BYTES value, using default: 32MiB")
		maxUpload = 32 << 20
	}
	config.MaxUploadBytes = maxUpload

	// zero disables the analysis rate limit
	config.RateLimitRPS = getEnvFloat("HTTP_RATE_LIMIT_RPS", 0)
	if config.RateLimitRPS < 0 {
		logger.Warn("Negative HTTP_RATE_LIMIT_RPS, rate limiting disabled")
		config.RateLimitRPS = 0
	}
	config.RateLimitBurst = getEnvInt("HTTP_RATE_LIMIT_BURST", 5)
	if config.RateLimitBurst < 1 {
		config.RateLimitBurst = 5
	}

	config.TLSEnabled = getEnvBool("HTTP_TLS_ENABLED", false)
	config.TLSCertFile = getEnv("HTTP_TLS_CERT_FILE", "")
	config.TLSKeyFile = getEnv("HTTP_TLS_KEY_FILE", "")

	return nil
}

func loadLoggingConfig(logger *logrus.Logger, config *LoggingConfig) error {
	config.Level = getEnv("LOG_LEVEL", "info")
	if _, err := logrus.ParseLevel(config.Level); err != nil {
		logger.Warnf("Invalid LOG_LEVEL '%s', using default: info", config.Level)
		config.Level = "info"
	}

	config.Format = strings.ToLower(getEnv("LOG_FORMAT", "json"))
	if config.Format != "json" && config.Format != "text" {
		logger.Warnf("Invalid LOG_FORMAT '%s', using default: json", config.Format)
		config.Format = "json"
	}

	config.OutputFile = getEnv("LOG_OUTPUT_FILE", "")
	return nil
}

func loadCaptureConfig(logger *logrus.Logger, config *CaptureConfig) error {
	config.Source = strings.ToLower(getEnv("CAPTURE_SOURCE", "command"))
	config.Command = getEnv("CAPTURE_COMMAND", "arecord")
	config.Args = strings.Fields(getEnv("CAPTURE_ARGS", ""))
	config.Device = getEnv("CAPTURE_DEVICE", "default")

	config.SampleRate = getEnvInt("CAPTURE_SAMPLE_RATE", 16000)
	if config.SampleRate < 8000 || config.SampleRate > 192000 {
		logger.Warn("Invalid CAPTURE_SAMPLE_RATE value, using default: 16000")
		config.SampleRate = 16000
	}

	config.Channels = getEnvInt("CAPTURE_CHANNELS", 1)
	if config.Channels != 1 && config.Channels != 2 {
		logger.Warn("Invalid CAPTURE_CHANNELS value, using default: 1")
		config.Channels = 1
	}

	config.MaxDuration = getEnvDuration("CAPTURE_MAX_DURATION", 0)
	if config.MaxDuration < 0 {
		logger.Warn("Negative CAPTURE_MAX_DURATION, capture will not be capped")
		config.MaxDuration = 0
	}

	config.ChunkSize = getEnvInt("CAPTURE_CHUNK_SIZE", 3200)
	if config.ChunkSize < 2 {
		config.ChunkSize = 3200
	}

	return nil
}

func loadRecordingConfig(logger *logrus.Logger, config *RecordingConfig) error {
	config.Directory = getEnv("RECORDING_DIR", "./recordings")
	config.Persist = getEnvBool("RECORDING_PERSIST", false)
	return nil
}

func loadSTTConfig(logger *logrus.Logger, config *STTConfig) error {
	config.DefaultProvider = strings.ToLower(getEnv("STT_DEFAULT_PROVIDER", "whisper"))
	config.TargetSampleRate = getEnvInt("STT_SAMPLE_RATE", 16000)
	if config.TargetSampleRate <= 0 {
		logger.Warn("Invalid STT_SAMPLE_RATE value, using default: 16000")
		config.TargetSampleRate = 16000
	}

	loadWhisperSTTConfig(logger, &config.Whisper)
	loadOpenAISTTConfig(logger, &config.OpenAI)
	loadGoogleSTTConfig(logger, &config.Google)
	loadAmazonSTTConfig(logger, &config.Amazon)

	config.Mock.Enabled = getEnvBool("MOCK_STT_ENABLED", false)
	config.Mock.Transcript = getEnv("MOCK_STT_TRANSCRIPT", "I am feeling fine today")

	return nil
}

func loadWhisperSTTConfig(logger *logrus.Logger, config *WhisperSTTConfig) {
	config.Enabled = getEnvBool("WHISPER_ENABLED", true)
	config.BinaryPath = getEnv("WHISPER_BINARY_PATH", "whisper")
	config.Model = getEnv("WHISPER_MODEL", "base")
	config.ModelDir = getEnv("WHISPER_MODEL_DIR", "")
	config.Language = getEnv("WHISPER_LANGUAGE", "en")
	config.Task = getEnv("WHISPER_TASK", "transcribe")
	config.OutputFormat = getEnv("WHISPER_OUTPUT_FORMAT", "json")
	config.ExtraArgs = getEnv("WHISPER_EXTRA_ARGS", "")

	timeoutStr := getEnv("WHISPER_TIMEOUT", "10m")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		logger.Warn("Invalid WHISPER_TIMEOUT value, using default: 10m")
		timeout = 10 * time.Minute
	}
	config.Timeout = timeout

	config.MaxConcurrentCalls = getEnvInt("WHISPER_MAX_CONCURRENT", -1)
}

func loadOpenAISTTConfig(logger *logrus.Logger, config *OpenAISTTConfig) {
	config.Enabled = getEnvBool("OPENAI_STT_ENABLED", false)
	config.APIKey = getEnv("OPENAI_API_KEY", "")
	config.BaseURL = getEnv("OPENAI_BASE_URL", "")
	config.Model = getEnv("OPENAI_STT_MODEL", "whisper-1")
	config.Language = getEnv("OPENAI_STT_LANGUAGE", "")
	config.Prompt = getEnv("OPENAI_STT_PROMPT", "")

	if config.Enabled && config.APIKey == "" {
		logger.Warn("OpenAI STT enabled but OPENAI_API_KEY is not set")
	}
}

func loadGoogleSTTConfig(logger *logrus.Logger, config *GoogleSTTConfig) {
	config.Enabled = getEnvBool("GOOGLE_STT_ENABLED", false)
	config.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")
	config.APIKey = getEnv("GOOGLE_STT_API_KEY", "")
	config.Language = getEnv("GOOGLE_STT_LANGUAGE", "en-US")
	config.Model = getEnv("GOOGLE_STT_MODEL", "latest_short")
	config.EnhancedModels = getEnvBool("GOOGLE_STT_ENHANCED", false)
	config.EnablePunctuation = getEnvBool("GOOGLE_STT_PUNCTUATION", true)
	config.MaxAlternatives = getEnvInt("GOOGLE_STT_MAX_ALTERNATIVES", 1)
	config.ProfanityFilter = getEnvBool("GOOGLE_STT_PROFANITY_FILTER", false)
	config.EnableWordTimeOffs = getEnvBool("GOOGLE_STT_WORD_TIME_OFFSETS", false)

	if config.Enabled && config.CredentialsFile == "" && config.APIKey == "" {
		logger.Warn("Google STT enabled but neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_STT_API_KEY is set")
	}
}

func loadAmazonSTTConfig(logger *logrus.Logger, config *AmazonSTTConfig) {
	config.Enabled = getEnvBool("AMAZON_STT_ENABLED", false)
	config.AccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	config.SecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	config.Region = getEnv("AWS_REGION", "us-east-1")
	config.Language = getEnv("AMAZON_STT_LANGUAGE", "en-US")
	config.VocabularyName = getEnv("AMAZON_STT_VOCABULARY", "")

	if config.Enabled && (config.AccessKeyID == "" || config.SecretAccessKey == "") {
		logger.Warn("Amazon STT enabled without static keys; falling back to the default AWS credential chain")
	}
}

func loadSentimentConfig(logger *logrus.Logger, config *SentimentConfig) error {
	config.Classifier = strings.ToLower(getEnv("SENTIMENT_CLASSIFIER", "lexicon"))
	config.HTTPURL = getEnv("SENTIMENT_HTTP_URL", "")
	config.OpenAIModel = getEnv("SENTIMENT_OPENAI_MODEL", "gpt-4o-mini")
	config.Timeout = getEnvDuration("SENTIMENT_TIMEOUT", 30*time.Second)
	config.MinTextLength = getEnvInt("SENTIMENT_MIN_TEXT_LENGTH", 1)

	switch config.Classifier {
	case "lexicon", "http", "openai":
	default:
		logger.Warnf("Unknown SENTIMENT_CLASSIFIER '%s', using default: lexicon", config.Classifier)
		config.Classifier = "lexicon"
	}

	return nil
}

func loadAnalysisConfig(logger *logrus.Logger, config *AnalysisConfig) error {
	config.Mode = strings.ToLower(getEnv("ANALYSIS_MODE", "local"))
	if config.Mode != "local" && config.Mode != "remote" {
		logger.Warnf("Unknown ANALYSIS_MODE '%s', using default: local", config.Mode)
		config.Mode = "local"
	}

	config.Timeout = getEnvDuration("ANALYSIS_TIMEOUT", 2*time.Minute)
	if config.Timeout <= 0 {
		logger.Warn("Invalid ANALYSIS_TIMEOUT value, using default: 2m")
		config.Timeout = 2 * time.Minute
	}

	config.FFmpegPath = getEnv("FFMPEG_PATH", "ffmpeg")
	config.SilenceRMS = getEnvFloat("ANALYSIS_SILENCE_RMS", 0.001)
	if config.SilenceRMS < 0 || config.SilenceRMS >= 1 {
		logger.Warnf("Invalid ANALYSIS_SILENCE_RMS value %v, using default: 0.001", config.SilenceRMS)
		config.SilenceRMS = 0.001
	}
	config.Enabled = getEnvBool("ANALYSIS_ON_SUBMIT", true)
	return nil
}

func loadBackendConfig(logger *logrus.Logger, config *BackendConfig) error {
	config.URL = strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8000"), "/")
	config.UserID = getEnv("BACKEND_USER_ID", "demo-user")
	config.Timeout = getEnvDuration("BACKEND_TIMEOUT", 2*time.Minute)
	return nil
}

func loadStoreConfig(logger *logrus.Logger, config *StoreConfig) error {
	config.Backend = strings.ToLower(getEnv("STORE_BACKEND", "memory"))
	config.SQLitePath = getEnv("STORE_SQLITE_PATH", "./cognivox.db")
	config.RedisAddr = getEnv("STORE_REDIS_ADDR", "localhost:6379")
	config.RedisPassword = getEnv("STORE_REDIS_PASSWORD", "")
	config.RedisDB = getEnvInt("STORE_REDIS_DB", 0)
	config.RedisKeyPrefix = getEnv("STORE_REDIS_PREFIX", "cognivox:")
	config.SeedFile = getEnv("STORE_SEED_FILE", "")
	return nil
}

func loadMessagingConfig(logger *logrus.Logger, config *MessagingConfig) error {
	config.AMQPURL = getEnv("AMQP_URL", "")
	config.Enabled = getEnvBool("AMQP_ENABLED", config.AMQPURL != "")
	config.QueueName = getEnv("AMQP_QUEUE_NAME", "cognivox-analyses")
	config.ExchangeName = getEnv("AMQP_EXCHANGE_NAME", "")
	config.RoutingKey = getEnv("AMQP_ROUTING_KEY", "analysis.completed")
	config.Durable = getEnvBool("AMQP_DURABLE", true)

	if config.Enabled && config.AMQPURL == "" {
		logger.Warn("AMQP enabled but AMQP_URL is not set, disabling publication")
		config.Enabled = false
	}
	return nil
}

func validateConfig(logger *logrus.Logger, config *Config) error {
	switch config.Store.Backend {
	case "memory", "redis":
	case "sqlite":
		if strings.TrimSpace(config.Store.SQLitePath) == "" {
			return errors.New("STORE_BACKEND=sqlite requires STORE_SQLITE_PATH")
		}
	default:
		return errors.New(fmt.Sprintf("unsupported STORE_BACKEND: %s", config.Store.Backend))
	}

	switch config.Capture.Source {
	case "command", "stdin":
	default:
		return errors.New(fmt.Sprintf("unsupported CAPTURE_SOURCE: %s", config.Capture.Source))
	}

	if config.Sentiment.Classifier == "http" && config.Sentiment.HTTPURL == "" {
		return errors.New("SENTIMENT_CLASSIFIER=http requires SENTIMENT_HTTP_URL")
	}

	if config.Analysis.Mode == "remote" && config.Backend.URL == "" {
		return errors.New("ANALYSIS_MODE=remote requires BACKEND_URL")
	}

	if config.HTTP.TLSEnabled && (config.HTTP.TLSCertFile == "" || config.HTTP.TLSKeyFile == "") {
		return errors.New("HTTP_TLS_ENABLED requires HTTP_TLS_CERT_FILE and HTTP_TLS_KEY_FILE")
	}

	if config.Logging.OutputFile != "" {
		f, err := os.OpenFile(config.Logging.OutputFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("cannot write to log file: %s", config.Logging.OutputFile))
		}
		f.Close()
	}

	if config.STT.DefaultProvider == "whisper" && !config.STT.Whisper.Enabled {
		logger.Warn("STT_DEFAULT_PROVIDER is whisper but WHISPER_ENABLED=false")
	}

	return nil
}

// EnsureDirectories creates the recording directory when audio is persisted
func (c *Config) EnsureDirectories() error {
	if !c.Recording.Persist {
		return nil
	}
	if err := os.MkdirAll(c.Recording.Directory, 0755); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to create recording directory: %s", c.Recording.Directory))
	}
	return nil
}

// ApplyLogging applies the logging section to the logger
func (c *Config) ApplyLogging(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("invalid log level: %s", c.Logging.Level))
	}
	logger.SetLevel(level)

	if c.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	}

	if c.Logging.OutputFile != "" {
		f, err := os.OpenFile(c.Logging.OutputFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("failed to open log file: %s", c.Logging.OutputFile))
		}
		logger.SetOutput(f)
	} else {
		logger.SetOutput(os.Stdout)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "yes", "1", "on":
		return true
	case "false", "no", "0", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvDuration accepts Go durations ("90s") and bare integers, read as seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}
