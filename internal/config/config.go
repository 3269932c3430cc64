package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Speech engine (pronunciation assessment + synthesis)
	SpeechKey      string        `env:"SPEECH_KEY,required"`
	SpeechRegion   string        `env:"SPEECH_REGION" envDefault:"eastus"`
	SpeechVoice    string        `env:"SPEECH_VOICE" envDefault:"en-US-JennyNeural"`
	SpeechLanguage string        `env:"SPEECH_LANGUAGE" envDefault:"en-US"`
	SpeechTimeout  time.Duration `env:"SPEECH_TIMEOUT" envDefault:"30s"`

	// Transcoding backend
	FFmpegPath       string        `env:"FFMPEG_PATH"`
	TranscodeTimeout time.Duration `env:"TRANSCODE_TIMEOUT" envDefault:"20s"`

	MediaDir string `env:"MEDIA_DIR" envDefault:"./media"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	// Optional result-recorded notification broker
	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"speakdrill"`
	MQTTTopic     string `env:"MQTT_NOTIFY_TOPIC" envDefault:"speakdrill/results"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`

	S3 S3Config `envPrefix:"S3_"`
}

// S3Config configures the optional S3 media backend. When Bucket is empty
// the local filesystem store is used.
type S3Config struct {
	Endpoint      string        `env:"ENDPOINT"`
	Region        string        `env:"REGION" envDefault:"us-east-1"`
	Bucket        string        `env:"BUCKET"`
	AccessKey     string        `env:"ACCESS_KEY"`
	SecretKey     string        `env:"SECRET_KEY"`
	Prefix        string        `env:"PREFIX"`
	PresignExpiry time.Duration `env:"PRESIGN_EXPIRY" envDefault:"1h"`
}

// Enabled reports whether the S3 backend is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	DatabaseURL string
	MediaDir    string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	// Parse environment variables into config struct
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.MediaDir != "" {
		cfg.MediaDir = overrides.MediaDir
	}

	return cfg, nil
}
