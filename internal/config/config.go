package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"120s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	AuthToken    string        `env:"AUTH_TOKEN"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL string `env:"DATABASE_URL"`

	// External collaborators.
	WhisperURL     string        `env:"WHISPER_URL" envDefault:"http://localhost:8000/v1/audio/transcriptions"`
	WhisperAPIKey  string        `env:"WHISPER_API_KEY"`
	WhisperModel   string        `env:"WHISPER_MODEL" envDefault:"whisper-small"`
	WhisperTimeout time.Duration `env:"WHISPER_TIMEOUT" envDefault:"120s"`

	MusicGenURL     string        `env:"MUSICGEN_URL" envDefault:"http://localhost:8001/generate"`
	MusicGenAPIKey  string        `env:"MUSICGEN_API_KEY"`
	MusicGenTimeout time.Duration `env:"MUSICGEN_TIMEOUT" envDefault:"300s"`

	// Analysis framing.
	FrameWindowMS   int     `env:"FRAME_WINDOW_MS" envDefault:"25"`
	FrameHopMS      int     `env:"FRAME_HOP_MS" envDefault:"10"`
	PauseThresholdS float64 `env:"PAUSE_THRESHOLD_S" envDefault:"0.5"`

	// Mixer.
	BackgroundGainDB float64 `env:"BACKGROUND_GAIN_DB" envDefault:"-18"`
	Ducking          float64 `env:"DUCKING" envDefault:"0.3"`
	CrossfadeMS      int     `env:"CROSSFADE_MS" envDefault:"50"`
	FadeOutMS        int     `env:"FADE_OUT_MS" envDefault:"200"`
	AttackMS         float64 `env:"ATTACK_MS" envDefault:"10"`
	ReleaseMS        float64 `env:"RELEASE_MS" envDefault:"150"`
	CeilingDB        float64 `env:"CEILING_DB" envDefault:"-1"`
	OutputSampleRate int     `env:"OUTPUT_SAMPLE_RATE" envDefault:"32000"`

	// Pipeline.
	PresetsPath      string  `env:"PRESETS_PATH"`
	Workers          int     `env:"WORKERS" envDefault:"2"`
	QueueSize        int     `env:"QUEUE_SIZE" envDefault:"32"`
	DefaultSeed      int64   `env:"DEFAULT_SEED" envDefault:"42"`
	DefaultDuration  float64 `env:"DEFAULT_DURATION_S" envDefault:"30"`
	DefaultIntensity float64 `env:"DEFAULT_INTENSITY" envDefault:"0.5"`

	// Ingest and artifacts.
	WatchDir    string `env:"WATCH_DIR"`
	ArtifactDir string `env:"ARTIFACT_DIR" envDefault:"./artifacts"`

	S3 S3Config `envPrefix:"S3_"`
}

// S3Config configures the optional S3-compatible artifact store. Enabled
// when a bucket is set.
type S3Config struct {
	Bucket        string        `env:"BUCKET"`
	Region        string        `env:"REGION" envDefault:"us-east-1"`
	Endpoint      string        `env:"ENDPOINT"`
	AccessKey     string        `env:"ACCESS_KEY"`
	SecretKey     string        `env:"SECRET_KEY"`
	Prefix        string        `env:"PREFIX" envDefault:"muse"`
	PresignExpiry time.Duration `env:"PRESIGN_EXPIRY" envDefault:"1h"`
}

// Load reads configuration from a .env file and environment variables.
// Priority: environment > .env file > struct defaults. All variables carry
// the MUSE_ prefix.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "MUSE_"}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Ducking < 0 || c.Ducking > 1 {
		return fmt.Errorf("MUSE_DUCKING %.3f outside [0,1]", c.Ducking)
	}
	if c.Workers < 1 {
		return fmt.Errorf("MUSE_WORKERS must be >= 1, got %d", c.Workers)
	}
	if c.OutputSampleRate < 8000 {
		return fmt.Errorf("MUSE_OUTPUT_SAMPLE_RATE %d below 8000", c.OutputSampleRate)
	}
	if c.FrameWindowMS < 1 || c.FrameHopMS < 1 {
		return fmt.Errorf("frame window/hop must be positive, got %d/%d", c.FrameWindowMS, c.FrameHopMS)
	}
	return nil
}

// S3Enabled reports whether the S3 artifact store is configured.
func (c *Config) S3Enabled() bool { return c.S3.Bucket != "" }
