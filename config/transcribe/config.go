package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Port           int    `env:"PORT" env-default:"3000"`
	FallbackPorts  []int  `env:"FALLBACK_PORTS" env-default:"3001,3002,3003,3004,3005"`
	DeepgramAPIKey string `env:"DEEPGRAM_API_KEY"`

	CacheTTL      time.Duration `env:"CACHE_TTL" env-default:"24h"`
	SweepInterval time.Duration `env:"CACHE_SWEEP_INTERVAL" env-default:"1h"`

	MaxUploadBytes int64         `env:"MAX_UPLOAD_BYTES" env-default:"104857600"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" env-default:"10m"`
	ScratchDir     string        `env:"SCRATCH_DIR"`
}

func MustLoad() *Config {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic("failed to read environment variables: " + err.Error())
	}

	return &cfg
}
