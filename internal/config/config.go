package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort            string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL         string `env:"DATABASE_URL,required"`
	JWTSecret           string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"60"`
	RedisAddr           string `env:"REDIS_ADDR"`
	RedisPassword       string `env:"REDIS_PASSWORD"`
	RedisDB             int    `env:"REDIS_DB" envDefault:"0"`

	// Fuente externa (sesión de navegador).
	SourceURL                     string   `env:"SOURCE_URL" envDefault:"https://web.whatsapp.com"`
	SourceHeadless                bool     `env:"SOURCE_HEADLESS" envDefault:"true"`
	SourceBrowserBin              string   `env:"SOURCE_BROWSER_BIN"`
	SourceUserDataDir             string   `env:"SOURCE_USER_DATA_DIR"`
	SourcePollMs                  int      `env:"SOURCE_POLL_MS" envDefault:"500"`
	SourceHandshakeTimeoutMinutes int      `env:"SOURCE_HANDSHAKE_TIMEOUT_MINUTES" envDefault:"0"`
	SourceGroups                  []string `env:"SOURCE_GROUPS" envSeparator:","`

	MessagePageSize int `env:"MESSAGE_PAGE_SIZE" envDefault:"50"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
