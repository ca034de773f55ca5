package config

import (
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration. Tavus credentials are allowed to be
// empty at startup; call initiation then fails with a configuration error while
// the rest of the service stays up.
type Config struct {
	Port           string
	Production     bool
	TavusAPIKey    string
	TavusPersonaID string
	TavusBaseURL   string
	ArcsFile       string
}

func Load() (*Config, error) {
	godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("TAVUS_BASE_URL", "https://tavusapi.com/v2")
	v.SetDefault("ARCS_FILE", "conversation-arcs.yaml")

	cfg := &Config{
		Port:           v.GetString("PORT"),
		Production:     v.GetString("PRODUCTION") != "",
		TavusAPIKey:    v.GetString("TAVUS_API_KEY"),
		TavusPersonaID: v.GetString("TAVUS_PERSONA_ID"),
		TavusBaseURL:   v.GetString("TAVUS_BASE_URL"),
		ArcsFile:       v.GetString("ARCS_FILE"),
	}

	return cfg, nil
}

func (c *Config) HasTavusCredentials() bool {
	return c.TavusAPIKey != "" && c.TavusPersonaID != ""
}
