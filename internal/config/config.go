package config

import "github.com/kelseyhightower/envconfig"

// Config holds application configuration loaded from environment variables.
type Config struct {
	ChannelSecret string `envconfig:"LINE_CHANNEL_SECRET" required:"true"`
	ChannelToken  string `envconfig:"LINE_CHANNEL_TOKEN" required:"true"`
	WeatherAPIKey string `envconfig:"OPEN_WEATHER_API_KEY"`

	DBPath   string `envconfig:"DB_PATH" default:"./data/okan.db"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":3000"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error

	// DigestTime is the JST wall-clock time the morning digest fires for
	// everyone. Per-user times are captured during setup but not yet
	// honored here.
	DigestTime string `envconfig:"DIGEST_TIME" default:"08:00"`

	// TrainStatusURL is an optional service-status endpoint; when empty
	// the digest assumes normal service.
	TrainStatusURL string `envconfig:"TRAIN_STATUS_URL"`

	// SplitRouteSetup asks for the commute stations one per message
	// instead of the combined 「AからB」 form.
	SplitRouteSetup bool `envconfig:"SPLIT_ROUTE_SETUP" default:"false"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
