package config

import (
	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"studio"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	MetricsAddress  string `envconfig:"STUDIO_METRICS_ADDRESS" default:":8080"`
	LogLevel        string `envconfig:"STUDIO_LOG_LEVEL" default:"info"`
	DefaultBackend  string `envconfig:"STUDIO_DEFAULT_BACKEND" default:"split"`
	MigrationFolder string `envconfig:"STUDIO_MIGRATIONS_FOLDER" default:""`
	RerunWorkers    int    `envconfig:"STUDIO_RERUN_WORKERS" default:"10"`
	Content         contentConfig
	Kafka           kafkaConfig
}

type contentConfig struct {
	Endpoint  string `envconfig:"STUDIO_CONTENT_ENDPOINT" default:"localhost:9000"`
	Bucket    string `envconfig:"STUDIO_CONTENT_BUCKET" default:"course-assets"`
	AccessKey string `envconfig:"STUDIO_CONTENT_ACCESS_KEY" default:""`
	SecretKey string `envconfig:"STUDIO_CONTENT_SECRET_KEY" default:""`
	UseSSL    bool   `envconfig:"STUDIO_CONTENT_USE_SSL" default:"false"`
}

type kafkaConfig struct {
	Brokers  []string `envconfig:"STUDIO_KAFKA_BROKERS" default:""`
	Topic    string   `envconfig:"STUDIO_KAFKA_TOPIC" default:""`
	ClientID string   `envconfig:"STUDIO_KAFKA_CLIENT_ID" default:"studio-api"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a config without reading the environment. Used by tests.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{
			Type: "sqlite",
			// shared cache keeps one database across pooled connections
			Name: "file::memory:?cache=shared",
		},
		Service: &svcConfig{
			LogLevel:       "debug",
			DefaultBackend: "split",
			RerunWorkers:   1,
		},
	}
}
