package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"
)

// Секреты можно не держать в yaml: эти переменные окружения перекрывают файл.
const (
	EnvJWTSecret  = "ORDERBOX_JWT_SECRET"
	EnvDBPassword = "ORDERBOX_DB_PASSWORD"
	EnvMongoURI   = "ORDERBOX_MONGO_URI"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	OrderBox OrderBoxConfig `yaml:"orderbox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.Username), url.QueryEscape(d.Password), d.Host, d.Port, d.DBName, sslMode)
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type KafkaConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	LifecycleTopicName     string `yaml:"lifecycle_topic_name"`
	CatalogSyncedTopicName string `yaml:"catalog_synced_topic_name"`
}

func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type OrderBoxConfig struct {
	// Store is "postgres" (default), "mongo" or "memory".
	Store              string `yaml:"store"`
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	JWTSecret          string `yaml:"jwt_secret"`
	BulkWorkers        int    `yaml:"bulk_workers"`

	SyncPollIntervalSeconds int `yaml:"sync_poll_interval_seconds"`

	PhotoCDNBaseURL      string `yaml:"photo_cdn_base_url"`
	PhotoCDNAPIKey       string `yaml:"photo_cdn_api_key"`
	PhotoCacheTTLSeconds int    `yaml:"photo_cache_ttl_seconds"`

	SweeperHTTPAddr        string `yaml:"sweeper_http_addr"`
	SweeperIntervalSeconds int    `yaml:"sweeper_interval_seconds"`
	SweeperBatchSize       int    `yaml:"sweeper_batch_size"`
	SweeperConcurrency     int    `yaml:"sweeper_concurrency"`
	SweeperPurgesPerMinute int    `yaml:"sweeper_purges_per_minute"`
	SweeperReconcile       bool   `yaml:"sweeper_reconcile"`
}

// LoadConfig reads the yaml file. A .env file next to it (or in the working
// directory) is loaded first; already set variables win over .env.
func LoadConfig(filename string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(filepath.Dir(filename), ".env"))
	_ = godotenv.Load()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvJWTSecret); ok {
		c.OrderBox.JWTSecret = v
	}
	if v, ok := os.LookupEnv(EnvDBPassword); ok {
		c.Database.Password = v
	}
	if v, ok := os.LookupEnv(EnvMongoURI); ok {
		c.Mongo.URI = v
	}
}
