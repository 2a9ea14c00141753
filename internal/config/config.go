// Package config provides YAML and environment based configuration for the
// worker, the exercise API and the result listener.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Ack modes for the inbound queue.
const (
	// AckEager registers the consumer with auto-ack: a delivery counts as
	// handled as soon as the broker hands it over.
	AckEager = "eager"
	// AckAfterPublish acknowledges once the result is published or the task is
	// deliberately dropped.
	AckAfterPublish = "after_publish"
)

// Config is the root application configuration.
type Config struct {
	// AppName is used as the AMQP connection name and consumer tag prefix.
	AppName string `mapstructure:"app_name"`

	Log         LogConfig         `mapstructure:"log"`
	AMQP        AMQPConfig        `mapstructure:"amqp"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Recognition RecognitionConfig `mapstructure:"recognition"`
	ObjectStore ObjectStoreConfig `mapstructure:"object_store"`
	HTTP        HTTPConfig        `mapstructure:"http"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`
	// Rotation controls file rotation when writing to files
	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// AMQPConfig describes the broker connection and the messaging topology.
type AMQPConfig struct {
	// URL wins over Host when both are set.
	URL  string `mapstructure:"url"`
	Host string `mapstructure:"host"`

	Exchange        string `mapstructure:"exchange"`
	ExchangeDurable bool   `mapstructure:"exchange_durable"`

	TaskQueue      string `mapstructure:"task_queue"`
	TaskBinding    string `mapstructure:"task_binding"`
	TaskRoutingKey string `mapstructure:"task_routing_key"`

	ResultQueue      string `mapstructure:"result_queue"`
	ResultBinding    string `mapstructure:"result_binding"`
	ResultRoutingKey string `mapstructure:"result_routing_key"`

	// DeadLetterExchange is attached to the task queue; only rejected
	// deliveries in after_publish mode reach it.
	DeadLetterExchange string `mapstructure:"dead_letter_exchange"`
	// Prefetch only applies to manual acknowledgement.
	Prefetch int `mapstructure:"prefetch"`
	// ContentType selects the codec for outgoing messages.
	ContentType string `mapstructure:"content_type"`
}

// WorkerConfig tunes the assessment worker.
type WorkerConfig struct {
	Concurrency  int    `mapstructure:"concurrency"`
	AckMode      string `mapstructure:"ack_mode"`
	LanguageHint string `mapstructure:"language_hint"`
	// StatusAddr serves /healthz and /metrics; empty disables it.
	StatusAddr string `mapstructure:"status_addr"`
}

// RecognitionConfig selects and configures the recognition provider.
type RecognitionConfig struct {
	Provider string       `mapstructure:"provider"`
	Azure    AzureConfig  `mapstructure:"azure"`
	Google   GoogleConfig `mapstructure:"google"`
	Mock     MockConfig   `mapstructure:"mock"`
}

// AzureConfig holds Azure Speech credentials.
type AzureConfig struct {
	Key    string `mapstructure:"key"`
	Region string `mapstructure:"region"`
}

// GoogleConfig holds Google Cloud Speech settings. An empty CredentialsFile
// falls back to application default credentials.
type GoogleConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

// MockConfig fixes the scores returned by the mock provider.
type MockConfig struct {
	Accuracy      float64 `mapstructure:"accuracy"`
	Fluency       float64 `mapstructure:"fluency"`
	Completeness  float64 `mapstructure:"completeness"`
	Pronunciation float64 `mapstructure:"pronunciation"`
}

// ObjectStoreConfig configures MinIO / S3 access for audio. An empty
// Endpoint disables object storage.
type ObjectStoreConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// HTTPConfig configures the exercise API.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
	// APIKey guards the exercise API when set.
	APIKey      string `mapstructure:"api_key"`
	MaxUploadMB int    `mapstructure:"max_upload_mb"`
}

// Default returns a Config populated with defaults matching the existing
// speech_exchange topology.
func Default() *Config {
	return &Config{
		AppName: "speech-assessment",
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stdout"},
			Rotation: RotationConfig{
				Enable:     false,
				MaxSizeMB:  50,
				MaxBackups: 7,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		AMQP: AMQPConfig{
			Host:             "localhost",
			Exchange:         "speech_exchange",
			TaskQueue:        "exercise.audio",
			TaskBinding:      "exercise.audio.*",
			TaskRoutingKey:   "exercise.audio.submitted",
			ResultQueue:      "speech.result",
			ResultBinding:    "speech.result.*",
			ResultRoutingKey: "speech.result.done",
			Prefetch:         8,
			ContentType:      "application/json",
		},
		Worker: WorkerConfig{
			Concurrency:  4,
			AckMode:      AckEager,
			LanguageHint: "uk-UA",
		},
		Recognition: RecognitionConfig{
			Provider: "azure",
			Mock: MockConfig{
				Accuracy:      90,
				Fluency:       90,
				Completeness:  100,
				Pronunciation: 90,
			},
		},
		HTTP: HTTPConfig{
			Addr:        ":8080",
			MaxUploadMB: 25,
		},
	}
}

// legacyEnv maps config keys to environment variable names used by the
// earlier deployments. The SPEECHAI_ form is always tried first.
var legacyEnv = map[string]string{
	"amqp.host":                      "RABBITMQ_HOST",
	"recognition.azure.key":          "AZURE_SPEECH_KEY",
	"recognition.azure.region":       "AZURE_SPEECH_REGION",
	"object_store.endpoint":          "MINIO_ENDPOINT",
	"object_store.access_key_id":     "MINIO_ACCESS_KEY_ID",
	"object_store.secret_access_key": "MINIO_SECRET_ACCESS_KEY",
	"object_store.bucket":            "MINIO_BUCKET_NAME",
	"object_store.use_ssl":           "MINIO_USE_SSL",
}

const envPrefix = "SPEECHAI"

// Load reads configuration from path (if non-empty), otherwise from
// SPEECHAI_CONFIG or the first speechai.yaml found in the usual places.
// A .env file in the working directory is loaded first.
// Environment variables use the prefix SPEECHAI and `.` is replaced with `_`.
// Example: SPEECHAI_WORKER_CONCURRENCY=8
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	for key, legacy := range legacyEnv {
		envName := envPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		if err := v.BindEnv(key, envName, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("speechai")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".speechai"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("app_name", cfg.AppName)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	v.SetDefault("amqp.url", cfg.AMQP.URL)
	v.SetDefault("amqp.host", cfg.AMQP.Host)
	v.SetDefault("amqp.exchange", cfg.AMQP.Exchange)
	v.SetDefault("amqp.exchange_durable", cfg.AMQP.ExchangeDurable)
	v.SetDefault("amqp.task_queue", cfg.AMQP.TaskQueue)
	v.SetDefault("amqp.task_binding", cfg.AMQP.TaskBinding)
	v.SetDefault("amqp.task_routing_key", cfg.AMQP.TaskRoutingKey)
	v.SetDefault("amqp.result_queue", cfg.AMQP.ResultQueue)
	v.SetDefault("amqp.result_binding", cfg.AMQP.ResultBinding)
	v.SetDefault("amqp.result_routing_key", cfg.AMQP.ResultRoutingKey)
	v.SetDefault("amqp.dead_letter_exchange", cfg.AMQP.DeadLetterExchange)
	v.SetDefault("amqp.prefetch", cfg.AMQP.Prefetch)
	v.SetDefault("amqp.content_type", cfg.AMQP.ContentType)

	v.SetDefault("worker.concurrency", cfg.Worker.Concurrency)
	v.SetDefault("worker.ack_mode", cfg.Worker.AckMode)
	v.SetDefault("worker.language_hint", cfg.Worker.LanguageHint)
	v.SetDefault("worker.status_addr", cfg.Worker.StatusAddr)

	v.SetDefault("recognition.provider", cfg.Recognition.Provider)
	v.SetDefault("recognition.azure.key", cfg.Recognition.Azure.Key)
	v.SetDefault("recognition.azure.region", cfg.Recognition.Azure.Region)
	v.SetDefault("recognition.google.credentials_file", cfg.Recognition.Google.CredentialsFile)
	v.SetDefault("recognition.mock.accuracy", cfg.Recognition.Mock.Accuracy)
	v.SetDefault("recognition.mock.fluency", cfg.Recognition.Mock.Fluency)
	v.SetDefault("recognition.mock.completeness", cfg.Recognition.Mock.Completeness)
	v.SetDefault("recognition.mock.pronunciation", cfg.Recognition.Mock.Pronunciation)

	v.SetDefault("object_store.endpoint", cfg.ObjectStore.Endpoint)
	v.SetDefault("object_store.access_key_id", cfg.ObjectStore.AccessKeyID)
	v.SetDefault("object_store.secret_access_key", cfg.ObjectStore.SecretAccessKey)
	v.SetDefault("object_store.bucket", cfg.ObjectStore.Bucket)
	v.SetDefault("object_store.use_ssl", cfg.ObjectStore.UseSSL)

	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.api_key", cfg.HTTP.APIKey)
	v.SetDefault("http.max_upload_mb", cfg.HTTP.MaxUploadMB)
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stdout"}
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker.concurrency must be at least 1, got %d", c.Worker.Concurrency)
	}
	c.Worker.AckMode = strings.ToLower(strings.TrimSpace(c.Worker.AckMode))
	switch c.Worker.AckMode {
	case AckEager, AckAfterPublish:
	default:
		return fmt.Errorf("invalid worker.ack_mode: %q (want %s or %s)", c.Worker.AckMode, AckEager, AckAfterPublish)
	}

	c.Recognition.Provider = strings.ToLower(strings.TrimSpace(c.Recognition.Provider))
	switch c.Recognition.Provider {
	case "azure", "google", "mock":
	default:
		return fmt.Errorf("invalid recognition.provider: %q", c.Recognition.Provider)
	}

	if c.AMQP.Exchange == "" {
		return errors.New("amqp.exchange must be set")
	}
	if c.AMQP.URL == "" && c.AMQP.Host == "" {
		return errors.New("either amqp.url or amqp.host must be set")
	}
	if c.AMQP.Prefetch < 0 {
		c.AMQP.Prefetch = 0
	}
	if c.ObjectStore.Endpoint != "" && c.ObjectStore.Bucket == "" {
		return errors.New("object_store.bucket must be set when object_store.endpoint is")
	}
	return nil
}

// BrokerURL returns the AMQP URL, building one from Host when URL is empty.
// A bare host gets the default guest credentials and port, which is what a
// stock RabbitMQ image accepts.
func (a AMQPConfig) BrokerURL() string {
	if a.URL != "" {
		return a.URL
	}
	host := a.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "5672")
	}
	u := url.URL{Scheme: "amqp", User: url.UserPassword("guest", "guest"), Host: host, Path: "/"}
	return u.String()
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
