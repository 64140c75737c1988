package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"gopkg.in/yaml.v3"
)

const (
	DBDriverMongo  = "mongo"
	DBDriverMemory = "memory"

	StorageDriverSpaces = "spaces"
	StorageDriverS3     = "s3"
	StorageDriverFS     = "fs"

	// UploadPolicyFail rejects the whole submission when the upload fails.
	UploadPolicyFail = "fail"
	// UploadPolicyRecord keeps the submission and records the failure in its upload log.
	UploadPolicyRecord = "record"

	defaultMongoURI = "mongodb://localhost:27017/magmascale"
	defaultDatabase = "magmascale"
)

type Config struct {
	Environment     string        `yaml:"environment"`
	ServiceName     string        `yaml:"serviceName"`
	HTTPAddr        string        `yaml:"httpAddr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
	GelfAddr        string        `yaml:"gelfAddr"`

	DB      DBConfig      `yaml:"db"`
	Storage StorageConfig `yaml:"storage"`
	Upload  UploadConfig  `yaml:"upload"`
}

type DBConfig struct {
	Driver         string        `yaml:"driver"`
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

type StorageConfig struct {
	Driver          string `yaml:"driver"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	PublicBaseURL   string `yaml:"publicBaseUrl"`
	LocalDir        string `yaml:"localDir"`
	KeyPrefix       string `yaml:"keyPrefix"`
	MaxRetries      int    `yaml:"maxRetries"`
}

type UploadConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	MaxBytes      int64         `yaml:"maxBytes"`
	FailurePolicy string        `yaml:"failurePolicy"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Environment:     "development",
		ServiceName:     "magmascale",
		HTTPAddr:        ":5000",
		ShutdownTimeout: 15 * time.Second,
		CORSOrigins:     []string{"*"},
		DB: DBConfig{
			Driver:         DBDriverMongo,
			URI:            defaultMongoURI,
			ConnectTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver:     StorageDriverSpaces,
			Region:     "nyc3",
			LocalDir:   "./uploads",
			KeyPrefix:  "pdfs",
			MaxRetries: 3,
		},
		Upload: UploadConfig{
			Timeout:       60 * time.Second,
			MaxBytes:      30 << 20,
			FailurePolicy: UploadPolicyFail,
		},
	}
}

// Load builds the configuration from .env files, an optional YAML file named
// by CONFIG_FILE, and the process environment, in increasing precedence.
func Load() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.finalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.ServiceName = getEnv("SERVICE_NAME", c.ServiceName)
	if port := os.Getenv("PORT"); port != "" {
		c.HTTPAddr = ":" + port
	}
	c.HTTPAddr = getEnv("APP_ADDR", c.HTTPAddr)
	c.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	c.CORSOrigins = getEnvList("CORS_ORIGINS", c.CORSOrigins)
	c.GelfAddr = getEnv("GELF_ADDR", c.GelfAddr)

	c.DB.Driver = getEnv("DB_DRIVER", c.DB.Driver)
	c.DB.URI = getEnv("MONGODB_URI", getEnv("MONGO_URI", c.DB.URI))
	c.DB.Database = getEnv("MONGO_DATABASE", c.DB.Database)
	c.DB.ConnectTimeout = getEnvDuration("MONGO_CONNECT_TIMEOUT", c.DB.ConnectTimeout)

	c.Storage.Driver = getEnv("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.Region = getEnv("DO_SPACES_REGION", c.Storage.Region)
	c.Storage.Endpoint = getEnv("DO_SPACES_ENDPOINT", c.Storage.Endpoint)
	c.Storage.Bucket = getEnv("DO_SPACES_BUCKET", c.Storage.Bucket)
	c.Storage.AccessKeyID = getEnv("DO_SPACES_KEY", c.Storage.AccessKeyID)
	c.Storage.SecretAccessKey = getEnv("DO_SPACES_SECRET", c.Storage.SecretAccessKey)
	c.Storage.PublicBaseURL = getEnv("STORAGE_PUBLIC_BASE_URL", c.Storage.PublicBaseURL)
	c.Storage.LocalDir = getEnv("STORAGE_LOCAL_DIR", c.Storage.LocalDir)
	c.Storage.KeyPrefix = getEnv("STORAGE_KEY_PREFIX", c.Storage.KeyPrefix)
	c.Storage.MaxRetries = getEnvInt("STORAGE_MAX_RETRIES", c.Storage.MaxRetries)

	c.Upload.Timeout = getEnvDuration("UPLOAD_TIMEOUT", c.Upload.Timeout)
	c.Upload.MaxBytes = int64(getEnvInt("UPLOAD_MAX_BYTES", int(c.Upload.MaxBytes)))
	c.Upload.FailurePolicy = getEnv("UPLOAD_FAILURE_POLICY", c.Upload.FailurePolicy)
}

// finalize derives values that depend on other settings.
func (c *Config) finalize() {
	c.DB.Driver = strings.ToLower(c.DB.Driver)
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	c.Upload.FailurePolicy = strings.ToLower(c.Upload.FailurePolicy)

	if c.DB.Database == "" {
		c.DB.Database = databaseFromURI(c.DB.URI)
	}
	if c.Storage.Driver == StorageDriverSpaces && c.Storage.Endpoint == "" {
		c.Storage.Endpoint = fmt.Sprintf("https://%s.digitaloceanspaces.com", c.Storage.Region)
	}
	c.Storage.KeyPrefix = strings.Trim(c.Storage.KeyPrefix, "/")
}

func databaseFromURI(uri string) string {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil || cs.Database == "" {
		return defaultDatabase
	}
	return cs.Database
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DBDriverMongo:
		if c.DB.URI == "" {
			return fmt.Errorf("mongo uri is required")
		}
	case DBDriverMemory:
	default:
		return fmt.Errorf("unknown db driver %q", c.DB.Driver)
	}

	switch c.Storage.Driver {
	case StorageDriverSpaces, StorageDriverS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket is required for driver %q", c.Storage.Driver)
		}
		if c.Storage.Region == "" {
			return fmt.Errorf("storage region is required for driver %q", c.Storage.Driver)
		}
	case StorageDriverFS:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage local dir is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Upload.FailurePolicy {
	case UploadPolicyFail, UploadPolicyRecord:
	default:
		return fmt.Errorf("unknown upload failure policy %q", c.Upload.FailurePolicy)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}
	if c.Upload.Timeout <= 0 {
		return fmt.Errorf("upload timeout must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "production" || env == "prod"
}
