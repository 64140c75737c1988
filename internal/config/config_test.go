package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"ENVIRONMENT", "SERVICE_NAME", "PORT", "APP_ADDR", "SHUTDOWN_TIMEOUT", "CORS_ORIGINS",
	"GELF_ADDR", "DB_DRIVER", "MONGODB_URI", "MONGO_URI", "MONGO_DATABASE", "MONGO_CONNECT_TIMEOUT",
	"STORAGE_DRIVER", "DO_SPACES_REGION", "DO_SPACES_ENDPOINT", "DO_SPACES_BUCKET", "DO_SPACES_KEY",
	"DO_SPACES_SECRET", "STORAGE_PUBLIC_BASE_URL", "STORAGE_LOCAL_DIR", "STORAGE_KEY_PREFIX",
	"STORAGE_MAX_RETRIES", "UPLOAD_TIMEOUT", "UPLOAD_MAX_BYTES", "UPLOAD_FAILURE_POLICY", "CONFIG_FILE",
}

// clearEnv blanks every key Load reads; empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DO_SPACES_BUCKET", "decks")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.HTTPAddr)
	assert.Equal(t, DBDriverMongo, cfg.DB.Driver)
	assert.Equal(t, "magmascale", cfg.DB.Database)
	assert.Equal(t, "https://nyc3.digitaloceanspaces.com", cfg.Storage.Endpoint)
	assert.Equal(t, "pdfs", cfg.Storage.KeyPrefix)
	assert.Equal(t, 60*time.Second, cfg.Upload.Timeout)
	assert.Equal(t, int64(30<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, UploadPolicyFail, cfg.Upload.FailurePolicy)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8081")
	t.Setenv("MONGO_URI", "mongodb://db:27017/intake")
	t.Setenv("STORAGE_DRIVER", "FS")
	t.Setenv("STORAGE_LOCAL_DIR", "/tmp/decks")
	t.Setenv("UPLOAD_TIMEOUT", "45s")
	t.Setenv("UPLOAD_FAILURE_POLICY", "record")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, "mongodb://db:27017/intake", cfg.DB.URI)
	assert.Equal(t, "intake", cfg.DB.Database)
	assert.Equal(t, StorageDriverFS, cfg.Storage.Driver)
	assert.Equal(t, "/tmp/decks", cfg.Storage.LocalDir)
	assert.Equal(t, 45*time.Second, cfg.Upload.Timeout)
	assert.Equal(t, UploadPolicyRecord, cfg.Upload.FailurePolicy)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestMongodbURITakesPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("DO_SPACES_BUCKET", "decks")
	t.Setenv("MONGO_URI", "mongodb://legacy:27017/old")
	t.Setenv("MONGODB_URI", "mongodb://compose:27017/new")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mongodb://compose:27017/new", cfg.DB.URI)
	assert.Equal(t, "new", cfg.DB.Database)
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
httpAddr: ":9000"
db:
  driver: memory
storage:
  driver: s3
  region: eu-west-1
  bucket: from-file
upload:
  timeout: 30s
`), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DO_SPACES_BUCKET", "from-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, DBDriverMemory, cfg.DB.Driver)
	assert.Equal(t, StorageDriverS3, cfg.Storage.Driver)
	assert.Equal(t, "eu-west-1", cfg.Storage.Region)
	assert.Equal(t, "from-env", cfg.Storage.Bucket)
	assert.Empty(t, cfg.Storage.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.Upload.Timeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown db driver", func(c *Config) { c.DB.Driver = "postgres" }},
		{"missing bucket", func(c *Config) { c.Storage.Bucket = "" }},
		{"unknown storage driver", func(c *Config) { c.Storage.Driver = "gcs" }},
		{"unknown policy", func(c *Config) { c.Upload.FailurePolicy = "retry" }},
		{"zero max bytes", func(c *Config) { c.Upload.MaxBytes = 0 }},
		{"zero timeout", func(c *Config) { c.Upload.Timeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Storage.Bucket = "decks"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Storage.Bucket = "decks"
	assert.NoError(t, cfg.Validate())
}

func TestDatabaseFromURI(t *testing.T) {
	assert.Equal(t, "magmascale", databaseFromURI("mongodb://localhost:27017"))
	assert.Equal(t, "apps", databaseFromURI("mongodb://localhost:27017/apps?retryWrites=true"))
	assert.Equal(t, "magmascale", databaseFromURI("::not a uri"))
}
