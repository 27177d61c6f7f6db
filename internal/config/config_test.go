package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "mysql discrete fields",
			config: DatabaseConfig{
				Driver:   DriverMySQL,
				Host:     "localhost",
				Port:     3306,
				User:     "root",
				Password: "password",
				Database: "test",
			},
			expected: "root:password@tcp(localhost:3306)/test?parseTime=true",
		},
		{
			name: "mysql special characters in password",
			config: DatabaseConfig{
				Driver:   DriverMySQL,
				Host:     "db.example.com",
				Port:     3307,
				User:     "admin",
				Password: "p@ss:w0rd!",
				Database: "mydb",
			},
			expected: "admin:p@ss:w0rd!@tcp(db.example.com:3307)/mydb?parseTime=true",
		},
		{
			name: "mysql default port",
			config: DatabaseConfig{
				Driver:   DriverMySQL,
				Host:     "localhost",
				User:     "app",
				Database: "graphql-app-example",
			},
			expected: "app@tcp(localhost:3306)/graphql-app-example?parseTime=true",
		},
		{
			name: "mysql connection string gets parseTime",
			config: DatabaseConfig{
				Driver:           DriverMySQL,
				ConnectionString: "app:secret@tcp(db:3306)/users",
			},
			expected: "app:secret@tcp(db:3306)/users?parseTime=true",
		},
		{
			name: "postgres defaults",
			config: DatabaseConfig{
				Driver:   DriverPostgres,
				Host:     "localhost",
				Database: "graphql-app-example",
			},
			expected: "postgres://localhost/graphql-app-example",
		},
		{
			name: "postgres with credentials and port",
			config: DatabaseConfig{
				Driver:   DriverPostgres,
				Host:     "pg",
				Port:     5433,
				User:     "app",
				Password: "secret",
				Database: "example",
			},
			expected: "postgres://app:secret@pg:5433/example",
		},
		{
			name: "postgres connection string passes through",
			config: DatabaseConfig{
				Driver:           DriverPostgres,
				ConnectionString: "postgres://u@h/db?sslmode=disable",
			},
			expected: "postgres://u@h/db?sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.config.DSN()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestDatabaseConfig_DSN_InvalidMySQLConnectionString(t *testing.T) {
	cfg := DatabaseConfig{Driver: DriverMySQL, ConnectionString: "not a dsn"}
	_, err := cfg.DSN()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.dsn is invalid")
}

func TestDatabaseConfig_EffectiveDatabaseName(t *testing.T) {
	mysqlCfg := DatabaseConfig{Driver: DriverMySQL, ConnectionString: "u:p@tcp(h:3306)/from_dsn"}
	name, err := mysqlCfg.EffectiveDatabaseName()
	require.NoError(t, err)
	assert.Equal(t, "from_dsn", name)

	pgCfg := DatabaseConfig{Driver: DriverPostgres, ConnectionString: "postgres://localhost/graphql-app-example"}
	name, err = pgCfg.EffectiveDatabaseName()
	require.NoError(t, err)
	assert.Equal(t, "graphql-app-example", name)

	discrete := DatabaseConfig{Driver: DriverMySQL, Database: "plain"}
	name, err = discrete.EffectiveDatabaseName()
	require.NoError(t, err)
	assert.Equal(t, "plain", name)
}

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	return v
}

func TestFinish_Defaults(t *testing.T) {
	cfg, err := finish(newTestViper(t))
	require.NoError(t, err)

	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, "graphql-app-example", cfg.Database.Database)
	assert.Equal(t, 10, cfg.Database.Pool.MaxOpen)
	assert.Equal(t, 5*time.Second, cfg.Database.Pool.AcquireTimeout)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, LoadingEager, cfg.Server.LoadingStrategy)
	assert.Equal(t, 100, cfg.Server.MaxPageSize)
	assert.True(t, cfg.Server.GraphiQLEnabled)
	assert.Equal(t, []string{"GET", "POST", "OPTIONS"}, cfg.Server.CORSAllowedMethods)
	assert.Nil(t, cfg.Observability.Traces)

	assert.False(t, cfg.Validate().HasErrors(), cfg.Validate().Error())
}

func TestFinish_ConfigFileOverridesDefaults(t *testing.T) {
	v := newTestViper(t)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
database:
  driver: postgres
  pool:
    max_open: 1
    acquire_timeout: 250ms
server:
  loading_strategy: per_field
  cors_allowed_origins: "https://a.example, https://b.example"
`)))

	cfg, err := finish(v)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 1, cfg.Database.Pool.MaxOpen)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.Pool.AcquireTimeout)
	assert.Equal(t, LoadingPerField, cfg.Server.LoadingStrategy)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
}

func TestFinish_RejectsUnknownKeys(t *testing.T) {
	v := newTestViper(t)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
server:
  graphql_max_depth: 5
`)))

	_, err := finish(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graphql_max_depth")
}

func TestFinish_ReadsSecretsFromFiles(t *testing.T) {
	dir := t.TempDir()
	pwdPath := filepath.Join(dir, "password")
	require.NoError(t, os.WriteFile(pwdPath, []byte("s3cret\n"), 0o600))
	dsnPath := filepath.Join(dir, "dsn")
	require.NoError(t, os.WriteFile(dsnPath, []byte("u:p@tcp(h:3306)/db\n"), 0o600))

	v := newTestViper(t)
	v.Set("database.password_file", pwdPath)
	v.Set("database.dsn_file", dsnPath)

	cfg, err := finish(v)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "u:p@tcp(h:3306)/db", cfg.Database.ConnectionString)
}

func TestFinish_PasswordNotOverwrittenByFile(t *testing.T) {
	v := newTestViper(t)
	v.Set("database.password", "inline")
	v.Set("database.password_file", filepath.Join(t.TempDir(), "missing"))

	cfg, err := finish(v)
	require.NoError(t, err)
	assert.Equal(t, "inline", cfg.Database.Password)
}

func TestValidateSingleStdinFileSource(t *testing.T) {
	t.Run("one stdin source allowed", func(t *testing.T) {
		v := viper.New()
		v.Set("database.dsn_file", "@-")
		v.Set("database.password_file", "/tmp/password")
		assert.NoError(t, validateSingleStdinFileSource(v))
	})

	t.Run("two stdin sources rejected", func(t *testing.T) {
		v := viper.New()
		v.Set("database.dsn_file", "@-")
		v.Set("database.password_file", " @- ")
		err := validateSingleStdinFileSource(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.dsn_file")
		assert.Contains(t, err.Error(), "database.password_file")
	})
}

func TestConfig_Validate(t *testing.T) {
	validConfig := func() *Config {
		return &Config{
			Database: DatabaseConfig{
				Driver:                  DriverMySQL,
				Host:                    "localhost",
				User:                    "root",
				Database:                "graphql-app-example",
				Pool:                    PoolConfig{MaxOpen: 10, MaxIdle: 5, AcquireTimeout: time.Second},
				ConnectionTimeout:       time.Minute,
				ConnectionRetryInterval: 2 * time.Second,
			},
			Server: ServerConfig{
				Port:            8000,
				LoadingStrategy: LoadingEager,
				MaxPageSize:     100,
			},
			Observability: ObservabilityConfig{
				TraceSampleRatio: 1,
				Logging:          LoggingConfig{Level: "info", Format: "json"},
				OTLP:             OTLPConfig{Protocol: "grpc", Compression: "gzip"},
			},
		}
	}

	t.Run("valid config passes validation", func(t *testing.T) {
		result := validConfig().Validate()
		assert.False(t, result.HasErrors())
		assert.Empty(t, result.Warnings)
	})

	t.Run("unsupported driver", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Driver = "sqlite"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "database.driver")
	})

	t.Run("invalid database port", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Port = 70000
		result := cfg.Validate()
		assert.Contains(t, result.Error(), "database.port")
	})

	t.Run("invalid dsn", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.ConnectionString = "garbage"
		result := cfg.Validate()
		assert.Contains(t, result.Error(), "database.dsn")
	})

	t.Run("unlimited pool warns", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Pool.MaxOpen = 0
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, "database.pool.max_open", result.Warnings[0].Field)
	})

	t.Run("max_idle greater than max_open warns", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Pool.MaxOpen = 1
		cfg.Database.Pool.MaxIdle = 5
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0].Message, "max_idle")
	})

	t.Run("negative acquire timeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Pool.AcquireTimeout = -time.Second
		assert.Contains(t, cfg.Validate().Error(), "acquire_timeout")
	})

	t.Run("retry interval required with connection timeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.ConnectionRetryInterval = 0
		assert.Contains(t, cfg.Validate().Error(), "connection_retry_interval")
	})

	t.Run("invalid loading strategy", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.LoadingStrategy = "lazy"
		assert.Contains(t, cfg.Validate().Error(), "server.loading_strategy")
	})

	t.Run("negative max page size", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.MaxPageSize = -1
		assert.Contains(t, cfg.Validate().Error(), "server.max_page_size")
	})

	t.Run("invalid server port", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Port = -1
		assert.Contains(t, cfg.Validate().Error(), "server.port")
	})

	t.Run("rate limit enabled without values", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.RateLimitEnabled = true
		msg := cfg.Validate().Error()
		assert.Contains(t, msg, "rate_limit_rps")
		assert.Contains(t, msg, "rate_limit_burst")
	})

	t.Run("rate limit disabled with values warns", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.RateLimitRPS = 100
		cfg.Server.RateLimitBurst = 10
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0].Message, "rate limit values")
	})

	t.Run("CORS wildcard with credentials", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.CORSEnabled = true
		cfg.Server.CORSAllowedOrigins = []string{"*"}
		cfg.Server.CORSAllowCredentials = true
		assert.Contains(t, cfg.Validate().Error(), "wildcard")
	})

	t.Run("CORS wildcard without credentials warns", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.CORSEnabled = true
		cfg.Server.CORSAllowedOrigins = []string{"*"}
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0].Message, "wildcard")
	})

	t.Run("OIDC enabled requires issuer and audience", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Auth.OIDCEnabled = true
		msg := cfg.Validate().Error()
		assert.Contains(t, msg, "oidc_issuer_url")
		assert.Contains(t, msg, "oidc_audience")
	})

	t.Run("TLS cert without key", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.TLSCertFile = "cert.pem"
		assert.Contains(t, cfg.Validate().Error(), "tls_cert_file")
	})

	t.Run("invalid log level and format", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.Logging.Level = "trace"
		cfg.Observability.Logging.Format = "xml"
		msg := cfg.Validate().Error()
		assert.Contains(t, msg, "observability.logging.level")
		assert.Contains(t, msg, "observability.logging.format")
	})

	t.Run("invalid OTLP http/protobuf endpoint", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.OTLP.Protocol = "http/protobuf"
		cfg.Observability.OTLP.Endpoint = "localhost"
		assert.Contains(t, cfg.Validate().Error(), "observability.otlp.endpoint")
	})

	t.Run("multiple errors collected", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Driver = ""
		cfg.Server.Port = 0
		cfg.Observability.Logging.Level = "invalid"
		result := cfg.Validate()
		assert.Len(t, result.Errors, 3)
	})
}

func TestValidationError_Error(t *testing.T) {
	withHint := ValidationError{Field: "test.field", Message: "test message", Hint: "try this"}
	assert.Equal(t, "test.field: test message (hint: try this)", withHint.Error())

	withoutHint := ValidationError{Field: "test.field", Message: "test message"}
	assert.Equal(t, "test.field: test message", withoutHint.Error())
}

func TestMergeOTLPConfigs(t *testing.T) {
	base := OTLPConfig{
		Endpoint:    "collector:4317",
		Protocol:    "grpc",
		Headers:     map[string]string{"a": "1", "b": "2"},
		Timeout:     10 * time.Second,
		Compression: "gzip",
	}
	obs := ObservabilityConfig{
		OTLP:   base,
		Traces: &OTLPConfig{Endpoint: "traces:4318", Protocol: "http/protobuf", Insecure: true, Headers: map[string]string{"b": "3"}},
	}

	traces := obs.GetTracesConfig()
	assert.Equal(t, "traces:4318", traces.Endpoint)
	assert.Equal(t, "http/protobuf", traces.Protocol)
	assert.True(t, traces.Insecure)
	assert.Equal(t, map[string]string{"a": "1", "b": "3"}, traces.Headers)
	assert.Equal(t, 10*time.Second, traces.Timeout)

	assert.Equal(t, base, obs.GetLogsConfig())
}
