package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug           bool
		TestMode        bool
		Env             string // DEV (local; default), TEST, QA, PROD
		Build           string
		AppName         string
		WorkDir         string
		FrontendBaseURL string
		RollbarToken    string

		Server   ServerConfig
		Auth     AuthConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Cache    CacheConfig
		Email    EmailConfig
	}

	ServerConfig struct {
		Host            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		RequestTimeout  time.Duration
		ShutdownTimeout time.Duration
		CORSOrigins     []string
	}

	AuthConfig struct {
		Issuer                    string
		AccessSecret              string
		RefreshSecret             string
		AccessExpirationDelta     time.Duration
		RefreshExpirationDelta    time.Duration
		PasswordResetTimeoutDelta time.Duration
		BcryptCost                int
	}

	DatabaseConfig struct {
		Engine        string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		Name          string
		DisableTLS    bool
	}

	StorageConfig struct {
		B2KeyID       string
		B2AppKey      string
		B2Bucket      string
		Timeout       time.Duration
		MaxUploadSize int64
	}

	CacheConfig struct {
		RedisAddr     string
		RedisPassword string
		RedisDB       int
		TTL           time.Duration
		Timeout       time.Duration
	}

	EmailConfig struct {
		SendgridAPIKey string
		FromName       string
		FromAddress    string
		Timeout        time.Duration
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c StorageConfig) B2Enabled() bool {
	return c.B2KeyID != "" && c.B2AppKey != "" && c.B2Bucket != ""
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.Email.FromName, Address: c.Email.FromAddress}
}

// NewConfig loads the configuration from the environment.
// Variables are prefixed with the value of ENV, eg. DEV_DATABASE_HOST.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Schoolhub")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server_host", "0.0.0.0:8000")
	v.SetDefault("server_debugHost", "0.0.0.0:4000")
	v.SetDefault("server_readTimeout", 10*time.Second)
	v.SetDefault("server_writeTimeout", 30*time.Second)
	v.SetDefault("server_requestTimeout", 25*time.Second)
	v.SetDefault("server_shutdownTimeout", 15*time.Second)
	v.SetDefault("server_corsOrigins", []string{"http://localhost:3000"})

	v.SetDefault("auth_issuer", "Njau")
	v.SetDefault("auth_accessSecret", "xq!8-wm5n$ka2)z7p@d^3tr_f9h+e#uc")
	v.SetDefault("auth_refreshSecret", "b6(lw=t2@nq8)ps#x&y^0ev!kj4$mzr_")
	v.SetDefault("auth_accessExpirationDelta", 65*time.Minute)
	v.SetDefault("auth_refreshExpirationDelta", 365*24*time.Hour)
	v.SetDefault("auth_passwordResetTimeoutDelta", time.Hour)
	v.SetDefault("auth_bcryptCost", 12)

	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_user", "schoolhub")
	v.SetDefault("database_password", "schoolhub")
	v.SetDefault("database_adminUser", "")
	v.SetDefault("database_adminPassword", "")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", "5432")
	v.SetDefault("database_name", "schoolhub")
	v.SetDefault("database_disableTLS", true)

	v.SetDefault("storage_b2KeyID", "")
	v.SetDefault("storage_b2AppKey", "")
	v.SetDefault("storage_b2Bucket", "")
	v.SetDefault("storage_timeout", 60*time.Second)
	v.SetDefault("storage_maxUploadSize", int64(10<<20))

	v.SetDefault("cache_redisAddr", "")
	v.SetDefault("cache_redisPassword", "")
	v.SetDefault("cache_redisDB", 0)
	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("cache_timeout", 2*time.Second)

	v.SetDefault("email_sendgridAPIKey", "")
	v.SetDefault("email_fromName", "Schoolhub")
	v.SetDefault("email_fromAddress", "noreply@localhost")
	v.SetDefault("email_timeout", 10*time.Second)

	env := strings.ToUpper(os.Getenv("ENV"))
	var testMode bool
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		testMode = true
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Debug:           v.GetBool("debug"),
		TestMode:        testMode,
		Env:             env,
		Build:           v.GetString("build"),
		AppName:         v.GetString("appName"),
		WorkDir:         wd,
		FrontendBaseURL: strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		RollbarToken:    v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            v.GetString("server_host"),
			DebugHost:       v.GetString("server_debugHost"),
			ReadTimeout:     v.GetDuration("server_readTimeout"),
			WriteTimeout:    v.GetDuration("server_writeTimeout"),
			RequestTimeout:  v.GetDuration("server_requestTimeout"),
			ShutdownTimeout: v.GetDuration("server_shutdownTimeout"),
			CORSOrigins:     v.GetStringSlice("server_corsOrigins"),
		},
		Auth: AuthConfig{
			Issuer:                    v.GetString("auth_issuer"),
			AccessSecret:              v.GetString("auth_accessSecret"),
			RefreshSecret:             v.GetString("auth_refreshSecret"),
			AccessExpirationDelta:     v.GetDuration("auth_accessExpirationDelta"),
			RefreshExpirationDelta:    v.GetDuration("auth_refreshExpirationDelta"),
			PasswordResetTimeoutDelta: v.GetDuration("auth_passwordResetTimeoutDelta"),
			BcryptCost:                v.GetInt("auth_bcryptCost"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database_engine"),
			User:          v.GetString("database_user"),
			Password:      v.GetString("database_password"),
			AdminUser:     v.GetString("database_adminUser"),
			AdminPassword: v.GetString("database_adminPassword"),
			Host:          v.GetString("database_host"),
			Port:          v.GetString("database_port"),
			Name:          v.GetString("database_name"),
			DisableTLS:    v.GetBool("database_disableTLS"),
		},
		Storage: StorageConfig{
			B2KeyID:       v.GetString("storage_b2KeyID"),
			B2AppKey:      v.GetString("storage_b2AppKey"),
			B2Bucket:      v.GetString("storage_b2Bucket"),
			Timeout:       v.GetDuration("storage_timeout"),
			MaxUploadSize: v.GetInt64("storage_maxUploadSize"),
		},
		Cache: CacheConfig{
			RedisAddr:     v.GetString("cache_redisAddr"),
			RedisPassword: v.GetString("cache_redisPassword"),
			RedisDB:       v.GetInt("cache_redisDB"),
			TTL:           v.GetDuration("cache_ttl"),
			Timeout:       v.GetDuration("cache_timeout"),
		},
		Email: EmailConfig{
			SendgridAPIKey: v.GetString("email_sendgridAPIKey"),
			FromName:       v.GetString("email_fromName"),
			FromAddress:    v.GetString("email_fromAddress"),
			Timeout:        v.GetDuration("email_timeout"),
		},
	}
}

// NewTestConfig returns a Config suited for tests: no external services, cheap bcrypt.
func NewTestConfig() *Config {
	return &Config{
		TestMode:        true,
		Env:             "TEST",
		Build:           "test",
		AppName:         "Schoolhub",
		FrontendBaseURL: "http://localhost:3000",
		Server: ServerConfig{
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: time.Second,
		},
		Auth: AuthConfig{
			Issuer:                    "Njau",
			AccessSecret:              "test-access-secret",
			RefreshSecret:             "test-refresh-secret",
			AccessExpirationDelta:     65 * time.Minute,
			RefreshExpirationDelta:    365 * 24 * time.Hour,
			PasswordResetTimeoutDelta: time.Hour,
			BcryptCost:                4, // bcrypt.MinCost
		},
		Storage: StorageConfig{
			Timeout:       5 * time.Second,
			MaxUploadSize: 10 << 20,
		},
		Cache: CacheConfig{TTL: time.Minute},
		Email: EmailConfig{
			FromName:    "Schoolhub",
			FromAddress: "noreply@localhost",
			Timeout:     time.Second,
		},
	}
}
