// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"time"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	configPath = pflag.String("config", "", "Path to the config.toml file")

	validLogLevels     = []string{"debug", "info", "warn", "error", "fatal"}
	validEnvs          = []string{"development", "production"}
	validStorageDrives = []string{"sqlite", "postgres", "mongo"}
)

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	if *configPath != "" {
		v.SetConfigFile(*configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()

	bindEnvs()
	setDefaults()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file, %w", err)
		}

		// Everything can come from the environment as well
		fmt.Println("[WARNING]: config.toml not found, using environment variables and defaults")
	}

	return validate()
}

func bindEnvs() {
	v.BindEnv("app.log_level", "app_log_level")
	v.BindEnv("app.env", "app_env")
	v.BindEnv("app.public_url", "api_url", "app_public_url")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.cors", "host_cors")
	v.BindEnv("host.trusted_proxies", "host_trusted_proxies")
	v.BindEnv("host.ssl.enabled", "host_ssl_enabled")
	v.BindEnv("host.ssl.certificate_path", "host_ssl_certificate_path")
	v.BindEnv("host.ssl.certificate_key_path", "host_ssl_certificate_key_path")

	v.BindEnv("jwt.secret", "jwt_secret", "jwt_secret_key")

	v.BindEnv("security.api_secret", "api_secret_token", "security_api_secret")
	v.BindEnv("security.argon.memory", "security_argon_memory")
	v.BindEnv("security.argon.iterations", "security_argon_iterations")
	v.BindEnv("security.argon.parallelism", "security_argon_parallelism")
	v.BindEnv("security.verification_ttl", "security_verification_ttl")
	v.BindEnv("security.reset_ttl", "security_reset_ttl")
	v.BindEnv("security.rate_limit", "security_rate_limit")
	v.BindEnv("security.login.max_attempts", "security_login_max_attempts")
	v.BindEnv("security.login.window", "security_login_window")

	v.BindEnv("storage.driver", "storage_driver")
	v.BindEnv("storage.sqlite.path", "storage_sqlite_path")
	v.BindEnv("storage.postgres.dsn", "storage_postgres_dsn")
	v.BindEnv("storage.mongo.uri", "db_connection", "storage_mongo_uri")
	v.BindEnv("storage.mongo.database", "storage_mongo_database")
	v.BindEnv("storage.cleanup_interval", "storage_cleanup_interval")

	v.BindEnv("redis.addr", "redis_addr")
	v.BindEnv("redis.password", "redis_password")
	v.BindEnv("redis.db", "redis_db")

	v.BindEnv("mail.host", "mail_host")
	v.BindEnv("mail.port", "mail_port")
	v.BindEnv("mail.username", "mail_username", "nodemailer_user")
	v.BindEnv("mail.password", "mail_password", "nodemailer_pass")
	v.BindEnv("mail.sender", "mail_sender_address")
	v.BindEnv("mail.workers", "mail_workers")
	v.BindEnv("mail.queue_size", "mail_queue_size")
}

func setDefaults() {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.public_url", "http://localhost:5000")

	v.SetDefault("host.port", 5000)
	v.SetDefault("host.cors", []string{"*"})
	v.SetDefault("host.trusted_proxies", []string{})
	v.SetDefault("host.ssl.enabled", false)

	v.SetDefault("security.argon.memory", 64*1024)
	v.SetDefault("security.argon.iterations", 3)
	v.SetDefault("security.argon.parallelism", 2)
	v.SetDefault("security.verification_ttl", time.Hour)
	v.SetDefault("security.reset_ttl", time.Hour)
	v.SetDefault("security.rate_limit", 20)
	v.SetDefault("security.login.max_attempts", 5)
	v.SetDefault("security.login.window", 15*time.Minute)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite.path", "database.db")
	v.SetDefault("storage.mongo.database", "accounts")
	v.SetDefault("storage.cleanup_interval", 24*time.Hour)

	v.SetDefault("redis.db", 0)

	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.workers", 2)
	v.SetDefault("mail.queue_size", 100)
}

func validate() error {
	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if !slices.Contains(validEnvs, v.GetString("app.env")) {
		return errors.New("invalid app.env provided, use development or production")
	}

	if v.GetString("app.public_url") == "" {
		return errors.New("app.public_url can't be empty")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	for _, p := range v.GetStringSlice("host.trusted_proxies") {
		if net.ParseIP(p) != nil {
			continue
		}

		if _, _, err := net.ParseCIDR(p); err != nil {
			return fmt.Errorf("invalid trusted proxy %q, use an IP or CIDR", p)
		}
	}

	if v.GetBool("host.ssl.enabled") {
		if v.GetString("host.ssl.certificate_path") == "" {
			return errors.New("no ssl certificate path provided")
		}

		if v.GetString("host.ssl.certificate_key_path") == "" {
			return errors.New("no ssl certificate key path provided")
		}
	}

	if v.GetString("jwt.secret") == "" {
		fmt.Println("WARNING: You haven't set a JWT secret, so it has been generated for you. Please set it as an environment variable or in the config.toml file.\nYour random JWT secret:\n\n" + genSecret() + "\n\nPaste it into your config.toml file.")
		os.Exit(0)
	}

	if v.GetString("security.api_secret") == "" {
		return errors.New("security.api_secret can't be empty")
	}

	if v.GetInt("security.argon.memory") <= 0 || v.GetInt("security.argon.iterations") <= 0 {
		return errors.New("argon memory and iterations must be bigger than 0")
	}

	if p := v.GetInt("security.argon.parallelism"); p <= 0 || p > 255 {
		return errors.New("argon parallelism must be between 1 and 255")
	}

	if v.GetDuration("security.verification_ttl") <= 0 || v.GetDuration("security.reset_ttl") <= 0 {
		return errors.New("token lifetimes must be bigger than 0")
	}

	if v.GetInt("security.rate_limit") <= 0 {
		return errors.New("security.rate_limit must be bigger than 0")
	}

	if v.GetInt("security.login.max_attempts") <= 0 || v.GetDuration("security.login.window") <= 0 {
		return errors.New("login limit attempts and window must be bigger than 0")
	}

	switch v.GetString("storage.driver") {
	case "sqlite":
		if v.GetString("storage.sqlite.path") == "" {
			return errors.New("sqlite path can't be empty")
		}
	case "postgres":
		if v.GetString("storage.postgres.dsn") == "" {
			return errors.New("postgres dsn can't be empty")
		}
	case "mongo":
		if v.GetString("storage.mongo.uri") == "" {
			return errors.New("mongo uri can't be empty")
		}
		if v.GetString("storage.mongo.database") == "" {
			return errors.New("mongo database can't be empty")
		}
	}

	if !slices.Contains(validStorageDrives, v.GetString("storage.driver")) {
		return errors.New("invalid storage driver provided")
	}

	if v.GetDuration("storage.cleanup_interval") <= 0 {
		return errors.New("storage.cleanup_interval must be bigger than 0")
	}

	if v.GetString("mail.host") == "" {
		fmt.Println("[WARNING]: No mail host configured. Emails will be written to the log instead of being sent")
	} else if v.GetString("mail.username") == "" && v.GetString("mail.sender") == "" {
		return errors.New("mail.username or mail.sender must be set")
	}

	if v.GetInt("mail.workers") <= 0 || v.GetInt("mail.queue_size") <= 0 {
		return errors.New("mail workers and queue size must be bigger than 0")
	}

	return nil
}
