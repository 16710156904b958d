package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	DatabaseURL      string   `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret        string   `mapstructure:"JWT_SECRET"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS     float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int      `mapstructure:"RATE_LIMIT_BURST"`
	PharmacyPollSecs int      `mapstructure:"PHARMACY_POLL_SECONDS"`
	BillingSweepSecs int      `mapstructure:"BILLING_SWEEP_SECONDS"`
	NewPatientFee    float64  `mapstructure:"NEW_PATIENT_FEE"`
	FollowUpFee      float64  `mapstructure:"FOLLOW_UP_FEE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("PHARMACY_POLL_SECONDS", 5)
	v.SetDefault("BILLING_SWEEP_SECONDS", 3)
	v.SetDefault("NEW_PATIENT_FEE", 500)
	v.SetDefault("FOLLOW_UP_FEE", 300)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("PHARMACY_POLL_SECONDS")
	v.BindEnv("BILLING_SWEEP_SECONDS")
	v.BindEnv("NEW_PATIENT_FEE")
	v.BindEnv("FOLLOW_UP_FEE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run. Outside
// development a JWT secret must be set so real authentication is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV is not development")
	}
	if c.PharmacyPollSecs <= 0 {
		return fmt.Errorf("PHARMACY_POLL_SECONDS must be positive, got %d", c.PharmacyPollSecs)
	}
	if c.BillingSweepSecs <= 0 {
		return fmt.Errorf("BILLING_SWEEP_SECONDS must be positive, got %d", c.BillingSweepSecs)
	}
	return nil
}

// PharmacyPollInterval returns the pharmacy refresh loop interval.
func (c *Config) PharmacyPollInterval() time.Duration {
	return time.Duration(c.PharmacyPollSecs) * time.Second
}

// BillingSweepInterval returns the billing admission sweep interval.
func (c *Config) BillingSweepInterval() time.Duration {
	return time.Duration(c.BillingSweepSecs) * time.Second
}
