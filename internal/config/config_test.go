package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.PharmacyPollSecs != 5 {
		t.Errorf("expected default pharmacy poll 5s, got %d", cfg.PharmacyPollSecs)
	}
	if cfg.BillingSweepSecs != 3 {
		t.Errorf("expected default billing sweep 3s, got %d", cfg.BillingSweepSecs)
	}
	if cfg.NewPatientFee != 500 || cfg.FollowUpFee != 300 {
		t.Errorf("expected default fees 500/300, got %v/%v", cfg.NewPatientFee, cfg.FollowUpFee)
	}
	if !cfg.IsDev() {
		t.Error("expected development env by default")
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Error("expected error without DATABASE_URL")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic_test")
	t.Setenv("PHARMACY_POLL_SECONDS", "10")
	t.Setenv("BILLING_SWEEP_SECONDS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PharmacyPollInterval() != 10*time.Second {
		t.Errorf("expected 10s poll interval, got %v", cfg.PharmacyPollInterval())
	}
	if cfg.BillingSweepInterval() != 7*time.Second {
		t.Errorf("expected 7s sweep interval, got %v", cfg.BillingSweepInterval())
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{Env: "production", PharmacyPollSecs: 5, BillingSweepSecs: 3}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for production without JWT secret")
	}

	cfg.JWTSecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.PharmacyPollSecs = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero poll interval")
	}
}
