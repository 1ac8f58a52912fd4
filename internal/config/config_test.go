package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	for _, key := range []string{"PORT", "SERVER_PORT", "API_BASE_URL", "ECONFIRM_API_BASE_URL", "STORAGE_DRIVER", "PAYMENT_POLL_INTERVAL_SECONDS", "PAYMENT_POLL_TIMEOUT_SECONDS", "OTP_RESEND_SECONDS"} {
		unsetEnvWithCleanup(t, key)
	}

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8090" {
		t.Fatalf("expected default port 8090, got %q", cfg.ServerPort)
	}
	if cfg.APIBaseURL != "https://econfirm.co.ke/api" {
		t.Fatalf("unexpected API base URL %q", cfg.APIBaseURL)
	}
	if cfg.StorageDriver != StorageSQLite {
		t.Fatalf("expected sqlite storage, got %q", cfg.StorageDriver)
	}
	if cfg.PollInterval() != 3*time.Second || cfg.PollTimeout() != 120*time.Second {
		t.Fatalf("unexpected poll timings: %s / %s", cfg.PollInterval(), cfg.PollTimeout())
	}
	if cfg.OTPResendDelay() != 60*time.Second {
		t.Fatalf("unexpected OTP resend delay %s", cfg.OTPResendDelay())
	}
}

func TestLoadConfig_PortOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "9000")
	setEnvWithCleanup(t, "PORT", "9100")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9100" {
		t.Fatalf("expected PORT to win, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_NonPositiveTimingsFallBackToDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "PAYMENT_POLL_INTERVAL_SECONDS", "0")
	setEnvWithCleanup(t, "PAYMENT_POLL_TIMEOUT_SECONDS", "-5")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PollIntervalSeconds != 3 || cfg.PollTimeoutSeconds != 120 {
		t.Fatalf("expected defaults, got interval=%d timeout=%d", cfg.PollIntervalSeconds, cfg.PollTimeoutSeconds)
	}
}

func TestLoadConfig_APIBaseURLAliasAndTrailingSlash(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "API_BASE_URL")
	setEnvWithCleanup(t, "ECONFIRM_API_BASE_URL", "http://localhost:8000/api/")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8000/api" {
		t.Fatalf("unexpected API base URL %q", cfg.APIBaseURL)
	}
}

func TestOrigins(t *testing.T) {
	cfg := Config{AllowedOrigins: " http://localhost:19006, ,https://econfirm.co.ke "}
	got := cfg.Origins()
	if len(got) != 2 || got[0] != "http://localhost:19006" || got[1] != "https://econfirm.co.ke" {
		t.Fatalf("unexpected origins %v", got)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
		}
	})
}
