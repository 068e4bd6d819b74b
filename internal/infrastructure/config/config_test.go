package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"ONB_APP_NAME":                os.Getenv("ONB_APP_NAME"),
		"ONB_APP_ENV":                 os.Getenv("ONB_APP_ENV"),
		"ONB_APP_PORT":                os.Getenv("ONB_APP_PORT"),
		"ONB_DATABASE_HOST":           os.Getenv("ONB_DATABASE_HOST"),
		"ONB_DATABASE_PORT":           os.Getenv("ONB_DATABASE_PORT"),
		"ONB_DATABASE_USER":           os.Getenv("ONB_DATABASE_USER"),
		"ONB_DATABASE_PASSWORD":       os.Getenv("ONB_DATABASE_PASSWORD"),
		"ONB_DATABASE_DBNAME":         os.Getenv("ONB_DATABASE_DBNAME"),
		"ONB_DATABASE_SSLMODE":        os.Getenv("ONB_DATABASE_SSLMODE"),
		"ONB_DATABASE_MAX_OPEN_CONNS": os.Getenv("ONB_DATABASE_MAX_OPEN_CONNS"),
		"ONB_DATABASE_MAX_IDLE_CONNS": os.Getenv("ONB_DATABASE_MAX_IDLE_CONNS"),
		"ONB_STRIPE_SECRET_KEY":       os.Getenv("ONB_STRIPE_SECRET_KEY"),
		"ONB_STRIPE_WEBHOOK_SECRET":   os.Getenv("ONB_STRIPE_WEBHOOK_SECRET"),
		"ONB_STRIPE_TEST_MODE":        os.Getenv("ONB_STRIPE_TEST_MODE"),
		"ONB_IDEMPOTENCY_ENABLED":     os.Getenv("ONB_IDEMPOTENCY_ENABLED"),
		"ONB_IDEMPOTENCY_TTL":         os.Getenv("ONB_IDEMPOTENCY_TTL"),
		"ONB_PROGRAMS_DEFAULT_SLUG":   os.Getenv("ONB_PROGRAMS_DEFAULT_SLUG"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "onboarding", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "postgres", cfg.Database.User)
		assert.Equal(t, "", cfg.Database.Password)
		assert.Equal(t, "onboarding", cfg.Database.DBName)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, int64(7), cfg.Stripe.TrialPeriodDays)
		assert.True(t, cfg.Stripe.TestMode)
		assert.Equal(t, "foundation", cfg.Programs.DefaultSlug)
		assert.Equal(t, "Trial Community", cfg.Programs.TrialTag)
		assert.Equal(t, "On Trial", cfg.Programs.TrialStage)
		assert.Equal(t, "Lost", cfg.Programs.LostStage)
		assert.Equal(t, "Member", cfg.Programs.MemberStage)
		assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
		assert.Equal(t, "https://api.trainerize.com/v03", cfg.Trainerize.APIBaseURL)
		assert.Equal(t, "https://services.leadconnectorhq.com", cfg.GHL.APIBaseURL)
		assert.Equal(t, "v21.0", cfg.Meta.APIVersion)
	})

	t.Run("loads values from environment variables with ONB prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("ONB_APP_NAME", "test-app")
		os.Setenv("ONB_APP_ENV", "testing")
		os.Setenv("ONB_APP_PORT", "9000")
		os.Setenv("ONB_DATABASE_HOST", "testdb.local")
		os.Setenv("ONB_DATABASE_PORT", "5433")
		os.Setenv("ONB_DATABASE_USER", "testuser")
		os.Setenv("ONB_DATABASE_PASSWORD", "testpass")
		os.Setenv("ONB_DATABASE_DBNAME", "testdb")
		os.Setenv("ONB_DATABASE_SSLMODE", "require")
		os.Setenv("ONB_DATABASE_MAX_OPEN_CONNS", "50")
		os.Setenv("ONB_DATABASE_MAX_IDLE_CONNS", "10")
		os.Setenv("ONB_STRIPE_SECRET_KEY", "sk_test_abc123")
		os.Setenv("ONB_IDEMPOTENCY_TTL", "48h")
		os.Setenv("ONB_PROGRAMS_DEFAULT_SLUG", "gold-coaching")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testing", cfg.App.Env)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "testuser", cfg.Database.User)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, "testdb", cfg.Database.DBName)
		assert.Equal(t, "require", cfg.Database.SSLMode)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, "sk_test_abc123", cfg.Stripe.SecretKey)
		assert.Equal(t, 48*time.Hour, cfg.Idempotency.TTL)
		assert.Equal(t, "gold-coaching", cfg.Programs.DefaultSlug)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("ONB_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("ONB_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("zero MaxOpenConns uses default", func(t *testing.T) {
		clearEnv()
		os.Setenv("ONB_DATABASE_MAX_OPEN_CONNS", "0")

		cfg, err := Load()
		require.NoError(t, err)
		// 0 is treated as "not set", so default (25) is used
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	})

	t.Run("validates MaxIdleConns cannot be negative", func(t *testing.T) {
		clearEnv()
		os.Setenv("ONB_DATABASE_MAX_IDLE_CONNS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns cannot be negative")
	})

	t.Run("test mode forced on when no Stripe key configured", func(t *testing.T) {
		clearEnv()
		os.Setenv("ONB_STRIPE_TEST_MODE", "false")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Stripe.TestMode)
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	originalEnv := map[string]string{
		"ONB_APP_ENV":               os.Getenv("ONB_APP_ENV"),
		"ONB_DATABASE_PASSWORD":     os.Getenv("ONB_DATABASE_PASSWORD"),
		"ONB_DATABASE_SSLMODE":      os.Getenv("ONB_DATABASE_SSLMODE"),
		"ONB_STRIPE_SECRET_KEY":     os.Getenv("ONB_STRIPE_SECRET_KEY"),
		"ONB_STRIPE_WEBHOOK_SECRET": os.Getenv("ONB_STRIPE_WEBHOOK_SECRET"),
		"ONB_STRIPE_TEST_MODE":      os.Getenv("ONB_STRIPE_TEST_MODE"),
		"ONB_META_ENABLED":          os.Getenv("ONB_META_ENABLED"),
		"ONB_META_TEST_EVENT_CODE":  os.Getenv("ONB_META_TEST_EVENT_CODE"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	// Helper to set valid production base config
	setValidProductionBase := func() {
		os.Setenv("ONB_APP_ENV", "production")
		os.Setenv("ONB_DATABASE_PASSWORD", "secure-password")
		os.Setenv("ONB_DATABASE_SSLMODE", "require")
		os.Setenv("ONB_STRIPE_SECRET_KEY", "sk_live_abc123")
		os.Setenv("ONB_STRIPE_WEBHOOK_SECRET", "whsec_abc123")
		os.Setenv("ONB_STRIPE_TEST_MODE", "false")
	}

	t.Run("requires stripe.secret_key in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("ONB_STRIPE_SECRET_KEY")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stripe.secret_key is required in production")
	})

	t.Run("requires stripe.webhook_secret in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("ONB_STRIPE_WEBHOOK_SECRET")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stripe.webhook_secret is required in production")
	})

	t.Run("rejects test mode in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("ONB_STRIPE_TEST_MODE", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stripe.test_mode must be false in production")
	})

	t.Run("requires database.password in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("ONB_DATABASE_PASSWORD")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("ONB_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("rejects Meta test event code in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("ONB_META_ENABLED", "true")
		os.Setenv("ONB_META_TEST_EVENT_CODE", "TEST12345")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "meta.test_event_code must be empty in production")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
		assert.False(t, cfg.Stripe.TestMode)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		// URL-encoded password should be in the DSN
		assert.Contains(t, dsn, "pass%40word%23123")
	})

	t.Run("handles empty password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.NotEmpty(t, dsn)
	})
}
