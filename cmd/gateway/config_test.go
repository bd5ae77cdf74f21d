package main

import (
	"os"
	"testing"
	"time"

	"github.com/RogueTeam/remit/notify"
	"github.com/RogueTeam/remit/quote"
	"github.com/RogueTeam/remit/rails"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func loadExample(t *testing.T) (cfg Config) {
	contents, err := os.ReadFile("config.example.yaml")
	if err != nil {
		t.Fatalf("failed to read example config: %v", err)
	}
	err = yaml.Unmarshal(contents, &cfg)
	if err != nil {
		t.Fatalf("failed to parse example config: %v", err)
	}
	return cfg
}

func Test_Config(t *testing.T) {
	t.Run("Parse", func(t *testing.T) {
		assertions := assert.New(t)

		cfg := loadExample(t)
		assertions.Equal(time.Second, cfg.ProcessInterval)
		assertions.True(decimal.NewFromInt(50_000).Equal(cfg.MaxAmount))
		assertions.Equal(10*time.Minute, cfg.LockDuration)
		assertions.Equal(rails.RailCustodial, cfg.Routing.BelowThreshold)
		assertions.Equal(time.Minute, cfg.Routing.Breaker.Cooldown)
		assertions.Contains(cfg.Routing.Rails[rails.RailBlockchain].Currencies, "MXN")
		assertions.Equal([]time.Duration{time.Second, 5 * time.Second, 15 * time.Second, time.Minute, 5 * time.Minute}, cfg.Notifications.Ladder)
		assertions.Equal([]notify.Channel{notify.ChannelEmail}, cfg.Notifications.Preferences["user_quiet"].Channels)
	})
	t.Run("Overlay", func(t *testing.T) {
		assertions := assert.New(t)

		t.Setenv(EnvWebhookSecret, "whsec_env")
		t.Setenv(EnvCustodialUsername, "remit")
		t.Setenv(EnvCustodialPassword, "hunter2")

		cfg := loadExample(t)
		err := cfg.Overlay()
		assertions.Nil(err, "failed to overlay environment")
		assertions.Equal("whsec_env", cfg.WebhookSecret)
		if assertions.NotNil(cfg.Custodial.Password) {
			assertions.Equal("hunter2", *cfg.Custodial.Password)
		}
	})
	t.Run("MissingSecret", func(t *testing.T) {
		assertions := assert.New(t)

		cfg := loadExample(t)
		_, err := cfg.Compile()
		assertions.NotNil(err)
	})
	t.Run("Compile", func(t *testing.T) {
		assertions := assert.New(t)

		cfg := loadExample(t)
		cfg.WebhookSecret = "whsec_test"
		service, err := cfg.Compile()
		if !assertions.Nil(err, "failed to compile") {
			return
		}
		defer service.Close()

		q, err := service.Controller.Quote(t.Context(), quote.QuoteRequest{From: "USD", To: "EUR", Amount: decimal.NewFromInt(100)})
		assertions.Nil(err, "failed to quote")
		assertions.True(q.ReceiveAmount.IsPositive())
	})
}

func Test_Flags(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		assertions := assert.New(t)

		app, err := parseFlags(nil)
		assertions.Nil(err, "failed to parse flags")
		assertions.False(app.debug)
		assertions.Equal("config.yaml", app.config)
	})
	t.Run("Set", func(t *testing.T) {
		assertions := assert.New(t)

		app, err := parseFlags([]string{"-debug", "-config", "gateway.yaml"})
		assertions.Nil(err, "failed to parse flags")
		assertions.True(app.debug)
		assertions.Equal("gateway.yaml", app.config)
	})
	t.Run("Unknown", func(t *testing.T) {
		assertions := assert.New(t)

		_, err := parseFlags([]string{"-test.paniconexit0"})
		assertions.NotNil(err)
	})
}
