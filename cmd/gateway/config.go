package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/RogueTeam/remit/cache/badgerstore"
	"github.com/RogueTeam/remit/events"
	"github.com/RogueTeam/remit/gateway"
	"github.com/RogueTeam/remit/logging"
	"github.com/RogueTeam/remit/notify"
	"github.com/RogueTeam/remit/quote"
	"github.com/RogueTeam/remit/rails"
	"github.com/RogueTeam/remit/rails/custodial"
	"github.com/RogueTeam/remit/rails/mock"
	"github.com/RogueTeam/remit/routing"
	"github.com/RogueTeam/remit/transfer"
	"github.com/RogueTeam/remit/utils"
	"github.com/RogueTeam/remit/webhook"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Environment variables overriding secrets of the yaml file
const (
	EnvWebhookSecret     = "REMIT_WEBHOOK_SECRET"
	EnvCustodialUsername = "REMIT_CUSTODIAL_USERNAME"
	EnvCustodialPassword = "REMIT_CUSTODIAL_PASSWORD"
)

// Yaml configuration reference
type (
	Custodial struct {
		// Empty runs the in memory custodian
		Url               string        `yaml:"url"`
		Username          *string       `yaml:"username,omitempty"`
		Password          *string       `yaml:"password,omitempty"`
		RequestsPerSecond float64       `yaml:"requests-per-second"`
		Burst             int           `yaml:"burst"`
		Timeout           time.Duration `yaml:"timeout"`
	}
	Kafka struct {
		// Empty disables event publishing
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		BatchTimeout time.Duration `yaml:"batch-timeout"`
	}
	Rail struct {
		Disabled   bool     `yaml:"disabled"`
		Currencies []string `yaml:"currencies"`
	}
	Routing struct {
		Threshold      decimal.Decimal       `yaml:"threshold"`
		BelowThreshold rails.Rail            `yaml:"below-threshold"`
		AboveThreshold rails.Rail            `yaml:"above-threshold"`
		MaxAttempts    int                   `yaml:"max-attempts"`
		BaseDelay      time.Duration         `yaml:"base-delay"`
		MaxDelay       time.Duration         `yaml:"max-delay"`
		JitterPercent  uint64                `yaml:"jitter-percent"`
		Rails          map[rails.Rail]Rail   `yaml:"rails"`
		Breaker        routing.BreakerConfig `yaml:"breaker"`
	}
	Notifications struct {
		MaxAttempts     int                          `yaml:"max-attempts"`
		Ladder          []time.Duration              `yaml:"ladder"`
		Retention       time.Duration                `yaml:"retention"`
		FailedRetention time.Duration                `yaml:"failed-retention"`
		Concurrency     int                          `yaml:"concurrency"`
		Preferences     map[string]notify.Preference `yaml:"preferences"`
	}
	Config struct {
		ProcessInterval time.Duration   `yaml:"process-interval"`
		ListenAddress   string          `yaml:"listen-address"`
		DatabasePath    string          `yaml:"database-path"`
		MinAmount       decimal.Decimal `yaml:"min-amount"`
		MaxAmount       decimal.Decimal `yaml:"max-amount"`
		LockDuration    time.Duration   `yaml:"lock-duration"`
		QuoteTTL        time.Duration   `yaml:"quote-ttl"`
		WebhookSecret   string          `yaml:"webhook-secret"`
		Logging         logging.Config  `yaml:"logging"`
		Custodial       Custodial       `yaml:"custodial"`
		Kafka           Kafka           `yaml:"kafka"`
		Routing         Routing         `yaml:"routing"`
		Notifications   Notifications   `yaml:"notifications"`
	}
	// Everything built by Compile
	Service struct {
		Controller gateway.Controller
		Logger     *logrus.Logger
		DB         *badger.DB
		Publisher  events.Publisher
	}
)

// Overlay replaces secrets with the values found in the environment or a .env file
func (c *Config) Overlay() (err error) {
	err = godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if secret, found := os.LookupEnv(EnvWebhookSecret); found {
		c.WebhookSecret = secret
	}
	if username, found := os.LookupEnv(EnvCustodialUsername); found {
		c.Custodial.Username = &username
	}
	if password, found := os.LookupEnv(EnvCustodialPassword); found {
		c.Custodial.Password = &password
	}
	return nil
}

func (c *Config) custodial() (client rails.Custodial, err error) {
	if c.Custodial.Url == "" {
		backend := mock.NewCustodial()
		for currency, rate := range quote.DefaultFallbackRates() {
			if currency != "USD" {
				backend.SetRate("USD", currency, rate)
			}
		}
		return backend, nil
	}

	config := custodial.Config{
		Url:               c.Custodial.Url,
		RequestsPerSecond: c.Custodial.RequestsPerSecond,
		Burst:             c.Custodial.Burst,
		Timeout:           c.Custodial.Timeout,
	}
	if c.Custodial.Username != nil && c.Custodial.Password != nil {
		config.Credentials = &custodial.Credentials{
			Username: *c.Custodial.Username,
			Password: *c.Custodial.Password,
		}
	}
	client, err = custodial.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create custodial client: %w", err)
	}
	return client, nil
}

func (c *Config) Compile() (service Service, err error) {
	if strings.TrimSpace(c.WebhookSecret) == "" {
		return service, fmt.Errorf("webhook secret is required, set %s", EnvWebhookSecret)
	}

	service.Logger, err = logging.New(c.Logging)
	if err != nil {
		return service, fmt.Errorf("failed to create logger: %w", err)
	}

	source, err := c.custodial()
	if err != nil {
		return service, err
	}

	service.Publisher = events.Nop{}
	if len(c.Kafka.Brokers) > 0 {
		service.Publisher = events.NewKafka(events.KafkaConfig{
			Brokers:      c.Kafka.Brokers,
			Topic:        c.Kafka.Topic,
			BatchTimeout: c.Kafka.BatchTimeout,
		})
	}

	opt := badger.DefaultOptions(c.DatabasePath).WithLogger(nil)
	if c.DatabasePath == "" {
		opt = opt.WithInMemory(true)
	}
	service.DB, err = badger.Open(opt)
	if err != nil {
		return service, fmt.Errorf("failed to open database: %w", err)
	}

	railConfigs := make(map[rails.Rail]routing.RailConfig, len(c.Routing.Rails))
	for rail, config := range c.Routing.Rails {
		railConfigs[rail] = routing.RailConfig{Disabled: config.Disabled, Currencies: config.Currencies}
	}

	sender := &notify.PublisherSender{Publisher: service.Publisher, Clock: utils.SystemClock{}}
	notifications := notify.New(notify.Config{
		Queue:       notify.NewBadgerQueue(service.DB),
		Preferences: notify.NewStaticPreferences(c.Notifications.Preferences),
		Senders: map[notify.Channel]notify.Sender{
			notify.ChannelEmail: sender,
			notify.ChannelSMS:   sender,
			notify.ChannelPush:  sender,
		},
		Logger:          service.Logger,
		MaxAttempts:     c.Notifications.MaxAttempts,
		Ladder:          c.Notifications.Ladder,
		Retention:       c.Notifications.Retention,
		FailedRetention: c.Notifications.FailedRetention,
		Concurrency:     c.Notifications.Concurrency,
	})
	machine := transfer.New(transfer.Config{
		Store:     transfer.NewBadgerStore(service.DB),
		Notifier:  notifications,
		Publisher: service.Publisher,
		Logger:    service.Logger,
	})

	service.Controller = gateway.New(gateway.Config{
		Quotes: quote.New(quote.Config{
			Store:        badgerstore.New(service.DB),
			Source:       source,
			Logger:       service.Logger,
			QuoteTTL:     c.QuoteTTL,
			LockDuration: c.LockDuration,
		}),
		Router: routing.New(routing.Config{
			// Card acquiring and the stablecoin network only ship as in memory providers
			Acquirer:       mock.NewAcquirer(),
			Custodial:      source,
			Blockchain:     mock.NewBlockchain(),
			Rails:          railConfigs,
			Threshold:      c.Routing.Threshold,
			BelowThreshold: c.Routing.BelowThreshold,
			AboveThreshold: c.Routing.AboveThreshold,
			MaxAttempts:    c.Routing.MaxAttempts,
			BaseDelay:      c.Routing.BaseDelay,
			MaxDelay:       c.Routing.MaxDelay,
			JitterPercent:  c.Routing.JitterPercent,
			Breaker:        c.Routing.Breaker,
			Logger:         service.Logger,
		}),
		Machine:       machine,
		Notifications: notifications,
		Webhooks: webhook.New(webhook.Config{
			Secret:  []byte(c.WebhookSecret),
			Handler: machine,
			Logger:  service.Logger,
		}),
		MinAmount: c.MinAmount,
		MaxAmount: c.MaxAmount,
		Logger:    service.Logger,
	})
	return service, nil
}

// Close releases the database and flushes pending events
func (s *Service) Close() (err error) {
	if s.Publisher != nil {
		err = s.Publisher.Close()
	}
	if s.DB != nil {
		if dbErr := s.DB.Close(); dbErr != nil && err == nil {
			err = dbErr
		}
	}
	return err
}
