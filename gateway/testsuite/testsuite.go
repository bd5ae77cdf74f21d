package testsuite

import (
	"context"
	"fmt"
	"testing"
	"time"

	_ "embed"

	"github.com/RogueTeam/remit/cache/badgerstore"
	"github.com/RogueTeam/remit/events"
	"github.com/RogueTeam/remit/gateway"
	"github.com/RogueTeam/remit/money"
	"github.com/RogueTeam/remit/notify"
	"github.com/RogueTeam/remit/quote"
	"github.com/RogueTeam/remit/rails"
	"github.com/RogueTeam/remit/rails/mock"
	"github.com/RogueTeam/remit/routing"
	"github.com/RogueTeam/remit/transfer"
	"github.com/RogueTeam/remit/utils"
	"github.com/RogueTeam/remit/webhook"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

//go:embed tests/send.yaml
var sendTests []byte

// Rail wraps the in memory custodian into the client under test
type Rail func(t *testing.T, backend *mock.Custodial) (client rails.Custodial)

// InMemory uses the in memory custodian directly
func InMemory(t *testing.T, backend *mock.Custodial) (client rails.Custodial) {
	return backend
}

type Environment struct {
	Controller gateway.Controller
	Acquirer   *mock.Acquirer
	Custodial  *mock.Custodial
	Blockchain *mock.Blockchain
	Clock      *utils.FakeClock
	Secret     []byte
	// Every published event, notification messages included
	Events *events.Recorder
}

func NewEnvironment(t *testing.T, rail Rail) (env Environment) {
	logger, _ := test.NewNullLogger()

	options := badger.
		DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	db, err := badger.Open(options)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env.Clock = utils.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	env.Acquirer = mock.NewAcquirer()
	env.Custodial = mock.NewCustodial()
	env.Custodial.SetRate("USD", "EUR", decimal.RequireFromString("0.85"))
	env.Custodial.SetRate("USD", "MXN", decimal.RequireFromString("17.10"))
	env.Blockchain = mock.NewBlockchain()
	env.Secret = []byte("whsec_" + t.Name())
	env.Events = &events.Recorder{}

	custodial := rail(t, env.Custodial)
	publisher := &notify.PublisherSender{Publisher: env.Events, Clock: env.Clock}

	notifications := notify.New(notify.Config{
		Queue: notify.NewBadgerQueue(db),
		Senders: map[notify.Channel]notify.Sender{
			notify.ChannelEmail: publisher,
			notify.ChannelSMS:   publisher,
			notify.ChannelPush:  publisher,
		},
		Clock:  env.Clock,
		Logger: logger,
	})
	machine := transfer.New(transfer.Config{
		Store:     transfer.NewBadgerStore(db),
		Notifier:  notifications,
		Publisher: env.Events,
		Clock:     env.Clock,
		Logger:    logger,
	})
	env.Controller = gateway.New(gateway.Config{
		Quotes: quote.New(quote.Config{
			Store:  badgerstore.New(db),
			Source: custodial,
			Clock:  env.Clock,
			Logger: logger,
		}),
		Router: routing.New(routing.Config{
			Acquirer:   env.Acquirer,
			Custodial:  custodial,
			Blockchain: env.Blockchain,
			Clock:      env.Clock,
			Logger:     logger,
		}),
		Machine:       machine,
		Notifications: notifications,
		Webhooks:      webhook.New(webhook.Config{Secret: env.Secret, Handler: machine, Logger: logger}),
		MinAmount:     decimal.NewFromInt(10),
		MaxAmount:     decimal.NewFromInt(50_000),
		Logger:        logger,
	})
	return env
}

// Deliver signs and ingests a provider event
func (env *Environment) Deliver(ctx context.Context, eventType transfer.EventType, id, status string) (result webhook.Result, err error) {
	payload := []byte(fmt.Sprintf(`{"Type":%q,"Id":"evt_%s","Data":{"id":%q,"status":%q}}`, eventType, id, id, status))
	return env.Controller.Webhook(ctx, string(eventType), payload, webhook.Sign(env.Secret, payload))
}

func SendRequest(rateId string) (req gateway.Send) {
	return gateway.Send{
		RateId:      rateId,
		SenderId:    "user_1",
		KYCApproved: true,
		CardToken:   "tok_visa",
		Sender: transfer.Contact{
			UserId: "user_1",
			Name:   "Ada",
			Email:  "ada@example.com",
			Phone:  "+15550000001",
		},
		Recipient: transfer.Contact{
			Name:  "Grace",
			Email: "grace@example.com",
		},
		BankAccount:   "FR7630006000011234567890189",
		WalletAddress: "0xAbC0000000000000000000000000000000000001",
		Country:       "FR",
	}
}

// Test runs the transfer lifecycle against the custodial client built by rail
func Test(t *testing.T, rail Rail) {
	t.Run("Send", func(t *testing.T) {
		assertions := assert.New(t)

		type Failure struct {
			Provider string `yaml:"provider"`
			Call     string `yaml:"call"`
			Kind     string `yaml:"kind"`
		}
		type Expect struct {
			Rail     rails.Rail      `yaml:"rail"`
			Status   transfer.Status `yaml:"status"`
			Error    rails.Kind      `yaml:"error"`
			Receive  string          `yaml:"receive"`
			Fallback bool            `yaml:"fallback"`
			Reason   string          `yaml:"reason"`
			Hybrid   bool            `yaml:"hybrid"`
		}
		type Test struct {
			Name          string     `yaml:"name"`
			Amount        string     `yaml:"amount"`
			To            string     `yaml:"to"`
			Card          string     `yaml:"card"`
			PreferredRail rails.Rail `yaml:"preferred-rail"`
			Failures      []Failure  `yaml:"failures"`
			Expect        Expect     `yaml:"expect"`
		}

		var tests []Test
		err := yaml.Unmarshal(sendTests, &tests)
		assertions.Nil(err, "failed to load tests")

		for _, test := range tests {
			t.Run(test.Name, func(t *testing.T) {
				t.Parallel()
				assertions := assert.New(t)

				ctx, cancel := utils.NewContext()
				defer cancel()

				env := NewEnvironment(t, rail)
				for _, failure := range test.Failures {
					injected := rails.NewError(rails.Kind(failure.Kind), "injected")
					switch failure.Provider {
					case "custodial":
						env.Custodial.Fail(mock.Call(failure.Call), injected)
					case "blockchain":
						env.Blockchain.Fail(mock.Call(failure.Call), injected)
					case "acquirer":
						env.Acquirer.Fail(mock.Call(failure.Call), injected)
					}
				}

				to := test.To
				if to == "" {
					to = "EUR"
				}
				locked, err := env.Controller.LockRate(ctx, quote.LockRequest{
					From:   "USD",
					To:     to,
					Amount: decimal.RequireFromString(test.Amount),
				})
				if !assertions.Nil(err, "failed to lock rate") {
					return
				}
				if test.Expect.Receive != "" {
					assertions.Equal(test.Expect.Receive, money.Format(locked.Rounded().ReceiveAmount, to))
				}

				req := SendRequest(locked.Id)
				req.PreferredRail = test.PreferredRail
				if test.Card != "" {
					req.CardToken = test.Card
				}

				tx, err := env.Controller.Send(ctx, &req)
				if test.Expect.Error != "" {
					assertions.True(rails.IsKind(err, test.Expect.Error), "expecting %s, got %v", test.Expect.Error, err)
				} else if !assertions.Nil(err, "failed to send") {
					return
				}
				assertions.Equal(test.Expect.Status, tx.Status, "invalid status")
				if test.Expect.Rail != "" {
					assertions.Equal(test.Expect.Rail, tx.SelectedRail, "invalid rail")
				}
				assertions.Equal(test.Expect.Fallback, tx.Routing.FallbackTriggered, "invalid fallback")
				assertions.Equal(test.Expect.Reason, tx.Routing.FallbackReason, "invalid fallback reason")
				assertions.Equal(test.Expect.Hybrid, tx.Routing.Hybrid, "invalid hybrid")
				assertions.True(locked.SendAmount.Equal(tx.SendAmount))

				queried, err := env.Controller.Query(ctx, tx.Id)
				assertions.Nil(err, "failed to query transfer")
				assertions.Equal(tx.Status, queried.Status)

				if tx.Status == transfer.StatusFailed {
					assertions.NotEmpty(queried.FailureReason)
					return
				}

				t.Log("[*] Delivering provider confirmations")
				confirmations := []struct {
					Type   transfer.EventType
					Id     string
					Status string
					Expect transfer.Status
				}{
					{transfer.EventPayments, tx.ProviderRef.PaymentId, "confirmed", transfer.StatusPaymentConfirmed},
					{transfer.EventTransfers, tx.ProviderRef.TransferId, "complete", transfer.StatusPayingOut},
					{transfer.EventPayouts, tx.ProviderRef.PayoutId, "complete", transfer.StatusCompleted},
				}
				for _, confirmation := range confirmations {
					result, err := env.Deliver(ctx, confirmation.Type, confirmation.Id, confirmation.Status)
					assertions.Nil(err, "failed to deliver %s", confirmation.Type)
					assertions.True(result.Outcome.Applied, "%s not applied", confirmation.Type)
					assertions.Equal(confirmation.Expect, result.Outcome.To)
				}

				t.Log("[*] Processing notifications")
				report, err := env.Controller.ProcessNotifications(ctx)
				assertions.Nil(err, "failed to process notifications")
				// sender email and sms plus recipient email, for each of the four transitions
				assertions.Equal(12, report.Delivered)
				assertions.Len(env.Events.Events(events.TypeNotification), report.Delivered)

				t.Log("[*] Redelivering the last confirmation")
				last := confirmations[len(confirmations)-1]
				result, err := env.Deliver(ctx, last.Type, last.Id, last.Status)
				assertions.Nil(err, "failed to redeliver")
				assertions.False(result.Outcome.Applied)

				stats, err := env.Controller.NotificationStats(ctx)
				assertions.Nil(err, "failed to compute stats")
				assertions.Equal(notify.Stats{Delivered: 12, Attempts: 12}, stats)

				final, err := env.Controller.Query(ctx, tx.Id)
				assertions.Nil(err, "failed to query transfer")
				assertions.Equal(transfer.StatusCompleted, final.Status)
			})
		}
	})
	t.Run("Locks", func(t *testing.T) {
		lock := func(t *testing.T, env *Environment, amount string) (locked quote.LockedRate) {
			locked, err := env.Controller.LockRate(context.TODO(), quote.LockRequest{From: "USD", To: "EUR", Amount: decimal.RequireFromString(amount)})
			if err != nil {
				t.Fatalf("failed to lock rate: %v", err)
			}
			return locked
		}

		t.Run("SingleUse", func(t *testing.T) {
			assertions := assert.New(t)
			env := NewEnvironment(t, rail)
			req := SendRequest(lock(t, &env, "100").Id)

			_, err := env.Controller.Send(context.TODO(), &req)
			assertions.Nil(err, "failed to send")
			_, err = env.Controller.Send(context.TODO(), &req)
			assertions.ErrorIs(err, quote.ErrRateConsumed)
			assertions.Equal(1, env.Acquirer.Charges())
		})
		t.Run("Expired", func(t *testing.T) {
			assertions := assert.New(t)
			env := NewEnvironment(t, rail)
			req := SendRequest(lock(t, &env, "100").Id)

			env.Clock.Advance(quote.DefaultLockDuration + time.Second)
			_, err := env.Controller.Send(context.TODO(), &req)
			assertions.ErrorIs(err, quote.ErrRateNotFound)
			assertions.Zero(env.Acquirer.Charges())
		})
		t.Run("KYCRequired", func(t *testing.T) {
			assertions := assert.New(t)
			env := NewEnvironment(t, rail)
			req := SendRequest(lock(t, &env, "100").Id)

			req.KYCApproved = false
			_, err := env.Controller.Send(context.TODO(), &req)
			assertions.ErrorIs(err, gateway.ErrKYCRequired)

			req.KYCApproved = true
			_, err = env.Controller.Send(context.TODO(), &req)
			assertions.Nil(err, "a rejected request does not consume the lock")
		})
		t.Run("SenderId", func(t *testing.T) {
			assertions := assert.New(t)
			env := NewEnvironment(t, rail)
			req := SendRequest(lock(t, &env, "100").Id)

			req.Sender.UserId = ""
			tx, err := env.Controller.Send(context.TODO(), &req)
			if !assertions.Nil(err, "failed to send") {
				return
			}
			assertions.Equal("user_1", tx.Sender.UserId)
		})
		t.Run("OutOfRange", func(t *testing.T) {
			assertions := assert.New(t)
			env := NewEnvironment(t, rail)
			req := SendRequest(lock(t, &env, "60000").Id)

			_, err := env.Controller.Send(context.TODO(), &req)
			assertions.ErrorIs(err, gateway.ErrAmountOutOfRange)
		})
		t.Run("Purge", func(t *testing.T) {
			assertions := assert.New(t)
			env := NewEnvironment(t, rail)
			locked := lock(t, &env, "100")

			env.Clock.Advance(quote.DefaultLockDuration + time.Second)
			purged, err := env.Controller.ProcessExpiredLocks(context.TODO())
			assertions.Nil(err, "failed to purge")
			assertions.GreaterOrEqual(purged, 0)

			_, err = env.Controller.LockedRate(context.TODO(), locked.Id)
			assertions.ErrorIs(err, quote.ErrRateNotFound)
		})
	})
	t.Run("Webhooks", func(t *testing.T) {
		t.Run("InvalidSignature", func(t *testing.T) {
			assertions := assert.New(t)
			env := NewEnvironment(t, rail)

			payload := []byte(`{"Type":"payouts","Data":{"id":"p1","status":"complete"}}`)
			_, err := env.Controller.Webhook(context.TODO(), "payouts", payload, webhook.Sign([]byte("forged"), payload))
			assertions.ErrorIs(err, webhook.ErrInvalidSignature)
		})
		t.Run("Unknown", func(t *testing.T) {
			assertions := assert.New(t)
			env := NewEnvironment(t, rail)

			result, err := env.Deliver(context.TODO(), "disputes", "dp_1", "opened")
			assertions.Nil(err, "unknown events are acknowledged")
			assertions.False(result.Recognized)

			result, err = env.Deliver(context.TODO(), transfer.EventPayouts, "po_missing", "complete")
			assertions.Nil(err, "unknown references are acknowledged")
			assertions.False(result.Outcome.Found)
		})
	})
}
