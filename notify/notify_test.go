package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RogueTeam/remit/events"
	"github.com/RogueTeam/remit/notify"
	"github.com/RogueTeam/remit/notify/mocks"
	"github.com/RogueTeam/remit/rails"
	"github.com/RogueTeam/remit/routing"
	"github.com/RogueTeam/remit/transfer"
	"github.com/RogueTeam/remit/utils"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func openDB(t *testing.T) (db *badger.DB) {
	options := badger.
		DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	db, err := badger.Open(options)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	db     *badger.DB
	clock  *utils.FakeClock
	queue  *notify.BadgerQueue
	engine *notify.Engine
}

func newFixture(t *testing.T, senders map[notify.Channel]notify.Sender, preferences notify.Preferences) (f fixture) {
	logger, _ := test.NewNullLogger()

	f.db = openDB(t)
	f.clock = utils.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	f.queue = notify.NewBadgerQueue(f.db)
	f.engine = notify.New(notify.Config{
		Queue:       f.queue,
		Preferences: preferences,
		Senders:     senders,
		Clock:       f.clock,
		Logger:      logger,
	})
	return f
}

var (
	sender = notify.Recipient{
		UserId: "user_1",
		Name:   "Ada",
		Email:  "ada@example.com",
		Phone:  "+15550000001",
	}
	beneficiary = notify.Recipient{
		Name:  "Grace",
		Email: "grace@example.com",
	}
)

func transferContext(id uuid.UUID) (tc notify.TransferContext) {
	return notify.TransferContext{
		TransactionId:   id,
		RecipientName:   "Grace",
		SendAmount:      "100.00",
		SendCurrency:    "USD",
		ReceiveAmount:   "79.36",
		ReceiveCurrency: "EUR",
	}
}

func Test_Render(t *testing.T) {
	type Test struct {
		Name   string
		Text   string
		Vars   map[string]string
		Expect string
	}
	tests := []Test{
		{Name: "Simple", Text: "Hi {{name}}", Vars: map[string]string{"name": "Ada"}, Expect: "Hi Ada"},
		{Name: "Spaces", Text: "{{ amount }} {{currency}}", Vars: map[string]string{"amount": "10", "currency": "EUR"}, Expect: "10 EUR"},
		{Name: "Missing", Text: "Hi {{name}}!", Vars: nil, Expect: "Hi !"},
		{Name: "Repeated", Text: "{{a}}{{a}}", Vars: map[string]string{"a": "x"}, Expect: "xx"},
		{Name: "NotAPlaceholder", Text: "{name} {{}}", Vars: map[string]string{"name": "Ada"}, Expect: "{name} {{}}"},
	}
	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			assertions := assert.New(t)
			assertions.Equal(test.Expect, notify.Render(test.Text, test.Vars))
		})
	}
}

func Test_Notify(t *testing.T) {
	t.Run("RecipientTimesChannel", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(t, nil, nil)

		id := uuid.New()
		created, err := f.engine.Notify(context.TODO(), notify.EventCompleted, transferContext(id), []notify.Recipient{sender, beneficiary}, notify.Channels)
		assertions.Nil(err, "failed to notify")
		// sender: email, sms. beneficiary: email. Nobody has a push device
		assertions.Equal(3, created)

		jobs, err := f.queue.Due(context.TODO(), f.clock.Now())
		assertions.Nil(err, "failed to list due jobs")
		assertions.Len(jobs, 3)
		for _, job := range jobs {
			assertions.Equal(id, job.TransactionId)
			assertions.Equal(notify.JobPending, job.Status)
			assertions.Equal(notify.DefaultMaxAttempts, job.MaxAttempts)
			assertions.Contains(job.Body, "79.36 EUR")
			assertions.NotContains(job.Body, "{{")
		}
	})
	t.Run("PreferencesDisabled", func(t *testing.T) {
		assertions := assert.New(t)
		preferences := notify.NewStaticPreferences(map[string]notify.Preference{
			"user_1": {Disabled: []notify.Class{notify.ClassStatusUpdates}},
		})
		f := newFixture(t, nil, preferences)

		created, err := f.engine.Notify(context.TODO(), notify.EventCompleted, transferContext(uuid.New()), []notify.Recipient{sender}, notify.Channels)
		assertions.Nil(err, "failed to notify")
		assertions.Zero(created)

		created, err = f.engine.Notify(context.TODO(), notify.EventFailed, transferContext(uuid.New()), []notify.Recipient{sender}, notify.Channels)
		assertions.Nil(err, "failed to notify")
		assertions.Equal(2, created, "alerts are a separate class")
	})
	t.Run("ChannelRestricted", func(t *testing.T) {
		assertions := assert.New(t)
		preferences := notify.NewStaticPreferences(nil)
		preferences.Set("user_1", notify.Preference{Channels: []notify.Channel{notify.ChannelSMS}})
		f := newFixture(t, nil, preferences)

		created, err := f.engine.Notify(context.TODO(), notify.EventCompleted, transferContext(uuid.New()), []notify.Recipient{sender}, notify.Channels)
		assertions.Nil(err, "failed to notify")
		assertions.Equal(1, created)
	})
	t.Run("PreferenceError", func(t *testing.T) {
		assertions := assert.New(t)
		ctrl := gomock.NewController(t)
		preferences := mocks.NewMockPreferences(ctrl)
		preferences.EXPECT().
			Allows(gomock.Any(), "user_1", notify.ClassStatusUpdates, notify.ChannelEmail).
			Return(false, errors.New("profile service down"))

		f := newFixture(t, nil, preferences)
		created, err := f.engine.Notify(context.TODO(), notify.EventCompleted, transferContext(uuid.New()), []notify.Recipient{sender}, []notify.Channel{notify.ChannelEmail})
		assertions.NotNil(err)
		assertions.Zero(created)
	})
	t.Run("UnknownEvent", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(t, nil, nil)

		created, err := f.engine.Notify(context.TODO(), "transfer.unknown", transferContext(uuid.New()), []notify.Recipient{sender}, notify.Channels)
		assertions.Nil(err, "missing templates are skipped")
		assertions.Zero(created)
	})
}

func Test_Sweep(t *testing.T) {
	t.Run("Delivered", func(t *testing.T) {
		assertions := assert.New(t)
		ctrl := gomock.NewController(t)
		email := mocks.NewMockSender(ctrl)
		email.EXPECT().
			Send(gomock.Any(), gomock.Cond(func(msg notify.Message) bool { return msg.Address == "grace@example.com" })).
			Return(nil).
			Times(1)

		f := newFixture(t, map[notify.Channel]notify.Sender{notify.ChannelEmail: email}, nil)
		_, err := f.engine.Notify(context.TODO(), notify.EventCompleted, transferContext(uuid.New()), []notify.Recipient{beneficiary}, notify.Channels)
		assertions.Nil(err, "failed to notify")

		report, err := f.engine.Sweep(context.TODO())
		assertions.Nil(err, "failed to sweep")
		assertions.Equal(notify.SweepReport{Attempted: 1, Delivered: 1}, report)

		report, err = f.engine.Sweep(context.TODO())
		assertions.Nil(err, "failed to sweep")
		assertions.Zero(report.Attempted, "delivered jobs are not attempted again")
	})
	t.Run("Ladder", func(t *testing.T) {
		assertions := assert.New(t)
		ctrl := gomock.NewController(t)
		email := mocks.NewMockSender(ctrl)
		email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("mailbox unavailable")).Times(notify.DefaultMaxAttempts)

		f := newFixture(t, map[notify.Channel]notify.Sender{notify.ChannelEmail: email}, nil)
		_, err := f.engine.Notify(context.TODO(), notify.EventCompleted, transferContext(uuid.New()), []notify.Recipient{beneficiary}, notify.Channels)
		assertions.Nil(err, "failed to notify")

		sweep := func() (report notify.SweepReport) {
			report, err := f.engine.Sweep(context.TODO())
			assertions.Nil(err, "failed to sweep")
			return report
		}

		assertions.Equal(notify.SweepReport{Attempted: 1, Failed: 1}, sweep())
		assertions.Zero(sweep().Attempted, "no immediate retry")

		f.clock.Advance(time.Second)
		assertions.Equal(notify.SweepReport{Attempted: 1, Failed: 1}, sweep())

		f.clock.Advance(4 * time.Second)
		assertions.Zero(sweep().Attempted, "second delay is 5s")
		f.clock.Advance(time.Second)
		assertions.Equal(notify.SweepReport{Attempted: 1, Failed: 1, Exhausted: 1}, sweep())

		f.clock.Advance(time.Hour)
		assertions.Zero(sweep().Attempted, "exhausted jobs stay failed")

		stats, err := f.engine.Stats(context.TODO())
		assertions.Nil(err, "failed to compute stats")
		assertions.Equal(notify.Stats{Exhausted: 1, Attempts: 3}, stats)
	})
	t.Run("Recovers", func(t *testing.T) {
		assertions := assert.New(t)
		ctrl := gomock.NewController(t)
		email := mocks.NewMockSender(ctrl)
		gomock.InOrder(
			email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("timeout")),
			email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil),
		)

		f := newFixture(t, map[notify.Channel]notify.Sender{notify.ChannelEmail: email}, nil)
		_, err := f.engine.Notify(context.TODO(), notify.EventCompleted, transferContext(uuid.New()), []notify.Recipient{beneficiary}, notify.Channels)
		assertions.Nil(err, "failed to notify")

		_, err = f.engine.Sweep(context.TODO())
		assertions.Nil(err)
		stats, _ := f.engine.Stats(context.TODO())
		assertions.Equal(1, stats.Retrying)

		f.clock.Advance(time.Second)
		report, err := f.engine.Sweep(context.TODO())
		assertions.Nil(err)
		assertions.Equal(1, report.Delivered)

		stats, _ = f.engine.Stats(context.TODO())
		assertions.Equal(notify.Stats{Delivered: 1, Attempts: 2}, stats)
	})
	t.Run("NoSender", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(t, nil, nil)

		_, err := f.engine.Notify(context.TODO(), notify.EventCompleted, transferContext(uuid.New()), []notify.Recipient{beneficiary}, notify.Channels)
		assertions.Nil(err, "failed to notify")

		report, err := f.engine.Sweep(context.TODO())
		assertions.Nil(err, "delivery failures are not sweep errors")
		assertions.Equal(1, report.Failed)
	})
}

func Test_Reap(t *testing.T) {
	assertions := assert.New(t)
	logger, _ := test.NewNullLogger()
	f := newFixture(t, map[notify.Channel]notify.Sender{notify.ChannelEmail: &notify.LogSender{Logger: logger}}, nil)

	_, err := f.engine.Notify(context.TODO(), notify.EventCompleted, transferContext(uuid.New()), []notify.Recipient{beneficiary}, notify.Channels)
	assertions.Nil(err, "failed to notify")
	_, err = f.engine.Sweep(context.TODO())
	assertions.Nil(err, "failed to sweep")

	reaped, err := f.engine.Reap(context.TODO())
	assertions.Nil(err, "failed to reap")
	assertions.Zero(reaped, "delivered jobs are retained for a while")

	f.clock.Advance(notify.DefaultRetention)
	reaped, err = f.engine.Reap(context.TODO())
	assertions.Nil(err, "failed to reap")
	assertions.Equal(1, reaped)

	stats, err := f.engine.Stats(context.TODO())
	assertions.Nil(err)
	assertions.Equal(notify.Stats{}, stats)
}

func Test_PublisherSender(t *testing.T) {
	assertions := assert.New(t)

	recorder := &events.Recorder{}
	clock := utils.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	s := &notify.PublisherSender{Publisher: recorder, Clock: clock}

	msg := notify.Message{JobId: uuid.New(), TransactionId: uuid.New(), Channel: notify.ChannelSMS, Address: "+15550000001", Body: "done"}
	assertions.Nil(s.Send(context.TODO(), msg), "failed to send")

	published := recorder.Events(events.TypeNotification)
	if assertions.Len(published, 1) {
		assertions.Equal(msg.TransactionId.String(), published[0].Key)
		assertions.JSONEq(`{"jobId":"`+msg.JobId.String()+`","transactionId":"`+msg.TransactionId.String()+`","channel":"sms","address":"+15550000001","body":"done"}`, string(published[0].Payload))
	}

	recorder.Err = errors.New("broker down")
	assertions.NotNil(s.Send(context.TODO(), msg))
}

// A payouts complete event on a transaction paying out completes it and
// queues one job per reachable recipient and channel. Redelivery queues none
func Test_StatusChanged(t *testing.T) {
	assertions := assert.New(t)
	logger, _ := test.NewNullLogger()
	f := newFixture(t, nil, nil)

	machine := transfer.New(transfer.Config{
		Store:    transfer.NewBadgerStore(f.db),
		Notifier: f.engine,
		Clock:    f.clock,
		Logger:   logger,
	})

	draft := transfer.Draft{
		Id:              uuid.New(),
		SenderId:        "user_1",
		Sender:          transfer.Contact{UserId: "user_1", Name: "Ada", Email: "ada@example.com", Phone: "+15550000001"},
		Recipient:       transfer.Contact{Name: "Grace", Email: "grace@example.com"},
		SendAmount:      decimal.NewFromInt(100),
		SendCurrency:    "USD",
		ReceiveAmount:   decimal.RequireFromString("79.355"),
		ReceiveCurrency: "EUR",
		ExchangeRate:    decimal.RequireFromString("0.85"),
	}
	_, err := machine.Record(context.TODO(), draft, routing.Result{
		TransactionId: draft.Id,
		SelectedRail:  rails.RailCustodial,
		ProviderRef:   rails.ProviderRef{PaymentId: "pay_1", TransferId: "tr_1", PayoutId: "p1"},
	})
	if !assertions.Nil(err, "failed to record") {
		return
	}
	_, err = machine.HandleEvent(context.TODO(), transfer.Event{Type: transfer.EventPayouts, ObjectId: "p1", Status: "pending"})
	assertions.Nil(err, "failed to move to paying out")

	count := func() (jobs int) {
		stats, err := f.engine.Stats(context.TODO())
		assertions.Nil(err)
		return stats.Pending
	}
	before := count()

	event := transfer.Event{Type: transfer.EventPayouts, ObjectId: "p1", Status: "complete"}
	outcome, err := machine.HandleEvent(context.TODO(), event)
	assertions.Nil(err, "failed to handle")
	assertions.Equal(transfer.StatusCompleted, outcome.To)
	assertions.Equal(before+3, count())

	jobs, err := f.queue.Due(context.TODO(), f.clock.Now())
	assertions.Nil(err)
	var completed int
	for _, job := range jobs {
		if job.EventType == notify.EventCompleted {
			completed++
			assertions.Contains(job.Body, "Grace received 79.36 EUR")
		}
	}
	assertions.Equal(3, completed)

	_, err = machine.HandleEvent(context.TODO(), event)
	assertions.Nil(err, "failed to handle redelivery")
	assertions.Equal(before+3, count(), "redelivery queues nothing")
}

func Test_StatusChangedSenderId(t *testing.T) {
	assertions := assert.New(t)

	preferences := notify.NewStaticPreferences(map[string]notify.Preference{
		"user_1": {Disabled: []notify.Class{notify.ClassStatusUpdates}},
	})
	f := newFixture(t, nil, preferences)

	// Only the transaction carries the sender's user id
	tx := transfer.Transaction{
		Id:              uuid.New(),
		SenderId:        "user_1",
		Sender:          transfer.Contact{Name: "Ada", Email: "ada@example.com", Phone: "+15550000001"},
		Recipient:       transfer.Contact{Name: "Grace", Email: "grace@example.com"},
		SendAmount:      decimal.NewFromInt(100),
		SendCurrency:    "USD",
		ReceiveAmount:   decimal.RequireFromString("79.355"),
		ReceiveCurrency: "EUR",
		Status:          transfer.StatusPaymentProcessing,
	}
	err := f.engine.StatusChanged(context.TODO(), tx, transfer.StatusPending)
	assertions.Nil(err, "failed to notify")

	jobs, err := f.queue.Due(context.TODO(), f.clock.Now())
	assertions.Nil(err)
	if assertions.Len(jobs, 1, "only the recipient is notified") {
		assertions.Equal("grace@example.com", jobs[0].Address)
	}
}
