package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RogueTeam/remit/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxAttempts     = 3
	DefaultRetention       = time.Hour
	DefaultFailedRetention = 7 * 24 * time.Hour
	DefaultConcurrency     = 8
)

// Delay before the attempt following the n-th failure. The last value repeats
var DefaultLadder = []time.Duration{time.Second, 5 * time.Second, 15 * time.Second, time.Minute, 5 * time.Minute}

type (
	// Values available to templates
	TransferContext struct {
		TransactionId   uuid.UUID
		Status          string
		SenderName      string
		RecipientName   string
		SendAmount      string
		SendCurrency    string
		ReceiveAmount   string
		ReceiveCurrency string
		FailureReason   string
	}
	Config struct {
		Queue       Queue
		Preferences Preferences
		Templates   Templates
		Senders     map[Channel]Sender
		Clock       utils.Clock
		Logger      logrus.FieldLogger
		MaxAttempts int
		Ladder      []time.Duration
		// How long delivered jobs are kept before Reap removes them
		Retention time.Duration
		// Same for jobs that ran out of attempts
		FailedRetention time.Duration
		// Deliveries in flight during a sweep
		Concurrency int
	}
	SweepReport struct {
		Attempted int `json:"attempted"`
		Delivered int `json:"delivered"`
		Failed    int `json:"failed"`
		// Jobs that failed their last attempt during this sweep
		Exhausted int `json:"exhausted"`
	}
	Stats struct {
		Pending   int `json:"pending"`
		Delivered int `json:"delivered"`
		// Failed jobs still scheduled for another attempt
		Retrying  int `json:"retrying"`
		Exhausted int `json:"exhausted"`
		Attempts  int `json:"attempts"`
	}
)

func (c *TransferContext) vars(recipient Recipient) (vars map[string]string) {
	return map[string]string{
		"name":             recipient.Name,
		"transaction_id":   c.TransactionId.String(),
		"status":           c.Status,
		"sender_name":      c.SenderName,
		"recipient_name":   c.RecipientName,
		"send_amount":      c.SendAmount,
		"send_currency":    c.SendCurrency,
		"receive_amount":   c.ReceiveAmount,
		"receive_currency": c.ReceiveCurrency,
		"failure_reason":   c.FailureReason,
	}
}

// Engine owns notification jobs from creation to reaping
type Engine struct {
	queue           Queue
	preferences     Preferences
	templates       Templates
	senders         map[Channel]Sender
	clock           utils.Clock
	logger          logrus.FieldLogger
	maxAttempts     int
	ladder          []time.Duration
	retention       time.Duration
	failedRetention time.Duration
	concurrency     int
	sweeping        sync.Mutex
}

func New(config Config) (e *Engine) {
	e = &Engine{
		queue:           config.Queue,
		preferences:     config.Preferences,
		templates:       config.Templates,
		senders:         config.Senders,
		clock:           config.Clock,
		logger:          config.Logger,
		maxAttempts:     config.MaxAttempts,
		ladder:          config.Ladder,
		retention:       config.Retention,
		failedRetention: config.FailedRetention,
		concurrency:     config.Concurrency,
	}
	if e.preferences == nil {
		e.preferences = NewStaticPreferences(nil)
	}
	if e.templates == nil {
		e.templates = DefaultTemplates
	}
	if e.clock == nil {
		e.clock = utils.SystemClock{}
	}
	if e.logger == nil {
		e.logger = logrus.StandardLogger()
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = DefaultMaxAttempts
	}
	if len(e.ladder) == 0 {
		e.ladder = DefaultLadder
	}
	if e.retention <= 0 {
		e.retention = DefaultRetention
	}
	if e.failedRetention <= 0 {
		e.failedRetention = DefaultFailedRetention
	}
	if e.concurrency <= 0 {
		e.concurrency = DefaultConcurrency
	}
	return e
}

// Notify queues one job per recipient and channel the recipient accepts and
// can be reached on. It never delivers
func (e *Engine) Notify(ctx context.Context, eventType string, tc TransferContext, recipients []Recipient, channels []Channel) (created int, err error) {
	class := ClassOf(eventType)
	now := e.clock.Now()

	for _, recipient := range recipients {
		for _, channel := range channels {
			address := recipient.Address(channel)
			if address == "" {
				continue
			}
			allowed, err := e.preferences.Allows(ctx, recipient.UserId, class, channel)
			if err != nil {
				return created, fmt.Errorf("failed to check preferences: %w", err)
			}
			if !allowed {
				continue
			}
			template, found := e.templates.Lookup(eventType, channel)
			if !found {
				e.logger.WithFields(logrus.Fields{"event": eventType, "channel": channel}).Debug("no template")
				continue
			}

			vars := tc.vars(recipient)
			job := Job{
				Id:            uuid.New(),
				TransactionId: tc.TransactionId,
				EventType:     eventType,
				Channel:       channel,
				Address:       address,
				Subject:       Render(template.Subject, vars),
				Body:          Render(template.Body, vars),
				MaxAttempts:   e.maxAttempts,
				Status:        JobPending,
				NextAttemptAt: now,
				CreatedAt:     now,
			}
			err = e.queue.Put(ctx, job)
			if err != nil {
				return created, fmt.Errorf("failed to queue job: %w", err)
			}
			created++
		}
	}
	return created, nil
}

// deliver makes one attempt and persists the result
func (e *Engine) deliver(ctx context.Context, job Job) (delivered bool, err error) {
	logger := e.logger.WithFields(logrus.Fields{
		"job_id":         job.Id,
		"transaction_id": job.TransactionId,
		"channel":        job.Channel,
	})

	job.Attempts++
	sender, found := e.senders[job.Channel]
	if found {
		err = sender.Send(ctx, job.message())
	} else {
		err = fmt.Errorf("%w: %s", ErrNoSender, job.Channel)
	}

	now := e.clock.Now()
	if err == nil {
		job.Status = JobDelivered
		job.DeliveredAt = now
		job.LastError = ""
	} else {
		job.Status = JobFailed
		job.LastError = err.Error()
		if job.Attempts < job.MaxAttempts {
			delay := utils.At(e.ladder, job.Attempts-1)
			job.NextAttemptAt = now.Add(delay)
			logger.WithError(err).Warnf("Attempt %d failed, retrying in %v", job.Attempts, delay)
		} else {
			logger.WithError(err).Errorf("All %d attempts failed", job.Attempts)
		}
	}

	putErr := e.queue.Put(ctx, job)
	if putErr != nil {
		return false, fmt.Errorf("failed to save job: %w", putErr)
	}
	return err == nil, nil
}

// Sweep attempts every due job once. Overlapping sweeps are skipped
func (e *Engine) Sweep(ctx context.Context) (report SweepReport, err error) {
	if !e.sweeping.TryLock() {
		return report, nil
	}
	defer e.sweeping.Unlock()

	jobs, err := e.queue.Due(ctx, e.clock.Now())
	if err != nil {
		return report, err
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs []error
	)
	pool := utils.NewJobPool(e.concurrency)
	for _, job := range jobs {
		pool.Get()
		wg.Add(1)
		go func() {
			defer pool.Put()
			defer wg.Done()

			delivered, err := e.deliver(ctx, job)

			mu.Lock()
			defer mu.Unlock()
			report.Attempted++
			switch {
			case err != nil:
				errs = append(errs, err)
			case delivered:
				report.Delivered++
			default:
				report.Failed++
				if job.Attempts+1 >= job.MaxAttempts {
					report.Exhausted++
				}
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		return report, fmt.Errorf("failed to save %d jobs: %w", len(errs), errs[0])
	}
	return report, nil
}

// Reap deletes delivered jobs past the retention, and exhausted ones past theirs
func (e *Engine) Reap(ctx context.Context) (reaped int, err error) {
	now := e.clock.Now()

	var expired []uuid.UUID
	err = e.queue.All(ctx, func(job Job) (err error) {
		switch {
		case job.Status == JobDelivered && !now.Before(job.DeliveredAt.Add(e.retention)):
			expired = append(expired, job.Id)
		case job.Exhausted() && !now.Before(job.CreatedAt.Add(e.failedRetention)):
			expired = append(expired, job.Id)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan jobs: %w", err)
	}

	for _, id := range expired {
		err = e.queue.Delete(ctx, id)
		if err != nil {
			return reaped, err
		}
		reaped++
	}
	return reaped, nil
}

func (e *Engine) Stats(ctx context.Context) (stats Stats, err error) {
	err = e.queue.All(ctx, func(job Job) (err error) {
		stats.Attempts += job.Attempts
		switch {
		case job.Status == JobPending:
			stats.Pending++
		case job.Status == JobDelivered:
			stats.Delivered++
		case job.Exhausted():
			stats.Exhausted++
		default:
			stats.Retrying++
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("failed to compute stats: %w", err)
	}
	return stats, nil
}
