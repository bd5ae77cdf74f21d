package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrJobNotFound = errors.New("notification job not found")
	ErrNoSender    = errors.New("no sender for channel")
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

var Channels = []Channel{ChannelEmail, ChannelSMS, ChannelPush}

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobDelivered JobStatus = "delivered"
	JobFailed    JobStatus = "failed"
)

func JobKey(id uuid.UUID) (key []byte) {
	return []byte(fmt.Sprintf("/jobs/%s", id))
}

// DueKey indexes jobs that still have delivery attempts left
func DueKey(id uuid.UUID) (key []byte) {
	return []byte(fmt.Sprintf("/jobs-due/%s", id))
}

type (
	Recipient struct {
		// Empty for parties without an account. They receive everything
		UserId string
		Name   string
		Email  string
		Phone  string
		// Push device token
		Device string
	}
	Job struct {
		Id            uuid.UUID `json:"id"`
		TransactionId uuid.UUID `json:"transactionId"`
		EventType     string    `json:"eventType"`
		Channel       Channel   `json:"channel"`
		Address       string    `json:"address"`
		Subject       string    `json:"subject,omitempty"`
		Body          string    `json:"body"`
		Attempts      int       `json:"attempts"`
		MaxAttempts   int       `json:"maxAttempts"`
		Status        JobStatus `json:"status"`
		NextAttemptAt time.Time `json:"nextAttemptAt"`
		LastError     string    `json:"lastError,omitempty"`
		CreatedAt     time.Time `json:"createdAt"`
		DeliveredAt   time.Time `json:"deliveredAt,omitzero"`
	}
)

// Address returns where channel reaches r, empty when it cannot
func (r Recipient) Address(channel Channel) (address string) {
	switch channel {
	case ChannelEmail:
		return r.Email
	case ChannelSMS:
		return r.Phone
	case ChannelPush:
		return r.Device
	default:
		return ""
	}
}

// Exhausted reports a failed job with no attempts left
func (j *Job) Exhausted() (exhausted bool) {
	return j.Status == JobFailed && j.Attempts >= j.MaxAttempts
}

// Due reports whether the sweep should attempt j at now
func (j *Job) Due(now time.Time) (due bool) {
	return j.Status != JobDelivered && !j.Exhausted() && !now.Before(j.NextAttemptAt)
}

func (j *Job) Bytes() (bytes []byte) {
	bytes, _ = json.Marshal(j)
	return bytes
}

func (j *Job) FromBytes(b []byte) (err error) {
	return json.Unmarshal(b, j)
}
