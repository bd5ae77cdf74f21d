package custodial_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/RogueTeam/remit/rails"
	"github.com/RogueTeam/remit/rails/custodial"
	"github.com/RogueTeam/remit/rails/custodial/custodialtest"
	"github.com/RogueTeam/remit/rails/mock"
	"github.com/RogueTeam/remit/rails/testsuite"
	"github.com/RogueTeam/remit/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func Test_Client(t *testing.T) {
	backend := mock.NewCustodial()
	backend.SetRate("USD", "EUR", decimal.RequireFromString("0.85"))
	server := custodialtest.NewServer(backend)
	defer server.Close()

	client, err := custodial.New(custodial.Config{
		Url:               server.URL,
		Client:            server.Client(),
		RequestsPerSecond: 1_000,
	})
	if !assert.Nil(t, err, "failed to create client") {
		return
	}

	testsuite.TestCustodial(t, client)

	t.Run("ProviderErrors", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		backend.Fail(mock.CallCreatePayment, rails.NewError(rails.KindBridgeUnavailable, "maintenance"))
		_, err := client.CreatePayment(ctx, rails.PaymentRequest{IdempotencyKey: "x", Amount: decimal.NewFromInt(1), Currency: "USD"})
		assertions.True(rails.IsKind(err, rails.KindBridgeUnavailable), "got %v", err)
		assertions.True(rails.Classify(err).FallbackEligible)

		_, err = client.Rate(ctx, "USD", "XXX")
		assertions.True(rails.IsKind(err, rails.KindValidation), "got %v", err)
	})
	t.Run("Unreachable", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		offline, err := custodial.New(custodial.Config{Url: "http://127.0.0.1:1", Timeout: time.Second})
		assertions.Nil(err, "failed to create client")

		_, err = offline.Rate(ctx, "USD", "EUR")
		classified := rails.Classify(err)
		assertions.Equal(rails.KindUnknown, classified.Kind)
		assertions.True(classified.Retryable)
	})
}

func Test_ClassifyResponse(t *testing.T) {
	type Test struct {
		Status     int
		Body       string
		RetryAfter string
		Expect     rails.Kind
		Delay      time.Duration
	}
	tests := []Test{
		{Status: http.StatusTooManyRequests, RetryAfter: "30", Expect: rails.KindRateLimited, Delay: 30 * time.Second},
		{Status: http.StatusServiceUnavailable, Expect: rails.KindBridgeUnavailable},
		{Status: http.StatusPaymentRequired, Expect: rails.KindInsufficientFunds},
		{Status: http.StatusBadRequest, Expect: rails.KindValidation},
		{Status: http.StatusInternalServerError, Expect: rails.KindUnknown},
		{Status: http.StatusBadRequest, Body: `{"code":"INSUFFICIENT_GAS"}`, Expect: rails.KindInsufficientGas},
		{Status: http.StatusInternalServerError, Body: `{"code":"SOMETHING_NEW"}`, Expect: rails.KindUnknown},
	}
	for _, test := range tests {
		t.Run(http.StatusText(test.Status)+test.Body, func(t *testing.T) {
			assertions := assert.New(t)

			e := custodial.ClassifyResponse(test.Status, []byte(test.Body), test.RetryAfter)
			assertions.Equal(test.Expect, e.Kind)
			assertions.NotEmpty(e.UserMessage)
			if test.Delay > 0 {
				assertions.Equal(test.Delay, e.SuggestedDelay)
			}
		})
	}
}
