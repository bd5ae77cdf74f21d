// Package custodialtest serves the custodian HTTP API for tests.
package custodialtest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/RogueTeam/remit/rails"
	"github.com/RogueTeam/remit/rails/custodial"
	"github.com/RogueTeam/remit/rails/mock"
)

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var providerErr *rails.Error
	if errors.As(err, &providerErr) {
		switch providerErr.Kind {
		case rails.KindValidation:
			status = http.StatusUnprocessableEntity
		case rails.KindRateLimited:
			status = http.StatusTooManyRequests
		case rails.KindBridgeUnavailable:
			status = http.StatusServiceUnavailable
		}
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(custodial.ErrorBody{Code: string(rails.Classify(err).Kind), Message: err.Error()})
}

func writeObject(w http.ResponseWriter, op rails.Operation, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(custodial.Envelope[custodial.Object]{Data: custodial.Object{Id: op.Id, Status: op.Status}})
}

// NewServer serves the custodian HTTP API on top of the in memory rail
func NewServer(backend *mock.Custodial) (server *httptest.Server) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+custodial.PaymentsPath, func(w http.ResponseWriter, r *http.Request) {
		var body custodial.PaymentBody
		json.NewDecoder(r.Body).Decode(&body)
		op, err := backend.CreatePayment(r.Context(), rails.PaymentRequest{
			IdempotencyKey: r.Header.Get(custodial.IdempotencyHeader),
			ChargeId:       body.ChargeId,
			Amount:         body.Amount.Amount,
			Currency:       body.Amount.Currency,
		})
		writeObject(w, op, err)
	})
	mux.HandleFunc("POST "+custodial.TransfersPath, func(w http.ResponseWriter, r *http.Request) {
		var body custodial.TransferBody
		json.NewDecoder(r.Body).Decode(&body)
		op, err := backend.CreateWalletTransfer(r.Context(), rails.WalletTransferRequest{
			IdempotencyKey: r.Header.Get(custodial.IdempotencyHeader),
			PaymentId:      body.PaymentId,
			Amount:         body.Amount.Amount,
			Currency:       body.Amount.Currency,
		})
		writeObject(w, op, err)
	})
	mux.HandleFunc("POST "+custodial.PayoutsPath, func(w http.ResponseWriter, r *http.Request) {
		var body custodial.PayoutBody
		json.NewDecoder(r.Body).Decode(&body)
		op, err := backend.CreatePayout(r.Context(), rails.PayoutRequest{
			IdempotencyKey: r.Header.Get(custodial.IdempotencyHeader),
			TransferId:     body.TransferId,
			Amount:         body.Amount.Amount,
			Currency:       body.Amount.Currency,
		})
		writeObject(w, op, err)
	})
	for step, path := range map[rails.Step]string{
		rails.StepPayment:  custodial.PaymentsPath,
		rails.StepTransfer: custodial.TransfersPath,
		rails.StepPayout:   custodial.PayoutsPath,
	} {
		mux.HandleFunc("GET "+path+"/{id}", func(w http.ResponseWriter, r *http.Request) {
			op, err := backend.Operation(r.Context(), rails.OperationRequest{Step: step, Id: r.PathValue("id")})
			writeObject(w, op, err)
		})
	}
	mux.HandleFunc("GET "+custodial.RatesPath, func(w http.ResponseWriter, r *http.Request) {
		rate, err := backend.Rate(r.Context(), r.URL.Query().Get("from"), r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, err)
			return
		}
		json.NewEncoder(w).Encode(custodial.Envelope[custodial.Rate]{Data: custodial.Rate{Rate: rate}})
	})
	return httptest.NewServer(mux)
}
