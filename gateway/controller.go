package gateway

import (
	"errors"

	"github.com/RogueTeam/remit/notify"
	"github.com/RogueTeam/remit/quote"
	"github.com/RogueTeam/remit/routing"
	"github.com/RogueTeam/remit/transfer"
	"github.com/RogueTeam/remit/webhook"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrTransferNotFound = errors.New("transfer not found")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrKYCRequired      = errors.New("sender identity verification required")
	ErrAmountOutOfRange = errors.New("amount out of range")
)

type Controller struct {
	quotes        *quote.Engine
	router        *routing.Router
	machine       *transfer.Machine
	notifications *notify.Engine
	webhooks      *webhook.Ingestor
	minAmount     decimal.Decimal
	maxAmount     decimal.Decimal
	logger        logrus.FieldLogger
}

type Config struct {
	Quotes *quote.Engine
	Router *routing.Router
	// Only writer of transactions
	Machine       *transfer.Machine
	Notifications *notify.Engine
	Webhooks      *webhook.Ingestor
	// Send amount bounds in the send currency. Zero disables the bound
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	Logger    logrus.FieldLogger
}

func New(config Config) (ctrl Controller) {
	ctrl.quotes = config.Quotes
	ctrl.router = config.Router
	ctrl.machine = config.Machine
	ctrl.notifications = config.Notifications
	ctrl.webhooks = config.Webhooks
	ctrl.minAmount = config.MinAmount
	ctrl.maxAmount = config.MaxAmount
	ctrl.logger = config.Logger
	if ctrl.logger == nil {
		ctrl.logger = logrus.StandardLogger()
	}
	return ctrl
}
