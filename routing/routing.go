package routing

import (
	"time"

	"github.com/RogueTeam/remit/rails"
	"github.com/RogueTeam/remit/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Currency value is carried in between the payment and payout legs
const SettlementCurrency = "USDC"

const (
	DefaultMaxAttempts     = 3
	DefaultBaseDelay       = 500 * time.Millisecond
	DefaultMaxDelay        = 30 * time.Second
	DefaultJitterPercent   = 10
	DefaultConfirmAttempts = 5
)

var (
	DefaultThreshold = decimal.NewFromInt(1_000)
	DefaultGasBump   = decimal.RequireFromString("1.25")
)

// Reasons recorded when the first choice could not serve the request at all
const (
	ReasonRailDisabled        = "rail_disabled"
	ReasonUnsupportedCurrency = "unsupported_currency"
	ReasonCircuitOpen         = "circuit_open"
)

type (
	RailConfig struct {
		Disabled bool
		// Destination currencies served. Empty serves every currency
		Currencies []string
	}
	Config struct {
		Acquirer   rails.Acquirer
		Custodial  rails.Custodial
		Blockchain rails.Blockchain
		// Missing rails are enabled for every currency
		Rails map[rails.Rail]RailConfig
		// Send amounts below Threshold go to BelowThreshold, the rest to AboveThreshold
		Threshold      decimal.Decimal
		BelowThreshold rails.Rail
		AboveThreshold rails.Rail
		// Same rail attempts per step
		MaxAttempts   int
		BaseDelay     time.Duration
		MaxDelay      time.Duration
		JitterPercent uint64
		// Multiplier applied to gas on the adjusted retry
		GasBump decimal.Decimal
		// Polls of a pending charge before giving up
		ConfirmAttempts int
		Breaker         BreakerConfig
		Clock           utils.Clock
		Logger          logrus.FieldLogger
	}
	Request struct {
		// Assigned by the caller before execution
		TransactionId uuid.UUID
		SenderId      string
		CardToken     string
		SendAmount    decimal.Decimal
		SendCurrency  string
		// SendAmount minus the card and transfer fees. Defaults to SendAmount
		NetAmount decimal.Decimal
		// NetAmount in SettlementCurrency, moved between the payment and payout
		// legs. Derived from NetAmount only when SendCurrency is USD
		SettlementAmount decimal.Decimal
		ReceiveAmount    decimal.Decimal
		ReceiveCurrency  string
		Beneficiary      rails.Beneficiary
		// Optional explicit rail choice
		PreferredRail rails.Rail
	}
	Metadata struct {
		FallbackTriggered bool       `json:"fallbackTriggered,omitempty"`
		FallbackReason    string     `json:"fallbackReason,omitempty"`
		OriginalRail      rails.Rail `json:"originalRail,omitempty"`
		// Value already moved on the abandoned rail before the fallback
		Hybrid       bool              `json:"hybrid,omitempty"`
		AbandonedRef rails.ProviderRef `json:"abandonedRef,omitzero"`
		// Provider calls issued, retries included
		Attempts int `json:"attempts"`
	}
	Result struct {
		TransactionId uuid.UUID
		SelectedRail  rails.Rail
		ChargeId      string
		ProviderRef   rails.ProviderRef
		Metadata      Metadata
	}
)

type Router struct {
	acquirer        rails.Acquirer
	custodial       rails.Custodial
	blockchain      rails.Blockchain
	rails           map[rails.Rail]RailConfig
	threshold       decimal.Decimal
	below           rails.Rail
	above           rails.Rail
	maxAttempts     int
	baseDelay       time.Duration
	maxDelay        time.Duration
	jitterPercent   uint64
	gasBump         decimal.Decimal
	confirmAttempts int
	breakers        map[rails.Rail]*Breaker
	clock           utils.Clock
	logger          logrus.FieldLogger
}

func New(config Config) (r *Router) {
	r = &Router{
		acquirer:        config.Acquirer,
		custodial:       config.Custodial,
		blockchain:      config.Blockchain,
		rails:           config.Rails,
		threshold:       config.Threshold,
		below:           config.BelowThreshold,
		above:           config.AboveThreshold,
		maxAttempts:     config.MaxAttempts,
		baseDelay:       config.BaseDelay,
		maxDelay:        config.MaxDelay,
		jitterPercent:   config.JitterPercent,
		gasBump:         config.GasBump,
		confirmAttempts: config.ConfirmAttempts,
		clock:           config.Clock,
		logger:          config.Logger,
	}
	if r.rails == nil {
		r.rails = map[rails.Rail]RailConfig{}
	}
	if !r.threshold.IsPositive() {
		r.threshold = DefaultThreshold
	}
	if r.below == "" {
		r.below = rails.RailCustodial
	}
	if r.above == "" {
		r.above = rails.RailBlockchain
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = DefaultMaxAttempts
	}
	if r.baseDelay <= 0 {
		r.baseDelay = DefaultBaseDelay
	}
	if r.maxDelay <= 0 {
		r.maxDelay = DefaultMaxDelay
	}
	if r.jitterPercent == 0 {
		r.jitterPercent = DefaultJitterPercent
	}
	if r.gasBump.LessThanOrEqual(decimal.NewFromInt(1)) {
		r.gasBump = DefaultGasBump
	}
	if r.confirmAttempts <= 0 {
		r.confirmAttempts = DefaultConfirmAttempts
	}
	if r.clock == nil {
		r.clock = utils.SystemClock{}
	}
	if r.logger == nil {
		r.logger = logrus.StandardLogger()
	}
	r.breakers = map[rails.Rail]*Breaker{
		rails.RailCustodial:  NewBreaker(rails.RailCustodial, config.Breaker, r.clock, r.logger),
		rails.RailBlockchain: NewBreaker(rails.RailBlockchain, config.Breaker, r.clock, r.logger),
	}
	return r
}

// Breaker exposes the health tracker of rail
func (r *Router) Breaker(rail rails.Rail) (b *Breaker) {
	return r.breakers[rail]
}
