package router

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/RogueTeam/remit/gateway"
	"github.com/RogueTeam/remit/quote"
	"github.com/RogueTeam/remit/webhook"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Manages the entire setup of the Gateway service
type Router struct {
	// Process interval of the background sweeps. Zero disables them
	ProcessInterval time.Duration
	// Gateway controller
	Gateway *gateway.Controller
	// Base Gin Group to use for routing
	Base gin.IRoutes
	// Stops the background sweeps when done
	Context context.Context
	Logger  logrus.FieldLogger
}

const (
	IdParam        = "id"
	EventTypeParam = "eventType"
	QuotesPath     = "/v1/quotes"
	LockPath       = "/v1/rates/lock"
	RatePath       = "/v1/rates/:" + IdParam
	TransfersPath  = "/v1/transfers"
	TransferPath   = TransfersPath + "/:" + IdParam
	WebhookPath    = "/v1/webhooks/:" + EventTypeParam
	StatsPath      = "/v1/notifications/stats"
	HealthPath     = "/healthz"
)

func abort(ctx *gin.Context, err error) {
	status, body := ErrorFrom(err)
	ctx.AbortWithStatusJSON(status, &body)
}

func badRequest(ctx *gin.Context, err error) {
	ctx.AbortWithStatusJSON(http.StatusBadRequest, &Error{Code: CodeInvalidRequest, Message: err.Error()})
}

func (r *Router) quote(ctx *gin.Context) {
	var req QuoteRequest
	err := ctx.ShouldBindJSON(&req)
	if err != nil {
		badRequest(ctx, err)
		return
	}

	q, err := r.Gateway.Quote(ctx, quote.QuoteRequest{From: req.From, To: req.To, Amount: req.Amount})
	if err != nil {
		abort(ctx, err)
		return
	}
	out := QuoteFromEngine(q)
	ctx.JSON(http.StatusOK, &out)
}

func (r *Router) lockRate(ctx *gin.Context) {
	var req LockRequest
	err := ctx.ShouldBindJSON(&req)
	if err != nil {
		badRequest(ctx, err)
		return
	}

	locked, err := r.Gateway.LockRate(ctx, quote.LockRequest{From: req.From, To: req.To, Amount: req.Amount})
	if err != nil {
		abort(ctx, err)
		return
	}
	out := LockedRateFromEngine(locked)
	ctx.JSON(http.StatusCreated, &out)
}

func (r *Router) lockedRate(ctx *gin.Context) {
	locked, err := r.Gateway.LockedRate(ctx, ctx.Param(IdParam))
	if err != nil {
		abort(ctx, err)
		return
	}
	out := LockedRateFromEngine(locked)
	ctx.JSON(http.StatusOK, &out)
}

func (r *Router) createTransfer(ctx *gin.Context) {
	var send Send
	err := ctx.ShouldBindJSON(&send)
	if err != nil {
		badRequest(ctx, err)
		return
	}

	req := SendToGateway(&send)
	t, err := r.Gateway.Send(ctx, &req)
	if err != nil {
		status, body := ErrorFrom(err)
		if t.Id != uuid.Nil {
			body.TransactionId = &t.Id
		}
		ctx.AbortWithStatusJSON(status, &body)
		return
	}
	out := TransferFromGateway(&t)
	ctx.JSON(http.StatusCreated, &out)
}

func (r *Router) transferStatus(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param(IdParam))
	if err != nil {
		badRequest(ctx, err)
		return
	}

	t, err := r.Gateway.Query(ctx, id)
	if err != nil {
		abort(ctx, err)
		return
	}
	out := TransferFromGateway(&t)
	ctx.JSON(http.StatusOK, &out)
}

func (r *Router) webhook(ctx *gin.Context) {
	payload, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		badRequest(ctx, err)
		return
	}

	result, err := r.Gateway.Webhook(ctx, ctx.Param(EventTypeParam), payload, ctx.GetHeader(webhook.SignatureHeader))
	if err != nil {
		abort(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, &WebhookAck{
		Received:   true,
		Recognized: result.Recognized,
		Applied:    result.Outcome.Applied,
		Status:     result.Outcome.To,
	})
}

func (r *Router) stats(ctx *gin.Context) {
	stats, err := r.Gateway.NotificationStats(ctx)
	if err != nil {
		abort(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, &stats)
}

func (r *Router) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Process runs one round of every background sweep
func (r *Router) Process(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		report, err := r.Gateway.ProcessNotifications(ctx)
		if err != nil {
			r.Logger.WithError(err).Error("failed to process notifications")
			return
		}
		r.Logger.WithFields(logrus.Fields{
			"attempted": report.Attempted,
			"delivered": report.Delivered,
			"failed":    report.Failed,
			"exhausted": report.Exhausted,
		}).Debug("processed notifications")
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		purged, err := r.Gateway.ProcessExpiredLocks(ctx)
		if err != nil {
			r.Logger.WithError(err).Error("failed to purge expired locks")
			return
		}
		r.Logger.WithField("purged", purged).Debug("purged expired locks")
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		reaped, err := r.Gateway.ProcessDeliveredNotifications(ctx)
		if err != nil {
			r.Logger.WithError(err).Error("failed to reap notifications")
			return
		}
		r.Logger.WithField("reaped", reaped).Debug("reaped notifications")
	}()
	wg.Wait()
}

// Register routes in the Gin engine and starts the background sweeps
func (r *Router) Register() {
	if r.Logger == nil {
		r.Logger = logrus.StandardLogger()
	}
	if r.Context == nil {
		r.Context = context.Background()
	}

	r.Base.GET(HealthPath, r.health)
	r.Base.POST(QuotesPath, r.quote)
	r.Base.POST(LockPath, r.lockRate)
	r.Base.GET(RatePath, r.lockedRate)
	r.Base.POST(TransfersPath, r.createTransfer)
	r.Base.GET(TransferPath, r.transferStatus)
	r.Base.POST(WebhookPath, r.webhook)
	r.Base.GET(StatsPath, r.stats)

	if r.ProcessInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(r.ProcessInterval)
		defer ticker.Stop()

		for {
			r.Process(r.Context)
			select {
			case <-r.Context.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
