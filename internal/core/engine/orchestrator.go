package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rankshop/rankshop/internal/core"
	"github.com/rankshop/rankshop/internal/core/store"
	"github.com/rankshop/rankshop/internal/metrics"
	"github.com/rankshop/rankshop/internal/notify"
	"github.com/rankshop/rankshop/internal/upload"
)

// PurposePaymentProof scopes payment screenshot object names.
const PurposePaymentProof = "payment-proofs"

// DefaultNotifyTimeout bounds the order announcement.
const DefaultNotifyTimeout = 10 * time.Second

var (
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidPlatform = errors.New("invalid platform")
	ErrProductNotFound = errors.New("product not found")
	ErrRateLimited     = errors.New("too many attempts, please wait before ordering again")
	ErrOrderNotFound   = errors.New("order not found")
	ErrInvalidStatus   = errors.New("invalid order status change")
)

// Stage names a step of order submission.
type Stage string

const (
	StageValidating Stage = "validating"
	StageRateLimit  Stage = "rate_limit"
	StageUploading  Stage = "uploading"
	StagePersisting Stage = "persisting"
	StageNotifying  Stage = "notifying"
	StageComplete   Stage = "complete"
)

// SubmitError reports the stage a submission failed in.
type SubmitError struct {
	Stage Stage
	Err   error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("order %s failed: %v", e.Stage, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// OrderStore is the persistence used by the orchestrator.
type OrderStore interface {
	GetProduct(ctx context.Context, id string) (*core.Product, error)
	GetSiteConfig(ctx context.Context) (map[string]string, error)
	InsertOrder(ctx context.Context, order *core.Order) error
	GetOrder(ctx context.Context, id string) (*core.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, from, to core.OrderStatus, at time.Time) (*core.Order, error)
}

// Uploader validates and stores payment proofs.
type Uploader interface {
	Validate(p upload.Payload) (upload.Payload, error)
	Store(ctx context.Context, purpose string, p upload.Payload) (*upload.Result, error)
}

// Notifier delivers order announcements.
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}

// Submission is a customer's order request.
type Submission struct {
	Username        string
	Platform        string
	ProductID       string
	ClientSignature string
	Proof           upload.Payload
}

// Receipt is a completed submission.
type Receipt struct {
	Order    *core.Order    `json:"order"`
	Warnings []string       `json:"warnings,omitempty"`
	Upload   *upload.Result `json:"-"`
	Stages   []Stage        `json:"-"`
}

// Orchestrator runs order submissions and admin status changes.
type Orchestrator struct {
	Store         OrderStore
	Limiter       *RateLimiter
	Uploads       Uploader
	Notifier      Notifier
	NotifyTimeout time.Duration
	Logger        *logging.Logger
	Clock         func() time.Time
}

// Submit validates the request, consults the rate limiter, stores the proof,
// persists the order and announces it. Steps run strictly in that order and
// the order row is only written once the proof has a URL.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (*Receipt, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	receipt := &Receipt{Stages: []Stage{StageValidating}}

	platform, err := core.ParsePlatform(sub.Platform)
	if err != nil {
		return nil, o.fail(StageValidating, fmt.Errorf("%w: %v", ErrInvalidPlatform, err))
	}
	username, err := NormalizeUsername(platform, sub.Username)
	if err != nil {
		return nil, o.fail(StageValidating, err)
	}
	product, err := o.activeProduct(ctx, sub.ProductID)
	if err != nil {
		return nil, o.fail(StageValidating, err)
	}
	proof, err := o.Uploads.Validate(sub.Proof)
	if err != nil {
		return nil, o.fail(StageValidating, err)
	}

	receipt.Stages = append(receipt.Stages, StageRateLimit)
	if err := o.checkRateLimit(ctx, username, sub.ClientSignature); err != nil {
		return nil, o.fail(StageRateLimit, err)
	}

	receipt.Stages = append(receipt.Stages, StageUploading)
	result, err := o.Uploads.Store(ctx, PurposePaymentProof, proof)
	if err != nil {
		return nil, o.fail(StageUploading, err)
	}
	receipt.Upload = result
	for _, attempt := range result.Attempts {
		metrics.RecordUploadAttempt(attempt.Strategy, attempt.Err == nil)
	}
	if result.Inline() {
		metrics.RecordUploadInlineFallback()
		receipt.Warnings = append(receipt.Warnings,
			"Payment proof could not be uploaded to storage and was saved inline with the order.")
	}

	site, err := o.Store.GetSiteConfig(ctx)
	if err != nil {
		o.warn("Site config unavailable, pricing without global discount", zap.Error(err))
		site = map[string]string{}
	}

	discount := core.EffectiveDiscount(product.DiscountPercent, GlobalDiscount(site))
	now := o.now()
	order := &core.Order{
		ID:              uuid.NewString(),
		Username:        username,
		Platform:        platform,
		ProductID:       product.ID,
		RankName:        product.Name,
		OriginalCents:   product.PriceCents,
		DiscountPercent: discount,
		PriceCents:      core.ApplyDiscount(product.PriceCents, discount),
		Status:          core.OrderStatusPending,
		PaymentProof:    result.URL,
		ClientHash:      DeriveIdentifier(username, sub.ClientSignature),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	receipt.Stages = append(receipt.Stages, StagePersisting)
	if err := o.Store.InsertOrder(ctx, order); err != nil {
		return nil, o.fail(StagePersisting, err)
	}
	receipt.Order = order

	receipt.Stages = append(receipt.Stages, StageNotifying)
	o.announce(ctx, notify.OrderDetails{
		Order:      *order,
		Currency:   site[core.SiteConfigCurrency],
		ServerName: site[core.SiteConfigServerName],
		Color:      product.Color,
		Warnings:   receipt.Warnings,
	})

	receipt.Stages = append(receipt.Stages, StageComplete)
	metrics.RecordOrderSubmitted("created")
	if o.Logger != nil {
		o.Logger.Info("Order submitted",
			zap.String("order_id", order.ID),
			zap.String("product_id", order.ProductID),
			zap.String("platform", string(order.Platform)),
			zap.String("proof_strategy", result.Strategy))
	}
	return receipt, nil
}

// UpdateStatus moves an order to status and announces the change.
func (o *Orchestrator) UpdateStatus(ctx context.Context, id string, status core.OrderStatus) (*core.Order, error) {
	current, err := o.Store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !CanTransition(current.Status, status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStatus, current.Status, status)
	}
	if current.Status == status {
		return current, nil
	}

	updated, err := o.Store.UpdateOrderStatus(ctx, id, current.Status, status, o.now())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrOrderNotFound
		case errors.Is(err, store.ErrStale):
			return nil, fmt.Errorf("%w: order changed concurrently: %v", ErrInvalidStatus, err)
		}
		return nil, err
	}
	metrics.RecordOrderStatusChange(string(status))

	site, err := o.Store.GetSiteConfig(ctx)
	if err != nil {
		site = map[string]string{}
	}
	o.announce(ctx, notify.OrderDetails{
		Order:      *updated,
		Currency:   site[core.SiteConfigCurrency],
		ServerName: site[core.SiteConfigServerName],
	})
	return updated, nil
}

// CanTransition reports whether an order may move from one status to another.
// Completed orders are final; rejected orders may be reopened.
func CanTransition(from, to core.OrderStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case core.OrderStatusPending:
		return to == core.OrderStatusApproved || to == core.OrderStatusRejected || to == core.OrderStatusCompleted
	case core.OrderStatusApproved:
		return to == core.OrderStatusCompleted || to == core.OrderStatusRejected
	case core.OrderStatusRejected:
		return to == core.OrderStatusPending
	default:
		return false
	}
}

// GlobalDiscount reads the site-wide discount percentage.
func GlobalDiscount(site map[string]string) int {
	value, err := strconv.Atoi(strings.TrimSpace(site[core.SiteConfigGlobalDiscount]))
	if err != nil {
		return 0
	}
	return core.ClampDiscount(value)
}

func (o *Orchestrator) activeProduct(ctx context.Context, id string) (*core.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrProductNotFound
	}
	product, err := o.Store.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	if !product.Active {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// checkRateLimit denies on a block. Store failures let the order through:
// the identifier is client supplied, so the limiter only slows honest retries.
func (o *Orchestrator) checkRateLimit(ctx context.Context, username, signature string) error {
	if o.Limiter == nil {
		return nil
	}
	allowed, err := o.Limiter.Check(ctx, DeriveIdentifier(username, signature))
	if err != nil {
		metrics.RecordRateLimitDecision("error")
		o.warn("Rate limiter unavailable, allowing submission", zap.Error(err))
		return nil
	}
	if !allowed {
		metrics.RecordRateLimitDecision("deny")
		return ErrRateLimited
	}
	metrics.RecordRateLimitDecision("allow")
	return nil
}

func (o *Orchestrator) announce(ctx context.Context, details notify.OrderDetails) {
	if o.Notifier == nil {
		return
	}
	timeout := o.NotifyTimeout
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	err := o.Notifier.Send(notifyCtx, notify.OrderMessage(details))
	if errors.Is(err, notify.ErrNotConfigured) {
		return
	}
	metrics.RecordWebhookDelivery("order", err == nil)
	if err != nil {
		o.warn("Order notification failed",
			zap.String("order_id", details.Order.ID),
			zap.Error(err))
	}
}

func (o *Orchestrator) fail(stage Stage, err error) error {
	switch {
	case errors.Is(err, ErrRateLimited):
		metrics.RecordOrderSubmitted("rate_limited")
	case stage == StageValidating:
		metrics.RecordOrderSubmitted("invalid")
	default:
		metrics.RecordOrderSubmitted("failed")
		if o.Logger != nil {
			o.Logger.Error("Order submission failed", zap.String("stage", string(stage)), zap.Error(err))
		}
	}
	return &SubmitError{Stage: stage, Err: err}
}

func (o *Orchestrator) warn(msg string, fields ...zap.Field) {
	if o.Logger != nil {
		o.Logger.Warn(msg, fields...)
	}
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}
