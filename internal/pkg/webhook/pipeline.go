package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuelReschke/PayHook/app/models"
	"github.com/ManuelReschke/PayHook/internal/pkg/metrics"
	"github.com/ManuelReschke/PayHook/internal/pkg/ratelimit"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

const (
	MessageProcessed       = "Webhook processed successfully"
	MessageDuplicate       = "Webhook already processed"
	MessageAcknowledged    = "Webhook acknowledged"
	MessageFailed          = "Failed to process webhook"
	MessageRateLimited     = "Too many requests"
	MessageUnsupported     = "Unsupported provider"
	MessageInvalidSig      = "Invalid signature"
	MessageInvalidToken    = "Invalid token"
	MessageEntryNotFound   = "Webhook entry not found"
	MessageReplayCompleted = "Webhook replayed successfully"
)

// ledgerWriteTimeout bounds MarkProcessing and Finalize once they no longer
// follow the request context.
const ledgerWriteTimeout = 5 * time.Second

// requiredFields are the top-level keys every provider payload must carry.
var requiredFields = []string{"event", "payment"}

type providerRoute struct {
	parse       func(raw []byte) (*Event, error)
	verifier    Verifier
	authMessage string
}

// Dependencies wires a Pipeline. Sleep is optional and defaults to time.Sleep.
type Dependencies struct {
	Config    Config
	Limiter   ratelimit.Limiter
	Ledger    Ledger
	Processor Processor
	Sleep     func(time.Duration)
}

// Pipeline runs a delivery through rate limiting, validation, verification,
// ledger admission and bounded processing.
type Pipeline struct {
	cfg       Config
	limiter   ratelimit.Limiter
	ledger    Ledger
	processor Processor
	retrier   Retrier
	providers map[Provider]providerRoute
}

// NewPipeline creates a pipeline from its dependencies.
func NewPipeline(deps Dependencies) (*Pipeline, error) {
	if deps.Limiter == nil || deps.Ledger == nil || deps.Processor == nil {
		return nil, errors.New("webhook pipeline requires a limiter, a ledger and a processor")
	}
	cfg := deps.Config
	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = DefaultConfig().RateLimitMax
	}
	if cfg.RateLimitWindowMs <= 0 {
		cfg.RateLimitWindowMs = DefaultConfig().RateLimitWindowMs
	}
	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = DefaultRetryMaxAttempts
	}

	p := &Pipeline{
		cfg:       cfg,
		limiter:   deps.Limiter,
		ledger:    deps.Ledger,
		processor: deps.Processor,
		retrier: Retrier{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay(),
			Sleep:       deps.Sleep,
		},
		providers: map[Provider]providerRoute{
			ProviderMercadoPago: {
				parse:       parseMercadoPago,
				verifier:    MercadoPagoVerifier{Secret: cfg.MercadoPagoSecret},
				authMessage: MessageInvalidSig,
			},
			ProviderAsaas: {
				parse:       parseAsaas,
				verifier:    AsaasVerifier{Token: cfg.AsaasToken},
				authMessage: MessageInvalidToken,
			},
		},
	}

	for _, provider := range Providers {
		if !p.providers[provider].verifier.Enabled() {
			log.Warnf("[Webhook] No secret configured for %s, signature verification is disabled", provider)
		}
	}
	return p, nil
}

// Handle processes one inbound delivery and returns the response to send.
func (p *Pipeline) Handle(ctx context.Context, d *Delivery) *Result {
	start := time.Now()
	metrics.WebhooksReceived.WithLabelValues(string(d.Provider)).Inc()

	res := p.handle(ctx, d)
	res.ProcessingTime = time.Since(start)
	p.observe(d.Provider, d.RequestID, res)
	return res
}

func (p *Pipeline) handle(ctx context.Context, d *Delivery) *Result {
	route, ok := p.providers[d.Provider]
	if !ok {
		return failure(MessageUnsupported, fmt.Errorf("%w: %s", ErrUnsupportedProvider, d.Provider))
	}

	allowed, err := p.limiter.IncrementAndCheck(ctx, ratelimit.Key(string(d.Provider), d.ClientIP), p.cfg.RateLimitMax, p.cfg.RateLimitWindow())
	if err != nil {
		log.Warnf("[Webhook] Rate limiter unavailable, allowing %s request from %s: %v", d.Provider, d.ClientIP, err)
	} else if !allowed {
		return failure(MessageRateLimited, ErrRateLimited)
	}

	payload, err := DecodePayload(d.RawBody)
	if err != nil {
		return failure(ValidationMessage(err), err)
	}
	if err := ValidatePayload(payload, requiredFields); err != nil {
		return failure(ValidationMessage(err), err)
	}
	ev, err := route.parse(d.RawBody)
	if err != nil {
		return failure(ValidationMessage(err), err)
	}

	if !route.verifier.Enabled() {
		log.Debugf("[Webhook] Skipping %s signature verification", d.Provider)
	} else if err := route.verifier.Verify(d, ev); err != nil {
		return failure(route.authMessage, err)
	}

	ev.ID = ComputeEventID(d.Provider, ev, d.RawBody)
	admitted, entry, err := p.ledger.Admit(ctx, &models.WebhookLedgerEntry{
		Provider:        string(d.Provider),
		EventID:         ev.ID,
		EventType:       ev.Type,
		Status:          models.LedgerStatusReceived,
		PayloadSnapshot: string(d.RawBody),
	})
	if err != nil {
		res := failure(MessageFailed, fmt.Errorf("admit webhook: %w", err))
		res.EventID = ev.ID
		return res
	}
	if !admitted {
		return &Result{
			HTTPStatus: http.StatusOK,
			Success:    true,
			Message:    MessageDuplicate,
			EventID:    ev.ID,
			EntryID:    entry.ID,
			Duplicate:  true,
			Err:        ErrDuplicateEvent,
		}
	}

	return p.process(ctx, entry, ev, MessageProcessed)
}

// process runs an admitted entry through the retrier and finalizes the ledger.
func (p *Pipeline) process(ctx context.Context, entry *models.WebhookLedgerEntry, ev *Event, successMessage string) *Result {
	res := &Result{EventID: entry.EventID, EntryID: entry.ID}

	markCtx, cancel := ledgerContext(ctx)
	err := p.ledger.MarkProcessing(markCtx, entry.ID)
	cancel()
	if err != nil {
		res.HTTPStatus = http.StatusInternalServerError
		res.Message = MessageFailed
		res.Err = fmt.Errorf("mark processing: %w", err)
		return res
	}

	var outcome Outcome
	attempts, err := p.retrier.Run(ctx, func(attempt int) error {
		o, err := p.processor.Process(ctx, ev)
		if err != nil {
			return err
		}
		outcome = o
		return nil
	})
	res.Attempts = attempts
	metrics.ProcessingAttempts.WithLabelValues(string(ev.Provider)).Observe(float64(attempts))

	fin := Finalization{Status: models.LedgerStatusProcessed, Attempts: attempts}
	switch {
	case err != nil:
		fin.Status = models.LedgerStatusFailed
		fin.Error = err.Error()
		res.HTTPStatus = http.StatusInternalServerError
		res.Message = MessageFailed
		res.Err = err
	case outcome.Violation != nil:
		fin.Status = models.LedgerStatusFailed
		fin.Error = outcome.Violation.Error()
		fin.NonRetryable = true
		res.HTTPStatus = http.StatusOK
		res.Success = true
		res.Message = MessageAcknowledged
		res.Err = outcome.Violation
	default:
		res.HTTPStatus = http.StatusOK
		res.Success = true
		res.Message = successMessage
	}

	finCtx, cancel := ledgerContext(ctx)
	defer cancel()
	if ferr := p.ledger.Finalize(finCtx, entry.ID, fin); ferr != nil {
		log.Errorw("[Webhook] Failed to finalize ledger entry", "entryId", entry.ID, "eventId", entry.EventID, "error", ferr)
		if res.Err == nil {
			res.Err = fmt.Errorf("finalize ledger entry: %w", ferr)
		}
	}
	return res
}

// Replay re-runs a stored ledger entry from its payload snapshot. Processed
// entries are left untouched. The signature is not checked again.
func (p *Pipeline) Replay(ctx context.Context, entryID uint) *Result {
	start := time.Now()
	res := p.replay(ctx, entryID)
	res.ProcessingTime = time.Since(start)
	return res
}

func (p *Pipeline) replay(ctx context.Context, entryID uint) *Result {
	entry, err := p.ledger.Get(ctx, entryID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return failure(MessageEntryNotFound, fmt.Errorf("%w: %d", ErrEntryNotFound, entryID))
	}
	if err != nil {
		return failure(MessageFailed, fmt.Errorf("load ledger entry: %w", err))
	}
	if entry.Status == models.LedgerStatusProcessed {
		return &Result{
			HTTPStatus: http.StatusOK,
			Success:    true,
			Message:    MessageDuplicate,
			EventID:    entry.EventID,
			EntryID:    entry.ID,
			Duplicate:  true,
		}
	}

	provider, err := ParseProvider(entry.Provider)
	if err != nil {
		return failure(MessageUnsupported, err)
	}
	ev, err := p.providers[provider].parse([]byte(entry.PayloadSnapshot))
	if err != nil {
		res := failure(ValidationMessage(err), err)
		res.EventID = entry.EventID
		res.EntryID = entry.ID
		return res
	}
	ev.ID = entry.EventID

	log.Infow("[Webhook] Replaying ledger entry", "entryId", entry.ID, "provider", provider, "eventId", entry.EventID, "previousStatus", entry.Status)
	res := p.process(ctx, entry, ev, MessageReplayCompleted)
	p.observe(provider, "", res)
	return res
}

func (p *Pipeline) observe(provider Provider, requestID string, res *Result) {
	elapsedMs := res.ProcessingTimeMs()
	metrics.WebhookResults.WithLabelValues(string(provider), resultLabel(res)).Inc()
	metrics.WebhookDuration.WithLabelValues(string(provider)).Observe(res.ProcessingTime.Seconds())

	kv := []interface{}{
		"provider", provider,
		"eventId", res.EventID,
		"status", res.HTTPStatus,
		"attempts", res.Attempts,
		"elapsedMs", elapsedMs,
	}
	if requestID != "" {
		kv = append(kv, "requestId", requestID)
	}

	switch {
	case res.HTTPStatus >= http.StatusInternalServerError:
		log.Errorw("[Webhook] "+res.Message, append(kv, "error", res.Err)...)
	case res.Err != nil && !errors.Is(res.Err, ErrDuplicateEvent):
		log.Warnw("[Webhook] "+res.Message, append(kv, "error", res.Err)...)
	default:
		log.Infow("[Webhook] "+res.Message, kv...)
	}
}

func resultLabel(res *Result) string {
	switch {
	case res.Duplicate:
		return metrics.ResultDuplicate
	case errors.Is(res.Err, ErrRateLimited):
		return metrics.ResultRateLimited
	case errors.Is(res.Err, ErrInvalidSignature):
		return metrics.ResultUnauthorized
	case errors.Is(res.Err, ErrValidation), errors.Is(res.Err, ErrUnsupportedProvider):
		return metrics.ResultInvalid
	case errors.Is(res.Err, ErrBusinessRuleViolation):
		return metrics.ResultViolation
	case res.HTTPStatus >= http.StatusInternalServerError:
		return metrics.ResultFailed
	default:
		return metrics.ResultProcessed
	}
}

func failure(message string, err error) *Result {
	return &Result{HTTPStatus: StatusCode(err), Message: message, Err: err}
}

// ledgerContext detaches ledger writes from the request deadline so an
// expired delivery is still recorded.
func ledgerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), ledgerWriteTimeout)
}
