// Package webhook pushes patient-flow events to external systems that
// registered a callback URL, such as the hospital information system or a
// reporting collector. Deliveries are signed, best-effort and
// fire-and-forget: a dead endpoint never slows down the clinic flow.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Request is one pending delivery.
type Request struct {
	WebhookID uuid.UUID
	URL       string
	Secret    string
	Event     string
	Payload   []byte
}

// Delivery is the persisted outcome of one attempt.
type Delivery struct {
	WebhookID   uuid.UUID
	Event       string
	Payload     []byte
	Status      int
	DeliveredAt *time.Time
}

// DeliveryLog records delivery outcomes for troubleshooting integrations.
type DeliveryLog interface {
	Record(ctx context.Context, d Delivery) error
}

// Dispatcher serializes deliveries through one loop. The queue drops on
// overflow; subscribers are expected to tolerate gaps and resync from the
// API when they need full state.
type Dispatcher struct {
	httpClient *http.Client
	log        DeliveryLog
	deliveries chan Request

	quit     chan struct{}
	done     chan struct{}
	quitOnce sync.Once
}

func NewDispatcher(log DeliveryLog) *Dispatcher {
	d := &Dispatcher{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
		deliveries: make(chan Request, 1000),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go d.processLoop()
	return d
}

func (d *Dispatcher) Enqueue(req Request) {
	select {
	case d.deliveries <- req:
	case <-d.quit:
	default:
		slog.Warn("webhook delivery queue full, dropping", "webhook_id", req.WebhookID, "event", req.Event)
	}
}

func (d *Dispatcher) Close() {
	d.quitOnce.Do(func() { close(d.quit) })
	<-d.done
}

func (d *Dispatcher) processLoop() {
	defer close(d.done)
	for {
		select {
		case <-d.quit:
			return
		case req := <-d.deliveries:
			d.deliver(req)
		}
	}
}

func (d *Dispatcher) deliver(req Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", req.URL, bytes.NewReader(req.Payload))
	if err != nil {
		slog.Error("webhook request creation failed", "error", err, "webhook_id", req.WebhookID)
		d.record(ctx, req, 0)
		return
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-FilaVoz-Event", req.Event)
	httpReq.Header.Set("X-FilaVoz-Signature", Sign(req.Payload, req.Secret))
	httpReq.Header.Set("X-FilaVoz-Webhook-ID", req.WebhookID.String())

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("webhook delivery failed", "error", err, "webhook_id", req.WebhookID)
		d.record(ctx, req, 0)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		slog.Warn("webhook endpoint returned error", "status", resp.StatusCode, "webhook_id", req.WebhookID)
	}
	d.record(ctx, req, resp.StatusCode)
}

func (d *Dispatcher) record(ctx context.Context, req Request, status int) {
	if d.log == nil {
		return
	}

	var deliveredAt *time.Time
	if status > 0 && status < 400 {
		now := time.Now()
		deliveredAt = &now
	}

	err := d.log.Record(ctx, Delivery{
		WebhookID:   req.WebhookID,
		Event:       req.Event,
		Payload:     req.Payload,
		Status:      status,
		DeliveredAt: deliveredAt,
	})
	if err != nil {
		slog.Error("failed to record webhook delivery", "error", err)
	}
}

// Sign computes the HMAC-SHA256 header value subscribers verify.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}
