package webhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruteravelar/filavoz/internal/models"
	"github.com/ruteravelar/filavoz/internal/realtime"
)

type Service struct {
	db         *pgxpool.Pool
	dispatcher *Dispatcher
}

func NewService(db *pgxpool.Pool, dispatcher *Dispatcher) *Service {
	return &Service{db: db, dispatcher: dispatcher}
}

// Create registers a subscription. The signing secret is returned once, on
// creation only.
func (s *Service) Create(ctx context.Context, url string, events []string) (*models.Webhook, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	if events == nil {
		events = []string{}
	}

	wh := models.Webhook{ID: uuid.New(), URL: url, Events: events, IsActive: true}
	err = s.db.QueryRow(ctx,
		`INSERT INTO webhooks (id, url, events, secret, is_active)
		 VALUES ($1, $2, $3, $4, true)
		 RETURNING created_at`,
		wh.ID, wh.URL, wh.Events, secret,
	).Scan(&wh.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert webhook: %w", err)
	}

	wh.Secret = secret
	return &wh, nil
}

func (s *Service) List(ctx context.Context) ([]models.Webhook, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, url, events, is_active, created_at
		 FROM webhooks ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []models.Webhook
	for rows.Next() {
		var wh models.Webhook
		if err := rows.Scan(&wh.ID, &wh.URL, &wh.Events, &wh.IsActive, &wh.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		webhooks = append(webhooks, wh)
	}
	return webhooks, rows.Err()
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWebhookNotFound
	}
	return nil
}

// Dispatch fans a change event out to every matching active subscription.
// A subscription with an empty event list receives everything.
func (s *Service) Dispatch(ctx context.Context, ev realtime.Event) error {
	rows, err := s.db.Query(ctx,
		`SELECT id, url, secret FROM webhooks
		 WHERE is_active AND (cardinality(events) = 0 OR $1 = ANY(events))`,
		ev.Action)
	if err != nil {
		return fmt.Errorf("find matching webhooks: %w", err)
	}
	defer rows.Close()

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	for rows.Next() {
		var id uuid.UUID
		var url, secret string
		if err := rows.Scan(&id, &url, &secret); err != nil {
			continue
		}
		s.dispatcher.Enqueue(Request{
			WebhookID: id,
			URL:       url,
			Secret:    secret,
			Event:     ev.Action,
			Payload:   payload,
		})
	}
	return rows.Err()
}

// PostgresLog persists delivery attempts to the webhook_deliveries table.
type PostgresLog struct {
	db *pgxpool.Pool
}

func NewPostgresLog(db *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{db: db}
}

func (l *PostgresLog) Record(ctx context.Context, d Delivery) error {
	_, err := l.db.Exec(ctx,
		`INSERT INTO webhook_deliveries (webhook_id, event, payload, response_status, delivered_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		d.WebhookID, d.Event, d.Payload, d.Status, d.DeliveredAt)
	if err != nil {
		return fmt.Errorf("insert webhook delivery: %w", err)
	}
	return nil
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(b), nil
}
