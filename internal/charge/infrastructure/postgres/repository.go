package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/charge-ledger/internal/charge/application"
	"github.com/dmehra2102/charge-ledger/internal/charge/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS charges (
	id              BIGSERIAL PRIMARY KEY,
	gateway_id      TEXT NOT NULL UNIQUE,
	order_id        TEXT NOT NULL,
	amount          BIGINT NOT NULL CHECK (amount >= 0),
	paid_amount     BIGINT NOT NULL DEFAULT 0,
	canceled_amount BIGINT NOT NULL DEFAULT 0,
	refunded_amount BIGINT NOT NULL DEFAULT 0,
	code            TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS charge_transactions (
	id           BIGSERIAL PRIMARY KEY,
	charge_id    BIGINT NOT NULL REFERENCES charges(id),
	gateway_id   TEXT NOT NULL,
	position     INT NOT NULL,
	type         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT '',
	amount_cents BIGINT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	UNIQUE (charge_id, gateway_id)
);
CREATE TABLE IF NOT EXISTS outbox (
	id             BIGSERIAL PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	type           TEXT NOT NULL,
	payload        JSONB NOT NULL,
	headers        JSONB,
	traceparent    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	relay_id       TEXT,
	lease_until    TIMESTAMPTZ,
	retry_count    INT NOT NULL DEFAULT 0,
	last_error     TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

// Create inserts a new charge and returns it with its local id set.
func (r *Repository) Create(ctx context.Context, c *domain.Charge) error {
	st := c.State()
	err := r.pool.QueryRow(ctx, `INSERT INTO charges (gateway_id, order_id, amount, paid_amount, canceled_amount, refunded_amount, code, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		st.GatewayID, st.OrderID, st.Amount, st.PaidAmount, st.CanceledAmount, st.RefundedAmount, st.Code, st.Status, st.CreatedAt, st.UpdatedAt).
		Scan(&st.ID)
	if err != nil {
		return fmt.Errorf("insert charge: %w", err)
	}
	c.SetID(st.ID)
	return nil
}

// Update locks the charge row, applies fn and saves the result with its outbox
// event in the same database transaction.
func (r *Repository) Update(ctx context.Context, id int64, headers map[string]string, traceparent string, fn application.Mutation) (*domain.Charge, error) {
	return r.mutate(ctx, selectCharge+` WHERE id=$1 FOR UPDATE`, id, headers, traceparent, fn)
}

func (r *Repository) UpdateByGatewayID(ctx context.Context, gatewayID string, headers map[string]string, traceparent string, fn application.Mutation) (*domain.Charge, error) {
	return r.mutate(ctx, selectCharge+` WHERE gateway_id=$1 FOR UPDATE`, gatewayID, headers, traceparent, fn)
}

func (r *Repository) mutate(ctx context.Context, query string, arg any, headers map[string]string, traceparent string, fn application.Mutation) (*domain.Charge, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	c, err := load(ctx, tx, query, arg)
	if err != nil {
		return nil, err
	}
	eventType, payload, err := fn(c)
	if err != nil {
		return nil, err
	}
	if eventType == "" {
		return c, tx.Commit(ctx)
	}

	if err := r.save(ctx, tx, c, eventType, payload, headers, traceparent); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.log.Debug("charge saved", "charge_id", c.ID(), "status", c.Status(), "event", eventType)
	return c, nil
}

// save writes the charge ledger, its transactions and one outbox event.
func (r *Repository) save(ctx context.Context, tx pgx.Tx, c *domain.Charge, eventType string, payload []byte, headers map[string]string, traceparent string) error {
	st := c.State()
	ct, err := tx.Exec(ctx, `UPDATE charges SET order_id=$2, amount=$3, paid_amount=$4, canceled_amount=$5, refunded_amount=$6, code=$7, status=$8, updated_at=$9
		WHERE id=$1`,
		st.ID, st.OrderID, st.Amount, st.PaidAmount, st.CanceledAmount, st.RefundedAmount, st.Code, st.Status, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update charge %d: %w", st.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return application.ErrChargeNotFound
	}

	txs := c.Transactions()
	if len(txs) > 0 {
		batch := &pgx.Batch{}
		for i, t := range txs {
			batch.Queue(`INSERT INTO charge_transactions (charge_id, gateway_id, position, type, status, amount_cents, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
				ON CONFLICT (charge_id, gateway_id) DO UPDATE SET type=$4, status=$5, amount_cents=$6, created_at=$7
				RETURNING id`,
				st.ID, t.GatewayID, i, t.Type, t.Status, t.AmountCents, t.CreatedAt)
		}
		br := tx.SendBatch(ctx, batch)
		for _, t := range txs {
			var id int64
			if err := br.QueryRow().Scan(&id); err != nil {
				_ = br.Close()
				return fmt.Errorf("upsert transaction %s: %w", t.GatewayID, err)
			}
			t.SetID(id)
		}
		if err := br.Close(); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status) VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		"charge", c.GatewayID(), eventType, payload, headers, traceparent)
	if err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

const selectCharge = `SELECT id, gateway_id, order_id, amount, paid_amount, canceled_amount, refunded_amount, code, status, created_at, updated_at FROM charges`

func (r *Repository) Get(ctx context.Context, id int64) (*domain.Charge, error) {
	return load(ctx, r.pool, selectCharge+` WHERE id=$1`, id)
}

func (r *Repository) GetByGatewayID(ctx context.Context, gatewayID string) (*domain.Charge, error) {
	return load(ctx, r.pool, selectCharge+` WHERE gateway_id=$1`, gatewayID)
}

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func load(ctx context.Context, q querier, query string, arg any) (*domain.Charge, error) {
	var st domain.ChargeState
	err := q.QueryRow(ctx, query, arg).
		Scan(&st.ID, &st.GatewayID, &st.OrderID, &st.Amount, &st.PaidAmount, &st.CanceledAmount, &st.RefundedAmount, &st.Code, &st.Status, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, application.ErrChargeNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `SELECT id, gateway_id, type, status, amount_cents, created_at
		FROM charge_transactions WHERE charge_id=$1 ORDER BY position, id`, st.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		var (
			localID int64
			t       domain.Transaction
		)
		if err := rows.Scan(&localID, &t.GatewayID, &t.Type, &t.Status, &t.AmountCents, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.SetID(localID)
		t.ChargeGatewayID = st.GatewayID
		txs = append(txs, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return domain.RestoreCharge(st, txs)
}
