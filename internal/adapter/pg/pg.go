package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/olyamironova/lending-engine/internal/domain"
	"github.com/olyamironova/lending-engine/internal/port"
)

var _ port.Repository = (*PgRepo)(nil)

type PgRepo struct {
	pool *pgxpool.Pool
}

// call Close when finished working with the database.
func NewPgRepo(ctx context.Context, dsn string) (*PgRepo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	return &PgRepo{pool: pool}, nil
}

func (p *PgRepo) Close(ctx context.Context) {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Side-specific terms are stored as jsonb: exactly one of lend_terms and
// borrow_terms is non-null per row.
func (p *PgRepo) SaveOrder(ctx context.Context, o *domain.Order) error {
	if o == nil {
		return errors.New("nil order")
	}
	var lendTerms, borrowTerms []byte
	var err error
	if o.Lend != nil {
		if lendTerms, err = json.Marshal(o.Lend); err != nil {
			return fmt.Errorf("pg: marshal lend terms: %w", err)
		}
	}
	if o.Borrow != nil {
		if borrowTerms, err = json.Marshal(o.Borrow); err != nil {
			return fmt.Errorf("pg: marshal borrow terms: %w", err)
		}
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO orders(id, owner_account, asset, side, status, principal, remaining, rate_bps, duration_seconds, lend_terms, borrow_terms, created_at, expires_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  remaining = EXCLUDED.remaining,
  lend_terms = EXCLUDED.lend_terms,
  borrow_terms = EXCLUDED.borrow_terms
`, o.ID, o.Owner, o.Asset, string(o.Side), string(o.Status),
		o.Principal, o.Remaining, o.Rate, int64(o.Duration/time.Second),
		lendTerms, borrowTerms, o.CreatedAt, o.ExpiresAt)
	return err
}

func (p *PgRepo) SaveLoan(ctx context.Context, l *domain.Loan) error {
	if l == nil {
		return errors.New("nil loan")
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO loans(id, borrower, lender, asset, principal, remaining_principal, rate_bps, start_time, duration_seconds, collateral_token, collateral_amount, accrued_interest, status, last_accrual)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  remaining_principal = EXCLUDED.remaining_principal,
  collateral_amount = EXCLUDED.collateral_amount,
  accrued_interest = EXCLUDED.accrued_interest,
  status = EXCLUDED.status,
  last_accrual = EXCLUDED.last_accrual
`, l.ID, l.Borrower, l.Lender, l.Asset, l.Principal, l.RemainingPrincipal,
		l.Rate, l.StartTime, int64(l.Duration/time.Second), l.CollateralToken,
		l.CollateralAmount, l.AccruedInterest, string(l.Status), l.LastAccrual)
	return err
}

func (p *PgRepo) SaveLiquidation(ctx context.Context, liq *domain.Liquidation) error {
	if liq == nil {
		return errors.New("nil liquidation")
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO liquidations(id, loan_id, liquidator, debt_covered, collateral_seized, reward, timestamp)
VALUES($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO NOTHING
`, liq.ID, liq.LoanID, liq.Liquidator, liq.DebtCovered, liq.CollateralSeized, liq.Reward, liq.Timestamp)
	return err
}

// LoadOpenOrders returns non-terminal orders for an asset ordered by
// created_at ASC (FIFO), for rebuilding the book on startup.
func (p *PgRepo) LoadOpenOrders(ctx context.Context, asset string) ([]*domain.Order, error) {
	rows, err := p.pool.Query(ctx, `
SELECT id, owner_account, asset, side, status, principal, remaining, rate_bps, duration_seconds, lend_terms, borrow_terms, created_at, expires_at
FROM orders
WHERE asset = $1 AND status IN ('PENDING','PARTIALLY_FILLED')
ORDER BY created_at ASC
`, asset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Order
	for rows.Next() {
		var o domain.Order
		var side, status string
		var durationSeconds int64
		var lendTerms, borrowTerms []byte
		if err := rows.Scan(&o.ID, &o.Owner, &o.Asset, &side, &status,
			&o.Principal, &o.Remaining, &o.Rate, &durationSeconds,
			&lendTerms, &borrowTerms, &o.CreatedAt, &o.ExpiresAt); err != nil {
			return nil, err
		}
		o.Side = domain.Side(side)
		o.Status = domain.OrderStatus(status)
		o.Duration = time.Duration(durationSeconds) * time.Second
		if len(lendTerms) > 0 {
			o.Lend = &domain.LendTerms{}
			if err := json.Unmarshal(lendTerms, o.Lend); err != nil {
				return nil, fmt.Errorf("pg: unmarshal lend terms for order %d: %w", o.ID, err)
			}
		}
		if len(borrowTerms) > 0 {
			o.Borrow = &domain.BorrowTerms{}
			if err := json.Unmarshal(borrowTerms, o.Borrow); err != nil {
				return nil, fmt.Errorf("pg: unmarshal borrow terms for order %d: %w", o.ID, err)
			}
		}
		res = append(res, &o)
	}
	return res, rows.Err()
}

func (p *PgRepo) LoadActiveLoans(ctx context.Context) ([]*domain.Loan, error) {
	rows, err := p.pool.Query(ctx, `
SELECT id, borrower, lender, asset, principal, remaining_principal, rate_bps, start_time, duration_seconds, collateral_token, collateral_amount, accrued_interest, status, last_accrual
FROM loans
WHERE status = 'ACTIVE'
ORDER BY id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Loan
	for rows.Next() {
		var l domain.Loan
		var status string
		var durationSeconds int64
		if err := rows.Scan(&l.ID, &l.Borrower, &l.Lender, &l.Asset,
			&l.Principal, &l.RemainingPrincipal, &l.Rate, &l.StartTime,
			&durationSeconds, &l.CollateralToken, &l.CollateralAmount,
			&l.AccruedInterest, &status, &l.LastAccrual); err != nil {
			return nil, err
		}
		l.Status = domain.LoanStatus(status)
		l.Duration = time.Duration(durationSeconds) * time.Second
		res = append(res, &l)
	}
	return res, rows.Err()
}
