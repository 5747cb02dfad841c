package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/RiskScore/internal/scoring"
)

// Schema creates the tables used by PostgresStore.
const Schema = `
CREATE TABLE IF NOT EXISTS reference_population (
	position   INTEGER PRIMARY KEY,
	company    TEXT NOT NULL DEFAULT '',
	fields     JSONB NOT NULL,
	loaded_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS risk_evaluations (
	evaluation_id        UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	company_name         TEXT NOT NULL,
	ticker               TEXT NOT NULL DEFAULT '',
	ratio_source         TEXT NOT NULL DEFAULT '',
	loan_value           DOUBLE PRECISION NOT NULL,
	collateral_value     DOUBLE PRECISION NOT NULL,
	credit_score         DOUBLE PRECISION NOT NULL,
	ratios               JSONB NOT NULL DEFAULT '{}',
	final_risk_score     DOUBLE PRECISION NOT NULL,
	financial_risk_score DOUBLE PRECISION NOT NULL,
	repayment_risk_score DOUBLE PRECISION NOT NULL,
	ltc_ratio            DOUBLE PRECISION,
	population_size      INTEGER NOT NULL,
	factors              JSONB,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS risk_evaluations_company_idx ON risk_evaluations (company_name, created_at DESC);

CREATE TABLE IF NOT EXISTS risk_audit_tables (
	evaluation_id UUID PRIMARY KEY,
	scaled_table  JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate applies Schema. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Reference population ---

func (s *PostgresStore) ListPopulation(ctx context.Context) ([]scoring.Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT fields FROM reference_population ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scoring.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		rec := scoring.Record{}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode population row %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ReplacePopulation(ctx context.Context, population []PopulationRow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM reference_population`); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, row := range population {
		fields, err := json.Marshal(row.Fields)
		if err != nil {
			return fmt.Errorf("encode population row %d: %w", i, err)
		}
		batch.Queue(`INSERT INTO reference_population (position, company, fields) VALUES ($1, $2, $3)`,
			i, row.Company, fields)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert population: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) CountPopulation(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reference_population`).Scan(&n)
	return n, err
}

// --- Evaluations ---

const evaluationColumns = `evaluation_id, company_name, ticker, ratio_source,
	loan_value, collateral_value, credit_score, ratios,
	final_risk_score, financial_risk_score, repayment_risk_score, ltc_ratio,
	population_size, factors, created_at`

func (s *PostgresStore) CreateEvaluation(ctx context.Context, e *Evaluation) error {
	ratiosJSON, err := json.Marshal(e.Ratios)
	if err != nil {
		return fmt.Errorf("encode ratios: %w", err)
	}
	factorsJSON, err := json.Marshal(e.Factors)
	if err != nil {
		return fmt.Errorf("encode factors: %w", err)
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	return s.pool.QueryRow(ctx, `
		INSERT INTO risk_evaluations (evaluation_id, company_name, ticker, ratio_source,
			loan_value, collateral_value, credit_score, ratios,
			final_risk_score, financial_risk_score, repayment_risk_score, ltc_ratio,
			population_size, factors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at`,
		e.ID, e.CompanyName, e.Ticker, e.RatioSource,
		e.LoanValue, e.CollateralValue, e.CreditScore, ratiosJSON,
		e.FinalRiskScore, e.FinancialRiskScore, e.RepaymentRiskScore, e.LtCRatio,
		e.PopulationSize, factorsJSON,
	).Scan(&e.CreatedAt)
}

func (s *PostgresStore) GetEvaluation(ctx context.Context, id uuid.UUID) (*Evaluation, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+evaluationColumns+` FROM risk_evaluations WHERE evaluation_id = $1`, id)
	e, err := scanEvaluation(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (s *PostgresStore) ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]*Evaluation, error) {
	query := `SELECT ` + evaluationColumns + ` FROM risk_evaluations WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.Company != "" {
		n++
		query += fmt.Sprintf(" AND company_name = $%d", n)
		args = append(args, filter.Company)
	}
	if filter.Ticker != "" {
		n++
		query += fmt.Sprintf(" AND ticker = $%d", n)
		args = append(args, filter.Ticker)
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		n++
		query += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEvaluation(row pgx.Row) (*Evaluation, error) {
	e := &Evaluation{}
	var ratiosJSON, factorsJSON []byte
	err := row.Scan(
		&e.ID, &e.CompanyName, &e.Ticker, &e.RatioSource,
		&e.LoanValue, &e.CollateralValue, &e.CreditScore, &ratiosJSON,
		&e.FinalRiskScore, &e.FinancialRiskScore, &e.RepaymentRiskScore, &e.LtCRatio,
		&e.PopulationSize, &factorsJSON, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if ratiosJSON != nil {
		_ = json.Unmarshal(ratiosJSON, &e.Ratios)
	}
	if factorsJSON != nil {
		_ = json.Unmarshal(factorsJSON, &e.Factors)
	}
	return e, nil
}

// --- Audit ---

func (s *PostgresStore) SaveAuditTable(ctx context.Context, evaluationID uuid.UUID, t *scoring.Table) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode audit table: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO risk_audit_tables (evaluation_id, scaled_table) VALUES ($1, $2)
		ON CONFLICT (evaluation_id) DO UPDATE SET scaled_table = EXCLUDED.scaled_table`,
		evaluationID, data)
	return err
}

func (s *PostgresStore) GetAuditTable(ctx context.Context, evaluationID uuid.UUID) (*AuditTable, error) {
	a := &AuditTable{EvaluationID: evaluationID}
	var data []byte
	err := s.pool.QueryRow(ctx, `
		SELECT scaled_table, created_at FROM risk_audit_tables WHERE evaluation_id = $1`,
		evaluationID,
	).Scan(&data, &a.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Table = &scoring.Table{}
	if err := json.Unmarshal(data, a.Table); err != nil {
		return nil, fmt.Errorf("decode audit table: %w", err)
	}
	return a, nil
}
