package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/repository"
)

// Ensure JobStore implements repository.JobStore.
var _ repository.JobStore = (*JobStore)(nil)

const uniqueViolation = "23505"

type JobStore struct {
	pool *pgxpool.Pool
}

// NewPostgresJobStore creates a new PostgreSQL-backed job store.
func NewPostgresJobStore(pool *pgxpool.Pool) *JobStore {
	return &JobStore{pool: pool}
}

func (r *JobStore) Create(ctx context.Context, id uuid.UUID, spec domain.JobSpec) error {
	query := `
		INSERT INTO recon_jobs (job_id, kind, spec, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("postgres: encode spec: %w", err)
	}

	st := repository.NewPendingState(id, spec.Kind)
	_, err = r.pool.Exec(ctx, query, id, st.Kind, specJSON, st.Status, st.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrJobExists
		}
		return fmt.Errorf("postgres: create job: %w", err)
	}
	return nil
}

func (r *JobStore) Write(ctx context.Context, id uuid.UUID, state *domain.JobState) error {
	query := `
		UPDATE recon_jobs
		SET status = $1, progress = $2, result = $3, error = $4, updated_at = $5
		WHERE job_id = $6 AND status NOT IN ('SUCCEEDED', 'FAILED', 'CANCELLED')`

	resultJSON, err := json.Marshal(state.Result)
	if err != nil {
		return fmt.Errorf("postgres: encode result: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query,
		state.Status, state.Progress, resultJSON, state.Error, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("postgres: write job: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing updated: either the job does not exist or it is terminal.
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM recon_jobs WHERE job_id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: write job: %w", err)
	}
	if !exists {
		return domain.ErrJobNotFound
	}
	return domain.ErrJobTerminal
}

func (r *JobStore) Read(ctx context.Context, id uuid.UUID) (*domain.JobState, error) {
	query := `
		SELECT job_id, kind, status, progress, result, error, created_at, updated_at
		FROM recon_jobs
		WHERE job_id = $1`

	st := &domain.JobState{}
	var resultJSON []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&st.JobID, &st.Kind, &st.Status, &st.Progress,
		&resultJSON, &st.Error, &st.CreatedAt, &st.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: read job: %w", err)
	}
	if err := json.Unmarshal(resultJSON, &st.Result); err != nil {
		return nil, fmt.Errorf("postgres: decode result: %w", err)
	}
	st.CreatedAt = st.CreatedAt.UTC()
	st.UpdatedAt = st.UpdatedAt.UTC()
	return st, nil
}

func (r *JobStore) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
