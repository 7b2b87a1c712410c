package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/repository"
)

var _ repository.JobStore = (*JobStore)(nil)

const jobKeyPrefix = "motegao:job:"

// Each job is a hash: status, kind, created_at, updated_at and a JSON
// "state" field carrying progress, result and error.
var createScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'kind', ARGV[2], 'created_at', ARGV[3], 'updated_at', ARGV[3], 'state', ARGV[4])
return 1
`)

// writeScript returns -1 when the job is missing and -2 when it is already
// terminal. ARGV[5] is a TTL in milliseconds applied to terminal writes.
var writeScript = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'status')
if not cur then
	return -1
end
if cur == 'SUCCEEDED' or cur == 'FAILED' or cur == 'CANCELLED' then
	return -2
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'updated_at', ARGV[2], 'state', ARGV[3])
if ARGV[4] == '1' and tonumber(ARGV[5]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[5])
end
return 1
`)

type storedState struct {
	Progress float64          `json:"progress"`
	Result   domain.JobResult `json:"result"`
	Error    string           `json:"error,omitempty"`
}

// JobStore keeps job state in Redis hashes.
type JobStore struct {
	client      goredis.UniversalClient
	terminalTTL time.Duration
}

// NewJobStore creates a Redis-backed job store. A positive terminalTTL
// expires jobs that long after they reach a terminal state.
func NewJobStore(client goredis.UniversalClient, terminalTTL time.Duration) *JobStore {
	return &JobStore{client: client, terminalTTL: terminalTTL}
}

func jobKey(id uuid.UUID) string { return jobKeyPrefix + id.String() }

func (s *JobStore) Create(ctx context.Context, id uuid.UUID, spec domain.JobSpec) error {
	st := repository.NewPendingState(id, spec.Kind)
	payload, err := json.Marshal(storedState{})
	if err != nil {
		return fmt.Errorf("redis: encode state: %w", err)
	}

	n, err := createScript.Run(ctx, s.client, []string{jobKey(id)},
		string(st.Status), string(st.Kind), st.CreatedAt.Format(time.RFC3339Nano), payload,
	).Int()
	if err != nil {
		return fmt.Errorf("redis: create job: %w", err)
	}
	if n == 0 {
		return domain.ErrJobExists
	}
	return nil
}

func (s *JobStore) Write(ctx context.Context, id uuid.UUID, state *domain.JobState) error {
	payload, err := json.Marshal(storedState{Progress: state.Progress, Result: state.Result, Error: state.Error})
	if err != nil {
		return fmt.Errorf("redis: encode state: %w", err)
	}

	terminal := "0"
	if state.Status.IsTerminal() {
		terminal = "1"
	}

	n, err := writeScript.Run(ctx, s.client, []string{jobKey(id)},
		string(state.Status), time.Now().UTC().Format(time.RFC3339Nano), payload,
		terminal, s.terminalTTL.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis: write job: %w", err)
	}
	switch n {
	case -1:
		return domain.ErrJobNotFound
	case -2:
		return domain.ErrJobTerminal
	}
	return nil
}

func (s *JobStore) Read(ctx context.Context, id uuid.UUID) (*domain.JobState, error) {
	fields, err := s.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read job: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrJobNotFound
	}

	var stored storedState
	if err := json.Unmarshal([]byte(fields["state"]), &stored); err != nil {
		return nil, fmt.Errorf("redis: decode state: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("redis: decode created_at: %w", err)
	}
	updated, err := time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("redis: decode updated_at: %w", err)
	}

	return &domain.JobState{
		JobID:     id,
		Kind:      domain.JobKind(fields["kind"]),
		Status:    domain.JobStatus(fields["status"]),
		Progress:  stored.Progress,
		Result:    stored.Result,
		Error:     stored.Error,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

func (s *JobStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}
