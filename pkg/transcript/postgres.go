package transcript

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chriscow/tutor-agents-go/pkg/session"
)

// Schema is the SQL DDL for the tutoring tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS learning_sessions (
    session_id       TEXT PRIMARY KEY,
    room_name        TEXT NOT NULL,
    student_identity TEXT NOT NULL,
    session_report   JSONB,
    started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    ended_at         TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS transcript_turns (
    id           BIGSERIAL PRIMARY KEY,
    session_id   TEXT NOT NULL,
    turn_number  INT NOT NULL,
    speaker      TEXT NOT NULL,
    role         TEXT NOT NULL,
    content      TEXT NOT NULL,
    subject_area TEXT,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transcript_turns_session ON transcript_turns(session_id);
CREATE TABLE IF NOT EXISTS routing_decisions (
    id               BIGSERIAL PRIMARY KEY,
    session_id       TEXT NOT NULL,
    turn_number      INT NOT NULL,
    from_agent       TEXT NOT NULL,
    to_agent         TEXT NOT NULL,
    question_summary TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS escalation_events (
    id            BIGSERIAL PRIMARY KEY,
    session_id    TEXT NOT NULL,
    room_name     TEXT NOT NULL,
    reason        TEXT NOT NULL,
    teacher_token TEXT NOT NULL,
    expires_at    TIMESTAMPTZ NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS guardrail_events (
    id                 BIGSERIAL PRIMARY KEY,
    session_id         TEXT NOT NULL,
    agent_name         TEXT NOT NULL,
    original_text      TEXT NOT NULL,
    rewritten_text     TEXT NOT NULL,
    categories_flagged JSONB NOT NULL DEFAULT '[]',
    moderation_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
    action_taken       TEXT NOT NULL DEFAULT 'rewrite',
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_guardrail_events_session ON guardrail_events(session_id);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store using the given connection or pool. The
// caller is responsible for calling [PostgresStore.Migrate] before issuing
// queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL, creating the tables if they do not
// already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("transcript: migrate: %w", err)
	}
	return nil
}

// CreateSession inserts a learning_sessions row. Re-inserting an existing
// session id is not an error; a recovered session keeps its original row.
func (s *PostgresStore) CreateSession(ctx context.Context, sessionID, roomName, studentIdentity string) error {
	const query = `
		INSERT INTO learning_sessions (session_id, room_name, student_identity)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO NOTHING`
	if _, err := s.db.Exec(ctx, query, sessionID, roomName, studentIdentity); err != nil {
		return fmt.Errorf("transcript: create session %q: %w", sessionID, err)
	}
	return nil
}

// CloseSession stamps ended_at and stores the session report JSON.
func (s *PostgresStore) CloseSession(ctx context.Context, sessionID string, report session.Snapshot) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("transcript: marshal session report: %w", err)
	}
	const query = `
		UPDATE learning_sessions
		SET ended_at = now(), session_report = $2
		WHERE session_id = $1`
	if _, err := s.db.Exec(ctx, query, sessionID, reportJSON); err != nil {
		return fmt.Errorf("transcript: close session %q: %w", sessionID, err)
	}
	return nil
}

// SaveTurn inserts one transcript turn.
func (s *PostgresStore) SaveTurn(ctx context.Context, turn Turn) error {
	const query = `
		INSERT INTO transcript_turns (session_id, turn_number, speaker, role, content, subject_area)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))`
	_, err := s.db.Exec(ctx, query,
		turn.SessionID, turn.TurnNumber, turn.Speaker, turn.Role, turn.Content, string(turn.Subject))
	if err != nil {
		return fmt.Errorf("transcript: save turn %d for %q: %w", turn.TurnNumber, turn.SessionID, err)
	}
	return nil
}

// SaveRoutingDecision records an agent handoff.
func (s *PostgresStore) SaveRoutingDecision(ctx context.Context, d RoutingDecision) error {
	const query = `
		INSERT INTO routing_decisions (session_id, turn_number, from_agent, to_agent, question_summary)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.Exec(ctx, query,
		d.SessionID, d.TurnNumber, d.FromAgent, d.ToAgent, d.QuestionSummary)
	if err != nil {
		return fmt.Errorf("transcript: save routing decision for %q: %w", d.SessionID, err)
	}
	return nil
}

// SaveEscalation records a teacher escalation with its join token.
func (s *PostgresStore) SaveEscalation(ctx context.Context, e EscalationEvent) error {
	const query = `
		INSERT INTO escalation_events (session_id, room_name, reason, teacher_token, expires_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.Exec(ctx, query,
		e.SessionID, e.RoomName, e.Reason, e.TeacherToken, e.ExpiresAt)
	if err != nil {
		return fmt.Errorf("transcript: save escalation for %q: %w", e.SessionID, err)
	}
	return nil
}

// SaveGuardrailEvent records a safety audit event.
func (s *PostgresStore) SaveGuardrailEvent(ctx context.Context, e GuardrailEvent) error {
	categoriesJSON, err := json.Marshal(emptySlice(e.CategoriesFlagged))
	if err != nil {
		return fmt.Errorf("transcript: marshal categories: %w", err)
	}
	const query = `
		INSERT INTO guardrail_events
			(session_id, agent_name, original_text, rewritten_text, categories_flagged, moderation_score, action_taken)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = s.db.Exec(ctx, query,
		e.SessionID, e.AgentName, e.OriginalText, e.RewrittenText,
		categoriesJSON, e.ModerationScore, defaultAction(e.ActionTaken))
	if err != nil {
		return fmt.Errorf("transcript: save guardrail event for %q: %w", e.SessionID, err)
	}
	return nil
}

// defaultAction returns the action value, defaulting to "rewrite" if empty.
func defaultAction(a string) string {
	if a == "" {
		return "rewrite"
	}
	return a
}

// emptySlice returns s if non-nil, otherwise an empty non-nil slice so JSON
// marshalling produces "[]" instead of "null".
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
