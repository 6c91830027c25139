package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/eurocup-agent/server/internal/agent/model"
	logx "github.com/eurocup-agent/server/pkg/logger"
)

const insertStmt = `INSERT INTO user_questions
	(id, user_id, country, question, original_question, answer, question_language, strategy, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const (
	defaultAttempts = 3
	defaultBackoff  = 2 * time.Second
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresJournal persists one row per answered tool-backed question. Inserts
// retry transient faults with a fixed backoff; after the last attempt the
// failure is logged and swallowed so journaling can never break an answer.
type PostgresJournal struct {
	db       execer
	attempts int
	backoff  time.Duration
	sleep    func(time.Duration)
}

var _ model.QAJournal = (*PostgresJournal)(nil)

func NewPostgresJournal(db execer, cfg model.JournalConfig) *PostgresJournal {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	backoff := time.Duration(cfg.BackoffSeconds) * time.Second
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &PostgresJournal{db: db, attempts: attempts, backoff: backoff, sleep: time.Sleep}
}

func (j *PostgresJournal) Record(ctx context.Context, rec model.JournalRecord) error {
	var lastErr error
	for attempt := 1; attempt <= j.attempts; attempt++ {
		_, err := j.db.ExecContext(ctx, insertStmt,
			uuid.NewString(),
			rec.UserID,
			rec.Country,
			rec.Question,
			rec.OriginalQuestion,
			rec.Answer,
			rec.QuestionLanguage,
			rec.Strategy,
			time.Now().UTC(),
		)
		if err == nil {
			return nil
		}
		lastErr = err
		logx.Warn().Err(err).Int("attempt", attempt).Msg("journal insert failed")
		if attempt < j.attempts {
			j.sleep(j.backoff)
		}
	}

	logx.Error().Err(lastErr).Int("attempts", j.attempts).
		Str("user_id", rec.UserID).Msg("journal insert dropped after retries")
	return nil
}
