package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/academy-assistant/internal/domain"
	"github.com/ashureev/academy-assistant/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// WAL mode for better concurrency; foreign keys for participation cleanup.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'student',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS modules (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0,
		published INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS lessons (
		id TEXT PRIMARY KEY,
		module_id TEXT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_lessons_module ON lessons(module_id, position);

	CREATE TABLE IF NOT EXISTS lesson_completions (
		user_id TEXT NOT NULL,
		lesson_id TEXT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
		completed_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, lesson_id)
	);

	CREATE TABLE IF NOT EXISTS challenges (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		target INTEGER NOT NULL,
		reward TEXT NOT NULL DEFAULT '',
		starts_at INTEGER NOT NULL,
		ends_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS challenge_participations (
		challenge_id TEXT NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		joined_at INTEGER NOT NULL,
		completed_at INTEGER,
		reward_claimed INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (challenge_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS quests (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		target INTEGER NOT NULL,
		xp INTEGER
	);

	CREATE TABLE IF NOT EXISTS quest_progress (
		quest_id TEXT NOT NULL REFERENCES quests(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (quest_id, user_id)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetProfile retrieves a profile by user ID.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	query := `
		SELECT user_id, full_name, email, role, created_at, updated_at
		FROM profiles WHERE user_id = ?`

	var p domain.Profile
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &p.FullName, &p.Email, &p.Role, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile row: %w", err)
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// UpsertProfile creates or updates a profile record.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *domain.Profile) error {
	query := `
	INSERT INTO profiles (user_id, full_name, email, role, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		full_name = excluded.full_name,
		email = excluded.email,
		role = excluded.role,
		updated_at = excluded.updated_at`

	role := p.Role
	if role == "" {
		role = domain.RoleStudent
	}
	now := s.now()
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err := s.db.ExecContext(ctx, query,
		p.UserID, p.FullName, p.Email, role, createdAt.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// GetProgressSummary returns per-module completion and the continue-learning pointer.
func (s *SQLiteStore) GetProgressSummary(ctx context.Context, userID string) (*domain.ProgressSummary, error) {
	query := `
		SELECT m.id, m.title,
		       COUNT(l.id) AS total,
		       COUNT(lc.lesson_id) AS done,
		       COALESCE(MAX(lc.completed_at), 0) AS last_activity
		FROM modules m
		LEFT JOIN lessons l ON l.module_id = m.id
		LEFT JOIN lesson_completions lc ON lc.lesson_id = l.id AND lc.user_id = ?
		WHERE m.published = 1
		GROUP BY m.id, m.title, m.position
		ORDER BY m.position, m.id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query module progress: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close module progress rows", "error", closeErr)
		}
	}()

	summary := &domain.ProgressSummary{Modules: []domain.ModuleProgress{}}
	var lastActivity []int64
	for rows.Next() {
		var mp domain.ModuleProgress
		var last int64
		if err := rows.Scan(&mp.ModuleID, &mp.ModuleTitle, &mp.TotalLessons, &mp.CompletedLessons, &last); err != nil {
			return nil, fmt.Errorf("scan module progress row: %w", err)
		}
		if mp.TotalLessons > 0 {
			mp.CompletionRate = float64(mp.CompletedLessons) * 100 / float64(mp.TotalLessons)
		}
		mp.IsCompleted = mp.TotalLessons > 0 && mp.CompletedLessons == mp.TotalLessons
		summary.Modules = append(summary.Modules, mp)
		lastActivity = append(lastActivity, last)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate module progress: %w", err)
	}

	idx := pickContinueModule(summary.Modules, lastActivity)
	if idx < 0 {
		return summary, nil
	}

	next, err := s.nextLesson(ctx, userID, summary.Modules[idx].ModuleID)
	if err != nil {
		return nil, err
	}
	if next != nil {
		mp := summary.Modules[idx]
		summary.ContinueLearning = &domain.ContinueLearning{
			ModuleID:       mp.ModuleID,
			ModuleTitle:    mp.ModuleTitle,
			LessonID:       next.ID,
			LessonTitle:    next.Title,
			CompletionRate: mp.CompletionRate,
		}
	}
	return summary, nil
}

// pickContinueModule returns the most recently touched unfinished module, or
// the first unfinished module once the member has any activity. -1 when the
// member has no activity or nothing is left.
func pickContinueModule(modules []domain.ModuleProgress, lastActivity []int64) int {
	best := -1
	var bestAt int64
	anyActivity := false
	for i, m := range modules {
		if lastActivity[i] > 0 {
			anyActivity = true
		}
		if m.IsCompleted || m.TotalLessons == 0 {
			continue
		}
		if lastActivity[i] > bestAt {
			best = i
			bestAt = lastActivity[i]
		}
	}
	if best >= 0 || !anyActivity {
		return best
	}
	for i, m := range modules {
		if !m.IsCompleted && m.TotalLessons > 0 {
			return i
		}
	}
	return -1
}

func (s *SQLiteStore) nextLesson(ctx context.Context, userID, moduleID string) (*domain.Lesson, error) {
	query := `
		SELECT l.id, l.module_id, l.title, l.description, l.position
		FROM lessons l
		LEFT JOIN lesson_completions lc ON lc.lesson_id = l.id AND lc.user_id = ?
		WHERE l.module_id = ? AND lc.lesson_id IS NULL
		ORDER BY l.position, l.id
		LIMIT 1`

	var l domain.Lesson
	err := s.db.QueryRowContext(ctx, query, userID, moduleID).Scan(
		&l.ID, &l.ModuleID, &l.Title, &l.Description, &l.Position,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan next lesson: %w", err)
	}
	return &l, nil
}

// CompleteLesson marks a lesson as completed for a user.
func (s *SQLiteStore) CompleteLesson(ctx context.Context, userID, lessonID string, at time.Time) error {
	query := `
		INSERT INTO lesson_completions (user_id, lesson_id, completed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, lesson_id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, userID, lessonID, at.Unix()); err != nil {
		return fmt.Errorf("complete lesson: %w", err)
	}
	return nil
}

// ActiveChallenges lists running challenges with the user's participation.
func (s *SQLiteStore) ActiveChallenges(ctx context.Context, userID string) ([]domain.Challenge, error) {
	query := `
		SELECT c.id, c.title, c.description, c.target, c.reward, c.ends_at,
		       (SELECT COUNT(*) FROM challenge_participations cp WHERE cp.challenge_id = c.id) AS participants,
		       p.progress, p.joined_at, p.completed_at, p.reward_claimed,
		       CASE WHEN p.user_id IS NULL THEN NULL ELSE
		         (SELECT COUNT(*) + 1 FROM challenge_participations r
		          WHERE r.challenge_id = c.id AND r.progress > p.progress)
		       END AS user_rank
		FROM challenges c
		LEFT JOIN challenge_participations p ON p.challenge_id = c.id AND p.user_id = ?
		WHERE c.starts_at <= ? AND c.ends_at > ?
		ORDER BY c.ends_at, c.id`

	now := s.now().Unix()
	rows, err := s.db.QueryContext(ctx, query, userID, now, now)
	if err != nil {
		return nil, fmt.Errorf("query active challenges: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close challenge rows", "error", closeErr)
		}
	}()

	challenges := []domain.Challenge{}
	for rows.Next() {
		var c domain.Challenge
		var endsAt int64
		var progress, joinedAt, completedAt, rank sql.NullInt64
		var claimed sql.NullBool
		if err := rows.Scan(
			&c.ID, &c.Title, &c.Description, &c.Target, &c.Reward, &endsAt,
			&c.Participants,
			&progress, &joinedAt, &completedAt, &claimed,
			&rank,
		); err != nil {
			return nil, fmt.Errorf("scan challenge row: %w", err)
		}
		c.EndsAt = time.Unix(endsAt, 0)
		if joinedAt.Valid {
			c.Progress = int(progress.Int64)
			part := &domain.Participation{
				JoinedAt:      time.Unix(joinedAt.Int64, 0),
				RewardClaimed: claimed.Bool,
			}
			if completedAt.Valid {
				ts := time.Unix(completedAt.Int64, 0)
				part.CompletedAt = &ts
			}
			c.Participation = part
		}
		if rank.Valid {
			r := int(rank.Int64)
			c.UserRank = &r
		}
		challenges = append(challenges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate challenges: %w", err)
	}
	return challenges, nil
}

// JoinChallenge enrolls a user in a challenge.
// Retries with exponential backoff to handle SQLITE_BUSY errors.
func (s *SQLiteStore) JoinChallenge(ctx context.Context, challengeID, userID string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM challenges WHERE id = ?`, challengeID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("challenge %s: %w", challengeID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup challenge: %w", err)
	}

	query := `
		INSERT INTO challenge_participations (challenge_id, user_id, progress, joined_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(challenge_id, user_id) DO NOTHING`
	return s.execWithRetry(ctx, "join challenge", query, challengeID, userID, s.now().Unix())
}

// ClaimChallengeReward marks a completed challenge reward as claimed.
func (s *SQLiteStore) ClaimChallengeReward(ctx context.Context, challengeID, userID string) error {
	query := `
		UPDATE challenge_participations SET reward_claimed = 1
		WHERE challenge_id = ? AND user_id = ? AND completed_at IS NOT NULL AND reward_claimed = 0`
	result, err := s.db.ExecContext(ctx, query, challengeID, userID)
	if err != nil {
		return fmt.Errorf("claim challenge reward: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no claimable reward for challenge %s: %w", challengeID, ErrNotFound)
	}
	return nil
}

// ActiveQuests lists quests with the user's progress.
func (s *SQLiteStore) ActiveQuests(ctx context.Context, userID string) ([]domain.Quest, error) {
	query := `
		SELECT q.id, q.title, q.description, q.target, q.xp,
		       COALESCE(qp.progress, 0), COALESCE(qp.status, 'active')
		FROM quests q
		LEFT JOIN quest_progress qp ON qp.quest_id = q.id AND qp.user_id = ?
		ORDER BY q.id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query quests: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close quest rows", "error", closeErr)
		}
	}()

	quests := []domain.Quest{}
	for rows.Next() {
		var q domain.Quest
		var xp sql.NullInt64
		if err := rows.Scan(&q.ID, &q.Title, &q.Description, &q.Target, &xp, &q.Progress, &q.Status); err != nil {
			return nil, fmt.Errorf("scan quest row: %w", err)
		}
		if xp.Valid {
			v := int(xp.Int64)
			q.Reward.XP = &v
		}
		if q.Target > 0 {
			q.Percentage = min(100, q.Progress*100/q.Target)
		}
		quests = append(quests, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quests: %w", err)
	}
	return quests, nil
}

// SearchModules lists published modules, filtered by keyword when non-empty.
func (s *SQLiteStore) SearchModules(ctx context.Context, keyword string) ([]domain.Module, error) {
	query := `
		SELECT id, title, description, position FROM modules
		WHERE published = 1`
	var args []interface{}
	if kw := strings.TrimSpace(keyword); kw != "" {
		query += ` AND (LOWER(title) LIKE ? OR LOWER(description) LIKE ?)`
		pattern := "%" + strings.ToLower(kw) + "%"
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY position, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close module rows", "error", closeErr)
		}
	}()

	modules := []domain.Module{}
	for rows.Next() {
		var m domain.Module
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.Position); err != nil {
			return nil, fmt.Errorf("scan module row: %w", err)
		}
		modules = append(modules, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modules: %w", err)
	}
	return modules, nil
}

// ListLessons lists the lessons of a module in order.
func (s *SQLiteStore) ListLessons(ctx context.Context, moduleID string) ([]domain.Lesson, error) {
	query := `
		SELECT id, module_id, title, description, position FROM lessons
		WHERE module_id = ? ORDER BY position, id`

	rows, err := s.db.QueryContext(ctx, query, moduleID)
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close lesson rows", "error", closeErr)
		}
	}()

	lessons := []domain.Lesson{}
	for rows.Next() {
		var l domain.Lesson
		if err := rows.Scan(&l.ID, &l.ModuleID, &l.Title, &l.Description, &l.Position); err != nil {
			return nil, fmt.Errorf("scan lesson row: %w", err)
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lessons: %w", err)
	}
	return lessons, nil
}

// execWithRetry runs a statement, retrying SQLITE_BUSY and locked errors with
// exponential backoff: 50ms, 100ms, 200ms.
func (s *SQLiteStore) execWithRetry(ctx context.Context, op, query string, args ...interface{}) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		_, err := s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("Database locked, retrying", "op", op, "attempt", i+1, "delay", delay)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", op, ctx.Err())
			}
		}

		return fmt.Errorf("%s after %d attempts: %w", op, i+1, err)
	}
	return nil
}
