package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// ImportCatalog upserts the catalog in a single transaction. Members get their
// profile, completed lessons, challenge enrollments and quest progress.
func (s *SQLiteStore) ImportCatalog(ctx context.Context, c *Catalog) error {
	if err := c.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog import: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			slog.Warn("failed to rollback catalog import", "error", rbErr)
		}
	}()

	now := s.now()
	if err := importContent(ctx, tx, c, now); err != nil {
		return err
	}
	if err := importMembers(ctx, tx, c, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog import: %w", err)
	}
	slog.Info("Catalog imported",
		"modules", len(c.Modules),
		"challenges", len(c.Challenges),
		"quests", len(c.Quests),
		"members", len(c.Members),
	)
	return nil
}

func importContent(ctx context.Context, tx *sql.Tx, c *Catalog, now time.Time) error {
	for i, m := range c.Modules {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO modules (id, title, description, position, published)
			VALUES (?, ?, ?, ?, 1)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				position = excluded.position`,
			m.ID, m.Title, m.Description, i+1,
		); err != nil {
			return fmt.Errorf("import module %s: %w", m.ID, err)
		}
		for j, l := range m.Lessons {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO lessons (id, module_id, title, description, position)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					module_id = excluded.module_id,
					title = excluded.title,
					description = excluded.description,
					position = excluded.position`,
				l.ID, m.ID, l.Title, l.Description, j+1,
			); err != nil {
				return fmt.Errorf("import lesson %s: %w", l.ID, err)
			}
		}
	}

	for _, ch := range c.Challenges {
		days := ch.DurationDays
		if days <= 0 {
			days = 30
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO challenges (id, title, description, target, reward, starts_at, ends_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				target = excluded.target,
				reward = excluded.reward,
				ends_at = excluded.ends_at`,
			ch.ID, ch.Title, ch.Description, ch.Target, ch.Reward,
			now.Unix(), now.Add(time.Duration(days)*24*time.Hour).Unix(),
		); err != nil {
			return fmt.Errorf("import challenge %s: %w", ch.ID, err)
		}
	}

	for _, q := range c.Quests {
		var xp interface{}
		if q.XP != nil {
			xp = *q.XP
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO quests (id, title, description, target, xp)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				target = excluded.target,
				xp = excluded.xp`,
			q.ID, q.Title, q.Description, q.Target, xp,
		); err != nil {
			return fmt.Errorf("import quest %s: %w", q.ID, err)
		}
	}
	return nil
}

func importMembers(ctx context.Context, tx *sql.Tx, c *Catalog, now time.Time) error {
	for _, m := range c.Members {
		role := m.Role
		if role == "" {
			role = "student"
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (user_id, full_name, email, role, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				full_name = excluded.full_name,
				email = excluded.email,
				role = excluded.role,
				updated_at = excluded.updated_at`,
			m.UserID, m.FullName, m.Email, role, now.Unix(), now.Unix(),
		); err != nil {
			return fmt.Errorf("import member %s: %w", m.UserID, err)
		}

		for i, lessonID := range m.CompletedLessons {
			// Spread completions so the most recent one is the last listed.
			at := now.Add(time.Duration(i-len(m.CompletedLessons)) * time.Hour)
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO lesson_completions (user_id, lesson_id, completed_at)
				VALUES (?, ?, ?)
				ON CONFLICT(user_id, lesson_id) DO NOTHING`,
				m.UserID, lessonID, at.Unix(),
			); err != nil {
				return fmt.Errorf("import completion %s/%s: %w", m.UserID, lessonID, err)
			}
		}

		for challengeID, progress := range m.Challenges {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO challenge_participations (challenge_id, user_id, progress, joined_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(challenge_id, user_id) DO UPDATE SET progress = excluded.progress`,
				challengeID, m.UserID, progress, now.Unix(),
			); err != nil {
				return fmt.Errorf("import participation %s/%s: %w", m.UserID, challengeID, err)
			}
		}

		for questID, progress := range m.Quests {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO quest_progress (quest_id, user_id, progress, status, updated_at)
				VALUES (?, ?, ?, 'active', ?)
				ON CONFLICT(quest_id, user_id) DO UPDATE SET
					progress = excluded.progress,
					updated_at = excluded.updated_at`,
				questID, m.UserID, progress, now.Unix(),
			); err != nil {
				return fmt.Errorf("import quest progress %s/%s: %w", m.UserID, questID, err)
			}
		}
	}
	return nil
}
