package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/micro-ha/pod-door-controller/internal/model"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ActuationFilter narrows ListActuations.
type ActuationFilter struct {
	DoorKey string
	Limit   int
}

func (f ActuationFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultListLimit
	case f.Limit > maxListLimit:
		return maxListLimit
	default:
		return f.Limit
	}
}

// Record stores one actuation; it satisfies executor.Sink.
func (r *Repository) Record(ctx context.Context, a model.Actuation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO actuations (id, topic, source, family, door_key, action, outcome, error, received_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		a.ID,
		a.Topic,
		a.Source,
		nullable(string(a.Family)),
		nullable(a.DoorKey),
		nullable(a.Action),
		string(a.Outcome),
		nullable(a.Error),
		fromTime(a.ReceivedAt),
		fromTime(a.StartedAt),
		fromTime(a.FinishedAt),
	)
	return err
}

// ListActuations returns the newest records first.
func (r *Repository) ListActuations(ctx context.Context, filter ActuationFilter) ([]model.Actuation, error) {
	query := `
		SELECT id, topic, source, family, door_key, action, outcome, error, received_at, started_at, finished_at
		FROM actuations`
	args := []any{}
	if key := strings.TrimSpace(filter.DoorKey); key != "" {
		query += ` WHERE door_key = ?`
		args = append(args, key)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, filter.limit())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []model.Actuation{}
	for rows.Next() {
		var (
			item                              model.Actuation
			family, doorKey, action, errText  sql.NullString
			receivedAt, startedAt, finishedAt sql.NullString
			outcome                           string
		)
		if err := rows.Scan(&item.ID, &item.Topic, &item.Source, &family, &doorKey, &action, &outcome, &errText,
			&receivedAt, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		item.Family = model.Family(family.String)
		item.DoorKey = doorKey.String
		item.Action = action.String
		item.Outcome = model.Outcome(outcome)
		item.Error = errText.String
		item.ReceivedAt = toTime(receivedAt)
		item.StartedAt = toTime(startedAt)
		item.FinishedAt = toTime(finishedAt)
		result = append(result, item)
	}
	return result, rows.Err()
}

// CountByOutcome summarizes the audit log.
func (r *Repository) CountByOutcome(ctx context.Context) (map[model.Outcome]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM actuations GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[model.Outcome]int{}
	for rows.Next() {
		var (
			outcome string
			count   int
		)
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		result[model.Outcome(outcome)] = count
	}
	return result, rows.Err()
}
