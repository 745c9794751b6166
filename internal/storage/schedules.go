package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerline/billrun/internal/model"
)

// CreateSchedule validates and inserts a schedule, assigning its ID. When the
// next billing date is unset it is initialized to the start date.
func (s *SQLiteStorage) CreateSchedule(ctx context.Context, schedule *model.Schedule) error {
	return s.createSchedule(ctx, s.db, schedule)
}

func (s *SQLiteStorage) createSchedule(ctx context.Context, q dbtx, schedule *model.Schedule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if schedule == nil {
		return fmt.Errorf("%w: schedule", ErrNilParameter)
	}
	if err := schedule.Validate(); err != nil {
		return err
	}

	if schedule.NextBillingDate.IsZero() {
		schedule.NextBillingDate = schedule.StartDate
	}

	params, err := encodeFrequencyParams(schedule.FrequencyParams)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO schedules (contact_id, creditor_id, amount, currency, language,
		                        frequency, frequency_params, description_template,
		                        start_date, next_billing_date, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		schedule.ContactID, schedule.CreditorID, schedule.Amount.StringFixed(2),
		schedule.Currency, schedule.Language,
		schedule.Frequency, params, schedule.DescriptionTemplate,
		schedule.StartDate.UTC(), schedule.NextBillingDate.UTC(),
		boolToInt(schedule.IsActive))
	if err != nil {
		return fmt.Errorf("failed to insert schedule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get schedule id: %w", err)
	}
	schedule.ID = id
	return nil
}

const scheduleColumns = `id, contact_id, creditor_id, amount, currency, language,
	frequency, frequency_params, description_template,
	start_date, next_billing_date, is_active, created_at`

// GetSchedule returns the schedule with the given ID.
func (s *SQLiteStorage) GetSchedule(ctx context.Context, id int64) (*model.Schedule, error) {
	return s.getSchedule(ctx, s.db, id)
}

func (s *SQLiteStorage) getSchedule(ctx context.Context, q dbtx, id int64) (*model.Schedule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}

	row := q.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	schedule, err := scanSchedule(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: schedule %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return schedule, nil
}

// ListSchedules returns all schedules ordered by next billing date.
func (s *SQLiteStorage) ListSchedules(ctx context.Context) ([]model.Schedule, error) {
	return s.listSchedules(ctx, s.db)
}

func (s *SQLiteStorage) listSchedules(ctx context.Context, q dbtx) ([]model.Schedule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.querySchedules(ctx, q,
		`SELECT `+scheduleColumns+` FROM schedules ORDER BY next_billing_date, id`)
}

// GetDueSchedules returns active schedules whose next billing date is at or
// before now, oldest first.
func (s *SQLiteStorage) GetDueSchedules(ctx context.Context, now time.Time) ([]model.Schedule, error) {
	return s.getDueSchedules(ctx, s.db, now)
}

func (s *SQLiteStorage) getDueSchedules(ctx context.Context, q dbtx, now time.Time) ([]model.Schedule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.querySchedules(ctx, q,
		`SELECT `+scheduleColumns+` FROM schedules
		 WHERE is_active = 1 AND next_billing_date <= ?
		 ORDER BY next_billing_date, id`, now.UTC())
}

func (s *SQLiteStorage) querySchedules(ctx context.Context, q dbtx, query string, args ...any) ([]model.Schedule, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var schedules []model.Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, *schedule)
	}
	return schedules, rows.Err()
}

// UpdateScheduleNextBillingDate advances the schedule's billing cursor. The
// cursor only moves forward; an update to an earlier date is rejected.
func (s *SQLiteStorage) UpdateScheduleNextBillingDate(ctx context.Context, id int64, next time.Time) error {
	return s.updateScheduleNextBillingDate(ctx, s.db, id, next)
}

func (s *SQLiteStorage) updateScheduleNextBillingDate(ctx context.Context, q dbtx, id int64, next time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id, "id"); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx,
		`UPDATE schedules SET next_billing_date = ?
		 WHERE id = ? AND next_billing_date <= ?`,
		next.UTC(), id, next.UTC())
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: schedule %d (or next billing date would move backwards)", ErrNotFound, id)
	}
	return nil
}

// SetScheduleActive toggles whether the schedule participates in bill
// generation.
func (s *SQLiteStorage) SetScheduleActive(ctx context.Context, id int64, active bool) error {
	return s.setScheduleActive(ctx, s.db, id, active)
}

func (s *SQLiteStorage) setScheduleActive(ctx context.Context, q dbtx, id int64, active bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id, "id"); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx,
		`UPDATE schedules SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: schedule %d", ErrNotFound, id)
	}
	return nil
}

// DeleteSchedule removes a schedule. Bills generated from it survive with
// their schedule reference cleared.
func (s *SQLiteStorage) DeleteSchedule(ctx context.Context, id int64) error {
	return s.deleteSchedule(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteSchedule(ctx context.Context, q dbtx, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id, "id"); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: schedule %d", ErrNotFound, id)
	}
	return nil
}

// scanSchedule reads one schedule row via the given Scan function, shared by
// single-row and multi-row queries.
func scanSchedule(scan func(dest ...any) error) (*model.Schedule, error) {
	var (
		schedule model.Schedule
		amount   string
		params   string
		active   int
	)
	err := scan(&schedule.ID, &schedule.ContactID, &schedule.CreditorID,
		&amount, &schedule.Currency, &schedule.Language,
		&schedule.Frequency, &params, &schedule.DescriptionTemplate,
		&schedule.StartDate, &schedule.NextBillingDate, &active, &schedule.CreatedAt)
	if err != nil {
		return nil, err
	}

	schedule.Amount, err = parseAmount(amount)
	if err != nil {
		return nil, err
	}
	schedule.FrequencyParams, err = decodeFrequencyParams(params)
	if err != nil {
		return nil, err
	}
	schedule.StartDate = schedule.StartDate.UTC()
	schedule.NextBillingDate = schedule.NextBillingDate.UTC()
	schedule.IsActive = active != 0
	return &schedule, nil
}

func encodeFrequencyParams(params map[string]any) (string, error) {
	if len(params) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode frequency params: %w", err)
	}
	return string(data), nil
}

func decodeFrequencyParams(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(data), &params); err != nil {
		return nil, fmt.Errorf("failed to decode frequency params: %w", err)
	}
	return params, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
