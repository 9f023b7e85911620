package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
)

const appointmentColumns = `a.id, a.item_id, a.requester_id, a.owner_id, a.appointment_time,
	a.location, a.location_lat, a.location_lng, a.status, a.notes, a.reminder_sent, a.created_at,
	i.name, ru.username, ou.username`

const appointmentFrom = ` FROM appointments a
	JOIN items i ON i.id = a.item_id
	JOIN users ru ON ru.id = a.requester_id
	JOIN users ou ON ou.id = a.owner_id`

// CreateAppointment inserts a pending appointment and returns it.
func CreateAppointment(ctx context.Context, db db.DBTX, a *model.Appointment) (*model.Appointment, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO appointments
		    (item_id, requester_id, owner_id, appointment_time, location, location_lat, location_lng, status, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ItemID, a.RequesterID, a.OwnerID, a.Time.UTC(), a.Location, a.LocationLat, a.LocationLng,
		model.AppointmentPending, a.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("creating appointment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting appointment id: %w", err)
	}

	return GetAppointment(ctx, db, id)
}

// GetAppointment returns an appointment by ID with item and user names.
func GetAppointment(ctx context.Context, db db.DBTX, id int64) (*model.Appointment, error) {
	row := db.QueryRowContext(ctx, `SELECT `+appointmentColumns+appointmentFrom+` WHERE a.id = ?`, id)
	a, err := scanAppointment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting appointment: %w", err)
	}
	return a, nil
}

// ListAppointmentsForUser returns every appointment the user takes part in,
// latest first.
func ListAppointmentsForUser(ctx context.Context, db db.DBTX, userID int64) ([]model.Appointment, error) {
	return listAppointments(ctx, db,
		` WHERE a.requester_id = ? OR a.owner_id = ? ORDER BY a.appointment_time DESC, a.id DESC`,
		userID, userID,
	)
}

// ListAppointmentsBetween returns the appointments between two users,
// soonest first.
func ListAppointmentsBetween(ctx context.Context, db db.DBTX, userA, userB int64) ([]model.Appointment, error) {
	return listAppointments(ctx, db,
		` WHERE (a.requester_id = ? AND a.owner_id = ?) OR (a.requester_id = ? AND a.owner_id = ?)
		  ORDER BY a.appointment_time, a.id`,
		userA, userB, userB, userA,
	)
}

func listAppointments(ctx context.Context, db db.DBTX, where string, args ...any) ([]model.Appointment, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+appointmentColumns+appointmentFrom+where, args...)
	if err != nil {
		return nil, fmt.Errorf("listing appointments: %w", err)
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning appointment: %w", err)
		}
		appts = append(appts, *a)
	}
	return appts, rows.Err()
}

// UpdateAppointment writes the participant-editable fields of a. A new time
// makes the reminder due again.
func UpdateAppointment(ctx context.Context, db db.DBTX, a *model.Appointment) error {
	_, err := db.ExecContext(ctx,
		`UPDATE appointments
		 SET reminder_sent = CASE WHEN appointment_time = ? THEN reminder_sent ELSE 0 END,
		     appointment_time = ?, location = ?, notes = ?
		 WHERE id = ?`,
		a.Time.UTC(), a.Time.UTC(), a.Location, a.Notes, a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating appointment: %w", err)
	}
	return nil
}

// SetAppointmentStatus records the owner's decision on an appointment.
func SetAppointmentStatus(ctx context.Context, db db.DBTX, id int64, status string) error {
	_, err := db.ExecContext(ctx, `UPDATE appointments SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("setting appointment status: %w", err)
	}
	return nil
}

// DeleteAppointment removes an appointment.
func DeleteAppointment(ctx context.Context, db db.DBTX, id int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting appointment: %w", err)
	}
	return nil
}

// ClaimDueReminders returns the user's confirmed appointments starting
// within window of now whose reminder has not been sent, and marks them
// sent. Each reminder is handed out once.
func ClaimDueReminders(ctx context.Context, database *sql.DB, userID int64, now time.Time, window time.Duration) ([]model.Appointment, error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	due, err := listAppointments(ctx, tx,
		` WHERE (a.requester_id = ? OR a.owner_id = ?)
		    AND a.status = ? AND a.reminder_sent = 0
		    AND a.appointment_time >= ? AND a.appointment_time <= ?
		  ORDER BY a.appointment_time, a.id`,
		userID, userID, model.AppointmentConfirmed, now.UTC(), now.Add(window).UTC(),
	)
	if err != nil {
		return nil, err
	}

	for i := range due {
		if _, err := tx.ExecContext(ctx, `UPDATE appointments SET reminder_sent = 1 WHERE id = ?`, due[i].ID); err != nil {
			return nil, fmt.Errorf("marking reminder sent: %w", err)
		}
		due[i].ReminderSent = true
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return due, nil
}

func scanAppointment(s rowScanner) (*model.Appointment, error) {
	a := &model.Appointment{}
	var lat, lng sql.NullFloat64
	err := s.Scan(&a.ID, &a.ItemID, &a.RequesterID, &a.OwnerID, &a.Time,
		&a.Location, &lat, &lng, &a.Status, &a.Notes, &a.ReminderSent, &a.CreatedAt,
		&a.ItemName, &a.RequesterName, &a.OwnerName)
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		a.LocationLat = &lat.Float64
	}
	if lng.Valid {
		a.LocationLng = &lng.Float64
	}
	return a, nil
}
