package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a booking does not exist.
var ErrNotFound = errors.New("booking not found")

// Store is the PostgreSQL booking ledger. It only records what was
// committed to the calendar and is never consulted for availability.
type Store struct {
	DB *pgxpool.Pool
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to db")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping db")
	}
	return &Store{DB: pool}, nil
}

func (s *Store) Close() {
	s.DB.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS bookings (
	id           UUID PRIMARY KEY,
	event_id     TEXT NOT NULL UNIQUE,
	calendar_id  TEXT NOT NULL,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	start_at_utc TIMESTAMPTZ NOT NULL,
	end_at_utc   TIMESTAMPTZ NOT NULL,
	attendees    TEXT[] NOT NULL DEFAULT '{}',
	meet_link    TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS bookings_start_idx ON bookings (start_at_utc);`

// Migrate creates the ledger table if needed.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, schema)
	return errors.Wrap(err, "failed to migrate bookings table")
}

func (s *Store) InsertBooking(ctx context.Context, b *Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Attendees == nil {
		b.Attendees = []string{}
	}

	q := `INSERT INTO bookings
	      (id, event_id, calendar_id, title, description, start_at_utc, end_at_utc, attendees, meet_link)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	      RETURNING created_at`

	err := s.DB.QueryRow(ctx, q,
		b.ID, b.EventID, b.CalendarID, b.Title, b.Description,
		b.StartAtUTC.UTC(), b.EndAtUTC.UTC(), b.Attendees, b.MeetLink,
	).Scan(&b.CreatedAt)
	return errors.Wrap(err, "failed to insert booking")
}

const bookingColumns = `id::text,event_id,calendar_id,title,description,start_at_utc,end_at_utc,attendees,meet_link,created_at`

func (s *Store) GetBooking(ctx context.Context, id string) (*Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id=$1`
	b, err := scanBooking(s.DB.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get booking")
	}
	return b, nil
}

// ListBookings returns bookings ordered by start time. When filtered is
// set only bookings starting in [from, to) are returned.
func (s *Store) ListBookings(ctx context.Context, from, to time.Time, filtered bool) ([]Booking, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if filtered {
		q := `SELECT ` + bookingColumns + ` FROM bookings
		      WHERE start_at_utc >= $1 AND start_at_utc < $2
		      ORDER BY start_at_utc`
		rows, err = s.DB.Query(ctx, q, from.UTC(), to.UTC())
	} else {
		q := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY start_at_utc`
		rows, err = s.DB.Query(ctx, q)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list bookings")
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.EventID, &b.CalendarID, &b.Title, &b.Description,
		&b.StartAtUTC, &b.EndAtUTC, &b.Attendees, &b.MeetLink, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
