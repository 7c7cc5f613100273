package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrMemberNotFound is returned when a member id has no profile row.
var ErrMemberNotFound = errors.New("member not found")

// Member is a member of parliament under evaluation.
type Member struct {
	ID             string
	Name           string
	Party          string
	LoyaltyRate    float64 // percent of votes cast with the party majority
	AttendanceRate float64 // percent of votings attended
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const memberColumns = `id, name, party, loyalty_rate, attendance_rate, created_at, updated_at`

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.Name, &m.Party, &m.LoyaltyRate, &m.AttendanceRate, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMember retrieves a member profile by id.
func (db *DB) GetMember(ctx context.Context, id string) (*Member, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1`,
		id,
	)
	return scanMember(row)
}

// ListMembers returns all member profiles ordered by name.
func (db *DB) ListMembers(ctx context.Context) ([]Member, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+memberColumns+` FROM members ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Party, &m.LoyaltyRate, &m.AttendanceRate, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpsertMember inserts or refreshes a member profile. Profiles are owned by
// the upstream sync pipeline; this exists for that pipeline and for seeding
// test data.
func (db *DB) UpsertMember(ctx context.Context, m Member) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO members (id, name, party, loyalty_rate, attendance_rate)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   party = EXCLUDED.party,
		   loyalty_rate = EXCLUDED.loyalty_rate,
		   attendance_rate = EXCLUDED.attendance_rate,
		   updated_at = now()`,
		m.ID, m.Name, m.Party, m.LoyaltyRate, m.AttendanceRate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert member %s: %w", m.ID, err)
	}
	return nil
}
