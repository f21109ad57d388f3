package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/firm-roster/internal/domain"
)

// StaffRepository handles persistence for staff records.
type StaffRepository interface {
	Get(ctx context.Context, guildID, userID string) (*domain.StaffRecord, error)
	Create(ctx context.Context, staff *domain.StaffRecord) error
	Update(ctx context.Context, staff *domain.StaffRecord) error
	Delete(ctx context.Context, guildID, userID string) error
	List(ctx context.Context, filter StaffFilter) ([]domain.StaffRecord, error)
}

// StaffFilter defines query params for staff listing. A zero Limit returns every match.
type StaffFilter struct {
	GuildID string
	Status  *domain.StaffStatus
	Roles   []string
	Limit   int
	Offset  int
}

type staffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(pool *pgxpool.Pool) StaffRepository {
	return &staffRepository{pool: pool}
}

const staffColumns = `guild_id, user_id, username, role, status, hired_at, terminated_at, promotion_history, created_at, updated_at`

func (r *staffRepository) Get(ctx context.Context, guildID, userID string) (*domain.StaffRecord, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_records WHERE guild_id=$1 AND user_id=$2`
	staff, err := scanStaff(r.pool.QueryRow(ctx, query, guildID, userID))
	if err != nil {
		return nil, err
	}
	return staff, nil
}

func (r *staffRepository) Create(ctx context.Context, staff *domain.StaffRecord) error {
	const query = `
        INSERT INTO staff_records (guild_id, user_id, username, role, status, hired_at, terminated_at, promotion_history)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		staff.GuildID,
		staff.UserID,
		staff.Username,
		staff.Role,
		staff.Status,
		staff.HiredAt,
		staff.TerminatedAt,
		historyOrEmpty(staff.PromotionHistory),
	).Scan(&staff.CreatedAt, &staff.UpdatedAt)
}

func (r *staffRepository) Update(ctx context.Context, staff *domain.StaffRecord) error {
	const query = `
        UPDATE staff_records
        SET username=$1, role=$2, status=$3, hired_at=$4, terminated_at=$5, promotion_history=$6, updated_at=NOW()
        WHERE guild_id=$7 AND user_id=$8
        RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		staff.Username,
		staff.Role,
		staff.Status,
		staff.HiredAt,
		staff.TerminatedAt,
		historyOrEmpty(staff.PromotionHistory),
		staff.GuildID,
		staff.UserID,
	).Scan(&staff.UpdatedAt)
	return err
}

func (r *staffRepository) Delete(ctx context.Context, guildID, userID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM staff_records WHERE guild_id=$1 AND user_id=$2`, guildID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *staffRepository) List(ctx context.Context, filter StaffFilter) ([]domain.StaffRecord, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_records`
	args := []any{}
	clauses := []string{}

	if filter.GuildID != "" {
		args = append(args, filter.GuildID)
		clauses = append(clauses, fmt.Sprintf("guild_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if len(filter.Roles) > 0 {
		args = append(args, filter.Roles)
		clauses = append(clauses, fmt.Sprintf("role = ANY($%d)", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY hired_at ASC"
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StaffRecord
	for rows.Next() {
		staff, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *staff)
	}
	return result, rows.Err()
}

func scanStaff(row pgx.Row) (*domain.StaffRecord, error) {
	var staff domain.StaffRecord
	if err := row.Scan(
		&staff.GuildID,
		&staff.UserID,
		&staff.Username,
		&staff.Role,
		&staff.Status,
		&staff.HiredAt,
		&staff.TerminatedAt,
		&staff.PromotionHistory,
		&staff.CreatedAt,
		&staff.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &staff, nil
}

func historyOrEmpty(h []domain.PromotionEntry) []domain.PromotionEntry {
	if h == nil {
		return []domain.PromotionEntry{}
	}
	return h
}
