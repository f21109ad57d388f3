package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/firm-roster/internal/domain"
)

// CaseRepository encapsulates case persistence.
type CaseRepository interface {
	Create(ctx context.Context, c *domain.Case) error
	Update(ctx context.Context, c *domain.Case) error
	GetByID(ctx context.Context, id string) (*domain.Case, error)
	FindByLawyer(ctx context.Context, guildID, userID string) ([]domain.Case, error)
	FindByLeadAttorney(ctx context.Context, guildID, userID string) ([]domain.Case, error)
}

type caseRepository struct {
	pool *pgxpool.Pool
}

// NewCaseRepository instantiates repository.
func NewCaseRepository(pool *pgxpool.Pool) CaseRepository {
	return &caseRepository{pool: pool}
}

const caseColumns = `id, guild_id, case_number, title, client_id, channel_id, lead_attorney_id,
               assigned_lawyer_ids, status, created_at, updated_at`

func (r *caseRepository) Create(ctx context.Context, c *domain.Case) error {
	const query = `
        INSERT INTO cases (guild_id, case_number, title, client_id, channel_id, lead_attorney_id, assigned_lawyer_ids, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		c.GuildID,
		c.CaseNumber,
		c.Title,
		c.ClientID,
		c.ChannelID,
		c.LeadAttorneyID,
		lawyersOrEmpty(c.AssignedLawyerIDs),
		c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *caseRepository) Update(ctx context.Context, c *domain.Case) error {
	const query = `
        UPDATE cases SET title=$1, client_id=$2, channel_id=$3, lead_attorney_id=$4,
            assigned_lawyer_ids=$5, status=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		c.Title,
		c.ClientID,
		c.ChannelID,
		c.LeadAttorneyID,
		lawyersOrEmpty(c.AssignedLawyerIDs),
		c.Status,
		c.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *caseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id=$1`
	return scanCase(r.pool.QueryRow(ctx, query, id))
}

func (r *caseRepository) FindByLawyer(ctx context.Context, guildID, userID string) ([]domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases
        WHERE guild_id=$1 AND $2 = ANY(assigned_lawyer_ids)
        ORDER BY created_at ASC`
	return r.list(ctx, query, guildID, userID)
}

func (r *caseRepository) FindByLeadAttorney(ctx context.Context, guildID, userID string) ([]domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases
        WHERE guild_id=$1 AND lead_attorney_id=$2
        ORDER BY created_at ASC`
	return r.list(ctx, query, guildID, userID)
}

func (r *caseRepository) list(ctx context.Context, query string, args ...any) ([]domain.Case, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func scanCase(row pgx.Row) (*domain.Case, error) {
	var c domain.Case
	if err := row.Scan(
		&c.ID,
		&c.GuildID,
		&c.CaseNumber,
		&c.Title,
		&c.ClientID,
		&c.ChannelID,
		&c.LeadAttorneyID,
		&c.AssignedLawyerIDs,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func lawyersOrEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
