package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nbclinic/portal/internal/domain/profile"
	"github.com/nbclinic/portal/internal/observability"
)

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

// IsUndefinedTable reports SQLSTATE 42P01, the expected state before the
// schema has been provisioned.
func IsUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
		return true
	}
	return false
}

type ProfilesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewProfilesRepo(pool *pgxpool.Pool, prom *observability.Prom) *ProfilesRepo {
	return &ProfilesRepo{pool: pool, prom: prom}
}

func (r *ProfilesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *ProfilesRepo) Get(ctx context.Context, id string) (profile.Profile, error) {
	var p profile.Profile
	op := "profiles.get"

	err := r.observe(op, func() error {
		return r.pool.QueryRow(
			ctx,
			`SELECT id, email, name, role, partner_id, created_at, updated_at
			 FROM profiles
			 WHERE id = $1`,
			id,
		).Scan(
			&p.ID,
			&p.Email,
			&p.Name,
			&p.Role,
			&p.PartnerID,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile.Profile{}, profile.ErrNotFound
		}
		if IsUndefinedTable(err) {
			return profile.Profile{}, profile.ErrTableMissing
		}
		return profile.Profile{}, err
	}
	return p, nil
}

func (r *ProfilesRepo) Insert(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	op := "profiles.insert"

	err := r.observe(op, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO profiles(id, email, name, role, partner_id, created_at, updated_at)
			 VALUES($1,$2,$3,$4,$5,$6,$7)`,
			p.ID, p.Email, p.Name, p.Role, p.PartnerID, p.CreatedAt, p.UpdatedAt)
		return err
	})

	if err != nil {
		if IsUndefinedTable(err) {
			return profile.Profile{}, profile.ErrTableMissing
		}
		return profile.Profile{}, err
	}

	return p, nil
}

func (r *ProfilesRepo) CountByRole(ctx context.Context, role string) (int, error) {
	var n int
	op := "profiles.count_by_role"

	err := r.observe(op, func() error {
		return r.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM profiles WHERE role = $1`, role).Scan(&n)
	})

	if err != nil {
		if IsUndefinedTable(err) {
			return 0, profile.ErrTableMissing
		}
		return 0, err
	}
	return n, nil
}

func (r *ProfilesRepo) List(ctx context.Context) ([]profile.Profile, error) {
	op := "profiles.list"

	var out []profile.Profile

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, email, name, role, partner_id, created_at, updated_at
			 FROM profiles
			 ORDER BY created_at ASC, id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p profile.Profile
			if err := rows.Scan(&p.ID, &p.Email, &p.Name, &p.Role, &p.PartnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})

	if err != nil {
		if IsUndefinedTable(err) {
			return nil, profile.ErrTableMissing
		}
		return nil, err
	}
	if out == nil {
		out = []profile.Profile{}
	}
	return out, nil
}

func (r *ProfilesRepo) Delete(ctx context.Context, id string) error {
	op := "profiles.delete"

	var tag pgconn.CommandTag

	err := r.observe(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
		return err
	})

	if err != nil {
		if IsUndefinedTable(err) {
			return profile.ErrTableMissing
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return profile.ErrNotFound
	}
	return nil
}

// ListMissing returns the ids from candidates that have no profile row.
// Used by the reconciler to find identities whose insert was lost.
func (r *ProfilesRepo) ListMissing(ctx context.Context, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	op := "profiles.list_missing"

	var missing []string

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT c.id
			 FROM unnest($1::text[]) AS c(id)
			 LEFT JOIN profiles p ON p.id = c.id
			 WHERE p.id IS NULL`,
			candidates)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			missing = append(missing, id)
		}
		return rows.Err()
	})

	if err != nil {
		if IsUndefinedTable(err) {
			return nil, profile.ErrTableMissing
		}
		return nil, err
	}
	return missing, nil
}
