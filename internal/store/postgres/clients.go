package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

const clientColumns = `id, name, email, phone, address, created_at`

func scanClient(row scanner) (*domain.Client, error) {
	var c domain.Client
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) CreateClient(ctx context.Context, c *domain.Client) error {
	if err := c.Validate(); err != nil {
		return err
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO clients (name, email, phone, address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, c.Name, c.Email, c.Phone, c.Address).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return persistenceErr("insert client", err)
	}
	return nil
}

func (r *Repository) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr("get client", "client", id, err)
	}
	return c, nil
}

func (r *Repository) GetClientByName(ctx context.Context, name string) (*domain.Client, error) {
	c, err := clientByName(ctx, r.pool, name)
	if err != nil {
		return nil, notFoundOr("get client by name", "client", name, err)
	}
	return c, nil
}

func clientByName(ctx context.Context, q querier, name string) (*domain.Client, error) {
	return scanClient(q.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE name = $1`, name))
}

func (r *Repository) ListClients(ctx context.Context) ([]*domain.Client, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY name, id`)
	if err != nil {
		return nil, persistenceErr("list clients", err)
	}
	defer rows.Close()

	out := make([]*domain.Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, persistenceErr("scan client", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list clients", err)
	}
	return out, nil
}

func (r *Repository) UpdateClient(ctx context.Context, id int64, patch domain.ClientPatch) (*domain.Client, error) {
	var out *domain.Client
	err := r.withTx(ctx, func(q querier) error {
		c, err := scanClient(q.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return notFoundOr("update client", "client", id, err)
		}
		patch.Apply(c)
		if err := c.Validate(); err != nil {
			return err
		}
		if _, err := q.Exec(ctx, `
			UPDATE clients SET name = $2, email = $3, phone = $4, address = $5 WHERE id = $1
		`, id, c.Name, c.Email, c.Phone, c.Address); err != nil {
			return persistenceErr("update client", err)
		}
		out = c
		return nil
	})
	return out, err
}

// resolveClient reads the client by name and inserts it when missing. The
// unique constraint on name turns a concurrent insert into a no-op, after
// which the winner's row is read back.
func resolveClient(ctx context.Context, q querier, name string) (*domain.Client, error) {
	if err := (&domain.Client{Name: name}).Validate(); err != nil {
		return nil, err
	}
	c, err := clientByName(ctx, q, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, persistenceErr("resolve client", err)
	}

	c, err = scanClient(q.QueryRow(ctx, `
		INSERT INTO clients (name) VALUES ($1)
		ON CONFLICT ON CONSTRAINT clients_name_key DO NOTHING
		RETURNING `+clientColumns, name))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, persistenceErr("resolve client", err)
	}

	c, err = clientByName(ctx, q, name)
	if err != nil {
		return nil, persistenceErr("resolve client", err)
	}
	return c, nil
}
