package postgres

import (
	"context"
	"errors"

	"github.com/ariefcatur/boutique-orders/internal/apperr"
	"github.com/ariefcatur/boutique-orders/internal/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CatalogStore implements catalog.Repository on Postgres.
type CatalogStore struct{ DB *pgxpool.Pool }

const productColumns = `id, name, brand, category, price::text, description, images, tags, created_at, updated_at`

func (s *CatalogStore) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	p, err := getProduct(ctx, s.DB, id, false)
	return p, mapErr(err, "product")
}

// ApplyStockDelta adds delta to one size counter in a single guarded
// statement. The row is only touched when the result stays >= 0, so two
// concurrent decrements can never both take the last unit.
func (s *CatalogStore) ApplyStockDelta(ctx context.Context, productID, size string, delta int) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE product_sizes SET stock = stock + $3
		WHERE product_id = $1 AND size = $2 AND stock + $3 >= 0`,
		productID, size, delta)
	if err != nil {
		return mapErr(err, "size")
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	// nothing updated: either the row is missing or the guard refused
	var stock int
	err = s.DB.QueryRow(ctx, `SELECT stock FROM product_sizes WHERE product_id=$1 AND size=$2`,
		productID, size).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Newf(apperr.CodeNotFound, "size %s of product %s not found", size, productID)
	}
	if err != nil {
		return mapErr(err, "size")
	}
	return apperr.Newf(apperr.CodeConstraintViolation,
		"stock of %s/%s is %d, cannot apply %d", productID, size, stock, delta)
}

func (s *CatalogStore) ListProducts(ctx context.Context, f catalog.Filter) ([]catalog.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products`
	var args []any
	if f.Category != "" {
		q += ` WHERE category = $1`
		args = append(args, string(f.Category))
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err, "product")
	}
	defer rows.Close()

	out := []catalog.Product{}
	ids := []string{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, mapErr(err, "product")
		}
		out = append(out, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "product")
	}
	if len(ids) == 0 {
		return out, nil
	}

	sizes, err := loadSizes(ctx, s.DB, ids)
	if err != nil {
		return nil, mapErr(err, "size")
	}
	for i := range out {
		if sz, ok := sizes[out[i].ID]; ok {
			out[i].Sizes = sz
		}
	}
	return out, nil
}

func (s *CatalogStore) CreateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	p.Normalize() // TEXT[] columns are NOT NULL
	err := inTx(ctx, s.DB, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO products(id, name, brand, category, price, description, images, tags, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5::numeric,$6,$7,$8,$9,$10)`,
			p.ID, p.Name, p.Brand, string(p.Category), p.Price.String(), p.Description,
			p.Images, tagStrings(p.Tags), p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return err
		}
		return writeSizes(ctx, tx, p.ID, p.Sizes)
	})
	if err != nil {
		return catalog.Product{}, mapErr(err, "product")
	}
	return s.GetProduct(ctx, p.ID)
}

// UpdateProduct replaces every field and the size list. Sizes that are
// not in p any more are dropped; existing sizes keep their counter.
func (s *CatalogStore) UpdateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	p.Normalize()
	err := inTx(ctx, s.DB, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `
			UPDATE products SET name=$2, brand=$3, category=$4, price=$5::numeric,
				description=$6, images=$7, tags=$8, updated_at=$9
			WHERE id=$1`,
			p.ID, p.Name, p.Brand, string(p.Category), p.Price.String(), p.Description,
			p.Images, tagStrings(p.Tags), p.UpdatedAt)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return apperr.New(apperr.CodeNotFound, "product not found")
		}

		labels := make([]string, 0, len(p.Sizes))
		for _, sz := range p.Sizes {
			labels = append(labels, sz.Size)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM product_sizes WHERE product_id=$1 AND NOT (size = ANY($2))`,
			p.ID, labels); err != nil {
			return err
		}
		return writeSizes(ctx, tx, p.ID, p.Sizes)
	})
	if err != nil {
		return catalog.Product{}, mapErr(err, "product")
	}
	return s.GetProduct(ctx, p.ID)
}

func (s *CatalogStore) DeleteProduct(ctx context.Context, id string) (catalog.Product, error) {
	var deleted catalog.Product
	err := inTx(ctx, s.DB, func(tx pgx.Tx) error {
		p, err := getProduct(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM products WHERE id=$1`, id); err != nil {
			return err
		}
		deleted = p
		return nil
	})
	if err != nil {
		return catalog.Product{}, mapErr(err, "product")
	}
	return deleted, nil
}

func getProduct(ctx context.Context, q querier, id string, lock bool) (catalog.Product, error) {
	sql := `SELECT ` + productColumns + ` FROM products WHERE id=$1`
	if lock {
		sql += ` FOR UPDATE`
	}
	p, err := scanProduct(q.QueryRow(ctx, sql, id))
	if err != nil {
		return catalog.Product{}, err
	}
	sizes, err := loadSizes(ctx, q, []string{id})
	if err != nil {
		return catalog.Product{}, err
	}
	if sz, ok := sizes[id]; ok {
		p.Sizes = sz
	}
	return p, nil
}

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var (
		p        catalog.Product
		category string
		price    string
		tags     []string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Brand, &category, &price, &p.Description,
		&p.Images, &tags, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return catalog.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return catalog.Product{}, err
	}
	p.Category = catalog.Category(category)
	p.Price = d
	for _, t := range tags {
		p.Tags = append(p.Tags, catalog.Tag(t))
	}
	p.Normalize()
	return p, nil
}

func loadSizes(ctx context.Context, q querier, ids []string) (map[string][]catalog.SizeStock, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id, size, stock FROM product_sizes
		WHERE product_id = ANY($1)
		ORDER BY product_id, position, size`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]catalog.SizeStock, len(ids))
	for rows.Next() {
		var pid string
		var sz catalog.SizeStock
		if err := rows.Scan(&pid, &sz.Size, &sz.Stock); err != nil {
			return nil, err
		}
		out[pid] = append(out[pid], sz)
	}
	return out, rows.Err()
}

func writeSizes(ctx context.Context, tx pgx.Tx, productID string, sizes []catalog.SizeStock) error {
	for i, sz := range sizes {
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_sizes(product_id, size, stock, position)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (product_id, size) DO UPDATE SET position = EXCLUDED.position`,
			productID, sz.Size, sz.Stock, i); err != nil {
			return err
		}
	}
	return nil
}

func tagStrings(tags []catalog.Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, string(t))
	}
	return out
}
