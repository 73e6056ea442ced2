package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ariefcatur/boutique-orders/internal/apperr"
	"github.com/ariefcatur/boutique-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// OrderLedger implements orders.Ledger on Postgres.
type OrderLedger struct{ DB *pgxpool.Pool }

const orderColumns = `id, customer_info::text, total::text, status, created_at, updated_at`

func (l *OrderLedger) CreateOrder(ctx context.Context, o orders.Order) (orders.Order, error) {
	err := inTx(ctx, l.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO orders(id, customer_info, total, status, created_at, updated_at)
			VALUES ($1, $2::jsonb, $3::numeric, $4, $5, $6)`,
			o.ID, string(o.CustomerInfo), o.Total.String(), string(o.Status), o.CreatedAt, o.UpdatedAt,
		); err != nil {
			return err
		}
		for i, ln := range o.Lines {
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_lines(order_id, position, product_id, size, quantity, name)
				VALUES ($1,$2,$3,$4,$5,$6)`,
				o.ID, i, ln.ProductID, ln.Size, ln.Quantity, ln.Name,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return orders.Order{}, mapErr(err, "order")
	}
	return l.GetOrder(ctx, o.ID)
}

func (l *OrderLedger) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	o, err := scanOrder(l.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return orders.Order{}, mapErr(err, "order")
	}
	lines, err := loadLines(ctx, l.DB, []string{id})
	if err != nil {
		return orders.Order{}, mapErr(err, "order line")
	}
	o.Lines = lines[id]
	return o, nil
}

func (l *OrderLedger) ListOrders(ctx context.Context) ([]orders.Order, error) {
	rows, err := l.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, mapErr(err, "order")
	}
	defer rows.Close()

	out := []orders.Order{}
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, mapErr(err, "order")
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "order")
	}
	if len(ids) == 0 {
		return out, nil
	}

	lines, err := loadLines(ctx, l.DB, ids)
	if err != nil {
		return nil, mapErr(err, "order line")
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, nil
}

// UpdateOrderStatus is a compare-and-set on the status column.
func (l *OrderLedger) UpdateOrderStatus(ctx context.Context, id string, from, to orders.Status) (orders.Order, error) {
	o, err := scanOrder(l.DB.QueryRow(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2
		RETURNING `+orderColumns, id, string(from), string(to)))
	if errors.Is(err, pgx.ErrNoRows) {
		var cur string
		err = l.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, id).Scan(&cur)
		if err != nil {
			return orders.Order{}, mapErr(err, "order")
		}
		return orders.Order{}, apperr.Newf(apperr.CodeConflict, "order %s is %q, not %q", id, cur, from)
	}
	if err != nil {
		return orders.Order{}, mapErr(err, "order")
	}

	lines, err := loadLines(ctx, l.DB, []string{id})
	if err != nil {
		return orders.Order{}, mapErr(err, "order line")
	}
	o.Lines = lines[id]
	return o, nil
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		info   string
		total  string
		status string
	)
	if err := row.Scan(&o.ID, &info, &total, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return orders.Order{}, err
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return orders.Order{}, err
	}
	o.CustomerInfo = json.RawMessage(info)
	o.Total = d
	o.Status = orders.Status(status)
	return o, nil
}

func loadLines(ctx context.Context, q querier, orderIDs []string) (map[string][]orders.Line, error) {
	rows, err := q.Query(ctx, `
		SELECT order_id, product_id, size, quantity, name FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]orders.Line, len(orderIDs))
	for rows.Next() {
		var oid string
		var ln orders.Line
		if err := rows.Scan(&oid, &ln.ProductID, &ln.Size, &ln.Quantity, &ln.Name); err != nil {
			return nil, err
		}
		out[oid] = append(out[oid], ln)
	}
	return out, rows.Err()
}
