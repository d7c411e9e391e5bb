package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/monitoring"
)

const saleColumns = `id, title, description, start_date, end_date, is_active, draft,
	total_views, total_sales, created_at, updated_at`

const productColumns = `id, flash_sale_id, product_id, name, original_price, sale_price,
	stock_quantity, sold_quantity, max_quantity_per_user, position, version, created_at, updated_at`

type SaleRepository struct {
	conn *Connection
	db   *sql.DB
}

func NewSaleRepository(conn *Connection) *SaleRepository {
	return &SaleRepository{
		conn: conn,
		db:   conn.GetDB(),
	}
}

func (r *SaleRepository) ListSales(ctx context.Context, filter sale.ListFilter) ([]*sale.FlashSale, int, error) {
	where, args := listConditions(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM flash_sales" + where
	if err := monitoring.InstrumentQueryRow(ctx, r.db, "SELECT", "flash_sales", countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + saleColumns + " FROM flash_sales" + where + " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := monitoring.InstrumentQuery(ctx, r.db, "SELECT", "flash_sales", query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sales := []*sale.FlashSale{}
	byID := make(map[string]*sale.FlashSale)
	ids := []string{}
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		sales = append(sales, s)
		byID[s.ID] = s
		ids = append(ids, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if len(ids) == 0 {
		return sales, total, nil
	}

	productQuery := "SELECT " + productColumns + ` FROM flash_sale_products
		WHERE flash_sale_id = ANY($1) ORDER BY flash_sale_id, position`
	productRows, err := monitoring.InstrumentQuery(ctx, r.db, "SELECT", "flash_sale_products", productQuery, pq.Array(ids))
	if err != nil {
		return nil, 0, err
	}
	defer productRows.Close()

	for productRows.Next() {
		p, err := scanProduct(productRows)
		if err != nil {
			return nil, 0, err
		}
		if s := byID[p.FlashSaleID]; s != nil {
			s.Products = append(s.Products, p)
		}
	}

	return sales, total, productRows.Err()
}

// listConditions translates the lifecycle filter into SQL over the persisted
// flags and dates, mirroring FlashSale.State.
func listConditions(filter sale.ListFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	nowArg := func() string {
		args = append(args, filter.Now)
		return fmt.Sprintf("$%d", len(args))
	}

	switch filter.State {
	case sale.StateDisabled:
		clauses = append(clauses, "NOT is_active")
	case sale.StateDraft:
		clauses = append(clauses, "is_active AND draft")
	case sale.StateScheduled:
		clauses = append(clauses, "is_active AND NOT draft AND "+nowArg()+" < start_date")
	case sale.StateActive:
		now := nowArg()
		clauses = append(clauses, "is_active AND NOT draft AND start_date <= "+now+" AND "+now+" < end_date")
	case sale.StateEnded:
		clauses = append(clauses, "is_active AND NOT draft AND end_date <= "+nowArg())
	}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		clauses = append(clauses, fmt.Sprintf("title ILIKE $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *SaleRepository) GetSaleByID(ctx context.Context, id string) (*sale.FlashSale, error) {
	row := monitoring.InstrumentQueryRow(ctx, r.db, "SELECT", "flash_sales",
		"SELECT "+saleColumns+" FROM flash_sales WHERE id = $1", id)

	s, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainErrors.ErrSaleNotFound
		}
		return nil, err
	}

	rows, err := monitoring.InstrumentQuery(ctx, r.db, "SELECT", "flash_sale_products",
		"SELECT "+productColumns+" FROM flash_sale_products WHERE flash_sale_id = $1 ORDER BY position", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		s.Products = append(s.Products, p)
	}

	return s, rows.Err()
}

func (r *SaleRepository) CreateSale(ctx context.Context, s *sale.FlashSale) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := monitoring.InstrumentExec(ctx, tx, "INSERT", "flash_sales", `
			INSERT INTO flash_sales (id, title, description, start_date, end_date, is_active, draft,
				total_views, total_sales, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, $8, $9)`,
			s.ID, s.Title, s.Description, s.StartDate, s.EndDate, s.IsActive, s.Draft, s.CreatedAt, s.UpdatedAt,
		)
		if err != nil {
			return err
		}

		for _, p := range s.Products {
			if err := insertProduct(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SaleRepository) UpdateSale(ctx context.Context, s *sale.FlashSale) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := monitoring.InstrumentExec(ctx, tx, "UPDATE", "flash_sales", `
			UPDATE flash_sales
			SET title = $2, description = $3, start_date = $4, end_date = $5,
				is_active = $6, draft = $7, updated_at = $8
			WHERE id = $1`,
			s.ID, s.Title, s.Description, s.StartDate, s.EndDate, s.IsActive, s.Draft, s.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domainErrors.ErrSaleNotFound
		}

		rows, err := monitoring.InstrumentQuery(ctx, tx, "SELECT", "flash_sale_products",
			"SELECT id FROM flash_sale_products WHERE flash_sale_id = $1 FOR UPDATE", s.ID)
		if err != nil {
			return err
		}
		existing := make(map[string]bool)
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			existing[id] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		keep := make(map[string]bool, len(s.Products))
		for _, p := range s.Products {
			keep[p.ID] = true
		}

		for id := range existing {
			if keep[id] {
				continue
			}
			res, err := monitoring.InstrumentExec(ctx, tx, "DELETE", "flash_sale_products",
				"DELETE FROM flash_sale_products WHERE id = $1 AND sold_quantity = 0", id)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return domainErrors.ErrSaleHasSales
			}
		}

		for _, p := range s.Products {
			if !existing[p.ID] {
				if err := insertProduct(ctx, tx, p); err != nil {
					return err
				}
				continue
			}

			res, err := monitoring.InstrumentExec(ctx, tx, "UPDATE", "flash_sale_products", `
				UPDATE flash_sale_products
				SET name = $2, original_price = $3, sale_price = $4, stock_quantity = $5,
					max_quantity_per_user = $6, position = $7, version = version + 1, updated_at = $8
				WHERE id = $1 AND sold_quantity <= $5`,
				p.ID, p.Name, p.OriginalPrice, p.SalePrice, p.StockQuantity, p.MaxQuantityPerUser, p.Position, p.UpdatedAt,
			)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("%w: stock of %s is below its sold quantity", domainErrors.ErrInvalidSale, p.ID)
			}
		}

		return nil
	})
}

func (r *SaleRepository) DeleteSale(ctx context.Context, id string) error {
	res, err := monitoring.InstrumentExec(ctx, r.db, "DELETE", "flash_sales", `
		DELETE FROM flash_sales
		WHERE id = $1 AND NOT EXISTS (
			SELECT 1 FROM flash_sale_products WHERE flash_sale_id = $1 AND sold_quantity > 0
		)`, id)
	if err != nil {
		return err
	}

	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var exists bool
	err = monitoring.InstrumentQueryRow(ctx, r.db, "SELECT", "flash_sales",
		"SELECT EXISTS (SELECT 1 FROM flash_sales WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return domainErrors.ErrSaleNotFound
	}
	return domainErrors.ErrSaleHasSales
}

func (r *SaleRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return mapConstraintError(err)
	}

	return tx.Commit()
}

func insertProduct(ctx context.Context, tx *sql.Tx, p *sale.Product) error {
	_, err := monitoring.InstrumentExec(ctx, tx, "INSERT", "flash_sale_products", `
		INSERT INTO flash_sale_products (id, flash_sale_id, product_id, name, original_price, sale_price,
			stock_quantity, sold_quantity, max_quantity_per_user, position, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, 0, $10, $11)`,
		p.ID, p.FlashSaleID, p.ProductID, p.Name, p.OriginalPrice, p.SalePrice,
		p.StockQuantity, p.MaxQuantityPerUser, p.Position, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSale(row scanner) (*sale.FlashSale, error) {
	var s sale.FlashSale
	err := row.Scan(
		&s.ID, &s.Title, &s.Description, &s.StartDate, &s.EndDate, &s.IsActive, &s.Draft,
		&s.TotalViews, &s.TotalSales, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.StartDate = s.StartDate.UTC()
	s.EndDate = s.EndDate.UTC()
	return &s, nil
}

func scanProduct(row scanner) (*sale.Product, error) {
	var p sale.Product
	err := row.Scan(
		&p.ID, &p.FlashSaleID, &p.ProductID, &p.Name, &p.OriginalPrice, &p.SalePrice,
		&p.StockQuantity, &p.SoldQuantity, &p.MaxQuantityPerUser, &p.Position, &p.Version,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// mapConstraintError turns lib/pq constraint violations into domain errors.
func mapConstraintError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case "23505", "23514":
		return fmt.Errorf("%w: %s", domainErrors.ErrInvalidSale, pqErr.Message)
	case "23503":
		return fmt.Errorf("%w: %s", domainErrors.ErrProductNotFound, pqErr.Message)
	default:
		return err
	}
}
