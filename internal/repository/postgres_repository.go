package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(cred *Credentials) (*PostgresRepository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	slog.Info("connected to postgres", "host", cred.Host, "db", cred.DBName)
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "shoppingcart_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *PostgresRepository) ListCarts(ctx context.Context, customerCPF string) ([]*domain.Cart, error) {
	query := `SELECT id, customercpf, status, datecreated FROM shoppingcart`
	var args []any
	if customerCPF != "" {
		query += ` WHERE customercpf = $1`
		args = append(args, customerCPF)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query carts: %w", err)
	}
	defer rows.Close()

	var carts []*domain.Cart
	byID := make(map[int64]*domain.Cart)
	var ids []int64
	for rows.Next() {
		var cart domain.Cart
		if err := rows.Scan(&cart.ID, &cart.CustomerCPF, &cart.Purchased, &cart.DateCreated); err != nil {
			return nil, fmt.Errorf("scan cart row: %w", err)
		}
		cart.Items = []domain.CartItem{}
		carts = append(carts, &cart)
		byID[cart.ID] = &cart
		ids = append(ids, cart.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	if len(ids) == 0 {
		return carts, nil
	}

	itemRows, err := r.db.QueryContext(ctx,
		`SELECT id, cartid, productitemid, quantity FROM shoppingcart_items
		 WHERE cartid = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item domain.CartItem
		if err := itemRows.Scan(&item.ID, &item.CartID, &item.ProductItemID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		if cart, ok := byID[item.CartID]; ok {
			cart.Items = append(cart.Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return carts, nil
}

func (r *PostgresRepository) CreateCart(ctx context.Context, customerCPF string) (*domain.Cart, error) {
	cart := domain.Cart{CustomerCPF: customerCPF, Items: []domain.CartItem{}}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO shoppingcart (customercpf) VALUES ($1) RETURNING id, status, datecreated`,
		customerCPF,
	).Scan(&cart.ID, &cart.Purchased, &cart.DateCreated)
	if err != nil {
		return nil, fmt.Errorf("insert cart: %w", err)
	}
	return &cart, nil
}

func (r *PostgresRepository) GetCart(ctx context.Context, id int64) (*domain.Cart, error) {
	var cart domain.Cart
	err := r.db.QueryRowContext(ctx,
		`SELECT id, customercpf, status, datecreated FROM shoppingcart WHERE id = $1`, id,
	).Scan(&cart.ID, &cart.CustomerCPF, &cart.Purchased, &cart.DateCreated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart by id: %w", err)
	}

	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	cart.Items = items
	return &cart, nil
}

func (r *PostgresRepository) UpdateCart(ctx context.Context, id int64, upd domain.CartUpdate) (*domain.Cart, error) {
	if upd.CustomerCPF != nil {
		res, err := r.db.ExecContext(ctx,
			`UPDATE shoppingcart SET customercpf = $1 WHERE id = $2`, *upd.CustomerCPF, id)
		if err != nil {
			return nil, fmt.Errorf("update cart: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, ErrCartNotFound
		}
	}
	return r.GetCart(ctx, id)
}

func (r *PostgresRepository) DeleteCart(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shoppingcart WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (r *PostgresRepository) MarkPurchased(ctx context.Context, id int64) (*domain.Cart, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE shoppingcart SET status = TRUE WHERE id = $1 AND status = FALSE`, id)
	if err != nil {
		return nil, fmt.Errorf("mark cart purchased: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("mark cart purchased: %w", err)
	}

	cart, err := r.GetCart(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrCartPurchased
	}
	return cart, nil
}

func (r *PostgresRepository) GetItem(ctx context.Context, cartID, productItemID int64) (*domain.CartItem, error) {
	var item domain.CartItem
	err := r.db.QueryRowContext(ctx,
		`SELECT id, cartid, productitemid, quantity FROM shoppingcart_items
		 WHERE cartid = $1 AND productitemid = $2`, cartID, productItemID,
	).Scan(&item.ID, &item.CartID, &item.ProductItemID, &item.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart item: %w", err)
	}
	return &item, nil
}

func (r *PostgresRepository) CreateItem(ctx context.Context, cartID, productItemID int64, quantity int) (*domain.CartItem, error) {
	item := domain.CartItem{CartID: cartID, ProductItemID: productItemID, Quantity: quantity}
	err := r.withOpenCart(ctx, cartID, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`INSERT INTO shoppingcart_items (cartid, productitemid, quantity) VALUES ($1, $2, $3) RETURNING id`,
			cartID, productItemID, quantity,
		).Scan(&item.ID)
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case pqUniqueViolation:
				return nil, ErrItemExists
			case pqForeignKeyViolation:
				return nil, ErrCartNotFound
			}
		}
		if isStoreSentinel(err) {
			return nil, err
		}
		return nil, fmt.Errorf("insert cart item: %w", err)
	}
	return &item, nil
}

func (r *PostgresRepository) UpdateItemQuantity(ctx context.Context, cartID, productItemID int64, quantity int) (*domain.CartItem, error) {
	item := domain.CartItem{CartID: cartID, ProductItemID: productItemID, Quantity: quantity}
	err := r.withOpenCart(ctx, cartID, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`UPDATE shoppingcart_items SET quantity = $1
			 WHERE cartid = $2 AND productitemid = $3 RETURNING id`,
			quantity, cartID, productItemID,
		).Scan(&item.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrItemNotFound
		}
		return err
	})
	if err != nil {
		if isStoreSentinel(err) {
			return nil, err
		}
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	return &item, nil
}

func (r *PostgresRepository) DeleteItem(ctx context.Context, cartID, productItemID int64) error {
	err := r.withOpenCart(ctx, cartID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM shoppingcart_items WHERE cartid = $1 AND productitemid = $2`, cartID, productItemID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrItemNotFound
		}
		return nil
	})
	if err != nil {
		if isStoreSentinel(err) {
			return err
		}
		return fmt.Errorf("delete cart item: %w", err)
	}
	return nil
}

// withOpenCart runs fn in a transaction holding a share lock on the cart row.
// The lock conflicts with MarkPurchased's update, so no item write can land
// after a checkout has committed.
func (r *PostgresRepository) withOpenCart(ctx context.Context, cartID int64, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var purchased bool
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM shoppingcart WHERE id = $1 FOR SHARE`, cartID,
	).Scan(&purchased)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCartNotFound
	}
	if err != nil {
		return fmt.Errorf("lock cart: %w", err)
	}
	if purchased {
		return ErrCartPurchased
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isStoreSentinel(err error) bool {
	return errors.Is(err, ErrCartNotFound) || errors.Is(err, ErrCartPurchased) || errors.Is(err, ErrItemNotFound)
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) Close(context.Context) error {
	return r.db.Close()
}

func (r *PostgresRepository) listItems(ctx context.Context, cartID int64) ([]domain.CartItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, cartid, productitemid, quantity FROM shoppingcart_items WHERE cartid = $1 ORDER BY id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductItemID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}
