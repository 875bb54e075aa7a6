package db

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by [Queries]. Both *sql.DB and
// *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// New wraps a connection or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries holds the statements run against the shop database.
type Queries struct {
	db DBTX
}

const authenticateUser = `SELECT * FROM Users WHERE email = ? AND password = ?`

// AuthenticateUser returns the first user whose email and password columns
// equal the arguments exactly. There is no ORDER BY: with duplicates, the row
// SQLite visits first wins.
func (q *Queries) AuthenticateUser(ctx context.Context, email, password string) (Row, error) {
	rows, err := q.db.QueryContext(ctx, authenticateUser, email, password)
	if err != nil {
		return Row{}, err
	}
	return scanFirst(rows)
}

const usersByEmail = `SELECT * FROM Users WHERE email = ?`

// FindUserByEmail returns the first user with the given email that match
// accepts.
func (q *Queries) FindUserByEmail(ctx context.Context, email string, match func(Row) bool) (Row, error) {
	rows, err := q.db.QueryContext(ctx, usersByEmail, email)
	if err != nil {
		return Row{}, err
	}
	return scanFirstMatch(rows, match)
}

const authenticateOrder = `SELECT * FROM Product_table WHERE product_id = ?`

// AuthenticateOrder returns the first product whose product_id equals
// productID under SQLite's comparison affinity rules.
func (q *Queries) AuthenticateOrder(ctx context.Context, productID any) (Row, error) {
	rows, err := q.db.QueryContext(ctx, authenticateOrder, productID)
	if err != nil {
		return Row{}, err
	}
	return scanFirst(rows)
}

const insertUser = `
INSERT INTO Users (name, email, password, phone_number, address, pin_code, is_approved)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

// InsertUserParams are the columns set by [Queries.InsertUser].
type InsertUserParams struct {
	Name        string
	Email       string
	Password    string
	PhoneNumber string
	Address     string
	PinCode     string
	IsApproved  bool
}

// InsertUser adds a user and returns its user_id.
func (q *Queries) InsertUser(ctx context.Context, arg InsertUserParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertUser,
		arg.Name,
		arg.Email,
		arg.Password,
		arg.PhoneNumber,
		arg.Address,
		arg.PinCode,
		arg.IsApproved,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const insertProduct = `
INSERT INTO Product_table (product_id, name, category, price, stock, expiry_date, description)
VALUES (NULLIF(?, 0), ?, ?, ?, ?, NULLIF(?, ''), ?)
`

// InsertProductParams are the columns set by [Queries.InsertProduct]. A zero
// ProductID lets SQLite assign one; an empty ExpiryDate is stored as NULL.
type InsertProductParams struct {
	ProductID   int64
	Name        string
	Category    string
	Price       float64
	Stock       int64
	ExpiryDate  string
	Description string
}

// InsertProduct adds a product and returns its product_id.
func (q *Queries) InsertProduct(ctx context.Context, arg InsertProductParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertProduct,
		arg.ProductID,
		arg.Name,
		arg.Category,
		arg.Price,
		arg.Stock,
		arg.ExpiryDate,
		arg.Description,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getUser = `SELECT * FROM Users WHERE user_id = ?`

// GetUser returns the user with the given user_id.
func (q *Queries) GetUser(ctx context.Context, userID any) (Row, error) {
	rows, err := q.db.QueryContext(ctx, getUser, userID)
	if err != nil {
		return Row{}, err
	}
	return scanFirst(rows)
}

const listProducts = `SELECT * FROM Product_table ORDER BY product_id`

// ListProducts returns every product ordered by product_id.
func (q *Queries) ListProducts(ctx context.Context) ([]Row, error) {
	rows, err := q.db.QueryContext(ctx, listProducts)
	if err != nil {
		return nil, err
	}
	return scanAll(rows)
}

const createOrder = `
INSERT INTO Orders (user_id, product_id, quantity, total_price, order_date)
SELECT ?, product_id, ?, price * ?, COALESCE(NULLIF(?, ''), CURRENT_DATE)
FROM Product_table
WHERE product_id = ? AND EXISTS (SELECT 1 FROM Users WHERE user_id = ?)
`

// CreateOrderParams are the columns set by [Queries.CreateOrder]. An empty
// OrderDate defaults to the current date.
type CreateOrderParams struct {
	UserID    int64
	ProductID int64
	Quantity  int64
	OrderDate string
}

// CreateOrder places an unapproved order priced from the product's current
// price and returns its order_id. It returns [sql.ErrNoRows] when the user or
// product does not exist.
func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createOrder,
		arg.UserID,
		arg.Quantity,
		arg.Quantity,
		arg.OrderDate,
		arg.ProductID,
		arg.UserID,
	)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
		return 0, sql.ErrNoRows
	}
	return res.LastInsertId()
}

const getOrder = `SELECT * FROM Orders WHERE order_id = ?`

// GetOrder returns the order with the given order_id.
func (q *Queries) GetOrder(ctx context.Context, orderID any) (Row, error) {
	rows, err := q.db.QueryContext(ctx, getOrder, orderID)
	if err != nil {
		return Row{}, err
	}
	return scanFirst(rows)
}

const listOrders = `SELECT * FROM Orders WHERE ? = 0 OR user_id = ? ORDER BY order_id`

// ListOrders returns the orders placed by userID, or every order when userID
// is zero.
func (q *Queries) ListOrders(ctx context.Context, userID int64) ([]Row, error) {
	rows, err := q.db.QueryContext(ctx, listOrders, userID, userID)
	if err != nil {
		return nil, err
	}
	return scanAll(rows)
}

const setOrderApproval = `UPDATE Orders SET is_approved = ? WHERE order_id = ? AND is_approved <> ?`

const adjustOrderStock = `
UPDATE Product_table
SET stock = stock + (SELECT CASE WHEN ? THEN -quantity ELSE quantity END FROM Orders WHERE order_id = ?)
WHERE product_id = (SELECT product_id FROM Orders WHERE order_id = ?)
`

// SetOrderApproval approves or rejects an order. Approving takes the ordered
// quantity out of the product's stock and rejecting an approved order puts it
// back. changed is false when the order was already in the requested state.
// It returns [sql.ErrNoRows] when the order does not exist. Run it in a
// transaction so the order and stock stay consistent.
func (q *Queries) SetOrderApproval(ctx context.Context, orderID int64, approved bool) (changed bool, err error) {
	res, err := q.db.ExecContext(ctx, setOrderApproval, approved, orderID, approved)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		_, err = q.GetOrder(ctx, orderID)
		return false, err
	}
	if _, err = q.db.ExecContext(ctx, adjustOrderStock, approved, orderID, orderID); err != nil {
		return false, err
	}
	return true, nil
}
