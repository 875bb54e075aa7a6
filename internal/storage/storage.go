// Package storage provides the user, product and order lookups against the
// shop database.
package storage

import (
	"context"

	"github.com/stolasapp/medstore/internal/storage/db"
)

const (
	// ErrStoreUnavailable is returned when the database cannot be opened or
	// read: a missing or unreadable file, a lock held by another connection, or
	// a lookup that ran out of time.
	ErrStoreUnavailable Error = "store unavailable"
	// ErrQuery is returned when the statement itself fails, such as a missing
	// table or column.
	ErrQuery Error = "query failed"
)

// Error is an error type returned by the storage implementation. Returned
// errors wrap one of these kinds together with the driver error.
type Error string

// Error satisfies [error].
func (e Error) Error() string { return string(e) }

// Users are the lookups on the Users table.
type Users interface {
	// AuthenticateUser returns the first user row whose email and password
	// match. found is false, with a nil error, when no row matches.
	AuthenticateUser(ctx context.Context, email, password string) (row db.Row, found bool, err error)
	// GetUser returns the user row with the given user_id.
	GetUser(ctx context.Context, userID any) (row db.Row, found bool, err error)
}

// Products are the lookups on the Product_table table.
type Products interface {
	// AuthenticateOrder returns the first product row whose product_id equals
	// productID. found is false, with a nil error, when no row matches.
	AuthenticateOrder(ctx context.Context, productID any) (row db.Row, found bool, err error)
	// ListProducts returns every product row ordered by product_id.
	ListProducts(ctx context.Context) ([]db.Row, error)
}

// Orders are the lookups on the Orders table.
type Orders interface {
	// GetOrder returns the order row with the given order_id.
	GetOrder(ctx context.Context, orderID any) (row db.Row, found bool, err error)
	// ListOrders returns the orders placed by userID ordered by order_id, or
	// every order when userID is zero.
	ListOrders(ctx context.Context, userID int64) ([]db.Row, error)
}

// Store is the combination interface for [Users], [Products] and [Orders].
type Store interface {
	Users
	Products
	Orders
}
