// Package devdata fills a shop database with generated users, products and
// orders for development and testing.
package devdata

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/stolasapp/medstore/internal/sec"
	"github.com/stolasapp/medstore/internal/storage/db"
)

// Generation constants.
const (
	passwordLength      = 12
	approvedProbability = 0.7
	expiryProbability   = 0.8
	minPrice            = 5
	maxPrice            = 900
	maxStock            = 500
	maxExpiryYears      = 3
	descriptionWords    = 12
	maxOrderQuantity    = 5
	maxOrderAgeDays     = 90
)

// Seed returns seed, or a random value if it is zero.
func Seed(seed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	return rand.Uint64() //nolint:gosec // intentionally weak random for test data
}

// Credential is the login of a generated user. Passwords are reported in
// plaintext so seeded accounts can be used regardless of the storage scheme.
type Credential struct {
	UserID   int64  `yaml:"user_id"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Generator produces fake shop rows from a seeded faker.
type Generator struct {
	faker  *gofakeit.Faker
	scheme sec.Scheme
}

// New creates a generator. Passwords are stored using scheme.
func New(seed uint64, scheme sec.Scheme) *Generator {
	return &Generator{
		faker:  gofakeit.New(seed),
		scheme: scheme,
	}
}

// Counts are how many rows [Generator.Fill] inserts into each table.
type Counts struct {
	Users    int
	Products int
	Orders   int
}

// Fill inserts the requested number of rows through queries and returns the
// credentials of the inserted users. Orders are only generated when at least
// one user and product were inserted.
func (g *Generator) Fill(ctx context.Context, queries *db.Queries, counts Counts) ([]Credential, error) {
	creds := make([]Credential, 0, counts.Users)
	for range counts.Users {
		params, password := g.user()
		stored, err := g.scheme.Prepare(password)
		if err != nil {
			return nil, err
		}
		params.Password = stored
		id, err := queries.InsertUser(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("failed to insert user %s: %w", params.Email, err)
		}
		creds = append(creds, Credential{UserID: id, Email: params.Email, Password: password})
	}
	productIDs := make([]int64, 0, counts.Products)
	for range counts.Products {
		params := g.product()
		id, err := queries.InsertProduct(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("failed to insert product %s: %w", params.Name, err)
		}
		productIDs = append(productIDs, id)
	}
	if len(creds) == 0 || len(productIDs) == 0 {
		return creds, nil
	}
	for range counts.Orders {
		params, approved := g.order(creds, productIDs)
		id, err := queries.CreateOrder(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("failed to insert order for user %d: %w", params.UserID, err)
		}
		if !approved {
			continue
		}
		if _, err = queries.SetOrderApproval(ctx, id, true); err != nil {
			return nil, fmt.Errorf("failed to approve order %d: %w", id, err)
		}
	}
	return creds, nil
}

func (g *Generator) user() (db.InsertUserParams, string) {
	password := g.faker.Password(true, true, true, false, false, passwordLength)
	return db.InsertUserParams{
		Name:        g.faker.Name(),
		Email:       strings.ToLower(g.faker.Email()),
		PhoneNumber: g.faker.Phone(),
		Address:     fmt.Sprintf("%s, %s", g.faker.Street(), g.faker.City()),
		PinCode:     g.faker.Zip(),
		IsApproved:  g.faker.Float64() < approvedProbability,
	}, password
}

func (g *Generator) product() db.InsertProductParams {
	name := medicineNames[g.faker.IntN(len(medicineNames))]
	dosage := dosages[g.faker.IntN(len(dosages))]

	var expiry string
	if g.faker.Float64() < expiryProbability {
		expiry = g.faker.DateRange(
			time.Now(),
			time.Now().AddDate(maxExpiryYears, 0, 0),
		).Format(time.DateOnly)
	}

	return db.InsertProductParams{
		Name:        name + " " + dosage,
		Category:    categories[g.faker.IntN(len(categories))],
		Price:       g.faker.Price(minPrice, maxPrice),
		Stock:       int64(g.faker.IntN(maxStock)),
		ExpiryDate:  expiry,
		Description: g.faker.Sentence(descriptionWords),
	}
}

func (g *Generator) order(creds []Credential, productIDs []int64) (db.CreateOrderParams, bool) {
	return db.CreateOrderParams{
		UserID:    creds[g.faker.IntN(len(creds))].UserID,
		ProductID: productIDs[g.faker.IntN(len(productIDs))],
		Quantity:  int64(g.faker.IntRange(1, maxOrderQuantity)),
		OrderDate: g.faker.DateRange(
			time.Now().AddDate(0, 0, -maxOrderAgeDays),
			time.Now(),
		).Format(time.DateOnly),
	}, g.faker.Float64() < approvedProbability
}

var medicineNames = []string{
	"Paracetamol", "Ibuprofen", "Aspirin", "Amoxicillin", "Cetirizine",
	"Metformin", "Omeprazole", "Azithromycin", "Loratadine", "Diclofenac",
	"Pantoprazole", "Montelukast", "Atorvastatin", "Vitamin D3",
}

var dosages = []string{"5mg", "10mg", "20mg", "250mg", "500mg", "650mg", "5ml"}

var categories = []string{
	"analgesic", "antibiotic", "antihistamine", "antidiabetic",
	"antacid", "cardiac", "supplement",
}
