package store

import (
	"context"
	"errors"
	"time"

	"glowdesk/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Clock reports the current time. Stores and metrics never read the wall
// clock directly.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now()
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

type Repository interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	AddProduct(ctx context.Context, input domain.ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	AddSale(ctx context.Context, input domain.SaleInput) (*domain.Sale, error)
	// SellProduct prices a draft against the product as it is at the moment
	// of the sale and records it in the same step as AddSale.
	SellProduct(ctx context.Context, draft domain.SaleDraft, date domain.Date) (*domain.Sale, error)

	ListDocuments(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error)
	AddDocument(ctx context.Context, input domain.DocumentInput) (*domain.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	Snapshot(ctx context.Context) (domain.Snapshot, error)

	Login(ctx context.Context, email string, password string) (bool, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*domain.User, error)
	ChangePassword(ctx context.Context, current string, next string) error

	Settings(ctx context.Context) (domain.Settings, error)
	ToggleTheme(ctx context.Context) (domain.Theme, error)
	UpdateCurrency(ctx context.Context, currency string) error
	UpdateCompanyLogo(ctx context.Context, logo string) error
}
