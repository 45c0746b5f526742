package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"glowdesk/backend/internal/domain"
	"glowdesk/backend/internal/store"
	"glowdesk/backend/internal/xid"
)

const (
	AdminEmail    = "admin@empresa.com"
	AdminPassword = "admin123"
)

var _ store.Repository = (*Store)(nil)

var adminUser = domain.User{
	ID:    "1",
	Name:  "Administrador",
	Email: AdminEmail,
	Role:  "admin",
}

type Options struct {
	Clock    store.Clock
	IDs      xid.Generator
	Location *time.Location
	// StrictStock rejects sales whose quantity exceeds the product's stock.
	StrictStock bool
	// PasswordCost is the bcrypt cost for the admin credential. Zero means
	// bcrypt.DefaultCost.
	PasswordCost int
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = store.SystemClock
	}
	if o.IDs == nil {
		o.IDs = xid.UUID{}
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.PasswordCost == 0 {
		o.PasswordCost = bcrypt.DefaultCost
	}
	return o
}

type Store struct {
	mu   sync.RWMutex
	opts Options

	products  []domain.Product
	sales     []domain.Sale
	documents []domain.Document

	passwordHash []byte
	user         *domain.User
	settings     domain.Settings
}

// New builds an empty store holding only the admin credential and the
// default settings.
func New(opts Options) (*Store, error) {
	opts = opts.withDefaults()
	hash, err := bcrypt.GenerateFromPassword([]byte(AdminPassword), opts.PasswordCost)
	if err != nil {
		return nil, err
	}
	return &Store{
		opts:         opts,
		products:     make([]domain.Product, 0, 16),
		sales:        make([]domain.Sale, 0, 64),
		documents:    make([]domain.Document, 0, 16),
		passwordHash: hash,
		settings: domain.Settings{
			Theme:    domain.ThemeDark,
			Currency: "$",
		},
	}, nil
}

// NewSeeded builds a store preloaded with the demo catalogue and sales.
func NewSeeded(opts Options) (*Store, error) {
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	s.products = append(s.products, seedProducts()...)
	s.sales = append(s.sales, seedSales()...)
	return s, nil
}

func seedProducts() []domain.Product {
	return []domain.Product{
		{ID: "1", Code: "PROD-001", Name: "Producto Premium A", CostPrice: decimal.NewFromInt(50), SalePrice: decimal.NewFromInt(100), Stock: 150, Status: domain.ProductActive},
		{ID: "2", Code: "PROD-002", Name: "Producto Standard B", CostPrice: decimal.NewFromInt(30), SalePrice: decimal.NewFromInt(60), Stock: 200, Status: domain.ProductActive},
	}
}

func seedSales() []domain.Sale {
	sale := func(id string, date string, productID string, name string, qty int, price int64, discount int64, total int64) domain.Sale {
		return domain.Sale{
			ID:          id,
			Date:        domain.MustParseDate(date),
			ProductID:   productID,
			ProductName: name,
			Quantity:    qty,
			UnitPrice:   decimal.NewFromInt(price),
			Discount:    decimal.NewFromInt(discount),
			Total:       decimal.NewFromInt(total),
		}
	}
	return []domain.Sale{
		sale("1", "2025-11-12", "1", "Producto Premium A", 5, 100, 0, 500),
		sale("2", "2025-11-11", "2", "Producto Standard B", 10, 60, 5, 595),
		sale("3", "2025-11-10", "1", "Producto Premium A", 3, 100, 0, 300),
		sale("4", "2025-11-09", "2", "Producto Standard B", 8, 60, 0, 480),
		sale("5", "2025-11-08", "1", "Producto Premium A", 12, 100, 10, 1190),
	}
}

func (s *Store) today() domain.Date {
	return domain.DateOf(s.opts.Clock().In(s.opts.Location))
}

func (s *Store) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.Match(p) {
			products = append(products, p)
		}
	}
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.productIndex(id)
	if idx < 0 {
		return nil, store.ErrNotFound
	}
	product := s.products[idx]
	return &product, nil
}

func (s *Store) AddProduct(_ context.Context, input domain.ProductInput) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product := domain.Product{
		ID:        s.opts.IDs.New(),
		Code:      input.Code,
		Name:      input.Name,
		CostPrice: input.CostPrice,
		SalePrice: input.SalePrice,
		Stock:     input.Stock,
		Status:    input.Status,
	}
	if product.Status == "" {
		product.Status = domain.ProductActive
	}
	s.products = append(s.products, product)
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.productIndex(id)
	if idx < 0 {
		return nil, store.ErrNotFound
	}
	updated := patch.Apply(s.products[idx])
	updated.ID = id
	s.products[idx] = updated
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.productIndex(id)
	if idx < 0 {
		return store.ErrNotFound
	}
	s.products = slices.Delete(s.products, idx, idx+1)
	return nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if filter.Match(sale) {
			sales = append(sales, cloneSale(sale))
		}
	}
	return sales, nil
}

// AddSale records the sale and decrements the referenced product's stock in
// one critical section. A sale against a missing product is still recorded.
func (s *Store) AddSale(_ context.Context, input domain.SaleInput) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertSale(input, s.productIndex(input.ProductID))
}

func (s *Store) SellProduct(_ context.Context, draft domain.SaleDraft, date domain.Date) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.productIndex(draft.ProductID)
	if idx < 0 {
		return nil, store.ErrNotFound
	}
	product := s.products[idx]
	if product.Status != domain.ProductActive {
		return nil, fmt.Errorf("%w: product %s is inactive", store.ErrInvalidTransaction, product.ID)
	}

	return s.insertSale(domain.SaleInput{
		Date:        date,
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    draft.Quantity,
		UnitPrice:   product.SalePrice,
		Discount:    draft.Discount,
		Total:       product.SalePrice.Mul(decimal.NewFromInt(int64(draft.Quantity))).Sub(draft.Discount),
	}, idx)
}

// insertSale must be called with s.mu held. idx is the product's index or -1.
func (s *Store) insertSale(input domain.SaleInput, idx int) (*domain.Sale, error) {
	if idx >= 0 && s.opts.StrictStock && input.Quantity > s.products[idx].Stock {
		return nil, store.ErrInsufficientStock
	}

	sale := domain.Sale{
		ID:          s.opts.IDs.New(),
		Date:        input.Date,
		ProductID:   input.ProductID,
		ProductName: input.ProductName,
		Quantity:    input.Quantity,
		UnitPrice:   input.UnitPrice,
		Discount:    input.Discount,
		Total:       input.Total,
	}
	if sale.Date.IsZero() {
		sale.Date = s.today()
	}
	if idx >= 0 {
		cost := s.products[idx].CostPrice
		sale.UnitCost = &cost
		s.products[idx].Stock -= input.Quantity
	}

	s.sales = slices.Insert(s.sales, 0, sale)
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) ListDocuments(_ context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]domain.Document, 0, len(s.documents))
	for _, d := range s.documents {
		if filter.Match(d) {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

func (s *Store) AddDocument(_ context.Context, input domain.DocumentInput) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := domain.Document{
		ID:       s.opts.IDs.New(),
		Name:     input.Name,
		Category: strings.TrimSpace(input.Category),
		Date:     input.Date,
		URL:      input.URL,
		Type:     input.Type,
	}
	if doc.Category == "" {
		doc.Category = domain.DefaultDocumentCategory
	}
	if doc.Date.IsZero() {
		doc.Date = s.today()
	}
	s.documents = append(s.documents, doc)
	created := doc
	return &created, nil
}

func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.documents, func(d domain.Document) bool { return d.ID == id })
	if idx < 0 {
		return store.ErrNotFound
	}
	s.documents = slices.Delete(s.documents, idx, idx+1)
	return nil
}

func (s *Store) Snapshot(_ context.Context) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := domain.Snapshot{
		Products: slices.Clone(s.products),
		Sales:    make([]domain.Sale, len(s.sales)),
	}
	for i, sale := range s.sales {
		snap.Sales[i] = cloneSale(sale)
	}
	return snap, nil
}

func (s *Store) Login(_ context.Context, email string, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if email != AdminEmail || bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) != nil {
		return false, nil
	}
	user := adminUser
	s.user = &user
	return true, nil
}

func (s *Store) Logout(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	return nil
}

func (s *Store) CurrentUser(_ context.Context) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil, nil
	}
	user := *s.user
	return &user, nil
}

func (s *Store) ChangePassword(_ context.Context, current string, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bcrypt.CompareHashAndPassword(s.passwordHash, []byte(current)) != nil {
		return store.ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.opts.PasswordCost)
	if err != nil {
		return err
	}
	s.passwordHash = hash
	return nil
}

func (s *Store) Settings(_ context.Context) (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.settings, nil
}

func (s *Store) ToggleTheme(_ context.Context) (domain.Theme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.Theme = s.settings.Theme.Toggle()
	return s.settings.Theme, nil
}

func (s *Store) UpdateCurrency(_ context.Context, currency string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.Currency = currency
	return nil
}

func (s *Store) UpdateCompanyLogo(_ context.Context, logo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.CompanyLogo = logo
	return nil
}

// productIndex must be called with s.mu held.
func (s *Store) productIndex(id string) int {
	return slices.IndexFunc(s.products, func(p domain.Product) bool { return p.ID == id })
}

func cloneSale(src domain.Sale) domain.Sale {
	dst := src
	if src.UnitCost != nil {
		cost := *src.UnitCost
		dst.UnitCost = &cost
	}
	return dst
}
