package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
)

func (s ProductStatus) Valid() bool {
	return s == ProductActive || s == ProductInactive
}

type Product struct {
	ID        string          `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	CostPrice decimal.Decimal `json:"cost_price"`
	SalePrice decimal.Decimal `json:"sale_price"`
	Stock     int             `json:"stock"`
	Status    ProductStatus   `json:"status"`
}

// ProductInput is a product without its id, as accepted by AddProduct.
type ProductInput struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	CostPrice decimal.Decimal `json:"cost_price"`
	SalePrice decimal.Decimal `json:"sale_price"`
	Stock     int             `json:"stock"`
	Status    ProductStatus   `json:"status"`
}

// ProductPatch carries the fields to merge into an existing product. Nil
// fields are left untouched.
type ProductPatch struct {
	Code      *string          `json:"code,omitempty"`
	Name      *string          `json:"name,omitempty"`
	CostPrice *decimal.Decimal `json:"cost_price,omitempty"`
	SalePrice *decimal.Decimal `json:"sale_price,omitempty"`
	Stock     *int             `json:"stock,omitempty"`
	Status    *ProductStatus   `json:"status,omitempty"`
}

func (p ProductPatch) Apply(product Product) Product {
	if p.Code != nil {
		product.Code = *p.Code
	}
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.CostPrice != nil {
		product.CostPrice = *p.CostPrice
	}
	if p.SalePrice != nil {
		product.SalePrice = *p.SalePrice
	}
	if p.Stock != nil {
		product.Stock = *p.Stock
	}
	if p.Status != nil {
		product.Status = *p.Status
	}
	return product
}

type ProductFilter struct {
	Query  string
	Status ProductStatus
}

func (f ProductFilter) Match(p Product) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Code), q)
}

type Sale struct {
	ID          string          `json:"id"`
	Date        Date            `json:"date"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
	// UnitCost is the product's cost price when the sale was recorded. Nil
	// for sales recorded without a live product.
	UnitCost *decimal.Decimal `json:"unit_cost,omitempty"`
}

// SaleInput is a sale without its id. Total is stored as given.
type SaleInput struct {
	Date        Date            `json:"date"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

// SaleDraft is what the sales form submits: the rest is derived from the
// product at the time of the sale.
type SaleDraft struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
}

type SaleFilter struct {
	Query string
	Date  Date
}

func (f SaleFilter) Match(s Sale) bool {
	if !f.Date.IsZero() && !s.Date.Equal(f.Date) {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	return q == "" || strings.Contains(strings.ToLower(s.ProductName), q)
}

const DefaultDocumentCategory = "General"

type DocumentKind string

const (
	DocumentImage DocumentKind = "image"
	DocumentPDF   DocumentKind = "pdf"
	DocumentOther DocumentKind = "other"
)

type Document struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Date     Date   `json:"date"`
	URL      string `json:"url"`
	Type     string `json:"type"`
}

func (d Document) Kind() DocumentKind {
	return KindOf(d.Type)
}

func KindOf(mimeType string) DocumentKind {
	t := strings.ToLower(mimeType)
	switch {
	case strings.Contains(t, "image"):
		return DocumentImage
	case strings.Contains(t, "pdf"):
		return DocumentPDF
	default:
		return DocumentOther
	}
}

type DocumentInput struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Date     Date   `json:"date"`
	URL      string `json:"url"`
	Type     string `json:"type"`
}

type DocumentFilter struct {
	Query    string
	Category string
}

func (f DocumentFilter) Match(d Document) bool {
	if f.Category != "" && !strings.EqualFold(d.Category, f.Category) {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	return q == "" || strings.Contains(strings.ToLower(d.Name), q)
}

type DocumentStats struct {
	Total  int `json:"total"`
	Images int `json:"images"`
	PDFs   int `json:"pdfs"`
	Other  int `json:"other"`
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Toggle() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

type Settings struct {
	Theme       Theme  `json:"theme"`
	Currency    string `json:"currency"`
	CompanyLogo string `json:"company_logo"`
}

// Snapshot is a consistent copy of the store's collections at one instant.
type Snapshot struct {
	Products []Product
	Sales    []Sale
}

func (s Snapshot) Product(id string) (Product, bool) {
	return FindProduct(s.Products, id)
}

func FindProduct(products []Product, id string) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
	ExpiresAt   string `json:"expires_at"`
}

type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type Actor struct {
	Email string
	Role  string
	Token string
}
