package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"glowdesk/backend/internal/domain"
	"glowdesk/backend/internal/store"
	"glowdesk/backend/internal/xid"
)

var testNow = time.Date(2025, time.November, 12, 15, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T, strict bool) *Store {
	t.Helper()

	s, err := NewSeeded(Options{
		Clock:        store.FixedClock(testNow),
		IDs:          xid.NewSequence("t", 0),
		StrictStock:  strict,
		PasswordCost: bcrypt.MinCost,
	})
	require.NoError(t, err)
	return s
}

func saleFor(productID string, qty int, price int64, discount int64) domain.SaleInput {
	unit := decimal.NewFromInt(price)
	disc := decimal.NewFromInt(discount)
	return domain.SaleInput{
		Date:        domain.DateOf(testNow),
		ProductID:   productID,
		ProductName: "whatever",
		Quantity:    qty,
		UnitPrice:   unit,
		Discount:    disc,
		Total:       unit.Mul(decimal.NewFromInt(int64(qty))).Sub(disc),
	}
}

func TestAddProductAssignsUniqueIDsInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s, err := New(Options{PasswordCost: bcrypt.MinCost})
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := range 50 {
		p, err := s.AddProduct(ctx, domain.ProductInput{Code: "DUP", Name: "Serum", Stock: i})
		require.NoError(t, err)
		require.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
		assert.Equal(t, domain.ProductActive, p.Status)
	}

	products, err := s.ListProducts(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, products, 50)
	for i, p := range products {
		assert.Equal(t, i, p.Stock)
	}
}

func TestAddSaleDecrementsStock(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	sale, err := s.AddSale(ctx, saleFor("1", 5, 100, 0))
	require.NoError(t, err)
	require.True(t, sale.Total.Equal(decimal.NewFromInt(500)))
	require.NotNil(t, sale.UnitCost)
	require.True(t, sale.UnitCost.Equal(decimal.NewFromInt(50)))

	product, err := s.GetProduct(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, 145, product.Stock)

	sales, err := s.ListSales(ctx, domain.SaleFilter{})
	require.NoError(t, err)
	require.Equal(t, sale.ID, sales[0].ID, "new sales are prepended")
	require.Len(t, sales, 6)
}

func TestAddSaleForMissingProductIsStillRecorded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)

	require.NoError(t, s.DeleteProduct(ctx, "1"))

	sale, err := s.AddSale(ctx, saleFor("1", 500, 100, 0))
	require.NoError(t, err)
	require.True(t, sale.Total.Equal(decimal.NewFromInt(50000)))
	require.Nil(t, sale.UnitCost)

	other, err := s.GetProduct(ctx, "2")
	require.NoError(t, err)
	require.Equal(t, 200, other.Stock)

	_, err = s.GetProduct(ctx, "1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAddSaleWithoutStrictStockAllowsNegativeStock(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	_, err := s.AddSale(ctx, saleFor("2", 250, 60, 0))
	require.NoError(t, err)

	product, err := s.GetProduct(ctx, "2")
	require.NoError(t, err)
	require.Equal(t, -50, product.Stock)
}

func TestAddSaleStrictStockRejectsWithoutSideEffects(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)

	_, err := s.AddSale(ctx, saleFor("2", 201, 60, 0))
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	product, err := s.GetProduct(ctx, "2")
	require.NoError(t, err)
	require.Equal(t, 200, product.Stock)

	sales, err := s.ListSales(ctx, domain.SaleFilter{})
	require.NoError(t, err)
	require.Len(t, sales, 5)
}

func TestSellProductPricesAgainstCurrentProduct(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)

	price := decimal.NewFromInt(120)
	_, err := s.UpdateProduct(ctx, "1", domain.ProductPatch{SalePrice: &price})
	require.NoError(t, err)

	sale, err := s.SellProduct(ctx, domain.SaleDraft{ProductID: "1", Quantity: 2, Discount: decimal.NewFromInt(15)}, domain.Date{})
	require.NoError(t, err)
	assert.Equal(t, "Producto Premium A", sale.ProductName)
	assert.True(t, sale.UnitPrice.Equal(price))
	assert.True(t, sale.Total.Equal(decimal.NewFromInt(225)))
	assert.Equal(t, "2025-11-12", sale.Date.String())
	require.NotNil(t, sale.UnitCost)

	product, err := s.GetProduct(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 148, product.Stock)
}

func TestSellProductRejectsMissingAndInactive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)

	_, err := s.SellProduct(ctx, domain.SaleDraft{ProductID: "missing", Quantity: 1}, domain.DateOf(testNow))
	require.ErrorIs(t, err, store.ErrNotFound)

	inactive := domain.ProductInactive
	_, err = s.UpdateProduct(ctx, "2", domain.ProductPatch{Status: &inactive})
	require.NoError(t, err)
	_, err = s.SellProduct(ctx, domain.SaleDraft{ProductID: "2", Quantity: 1}, domain.DateOf(testNow))
	require.ErrorIs(t, err, store.ErrInvalidTransaction)

	_, err = s.SellProduct(ctx, domain.SaleDraft{ProductID: "1", Quantity: 151}, domain.DateOf(testNow))
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	sales, err := s.ListSales(ctx, domain.SaleFilter{})
	require.NoError(t, err)
	assert.Len(t, sales, 5)
}

func TestSellProductIsConsistentUnderConcurrentPriceEdits(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)

	var wg sync.WaitGroup
	errs := make(chan error, 200)
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.SellProduct(ctx, domain.SaleDraft{ProductID: "1", Quantity: 1}, domain.DateOf(testNow))
			errs <- err
		}()
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			price := decimal.NewFromInt(int64(100 + i))
			_, err := s.UpdateProduct(ctx, "1", domain.ProductPatch{SalePrice: &price})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	product, err := s.GetProduct(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 0, product.Stock)

	_, err = s.SellProduct(ctx, domain.SaleDraft{ProductID: "1", Quantity: 1}, domain.DateOf(testNow))
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	sales, err := s.ListSales(ctx, domain.SaleFilter{})
	require.NoError(t, err)
	require.Len(t, sales, 155)
	for _, sale := range sales[:150] {
		assert.True(t, sale.Total.Equal(sale.UnitPrice), "total must match the price read under the same lock")
	}
}

func TestUpdateProductMergesPatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	name := "Labial Mate"
	cost := decimal.NewFromInt(55)
	updated, err := s.UpdateProduct(ctx, "1", domain.ProductPatch{Name: &name, CostPrice: &cost})
	require.NoError(t, err)
	assert.Equal(t, "Labial Mate", updated.Name)
	assert.Equal(t, "PROD-001", updated.Code)
	assert.Equal(t, 150, updated.Stock)
	assert.True(t, updated.CostPrice.Equal(cost))
}

func TestUnknownIDsReportNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	_, err := s.UpdateProduct(ctx, "nope", domain.ProductPatch{})
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, s.DeleteProduct(ctx, "nope"), store.ErrNotFound)
	require.ErrorIs(t, s.DeleteDocument(ctx, "nope"), store.ErrNotFound)

	products, err := s.ListProducts(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, products, 2)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	inactive := domain.ProductInactive
	_, err := s.UpdateProduct(ctx, "2", domain.ProductPatch{Status: &inactive})
	require.NoError(t, err)

	byCode, err := s.ListProducts(ctx, domain.ProductFilter{Query: "prod-002"})
	require.NoError(t, err)
	require.Len(t, byCode, 1)

	active, err := s.ListProducts(ctx, domain.ProductFilter{Status: domain.ProductActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "1", active[0].ID)

	premium, err := s.ListSales(ctx, domain.SaleFilter{Query: "premium"})
	require.NoError(t, err)
	require.Len(t, premium, 3)

	onDay, err := s.ListSales(ctx, domain.SaleFilter{Date: domain.MustParseDate("2025-11-11")})
	require.NoError(t, err)
	require.Len(t, onDay, 1)
	require.Equal(t, "2", onDay[0].ID)
}

func TestDocumentsDefaultCategoryAndDate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	doc, err := s.AddDocument(ctx, domain.DocumentInput{Name: "factura.pdf", URL: "blob:1", Type: "application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultDocumentCategory, doc.Category)
	assert.Equal(t, "2025-11-12", doc.Date.String())
	assert.Equal(t, domain.DocumentPDF, doc.Kind())

	_, err = s.AddDocument(ctx, domain.DocumentInput{Name: "logo.png", Category: "Marketing", Type: "image/png"})
	require.NoError(t, err)

	marketing, err := s.ListDocuments(ctx, domain.DocumentFilter{Category: "marketing"})
	require.NoError(t, err)
	require.Len(t, marketing, 1)

	require.NoError(t, s.DeleteDocument(ctx, doc.ID))
	all, err := s.ListDocuments(ctx, domain.DocumentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestLoginLogout(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	ok, err := s.Login(ctx, "x", "y")
	require.NoError(t, err)
	require.False(t, ok)
	user, err := s.CurrentUser(ctx)
	require.NoError(t, err)
	require.Nil(t, user)

	ok, err = s.Login(ctx, AdminEmail, AdminPassword)
	require.NoError(t, err)
	require.True(t, ok)
	user, err = s.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, adminUser, *user)

	require.NoError(t, s.Logout(ctx))
	user, err = s.CurrentUser(ctx)
	require.NoError(t, err)
	require.Nil(t, user)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	require.ErrorIs(t, s.ChangePassword(ctx, "wrong", "secret99"), store.ErrInvalidCredentials)
	require.NoError(t, s.ChangePassword(ctx, AdminPassword, "secret99"))

	ok, err := s.Login(ctx, AdminEmail, AdminPassword)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.Login(ctx, AdminEmail, "secret99")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	settings, err := s.Settings(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.Settings{Theme: domain.ThemeDark, Currency: "$"}, settings)

	theme, err := s.ToggleTheme(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.ThemeLight, theme)

	require.NoError(t, s.UpdateCurrency(ctx, "MXN$"))
	require.NoError(t, s.UpdateCompanyLogo(ctx, "blob:logo"))

	settings, err = s.Settings(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.Settings{Theme: domain.ThemeLight, Currency: "MXN$", CompanyLogo: "blob:logo"}, settings)
}

func TestSnapshotIsDetached(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)

	_, err = s.AddSale(ctx, saleFor("1", 1, 100, 0))
	require.NoError(t, err)

	require.Len(t, snap.Sales, 5)
	p, ok := snap.Product("1")
	require.True(t, ok)
	require.Equal(t, 150, p.Stock)
}
