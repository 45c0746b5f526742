package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"glowdesk/backend/internal/domain"
	"glowdesk/backend/internal/metrics"
	"glowdesk/backend/internal/store"
)

const (
	minPasswordLength = 6
	maxBuckets        = 366
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo   store.Repository
	logger *zap.Logger
	clock  store.Clock
	loc    *time.Location
}

func New(repo store.Repository, logger *zap.Logger, clock store.Clock, loc *time.Location) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = store.SystemClock
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Service{
		repo:   repo,
		logger: logger.Named("service"),
		clock:  clock,
		loc:    loc,
	}
}

func (s *Service) now() time.Time {
	return s.clock().In(s.loc)
}

func (s *Service) Today() domain.Date {
	return domain.DateOf(s.now())
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	if actor, ok := ActorFromContext(ctx); ok {
		return s.logger.With(zap.String("actor", actor.Email))
	}
	return s.logger
}

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", store.ErrInvalidTransaction, filter.Status)
	}
	return s.repo.ListProducts(ctx, filter)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, input domain.ProductInput) (domain.Product, error) {
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if input.Status == "" {
		input.Status = domain.ProductActive
	}

	if input.Name == "" || input.Code == "" {
		return domain.Product{}, fmt.Errorf("%w: code and name are required", store.ErrInvalidTransaction)
	}
	if input.CostPrice.IsNegative() || input.SalePrice.IsNegative() || input.Stock < 0 {
		return domain.Product{}, fmt.Errorf("%w: prices and stock must not be negative", store.ErrInvalidTransaction)
	}
	if !input.Status.Valid() {
		return domain.Product{}, fmt.Errorf("%w: unknown status %q", store.ErrInvalidTransaction, input.Status)
	}

	created, err := s.repo.AddProduct(ctx, input)
	if err != nil {
		return domain.Product{}, err
	}

	s.log(ctx).Info("product created",
		zap.String("id", created.ID),
		zap.String("code", created.Code),
		zap.Int("stock", created.Stock),
	)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: name must not be empty", store.ErrInvalidTransaction)
		}
		patch.Name = &name
	}
	if patch.Code != nil {
		code := strings.TrimSpace(*patch.Code)
		if code == "" {
			return domain.Product{}, fmt.Errorf("%w: code must not be empty", store.ErrInvalidTransaction)
		}
		patch.Code = &code
	}
	if (patch.CostPrice != nil && patch.CostPrice.IsNegative()) || (patch.SalePrice != nil && patch.SalePrice.IsNegative()) {
		return domain.Product{}, fmt.Errorf("%w: prices must not be negative", store.ErrInvalidTransaction)
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return domain.Product{}, fmt.Errorf("%w: stock must not be negative", store.ErrInvalidTransaction)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return domain.Product{}, fmt.Errorf("%w: unknown status %q", store.ErrInvalidTransaction, *patch.Status)
	}

	updated, err := s.repo.UpdateProduct(ctx, id, patch)
	if err != nil {
		return domain.Product{}, err
	}

	s.log(ctx).Info("product updated",
		zap.String("id", updated.ID),
		zap.String("status", string(updated.Status)),
		zap.Int("stock", updated.Stock),
	)
	return *updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.log(ctx).Info("product deleted", zap.String("id", id))
	return nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, filter)
}

// RecordSale stores a sale whose total the caller already computed. The
// product's stock is decremented by the repository in the same step.
func (s *Service) RecordSale(ctx context.Context, input domain.SaleInput) (domain.Sale, error) {
	if err := validateSaleAmounts(input.Quantity, input.Discount); err != nil {
		return domain.Sale{}, err
	}
	if input.UnitPrice.IsNegative() {
		return domain.Sale{}, fmt.Errorf("%w: price and discount must not be negative", store.ErrInvalidTransaction)
	}
	if input.Date.IsZero() {
		input.Date = s.Today()
	}

	sale, err := s.repo.AddSale(ctx, input)
	if err != nil {
		return domain.Sale{}, err
	}
	s.logSale(ctx, sale)
	return *sale, nil
}

// SellProduct builds a sale from the current product the way the sales form
// does: today's date, the product's name and sale price, and
// total = salePrice*quantity - discount. The repository reads the product
// and records the sale under one lock.
func (s *Service) SellProduct(ctx context.Context, draft domain.SaleDraft) (domain.Sale, error) {
	draft.ProductID = strings.TrimSpace(draft.ProductID)
	if err := validateSaleAmounts(draft.Quantity, draft.Discount); err != nil {
		return domain.Sale{}, err
	}

	sale, err := s.repo.SellProduct(ctx, draft, s.Today())
	if err != nil {
		return domain.Sale{}, err
	}
	s.logSale(ctx, sale)
	return *sale, nil
}

func validateSaleAmounts(quantity int, discount decimal.Decimal) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be positive", store.ErrInvalidTransaction)
	}
	if discount.IsNegative() {
		return fmt.Errorf("%w: price and discount must not be negative", store.ErrInvalidTransaction)
	}
	return nil
}

func (s *Service) logSale(ctx context.Context, sale *domain.Sale) {
	logger := s.log(ctx).With(
		zap.String("id", sale.ID),
		zap.String("product_id", sale.ProductID),
		zap.Int("quantity", sale.Quantity),
		zap.String("total", sale.Total.String()),
	)
	if sale.UnitCost == nil {
		logger.Warn("sale recorded for unknown product, stock not adjusted")
		return
	}
	logger.Info("sale recorded")
}

func (s *Service) ListDocuments(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	return s.repo.ListDocuments(ctx, filter)
}

func (s *Service) DocumentStats(ctx context.Context) (domain.DocumentStats, error) {
	docs, err := s.repo.ListDocuments(ctx, domain.DocumentFilter{})
	if err != nil {
		return domain.DocumentStats{}, err
	}
	stats := domain.DocumentStats{Total: len(docs)}
	for _, d := range docs {
		switch d.Kind() {
		case domain.DocumentImage:
			stats.Images++
		case domain.DocumentPDF:
			stats.PDFs++
		default:
			stats.Other++
		}
	}
	return stats, nil
}

func (s *Service) UploadDocument(ctx context.Context, input domain.DocumentInput) (domain.Document, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.URL = strings.TrimSpace(input.URL)
	if input.Name == "" || input.URL == "" {
		return domain.Document{}, fmt.Errorf("%w: name and url are required", store.ErrInvalidTransaction)
	}
	if input.Date.IsZero() {
		input.Date = s.Today()
	}

	doc, err := s.repo.AddDocument(ctx, input)
	if err != nil {
		return domain.Document{}, err
	}
	s.log(ctx).Info("document added",
		zap.String("id", doc.ID),
		zap.String("category", doc.Category),
		zap.String("kind", string(doc.Kind())),
	)
	return *doc, nil
}

func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	if err := s.repo.DeleteDocument(ctx, id); err != nil {
		return err
	}
	s.log(ctx).Info("document deleted", zap.String("id", id))
	return nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (domain.User, error) {
	ok, err := s.repo.Login(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		s.logger.Info("login rejected", zap.String("email", req.Email))
		return domain.User{}, store.ErrInvalidCredentials
	}

	user, err := s.repo.CurrentUser(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, errors.New("login did not establish a session")
	}
	s.logger.Info("login", zap.String("email", user.Email))
	return *user, nil
}

func (s *Service) Logout(ctx context.Context) error {
	if err := s.repo.Logout(ctx); err != nil {
		return err
	}
	s.log(ctx).Info("logout")
	return nil
}

// CurrentUser returns store.ErrNotFound when nobody is logged in.
func (s *Service) CurrentUser(ctx context.Context) (domain.User, error) {
	user, err := s.repo.CurrentUser(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, store.ErrNotFound
	}
	return *user, nil
}

func (s *Service) ChangePassword(ctx context.Context, req domain.PasswordChangeRequest) error {
	if req.NewPassword != req.ConfirmPassword {
		return fmt.Errorf("%w: passwords do not match", store.ErrInvalidTransaction)
	}
	if len(req.NewPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", store.ErrInvalidTransaction, minPasswordLength)
	}
	if err := s.repo.ChangePassword(ctx, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	s.log(ctx).Info("password changed")
	return nil
}

func (s *Service) Settings(ctx context.Context) (domain.Settings, error) {
	return s.repo.Settings(ctx)
}

func (s *Service) ToggleTheme(ctx context.Context) (domain.Theme, error) {
	theme, err := s.repo.ToggleTheme(ctx)
	if err != nil {
		return "", err
	}
	s.log(ctx).Debug("theme toggled", zap.String("theme", string(theme)))
	return theme, nil
}

func (s *Service) UpdateCurrency(ctx context.Context, currency string) error {
	if err := s.repo.UpdateCurrency(ctx, currency); err != nil {
		return err
	}
	s.log(ctx).Info("currency updated", zap.String("currency", currency))
	return nil
}

func (s *Service) UpdateCompanyLogo(ctx context.Context, logo string) error {
	if err := s.repo.UpdateCompanyLogo(ctx, logo); err != nil {
		return err
	}
	s.log(ctx).Info("company logo updated")
	return nil
}

func (s *Service) Dashboard(ctx context.Context) (domain.DashboardSummary, error) {
	snap, err := s.repo.Snapshot(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	return metrics.Summarize(snap, s.now()), nil
}

func (s *Service) Report(ctx context.Context, period domain.Period) (domain.Report, error) {
	snap, err := s.repo.Snapshot(ctx)
	if err != nil {
		return domain.Report{}, err
	}
	return metrics.BuildReport(snap, s.now(), period), nil
}

func (s *Service) Buckets(ctx context.Context, granularity domain.Granularity, n int) ([]domain.Bucket, error) {
	if n < 1 || n > maxBuckets {
		return nil, fmt.Errorf("%w: bucket count must be between 1 and %d", store.ErrInvalidTransaction, maxBuckets)
	}
	snap, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	buckets, err := metrics.Buckets(granularity, snap.Sales, snap.Products, s.now(), n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidTransaction, err)
	}
	return buckets, nil
}

// SaleProfit reports both the live-cost and the recorded-cost profit of a
// sale.
func (s *Service) SaleProfit(ctx context.Context, saleID string) (current decimal.Decimal, historical decimal.Decimal, err error) {
	snap, err := s.repo.Snapshot(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	for _, sale := range snap.Sales {
		if sale.ID == saleID {
			return metrics.ProfitOf(sale, snap.Products), metrics.HistoricalProfitOf(sale, snap.Products), nil
		}
	}
	return decimal.Zero, decimal.Zero, store.ErrNotFound
}
