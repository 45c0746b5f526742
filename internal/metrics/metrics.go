// Package metrics derives revenue, profit and ranking figures from a store
// snapshot. Every function is pure: the same sales, products and "now"
// always produce the same output.
package metrics

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"glowdesk/backend/internal/domain"
)

// LowStockThreshold is the stock level below which a product is flagged.
const LowStockThreshold = 50

const (
	DashboardDays   = 7
	DashboardMonths = 6
	ReportDays      = 7
	ReportMonths    = 12
	ReportYears     = 3
)

// ProfitOf prices the sale against the product's current cost. Editing a
// product's cost price therefore changes the profit of its past sales. A
// sale whose product no longer exists has zero profit.
func ProfitOf(sale domain.Sale, products []domain.Product) decimal.Decimal {
	product, ok := domain.FindProduct(products, sale.ProductID)
	if !ok {
		return decimal.Zero
	}
	return sale.Total.Sub(product.CostPrice.Mul(decimal.NewFromInt(int64(sale.Quantity))))
}

// HistoricalProfitOf prices the sale against the cost recorded when it was
// made, falling back to ProfitOf for sales recorded without one.
func HistoricalProfitOf(sale domain.Sale, products []domain.Product) decimal.Decimal {
	if sale.UnitCost == nil {
		return ProfitOf(sale, products)
	}
	return sale.Total.Sub(sale.UnitCost.Mul(decimal.NewFromInt(int64(sale.Quantity))))
}

type span struct {
	label string
	start domain.Date
	end   domain.Date
}

func aggregate(sales []domain.Sale, products []domain.Product, spans []span) []domain.Bucket {
	buckets := make([]domain.Bucket, 0, len(spans))
	for _, sp := range spans {
		b := domain.Bucket{
			Label:   sp.label,
			Start:   sp.start,
			End:     sp.end,
			Revenue: decimal.Zero,
			Profit:  decimal.Zero,
		}
		for _, sale := range sales {
			if !sale.Date.Within(sp.start, sp.end) {
				continue
			}
			b.Sales++
			b.Revenue = b.Revenue.Add(sale.Total)
			b.Profit = b.Profit.Add(ProfitOf(sale, products))
		}
		buckets = append(buckets, b)
	}
	return buckets
}

// BucketByDay returns the last n calendar days ending today, oldest first.
func BucketByDay(sales []domain.Sale, products []domain.Product, now time.Time, n int) []domain.Bucket {
	today := domain.DateOf(now)
	spans := make([]span, 0, max(n, 0))
	for i := n - 1; i >= 0; i-- {
		day := today.AddDays(-i)
		spans = append(spans, span{label: day.String(), start: day, end: day})
	}
	return aggregate(sales, products, spans)
}

// BucketByWeek returns the last n ISO weeks (Monday to Sunday) ending with
// the current week, oldest first.
func BucketByWeek(sales []domain.Sale, products []domain.Product, now time.Time, n int) []domain.Bucket {
	today := domain.DateOf(now)
	monday := today.AddDays(-((int(today.Weekday()) + 6) % 7))
	spans := make([]span, 0, max(n, 0))
	for i := n - 1; i >= 0; i-- {
		start := monday.AddDays(-7 * i)
		year, week := start.Time().ISOWeek()
		spans = append(spans, span{
			label: fmt.Sprintf("%d-W%02d", year, week),
			start: start,
			end:   start.AddDays(6),
		})
	}
	return aggregate(sales, products, spans)
}

// BucketByMonth returns the last n calendar months ending with the current
// month, oldest first. Each bucket covers [monthStart, monthEnd] inclusive.
func BucketByMonth(sales []domain.Sale, products []domain.Product, now time.Time, n int) []domain.Bucket {
	today := domain.DateOf(now)
	first := domain.NewDate(today.Year(), today.Month(), 1)
	spans := make([]span, 0, max(n, 0))
	for i := n - 1; i >= 0; i-- {
		start := first.AddMonths(-i)
		spans = append(spans, span{
			label: fmt.Sprintf("%d-%02d", start.Year(), int(start.Month())),
			start: start,
			end:   start.AddMonths(1).AddDays(-1),
		})
	}
	return aggregate(sales, products, spans)
}

// BucketByYear returns the last n calendar years ending with the current
// year, oldest first.
func BucketByYear(sales []domain.Sale, products []domain.Product, now time.Time, n int) []domain.Bucket {
	year := domain.DateOf(now).Year()
	spans := make([]span, 0, max(n, 0))
	for i := n - 1; i >= 0; i-- {
		y := year - i
		spans = append(spans, span{
			label: fmt.Sprintf("%d", y),
			start: domain.NewDate(y, time.January, 1),
			end:   domain.NewDate(y, time.December, 31),
		})
	}
	return aggregate(sales, products, spans)
}

// Buckets dispatches to the bucketing function for g.
func Buckets(g domain.Granularity, sales []domain.Sale, products []domain.Product, now time.Time, n int) ([]domain.Bucket, error) {
	switch g {
	case domain.ByDay:
		return BucketByDay(sales, products, now, n), nil
	case domain.ByWeek:
		return BucketByWeek(sales, products, now, n), nil
	case domain.ByMonth:
		return BucketByMonth(sales, products, now, n), nil
	case domain.ByYear:
		return BucketByYear(sales, products, now, n), nil
	default:
		return nil, fmt.Errorf("unknown granularity %q", g)
	}
}

// BestProduct returns the product id with the highest summed quantity. Ties
// go to the id that appears first in sales.
func BestProduct(sales []domain.Sale) (string, bool) {
	totals := make(map[string]int, len(sales))
	order := make([]string, 0, len(sales))
	for _, sale := range sales {
		if _, seen := totals[sale.ProductID]; !seen {
			order = append(order, sale.ProductID)
		}
		totals[sale.ProductID] += sale.Quantity
	}

	var (
		best    string
		bestQty int
		found   bool
	)
	for _, id := range order {
		if !found || totals[id] > bestQty {
			best, bestQty, found = id, totals[id], true
		}
	}
	return best, found
}

// RevenueByProduct sums sale totals per product in product-list order.
// Products without sales are reported with a zero value.
func RevenueByProduct(products []domain.Product, sales []domain.Sale) []domain.ProductRevenue {
	byID := make(map[string]decimal.Decimal, len(products))
	for _, sale := range sales {
		byID[sale.ProductID] = byID[sale.ProductID].Add(sale.Total)
	}

	result := make([]domain.ProductRevenue, 0, len(products))
	for _, p := range products {
		value, ok := byID[p.ID]
		if !ok {
			value = decimal.Zero
		}
		result = append(result, domain.ProductRevenue{ProductID: p.ID, Name: p.Name, Value: value})
	}
	return result
}

func totals(sales []domain.Sale, products []domain.Product) (revenue decimal.Decimal, profit decimal.Decimal) {
	revenue, profit = decimal.Zero, decimal.Zero
	for _, sale := range sales {
		revenue = revenue.Add(sale.Total)
		profit = profit.Add(ProfitOf(sale, products))
	}
	return revenue, profit
}

func revenueBetween(sales []domain.Sale, from domain.Date, to domain.Date) decimal.Decimal {
	sum := decimal.Zero
	for _, sale := range sales {
		if sale.Date.Within(from, to) {
			sum = sum.Add(sale.Total)
		}
	}
	return sum
}

// MarginPercent is profit over revenue as a percentage rounded to two
// places, or zero when there is no revenue.
func MarginPercent(revenue decimal.Decimal, profit decimal.Decimal) decimal.Decimal {
	if !revenue.IsPositive() {
		return decimal.Zero
	}
	return profit.Div(revenue).Mul(decimal.NewFromInt(100)).Round(2)
}

// Summarize computes the dashboard cards and charts.
func Summarize(snap domain.Snapshot, now time.Time) domain.DashboardSummary {
	today := domain.DateOf(now)
	revenue, profit := totals(snap.Sales, snap.Products)

	summary := domain.DashboardSummary{
		Date:         today,
		TodayRevenue: revenueBetween(snap.Sales, today, today),
		WeekRevenue:  revenueBetween(snap.Sales, today.AddDays(-(DashboardDays - 1)), today),
		MonthRevenue: revenueBetween(snap.Sales, domain.NewDate(today.Year(), today.Month(), 1), today),
		TotalRevenue: revenue,
		TotalProfit:  profit,
		ProfitMargin: MarginPercent(revenue, profit),
		SalesCount:   len(snap.Sales),
		Weekly:       BucketByDay(snap.Sales, snap.Products, now, DashboardDays),
		Monthly:      BucketByMonth(snap.Sales, snap.Products, now, DashboardMonths),
	}
	for _, sale := range snap.Sales {
		summary.ItemsSold += sale.Quantity
	}
	for _, p := range snap.Products {
		if p.Stock < LowStockThreshold {
			summary.LowStockProducts++
		}
		if p.Status == domain.ProductActive {
			summary.ActiveProducts++
		}
	}
	if id, ok := BestProduct(snap.Sales); ok {
		if p, found := snap.Product(id); found {
			summary.BestProduct = &p
		}
	}
	return summary
}

// BuildReport computes the reports screen for period. Unknown periods fall
// back to the monthly view.
func BuildReport(snap domain.Snapshot, now time.Time, period domain.Period) domain.Report {
	var buckets []domain.Bucket
	switch period {
	case domain.PeriodWeek:
		buckets = BucketByDay(snap.Sales, snap.Products, now, ReportDays)
	case domain.PeriodYear:
		buckets = BucketByYear(snap.Sales, snap.Products, now, ReportYears)
	default:
		period = domain.PeriodMonth
		buckets = BucketByMonth(snap.Sales, snap.Products, now, ReportMonths)
	}

	revenue, profit := totals(snap.Sales, snap.Products)
	return domain.Report{
		Period:       period,
		Buckets:      buckets,
		ByProduct:    RevenueByProduct(snap.Products, snap.Sales),
		TotalRevenue: revenue,
		TotalProfit:  profit,
		TotalSales:   len(snap.Sales),
	}
}
