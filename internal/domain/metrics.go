package domain

import "github.com/shopspring/decimal"

type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

type Granularity string

const (
	ByDay   Granularity = "day"
	ByWeek  Granularity = "week"
	ByMonth Granularity = "month"
	ByYear  Granularity = "year"
)

// Bucket is one calendar period of aggregated sales. Start and End are
// inclusive.
type Bucket struct {
	Label   string          `json:"label"`
	Start   Date            `json:"start"`
	End     Date            `json:"end"`
	Revenue decimal.Decimal `json:"revenue"`
	Profit  decimal.Decimal `json:"profit"`
	Sales   int             `json:"sales"`
}

type ProductRevenue struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Value     decimal.Decimal `json:"value"`
}

type DashboardSummary struct {
	Date             Date            `json:"date"`
	TodayRevenue     decimal.Decimal `json:"today_revenue"`
	WeekRevenue      decimal.Decimal `json:"week_revenue"`
	MonthRevenue     decimal.Decimal `json:"month_revenue"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	ProfitMargin     decimal.Decimal `json:"profit_margin_percent"`
	SalesCount       int             `json:"sales_count"`
	ItemsSold        int             `json:"items_sold"`
	BestProduct      *Product        `json:"best_product,omitempty"`
	LowStockProducts int             `json:"low_stock_products"`
	ActiveProducts   int             `json:"active_products"`
	Weekly           []Bucket        `json:"weekly"`
	Monthly          []Bucket        `json:"monthly"`
}

type Report struct {
	Period       Period           `json:"period"`
	Buckets      []Bucket         `json:"buckets"`
	ByProduct    []ProductRevenue `json:"by_product"`
	TotalRevenue decimal.Decimal  `json:"total_revenue"`
	TotalProfit  decimal.Decimal  `json:"total_profit"`
	TotalSales   int              `json:"total_sales"`
}
