package model

import "time"

// MetricType identifies a financial time series.
type MetricType string

const (
	MetricRevenue         MetricType = "revenue"
	MetricEBITDA          MetricType = "ebitda"
	MetricNetIncome       MetricType = "net_income"
	MetricGrossProfit     MetricType = "gross_profit"
	MetricFreeCashFlow    MetricType = "free_cash_flow"
	MetricTotalDebt       MetricType = "total_debt"
	MetricCash            MetricType = "cash"
	MetricEnterpriseValue MetricType = "enterprise_value"
	MetricEquityValue     MetricType = "equity_value"
	MetricRevenueGrowth   MetricType = "revenue_growth"
	MetricEBITDAMargin    MetricType = "ebitda_margin"
	MetricNetDebt         MetricType = "net_debt"
	MetricCapex           MetricType = "capex"
	MetricWorkingCapital  MetricType = "working_capital"
	MetricEmployees       MetricType = "employees"
	MetricARR             MetricType = "arr"
	MetricMRR             MetricType = "mrr"
	MetricCustomerCount   MetricType = "customer_count"
	MetricChurnRate       MetricType = "churn_rate"
	MetricLTV             MetricType = "ltv"
	MetricCAC             MetricType = "cac"
)

var metricTypes = map[MetricType]bool{
	MetricRevenue: true, MetricEBITDA: true, MetricNetIncome: true, MetricGrossProfit: true,
	MetricFreeCashFlow: true, MetricTotalDebt: true, MetricCash: true, MetricEnterpriseValue: true,
	MetricEquityValue: true, MetricRevenueGrowth: true, MetricEBITDAMargin: true, MetricNetDebt: true,
	MetricCapex: true, MetricWorkingCapital: true, MetricEmployees: true, MetricARR: true,
	MetricMRR: true, MetricCustomerCount: true, MetricChurnRate: true, MetricLTV: true, MetricCAC: true,
}

// Valid reports whether t is a known metric type.
func (t MetricType) Valid() bool {
	return metricTypes[t]
}

// MetricSource records where a metric value came from.
type MetricSource string

const (
	SourceReported   MetricSource = "reported"
	SourceExtracted  MetricSource = "extracted"
	SourceCalculated MetricSource = "calculated"
	SourceEstimated  MetricSource = "estimated"
	SourceManual     MetricSource = "manual"
)

// Valid reports whether s is a known metric source.
func (s MetricSource) Valid() bool {
	switch s {
	case SourceReported, SourceExtracted, SourceCalculated, SourceEstimated, SourceManual:
		return true
	}
	return false
}

// FinancialMetric is one observation in a company's metric time series.
// Several values may share a period date.
type FinancialMetric struct {
	ID         string       `json:"id"`
	CompanyID  string       `json:"company_id"`
	PeriodDate time.Time    `json:"period_date"`
	MetricType MetricType   `json:"metric_type"`
	Value      float64      `json:"value"`
	Currency   string       `json:"currency"`
	Source     MetricSource `json:"source"`
	Notes      string       `json:"notes,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}
