package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// Stats holds the four results computed under one filter.
type Stats struct {
	TotalIncome  float64          `json:"total_income"`
	TotalExpense float64          `json:"total_expense"`
	Categories   []CategoryAmount `json:"category_breakdown"`
	Records      []Transaction    `json:"records"`
}

// Balance is income minus expense.
func (s Stats) Balance() float64 {
	return s.TotalIncome - s.TotalExpense
}

// Labels returns category names in breakdown order.
func (s Stats) Labels() []string {
	out := make([]string, len(s.Categories))
	for i, c := range s.Categories {
		out[i] = c.Name
	}
	return out
}

// Amounts returns category totals parallel to Labels.
func (s Stats) Amounts() []float64 {
	out := make([]float64, len(s.Categories))
	for i, c := range s.Categories {
		out[i] = c.Amount
	}
	return out
}

// Report is everything the presentation layer needs for one dashboard view.
type Report struct {
	Filter        Filter     `json:"filter"`
	Budget        float64    `json:"budget"`
	DefaultBudget float64    `json:"default_budget"`
	BudgetDiff    float64    `json:"budget_diff"`
	Balance       float64    `json:"balance"`
	Advisories    []Advisory `json:"advisories,omitempty"`
	Stats
}
