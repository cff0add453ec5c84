package core

// EvaluateBudget returns budget - totalExpense. Negative means over budget.
func EvaluateBudget(totalExpense, budget float64) float64 {
	return budget - totalExpense
}
