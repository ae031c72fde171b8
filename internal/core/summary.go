package core

// CategoryTotal is an amount aggregated by category name.
type CategoryTotal struct {
	Category string
	Total    float64
}

// MonthSummary is a compact spend summary for one YYYY-MM month.
type MonthSummary struct {
	Month      string
	Total      float64
	ByCategory []CategoryTotal
}
