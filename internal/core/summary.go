package core

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	ID     string
	Name   string
	Amount Money
}

// TypeAmount represents an amount aggregated by transaction type.
type TypeAmount struct {
	ID     string
	Name   string
	Amount Money
}

// Summary is the tabulation of a set of entries.
type Summary struct {
	Count      int
	ByType     []TypeAmount
	ByCategory []CategoryAmount
}
