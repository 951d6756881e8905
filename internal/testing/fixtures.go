package testing

import "github.com/aristath/restock/internal/domain"

// WoundProduct is a progressive product that keeps ordering its continuous size
func WoundProduct() domain.ProductConfig {
	return domain.ProductConfig{
		ID:                    "product1",
		Name:                  "Mepiform 10x18cm",
		URL:                   "https://supplier.test/p/product1",
		StockSelector:         ".product-availability",
		PriceSelector:         ".price",
		BackorderMatch:        "10X18CM",
		ProgressiveQuantities: []int{700, 350, 140, 70},
		ContinuousQuantity:    70,
		MinQuantity:           35,
		LimitedStockQuantity:  35,
		ReductionDivisor:      7,
	}
}

// CappedProduct is a progressive product bounded by a daily unit cap
func CappedProduct() domain.ProductConfig {
	return domain.ProductConfig{
		ID:                    "product2",
		Name:                  "Mepiform 5x7.5cm",
		URL:                   "https://supplier.test/p/product2",
		StockSelector:         ".product-availability",
		PriceSelector:         ".price",
		BackorderMatch:        "5X7,5CM",
		ProgressiveQuantities: []int{900, 450, 270},
		MinQuantity:           45,
		LimitedStockQuantity:  45,
		DailyUnitCap:          1620,
		ReductionDivisor:      9,
	}
}
