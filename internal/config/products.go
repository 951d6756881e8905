package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aristath/restock/internal/domain"
	"github.com/aristath/restock/internal/modules/ordering"
	"github.com/aristath/restock/internal/utils"
	"gopkg.in/yaml.v3"
)

// ProductsFile is the YAML layout of PRODUCTS_FILE
type ProductsFile struct {
	Products  []domain.ProductConfig `yaml:"products"`
	Selectors ordering.Selectors     `yaml:"selectors"`
}

// DefaultProducts returns the two built-in supplier profiles
func DefaultProducts() []domain.ProductConfig {
	return []domain.ProductConfig{
		{
			ID:                    "product1",
			Name:                  "MEPIFORM 10X18CM",
			URL:                   "https://oriola4care.oriola-kd.com/Varumärken/MÖLNLYCKE-HEALTH-CARE/MEPIFORM-10X18CM-5ST/p/282186-888",
			StockSelector:         ".product-availability",
			PriceSelector:         ".price",
			BackorderMatch:        "10X18CM",
			ProgressiveQuantities: []int{700, 350, 140, 70},
			ContinuousQuantity:    70,
			MinQuantity:           35,
			LimitedStockQuantity:  35,
			ReductionDivisor:      7,
		},
		{
			ID:                    "product2",
			Name:                  "MEPIFORM 5X7,5CM",
			URL:                   "https://oriola4care.oriola-kd.com/Varumärken/MÖLNLYCKE-HEALTH-CARE/MEPIFORM-5X7,5CM-2ST/p/820809-888",
			StockSelector:         ".product-availability",
			PriceSelector:         ".price",
			BackorderMatch:        "5X7,5CM",
			ProgressiveQuantities: []int{900, 450, 270},
			MinQuantity:           45,
			LimitedStockQuantity:  45,
			DailyUnitCap:          1620,
			ReductionDivisor:      9,
		},
	}
}

// LoadProducts reads path, or returns the built-in profiles when path is empty.
// Selector lists missing from the file keep their defaults.
func LoadProducts(path string) (ProductsFile, error) {
	out := ProductsFile{
		Products:  DefaultProducts(),
		Selectors: ordering.DefaultSelectors(),
	}
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("failed to read products file: %w", err)
	}
	var file ProductsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return out, fmt.Errorf("failed to parse products file %s: %w", path, err)
	}
	if len(file.Products) > 0 {
		out.Products = file.Products
	}
	out.Selectors = file.Selectors.Merge(out.Selectors)
	return out, nil
}

// applyProductOverrides applies PRODUCT_<ID>_QUANTITIES and PRODUCT_<ID>_DAILY_CAP
func applyProductOverrides(products []domain.ProductConfig) error {
	for i := range products {
		prefix := "PRODUCT_" + strings.ToUpper(products[i].ID) + "_"

		if raw := os.Getenv(prefix + "QUANTITIES"); raw != "" {
			quantities, err := utils.ParseIntCSV(raw)
			if err != nil {
				return fmt.Errorf("%sQUANTITIES: %w", prefix, err)
			}
			products[i].ProgressiveQuantities = quantities
		}
		if raw := os.Getenv(prefix + "DAILY_CAP"); raw != "" {
			limit, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil || limit < 0 {
				return fmt.Errorf("%sDAILY_CAP: invalid value %q", prefix, raw)
			}
			products[i].DailyUnitCap = limit
		}
	}
	return nil
}
