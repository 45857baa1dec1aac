// Package star builds the dimension and fact tables of the Olist star schema
// from cleaned records.
package star

import (
	"fmt"

	"github.com/pgEdge/pgedge-starload/internal/model"
)

// Schema is a fully built star schema, ready to load.
type Schema struct {
	Dates     []DateRow
	Geo       []GeoRow
	Customers []CustomerRow
	Sellers   []SellerRow
	Products  []ProductRow
	Facts     []FactRow
	Report    *FactReport

	// Dimensions reports the rows each keyed dimension skipped.
	Dimensions []*DimensionReport
}

// Options tunes the build.
type Options struct {
	// MaxUnresolvedRatio fails the build when any fact foreign-key column has
	// a larger share of nil keys. Zero disables the check.
	MaxUnresolvedRatio float64
}

// Build derives every dimension, then the fact table from their lookups.
// When the unresolved-key check fails, the built schema is still returned
// alongside the error so its report can be inspected.
func Build(c *model.Cleaned, opts Options) (*Schema, error) {
	dates, dateLookup := BuildDates(c.Orders)
	geo, geoLookup, geoReport := BuildGeolocation(c.Geolocations)
	customers, _, customerReport := BuildCustomers(c.Customers, geoLookup)
	sellers, _, sellerReport := BuildSellers(c.Sellers, geoLookup)
	products, productLookup, productReport := BuildProducts(c.Products)

	facts, report := BuildFact(FactInput{
		Items:     c.OrderItems,
		Orders:    c.Orders,
		Payments:  c.Payments,
		Reviews:   c.Reviews,
		Dates:     dateLookup,
		Customers: customers,
		Sellers:   sellers,
		Products:  productLookup,
	})
	report.log()

	dims := []*DimensionReport{geoReport, customerReport, sellerReport, productReport}

	schema := &Schema{
		Dates:      dates,
		Geo:        geo,
		Customers:  customers,
		Sellers:    sellers,
		Products:   products,
		Facts:      facts,
		Report:     report,
		Dimensions: dims,
	}
	if err := report.Check(opts.MaxUnresolvedRatio); err != nil {
		return schema, fmt.Errorf("failed to validate fact keys: %w", err)
	}
	return schema, nil
}
