// Package transform cleans raw extracts into typed, validated records and
// reports the data-quality issues found along the way.
package transform

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pgEdge/pgedge-starload/internal/extract"
	"github.com/pgEdge/pgedge-starload/internal/model"
)

// ErrMissingRaw is returned when the raw set lacks a source a cleaner needs.
var ErrMissingRaw = errors.New("raw source not loaded")

// Options controls how CleanAll schedules the cleaners.
type Options struct {
	// Parallel runs independent cleaners concurrently.
	Parallel bool
}

// cleaner cleans one source into its slot of the cleaned set.
type cleaner struct {
	source string
	clean  func(t *model.RawTable, out *model.Cleaned) *SourceReport
}

// independent cleaners read only their own source. Products is cleaned
// afterwards because it joins against the cleaned translations.
var independent = []cleaner{
	{extract.Customers, func(t *model.RawTable, out *model.Cleaned) (rep *SourceReport) {
		out.Customers, rep = CleanCustomers(t)
		return rep
	}},
	{extract.Geolocation, func(t *model.RawTable, out *model.Cleaned) (rep *SourceReport) {
		out.Geolocations, rep = CleanGeolocation(t)
		return rep
	}},
	{extract.Orders, func(t *model.RawTable, out *model.Cleaned) (rep *SourceReport) {
		out.Orders, rep = CleanOrders(t)
		return rep
	}},
	{extract.OrderItems, func(t *model.RawTable, out *model.Cleaned) (rep *SourceReport) {
		out.OrderItems, rep = CleanOrderItems(t)
		return rep
	}},
	{extract.OrderPayments, func(t *model.RawTable, out *model.Cleaned) (rep *SourceReport) {
		out.Payments, rep = CleanPayments(t)
		return rep
	}},
	{extract.OrderReviews, func(t *model.RawTable, out *model.Cleaned) (rep *SourceReport) {
		out.Reviews, rep = CleanReviews(t)
		return rep
	}},
	{extract.CategoryTranslation, func(t *model.RawTable, out *model.Cleaned) (rep *SourceReport) {
		out.Translations, rep = CleanCategoryTranslation(t)
		return rep
	}},
	{extract.Sellers, func(t *model.RawTable, out *model.Cleaned) (rep *SourceReport) {
		out.Sellers, rep = CleanSellers(t)
		return rep
	}},
}

// CleanAll cleans every source in raw. Each cleaner writes a distinct field
// of the result, so they can run concurrently without locking.
func CleanAll(ctx context.Context, raw model.RawSet, opts Options) (*model.Cleaned, *Report, error) {
	for _, s := range extract.Catalog {
		if raw[s.Name] == nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingRaw, s.Name)
		}
	}

	out := &model.Cleaned{}
	reports := make([]*SourceReport, len(independent)+1)

	g, gctx := errgroup.WithContext(ctx)
	if !opts.Parallel {
		g.SetLimit(1)
	}
	for i, c := range independent {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reports[i] = c.clean(raw[c.source], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("failed to clean sources: %w", err)
	}

	var prodReport *SourceReport
	out.Products, prodReport = CleanProducts(raw[extract.Products], out.Translations)
	reports[len(independent)] = prodReport

	report := &Report{Sources: reports}
	for _, r := range report.Sources {
		r.log()
	}
	return out, report, nil
}
