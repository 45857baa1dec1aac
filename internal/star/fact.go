//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package star

import (
	"sort"
	"strconv"
	"time"

	"github.com/pgEdge/pgedge-starload/internal/model"
	"github.com/pgEdge/pgedge-starload/internal/transform"
)

// DefaultPaymentType is used for orders whose payments carry no type.
const DefaultPaymentType = "not_defined"

// Fact columns that reference a dimension.
const (
	ColDateKey        = "date_key"
	ColCustomerKey    = "customer_key"
	ColSellerKey      = "seller_key"
	ColProductKey     = "product_key"
	ColCustomerGeoKey = "customer_geo_key"
	ColSellerGeoKey   = "seller_geo_key"
)

// ForeignKeyColumns lists the fact columns checked for unresolved keys.
var ForeignKeyColumns = []string{
	ColDateKey, ColCustomerKey, ColSellerKey, ColProductKey,
	ColCustomerGeoKey, ColSellerGeoKey,
}

const secondsPerDay = 86400.0

// FactRow is one order line item of fact_orders.
type FactRow struct {
	OrderID           string
	OrderItemID       int
	DateKey           *int64
	CustomerKey       *int64
	SellerKey         *int64
	ProductKey        *int64
	CustomerGeoKey    *int64
	SellerGeoKey      *int64
	OrderStatus       string
	Price             float64
	FreightValue      float64
	OrderPaymentTotal *float64
	PaymentType       *string
	ReviewScore       *int
	DeliveryDays      *float64
	EstimatedDays     *float64
	DeliveryDeltaDays *float64
}

// PaymentSummary collapses all payments of one order.
type PaymentSummary struct {
	Total float64
	Type  string
}

// AggregatePayments sums payment values per order and picks the most
// frequent payment type.
func AggregatePayments(payments []model.Payment) map[string]PaymentSummary {
	totals := make(map[string]float64)
	types := make(map[string][]string)
	for _, p := range payments {
		totals[p.OrderID] += p.Value
		types[p.OrderID] = append(types[p.OrderID], p.Type)
	}

	out := make(map[string]PaymentSummary, len(totals))
	for order, total := range totals {
		out[order] = PaymentSummary{
			Total: total,
			Type:  transform.Mode(types[order], DefaultPaymentType),
		}
	}
	return out
}

// LatestReviews keeps the most recently created review of each order.
// Reviews without a creation time sort last; equal times keep input order.
func LatestReviews(reviews []model.Review) map[string]model.Review {
	sorted := make([]model.Review, len(reviews))
	copy(sorted, reviews)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].CreatedAt, sorted[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	out := make(map[string]model.Review, len(sorted))
	for _, r := range sorted {
		if _, ok := out[r.OrderID]; !ok {
			out[r.OrderID] = r
		}
	}
	return out
}

// FactInput carries everything BuildFact joins together.
type FactInput struct {
	Items     []model.OrderItem
	Orders    []model.Order
	Payments  []model.Payment
	Reviews   []model.Review
	Dates     Lookup
	Customers []CustomerRow
	Sellers   []SellerRow
	Products  Lookup
}

// BuildFact produces one fact row per distinct (order_id, order_item_id).
// Rows whose keys cannot be resolved are kept with nil keys and counted.
func BuildFact(in FactInput) ([]FactRow, *FactReport) {
	report := newFactReport()

	orders := make(map[string]*model.Order, len(in.Orders))
	for i := range in.Orders {
		if _, ok := orders[in.Orders[i].OrderID]; !ok {
			orders[in.Orders[i].OrderID] = &in.Orders[i]
		}
	}
	customers := make(map[string]CustomerRow, len(in.Customers))
	for _, c := range in.Customers {
		customers[c.CustomerID] = c
	}
	sellers := make(map[string]SellerRow, len(in.Sellers))
	for _, s := range in.Sellers {
		sellers[s.SellerID] = s
	}
	payments := AggregatePayments(in.Payments)
	reviews := LatestReviews(in.Reviews)

	type line struct {
		order string
		item  int
	}
	seen := make(map[line]struct{}, len(in.Items))
	rows := make([]FactRow, 0, len(in.Items))

	for _, it := range in.Items {
		ln := line{it.OrderID, it.ItemID}
		if _, dup := seen[ln]; dup {
			report.DuplicateLines++
			continue
		}
		seen[ln] = struct{}{}

		row := FactRow{
			OrderID:      it.OrderID,
			OrderItemID:  it.ItemID,
			Price:        it.Price,
			FreightValue: it.Freight,
		}
		lineKey := it.OrderID + "/" + strconv.Itoa(it.ItemID)

		order, ok := orders[it.OrderID]
		if !ok {
			report.OrphanLines++
			report.sample("order_id", it.OrderID)
		} else {
			row.OrderStatus = order.Status
			if order.PurchasedAt != nil {
				row.DateKey = in.Dates.Resolve(order.PurchasedAt.Format("20060102"))
			}
			row.DeliveryDays = days(order.PurchasedAt, order.DeliveredCustomer)
			row.EstimatedDays = days(order.PurchasedAt, order.EstimatedDelivery)
			if row.DeliveryDays != nil && row.EstimatedDays != nil {
				delta := *row.DeliveryDays - *row.EstimatedDays
				row.DeliveryDeltaDays = &delta
			}
		}

		if order != nil {
			if c, ok := customers[order.CustomerID]; ok {
				key := c.CustomerKey
				row.CustomerKey = &key
				row.CustomerGeoKey = c.GeoKey
				if c.GeoKey == nil {
					report.unresolved(ColCustomerGeoKey, order.CustomerID)
				}
			}
		}
		if s, ok := sellers[it.SellerID]; ok {
			key := s.SellerKey
			row.SellerKey = &key
			row.SellerGeoKey = s.GeoKey
			if s.GeoKey == nil {
				report.unresolved(ColSellerGeoKey, it.SellerID)
			}
		}
		row.ProductKey = in.Products.Resolve(it.ProductID)

		if row.DateKey == nil {
			report.unresolved(ColDateKey, lineKey)
		}
		if row.CustomerKey == nil {
			report.unresolved(ColCustomerKey, lineKey)
		}
		if row.SellerKey == nil {
			report.unresolved(ColSellerKey, it.SellerID)
		}
		if row.ProductKey == nil {
			report.unresolved(ColProductKey, it.ProductID)
		}

		if p, ok := payments[it.OrderID]; ok {
			total, ptype := p.Total, p.Type
			row.OrderPaymentTotal = &total
			row.PaymentType = &ptype
		}
		if r, ok := reviews[it.OrderID]; ok {
			row.ReviewScore = r.Score
		}

		rows = append(rows, row)
	}

	report.Rows = len(rows)
	return rows, report
}

// days returns to - from in fractional days, or nil if either is missing.
func days(from, to *time.Time) *float64 {
	if from == nil || to == nil {
		return nil
	}
	d := to.Sub(*from).Seconds() / secondsPerDay
	return &d
}
