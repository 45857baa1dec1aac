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
	"time"

	"github.com/pgEdge/pgedge-starload/internal/model"
)

// Lookup maps a natural key to its surrogate key.
type Lookup map[string]int64

// Resolve returns the surrogate key for natural, or nil when it is unknown.
func (l Lookup) Resolve(natural string) *int64 {
	if natural == "" {
		return nil
	}
	key, ok := l[natural]
	if !ok {
		return nil
	}
	return &key
}

// DateRow is one calendar day of dim_dates.
type DateRow struct {
	DateKey   int
	FullDate  time.Time
	Year      int
	Quarter   int
	Month     int
	Day       int
	DayOfWeek int
	DayName   string
	IsWeekend int
}

// GeoRow is one zip-code prefix of dim_geolocation.
type GeoRow struct {
	GeoKey    int64
	ZipPrefix string
	Lat       *float64
	Lng       *float64
	City      string
	State     string
}

// CustomerRow is one customer of dim_customers.
type CustomerRow struct {
	CustomerKey int64
	CustomerID  string
	UniqueID    string
	GeoKey      *int64
	City        string
	State       string
}

// SellerRow is one seller of dim_sellers.
type SellerRow struct {
	SellerKey int64
	SellerID  string
	GeoKey    *int64
	City      string
	State     string
}

// ProductRow is one product of dim_products.
type ProductRow struct {
	ProductKey int64
	ProductID  string
	CategoryPT string
	CategoryEN string
	WeightG    *float64
	LengthCm   *float64
	HeightCm   *float64
	WidthCm    *float64
	PhotosQty  *float64
}

// DateKey encodes a calendar day as YYYYMMDD.
func DateKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// BuildDates collects every distinct calendar day found in any order
// timestamp and derives the calendar attributes for each, ordered by day.
func BuildDates(orders []model.Order) ([]DateRow, Lookup) {
	days := make(map[int]time.Time)
	for i := range orders {
		for _, ts := range orders[i].Timestamps() {
			if ts == nil {
				continue
			}
			d := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
			days[DateKey(d)] = d
		}
	}

	keys := make([]int, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	rows := make([]DateRow, 0, len(keys))
	lookup := make(Lookup, len(keys))
	for _, k := range keys {
		d := days[k]
		// Monday is day zero.
		dow := (int(d.Weekday()) + 6) % 7
		weekend := 0
		if dow >= 5 {
			weekend = 1
		}
		rows = append(rows, DateRow{
			DateKey:   k,
			FullDate:  d,
			Year:      d.Year(),
			Quarter:   (int(d.Month())-1)/3 + 1,
			Month:     int(d.Month()),
			Day:       d.Day(),
			DayOfWeek: dow,
			DayName:   d.Weekday().String(),
			IsWeekend: weekend,
		})
		lookup[d.Format("20060102")] = int64(k)
	}
	return rows, lookup
}

// keyer hands out dense 1-based surrogate keys, once per natural key, and
// counts the rows it refuses.
type keyer struct {
	lookup Lookup
	report *DimensionReport
}

func newKeyer(dimension string, size int) *keyer {
	return &keyer{
		lookup: make(Lookup, size),
		report: &DimensionReport{Dimension: dimension, RowsIn: size},
	}
}

// assign returns the next key for natural, or false when natural is empty
// or was already seen. The first occurrence of a natural key wins.
func (k *keyer) assign(natural string) (int64, bool) {
	if natural == "" {
		k.report.EmptyKeys++
		return 0, false
	}
	if _, seen := k.lookup[natural]; seen {
		k.report.RepeatedKeys++
		k.report.sample(natural)
		return 0, false
	}
	key := int64(len(k.lookup) + 1)
	k.lookup[natural] = key
	return key, true
}

// done finalizes and logs the report.
func (k *keyer) done() *DimensionReport {
	k.report.Rows = len(k.lookup)
	k.report.log()
	return k.report
}

// BuildGeolocation keys the deduplicated geolocation table by zip prefix.
func BuildGeolocation(geos []model.Geolocation) ([]GeoRow, Lookup, *DimensionReport) {
	k := newKeyer(DimGeolocation, len(geos))
	rows := make([]GeoRow, 0, len(geos))
	for _, g := range geos {
		key, ok := k.assign(g.ZipPrefix)
		if !ok {
			continue
		}
		rows = append(rows, GeoRow{
			GeoKey:    key,
			ZipPrefix: g.ZipPrefix,
			Lat:       g.Lat,
			Lng:       g.Lng,
			City:      g.City,
			State:     g.State,
		})
	}
	return rows, k.lookup, k.done()
}

// BuildCustomers keys customers by customer_id and resolves their geo key
// by zip prefix. Customers without a matching prefix get a nil geo key.
func BuildCustomers(customers []model.Customer, geo Lookup) ([]CustomerRow, Lookup, *DimensionReport) {
	k := newKeyer(DimCustomers, len(customers))
	rows := make([]CustomerRow, 0, len(customers))
	for _, c := range customers {
		key, ok := k.assign(c.CustomerID)
		if !ok {
			continue
		}
		rows = append(rows, CustomerRow{
			CustomerKey: key,
			CustomerID:  c.CustomerID,
			UniqueID:    c.UniqueID,
			GeoKey:      geo.Resolve(c.ZipPrefix),
			City:        c.City,
			State:       c.State,
		})
	}
	return rows, k.lookup, k.done()
}

// BuildSellers keys sellers by seller_id and resolves their geo key.
func BuildSellers(sellers []model.Seller, geo Lookup) ([]SellerRow, Lookup, *DimensionReport) {
	k := newKeyer(DimSellers, len(sellers))
	rows := make([]SellerRow, 0, len(sellers))
	for _, s := range sellers {
		key, ok := k.assign(s.SellerID)
		if !ok {
			continue
		}
		rows = append(rows, SellerRow{
			SellerKey: key,
			SellerID:  s.SellerID,
			GeoKey:    geo.Resolve(s.ZipPrefix),
			City:      s.City,
			State:     s.State,
		})
	}
	return rows, k.lookup, k.done()
}

// BuildProducts keys products by product_id.
func BuildProducts(products []model.Product) ([]ProductRow, Lookup, *DimensionReport) {
	k := newKeyer(DimProducts, len(products))
	rows := make([]ProductRow, 0, len(products))
	for _, p := range products {
		key, ok := k.assign(p.ProductID)
		if !ok {
			continue
		}
		rows = append(rows, ProductRow{
			ProductKey: key,
			ProductID:  p.ProductID,
			CategoryPT: p.CategoryPT,
			CategoryEN: p.CategoryEN,
			WeightG:    p.WeightG,
			LengthCm:   p.LengthCm,
			HeightCm:   p.HeightCm,
			WidthCm:    p.WidthCm,
			PhotosQty:  p.PhotosQty,
		})
	}
	return rows, k.lookup, k.done()
}
