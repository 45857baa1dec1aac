//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package transform

import (
	"sort"

	"github.com/pgEdge/pgedge-starload/internal/extract"
	"github.com/pgEdge/pgedge-starload/internal/model"
)

// OrderStatuses is the closed set of recognised order statuses.
var OrderStatuses = map[string]bool{
	"delivered":   true,
	"shipped":     true,
	"canceled":    true,
	"unavailable": true,
	"invoiced":    true,
	"processing":  true,
	"created":     true,
	"approved":    true,
}

// PaymentTypes is the closed set of recognised payment types.
var PaymentTypes = map[string]bool{
	"credit_card": true,
	"boleto":      true,
	"voucher":     true,
	"debit_card":  true,
	"not_defined": true,
}

// Review scores outside this range are clipped.
const (
	MinReviewScore = 1
	MaxReviewScore = 5
)

// prepare drops exact duplicates and opens a report for the source.
func prepare(source string, t *model.RawTable) ([][]string, cells, *SourceReport) {
	rep := newSourceReport(source, len(t.Rows))
	rows, dropped := dropDuplicates(t.Rows)
	rep.DuplicatesDropped = dropped
	return rows, newCells(t), rep
}

// CleanCustomers trims text, pads zip prefixes and normalizes city and state.
func CleanCustomers(t *model.RawTable) ([]model.Customer, *SourceReport) {
	rows, c, rep := prepare(extract.Customers, t)
	geo := newGeoNormalizer()

	out := make([]model.Customer, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Customer{
			CustomerID: c.get(row, "customer_id"),
			UniqueID:   c.get(row, "customer_unique_id"),
			ZipPrefix:  PadZip(c.get(row, "customer_zip_code_prefix")),
			City:       geo.city(c.get(row, "customer_city")),
			State:      geo.state(c.get(row, "customer_state")),
		})
	}
	rep.RowsOut = len(out)
	return out, rep
}

// CleanSellers applies the same geographic normalization as customers.
func CleanSellers(t *model.RawTable) ([]model.Seller, *SourceReport) {
	rows, c, rep := prepare(extract.Sellers, t)
	geo := newGeoNormalizer()

	out := make([]model.Seller, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Seller{
			SellerID:  c.get(row, "seller_id"),
			ZipPrefix: PadZip(c.get(row, "seller_zip_code_prefix")),
			City:      geo.city(c.get(row, "seller_city")),
			State:     geo.state(c.get(row, "seller_state")),
		})
	}
	rep.RowsOut = len(out)
	return out, rep
}

// CleanGeolocation reduces the many coordinate samples per zip prefix to one
// row: median latitude and longitude, most frequent city and state. The
// result is ordered by zip prefix. Exact duplicate rows are not dropped: the
// aggregates are taken over every raw sample, so repeats weigh in.
func CleanGeolocation(t *model.RawTable) ([]model.Geolocation, *SourceReport) {
	rep := newSourceReport(extract.Geolocation, len(t.Rows))
	rows, c := t.Rows, newCells(t)
	geo := newGeoNormalizer()

	type group struct {
		lats, lngs     []float64
		cities, states []string
	}
	groups := make(map[string]*group)

	for _, row := range rows {
		zip := PadZip(c.get(row, "geolocation_zip_code_prefix"))
		if zip == "" {
			rep.violation("geolocation_zip_code_prefix", "")
			continue
		}
		g, ok := groups[zip]
		if !ok {
			g = &group{}
			groups[zip] = g
		}
		if lat := parseFloat(c.get(row, "geolocation_lat")); lat != nil {
			g.lats = append(g.lats, *lat)
		}
		if lng := parseFloat(c.get(row, "geolocation_lng")); lng != nil {
			g.lngs = append(g.lngs, *lng)
		}
		g.cities = append(g.cities, geo.city(c.get(row, "geolocation_city")))
		g.states = append(g.states, geo.state(c.get(row, "geolocation_state")))
	}

	zips := make([]string, 0, len(groups))
	for zip := range groups {
		zips = append(zips, zip)
	}
	sort.Strings(zips)

	out := make([]model.Geolocation, 0, len(zips))
	for _, zip := range zips {
		g := groups[zip]
		out = append(out, model.Geolocation{
			ZipPrefix: zip,
			Lat:       Median(g.lats),
			Lng:       Median(g.lngs),
			City:      Mode(g.cities, Unknown),
			State:     Mode(g.states, Unknown),
		})
	}
	rep.RowsOut = len(out)
	return out, rep
}

// CleanOrders parses the order timestamps and flags unknown statuses.
// Rows with an unknown status are kept as written.
func CleanOrders(t *model.RawTable) ([]model.Order, *SourceReport) {
	rows, c, rep := prepare(extract.Orders, t)

	out := make([]model.Order, 0, len(rows))
	for _, row := range rows {
		status := c.get(row, "order_status")
		if !OrderStatuses[status] {
			rep.violation("order_status", status)
		}
		out = append(out, model.Order{
			OrderID:           c.get(row, "order_id"),
			CustomerID:        c.get(row, "customer_id"),
			Status:            status,
			PurchasedAt:       ParseTimestamp(c.get(row, "order_purchase_timestamp")),
			ApprovedAt:        ParseTimestamp(c.get(row, "order_approved_at")),
			DeliveredCarrier:  ParseTimestamp(c.get(row, "order_delivered_carrier_date")),
			DeliveredCustomer: ParseTimestamp(c.get(row, "order_delivered_customer_date")),
			EstimatedDelivery: ParseTimestamp(c.get(row, "order_estimated_delivery_date")),
		})
	}
	rep.RowsOut = len(out)
	return out, rep
}

// CleanOrderItems parses line items. Negative amounts are clipped to zero.
func CleanOrderItems(t *model.RawTable) ([]model.OrderItem, *SourceReport) {
	rows, c, rep := prepare(extract.OrderItems, t)

	out := make([]model.OrderItem, 0, len(rows))
	for _, row := range rows {
		raw := c.get(row, "order_item_id")
		itemID := parseInt(raw)
		if itemID == nil {
			rep.violation("order_item_id", raw)
			itemID = new(int)
		}
		out = append(out, model.OrderItem{
			OrderID:       c.get(row, "order_id"),
			ItemID:        *itemID,
			ProductID:     c.get(row, "product_id"),
			SellerID:      c.get(row, "seller_id"),
			ShippingLimit: ParseTimestamp(c.get(row, "shipping_limit_date")),
			Price:         clipNonNegative(c.get(row, "price"), "price", rep),
			Freight:       clipNonNegative(c.get(row, "freight_value"), "freight_value", rep),
		})
	}
	rep.RowsOut = len(out)
	return out, rep
}

// CleanPayments flags unknown payment types and clips negative values.
func CleanPayments(t *model.RawTable) ([]model.Payment, *SourceReport) {
	rows, c, rep := prepare(extract.OrderPayments, t)

	out := make([]model.Payment, 0, len(rows))
	for _, row := range rows {
		ptype := c.get(row, "payment_type")
		if !PaymentTypes[ptype] {
			rep.violation("payment_type", ptype)
		}
		p := model.Payment{
			OrderID: c.get(row, "order_id"),
			Type:    ptype,
			Value:   clipNonNegative(c.get(row, "payment_value"), "payment_value", rep),
		}
		if v := parseInt(c.get(row, "payment_sequential")); v != nil {
			p.Sequential = *v
		}
		if v := parseInt(c.get(row, "payment_installments")); v != nil {
			p.Installments = *v
		}
		out = append(out, p)
	}
	rep.RowsOut = len(out)
	return out, rep
}

// CleanReviews clips scores into range and parses review timestamps.
// Missing comment text becomes the empty string.
func CleanReviews(t *model.RawTable) ([]model.Review, *SourceReport) {
	rows, c, rep := prepare(extract.OrderReviews, t)

	out := make([]model.Review, 0, len(rows))
	for _, row := range rows {
		raw := c.get(row, "review_score")
		score := parseInt(raw)
		switch {
		case score == nil && raw != "":
			rep.violation("review_score", raw)
		case score != nil && *score < MinReviewScore:
			*score = MinReviewScore
			rep.clip("review_score")
		case score != nil && *score > MaxReviewScore:
			*score = MaxReviewScore
			rep.clip("review_score")
		}
		out = append(out, model.Review{
			ReviewID:   c.get(row, "review_id"),
			OrderID:    c.get(row, "order_id"),
			Score:      score,
			Title:      c.get(row, "review_comment_title"),
			Message:    c.get(row, "review_comment_message"),
			CreatedAt:  ParseTimestamp(c.get(row, "review_creation_date")),
			AnsweredAt: ParseTimestamp(c.get(row, "review_answer_timestamp")),
		})
	}
	rep.RowsOut = len(out)
	return out, rep
}

// CleanCategoryTranslation trims and deduplicates the category lookup.
func CleanCategoryTranslation(t *model.RawTable) ([]model.CategoryTranslation, *SourceReport) {
	rows, c, rep := prepare(extract.CategoryTranslation, t)

	out := make([]model.CategoryTranslation, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.CategoryTranslation{
			Name:    c.get(row, "product_category_name"),
			English: c.get(row, "product_category_name_english"),
		})
	}
	rep.RowsOut = len(out)
	return out, rep
}

// CleanProducts joins each product to its English category name and imputes
// missing numeric attributes with the column median. Missing category names
// in either language become Unknown.
func CleanProducts(t *model.RawTable, translations []model.CategoryTranslation) ([]model.Product, *SourceReport) {
	rows, c, rep := prepare(extract.Products, t)

	english := make(map[string]string, len(translations))
	for _, tr := range translations {
		if _, ok := english[tr.Name]; !ok && tr.Name != "" {
			english[tr.Name] = tr.English
		}
	}

	out := make([]model.Product, 0, len(rows))
	for _, row := range rows {
		pt := c.get(row, "product_category_name")
		en := english[pt]
		if pt == "" {
			pt = Unknown
		}
		if en == "" {
			en = Unknown
		}
		out = append(out, model.Product{
			ProductID:         c.get(row, "product_id"),
			CategoryPT:        pt,
			CategoryEN:        en,
			NameLength:        parseFloat(c.get(row, "product_name_lenght")),
			DescriptionLength: parseFloat(c.get(row, "product_description_lenght")),
			PhotosQty:         parseFloat(c.get(row, "product_photos_qty")),
			WeightG:           parseFloat(c.get(row, "product_weight_g")),
			LengthCm:          parseFloat(c.get(row, "product_length_cm")),
			HeightCm:          parseFloat(c.get(row, "product_height_cm")),
			WidthCm:           parseFloat(c.get(row, "product_width_cm")),
		})
	}

	imputeMedian(out, func(p *model.Product) **float64 { return &p.NameLength })
	imputeMedian(out, func(p *model.Product) **float64 { return &p.DescriptionLength })
	imputeMedian(out, func(p *model.Product) **float64 { return &p.PhotosQty })
	imputeMedian(out, func(p *model.Product) **float64 { return &p.WeightG })
	imputeMedian(out, func(p *model.Product) **float64 { return &p.LengthCm })
	imputeMedian(out, func(p *model.Product) **float64 { return &p.HeightCm })
	imputeMedian(out, func(p *model.Product) **float64 { return &p.WidthCm })

	rep.RowsOut = len(out)
	return out, rep
}

// imputeMedian fills nil fields with the median of the present ones. A column
// with no values at all stays nil.
func imputeMedian(products []model.Product, field func(*model.Product) **float64) {
	var present []float64
	for i := range products {
		if v := *field(&products[i]); v != nil {
			present = append(present, *v)
		}
	}
	m := Median(present)
	if m == nil || len(present) == len(products) {
		return
	}
	for i := range products {
		if f := field(&products[i]); *f == nil {
			v := *m
			*f = &v
		}
	}
}
