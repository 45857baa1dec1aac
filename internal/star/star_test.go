package star

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgEdge/pgedge-starload/internal/model"
)

func ts(s string) *time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func score(n int) *int { return &n }

func float(f float64) *float64 { return &f }

// exampleSet is a small cleaned set: one order with two line items, two
// payments and two reviews, plus an order with an unknown customer.
func exampleSet() *model.Cleaned {
	return &model.Cleaned{
		Geolocations: []model.Geolocation{
			{ZipPrefix: "01000", Lat: float(-23.5), Lng: float(-46.6), City: "Sao Paulo", State: "SP"},
			{ZipPrefix: "20000", Lat: float(-22.9), Lng: float(-43.2), City: "Rio De Janeiro", State: "RJ"},
		},
		Customers: []model.Customer{
			{CustomerID: "c1", UniqueID: "u1", ZipPrefix: "01000", City: "Sao Paulo", State: "SP"},
			{CustomerID: "c2", UniqueID: "u2", ZipPrefix: "99999", City: "Nowhere", State: "XX"},
			{CustomerID: "c1", UniqueID: "u1-dup", ZipPrefix: "01000", City: "Sao Paulo", State: "SP"},
		},
		Sellers: []model.Seller{
			{SellerID: "s1", ZipPrefix: "20000", City: "Rio De Janeiro", State: "RJ"},
		},
		Products: []model.Product{
			{ProductID: "p1", CategoryPT: "beleza_saude", CategoryEN: "health_beauty", PhotosQty: float(2)},
			{ProductID: "p2", CategoryPT: "unknown", CategoryEN: "unknown"},
		},
		Orders: []model.Order{
			{
				OrderID: "o1", CustomerID: "c1", Status: "delivered",
				PurchasedAt:       ts("2018-01-15 10:00"),
				ApprovedAt:        ts("2018-01-15 11:00"),
				DeliveredCarrier:  ts("2018-01-16 09:00"),
				DeliveredCustomer: ts("2018-01-20 10:00"),
				EstimatedDelivery: ts("2018-01-25 00:00"),
			},
			{
				OrderID: "o2", CustomerID: "ghost", Status: "shipped",
				PurchasedAt: ts("2018-02-03 08:00"),
			},
		},
		OrderItems: []model.OrderItem{
			{OrderID: "o1", ItemID: 1, ProductID: "p1", SellerID: "s1", Price: 100, Freight: 10},
			{OrderID: "o1", ItemID: 2, ProductID: "p2", SellerID: "s1", Price: 180, Freight: 10},
			{OrderID: "o2", ItemID: 1, ProductID: "p-missing", SellerID: "s1", Price: 20, Freight: 5},
		},
		Payments: []model.Payment{
			{OrderID: "o1", Sequential: 1, Type: "credit_card", Value: 250},
			{OrderID: "o1", Sequential: 2, Type: "voucher", Value: 50},
		},
		Reviews: []model.Review{
			{ReviewID: "r1", OrderID: "o1", Score: score(3), CreatedAt: ts("2018-02-01 00:00")},
			{ReviewID: "r2", OrderID: "o1", Score: score(5), CreatedAt: ts("2018-02-10 00:00")},
		},
	}
}

func TestBuildEndToEndExample(t *testing.T) {
	schema, err := Build(exampleSet(), Options{})
	require.NoError(t, err)

	var o1 []FactRow
	for _, f := range schema.Facts {
		if f.OrderID == "o1" {
			o1 = append(o1, f)
		}
	}
	require.Len(t, o1, 2)
	for _, f := range o1 {
		require.NotNil(t, f.DeliveryDays)
		assert.InDelta(t, 5.0, *f.DeliveryDays, 1e-9)
		require.NotNil(t, f.OrderPaymentTotal)
		assert.InDelta(t, 300.0, *f.OrderPaymentTotal, 1e-9)
		require.NotNil(t, f.ReviewScore)
		assert.Equal(t, 5, *f.ReviewScore, "most recent review wins")
		require.NotNil(t, f.DeliveryDeltaDays)
		assert.InDelta(t, *f.DeliveryDays-*f.EstimatedDays, *f.DeliveryDeltaDays, 1e-9)
		require.NotNil(t, f.DateKey)
		assert.Equal(t, int64(20180115), *f.DateKey)
	}
}

func TestBuildRowCounts(t *testing.T) {
	c := exampleSet()
	schema, err := Build(c, Options{})
	require.NoError(t, err)

	assert.Len(t, schema.Geo, 2)
	assert.Len(t, schema.Customers, 2, "customers are distinct by customer_id")
	assert.Len(t, schema.Sellers, 1)
	assert.Len(t, schema.Products, 2)
	assert.Len(t, schema.Facts, len(c.OrderItems), "one fact row per line item")

	for i, r := range schema.Customers {
		assert.Equal(t, int64(i+1), r.CustomerKey)
	}
}

func TestBuildRevenueConservation(t *testing.T) {
	c := exampleSet()
	schema, err := Build(c, Options{})
	require.NoError(t, err)

	var wantPrice, wantFreight, gotPrice, gotFreight float64
	for _, it := range c.OrderItems {
		wantPrice += it.Price
		wantFreight += it.Freight
	}
	for _, f := range schema.Facts {
		gotPrice += f.Price
		gotFreight += f.FreightValue
	}
	assert.InDelta(t, wantPrice, gotPrice, 1e-6)
	assert.InDelta(t, wantFreight, gotFreight, 1e-6)
}

func TestBuildReferentialIntegrity(t *testing.T) {
	schema, err := Build(exampleSet(), Options{})
	require.NoError(t, err)

	dates := map[int64]bool{}
	for _, d := range schema.Dates {
		dates[int64(d.DateKey)] = true
	}
	geos := map[int64]bool{}
	for _, g := range schema.Geo {
		geos[g.GeoKey] = true
	}
	customers := map[int64]bool{}
	for _, c := range schema.Customers {
		customers[c.CustomerKey] = true
	}
	sellers := map[int64]bool{}
	for _, s := range schema.Sellers {
		sellers[s.SellerKey] = true
	}
	products := map[int64]bool{}
	for _, p := range schema.Products {
		products[p.ProductKey] = true
	}

	check := func(name string, key *int64, dim map[int64]bool) {
		if key != nil {
			assert.True(t, dim[*key], "%s %d has no dimension row", name, *key)
		}
	}
	for _, f := range schema.Facts {
		check(ColDateKey, f.DateKey, dates)
		check(ColCustomerKey, f.CustomerKey, customers)
		check(ColSellerKey, f.SellerKey, sellers)
		check(ColProductKey, f.ProductKey, products)
		check(ColCustomerGeoKey, f.CustomerGeoKey, geos)
		check(ColSellerGeoKey, f.SellerGeoKey, geos)
	}
}

func TestBuildKeepsUnresolvedRows(t *testing.T) {
	schema, err := Build(exampleSet(), Options{})
	require.NoError(t, err)

	var o2 *FactRow
	for i := range schema.Facts {
		if schema.Facts[i].OrderID == "o2" {
			o2 = &schema.Facts[i]
		}
	}
	require.NotNil(t, o2, "row with unresolved keys must be kept")
	assert.Nil(t, o2.CustomerKey)
	assert.Nil(t, o2.ProductKey)
	assert.NotNil(t, o2.SellerKey)
	assert.Nil(t, o2.DeliveryDays, "undelivered orders have no delivery duration")
	assert.Nil(t, o2.OrderPaymentTotal)

	rep := schema.Report
	assert.Equal(t, 1, rep.Unresolved[ColCustomerKey])
	assert.Equal(t, 1, rep.Unresolved[ColProductKey])
	assert.Equal(t, []string{"p-missing"}, rep.Samples[ColProductKey])
	assert.Zero(t, rep.Unresolved[ColSellerKey])
}

func TestBuildUnresolvedThreshold(t *testing.T) {
	_, err := Build(exampleSet(), Options{MaxUnresolvedRatio: 0.2})
	require.ErrorIs(t, err, ErrUnresolvedThreshold)

	_, err = Build(exampleSet(), Options{MaxUnresolvedRatio: 0.5})
	require.NoError(t, err)
}

func TestBuildFactDropsDuplicateLines(t *testing.T) {
	c := exampleSet()
	c.OrderItems = append(c.OrderItems, model.OrderItem{OrderID: "o1", ItemID: 1, ProductID: "p2", Price: 999})

	schema, err := Build(c, Options{})
	require.NoError(t, err)

	assert.Len(t, schema.Facts, 3)
	assert.Equal(t, 1, schema.Report.DuplicateLines)
	assert.InDelta(t, 100.0, schema.Facts[0].Price, 1e-9, "first occurrence is kept")
}

func TestBuildFactDuplicateOrdersDoNotFanOut(t *testing.T) {
	c := exampleSet()
	c.Orders = append(c.Orders, c.Orders[0])

	schema, err := Build(c, Options{})
	require.NoError(t, err)
	assert.Len(t, schema.Facts, len(c.OrderItems))
}

func TestBuildDates(t *testing.T) {
	orders := []model.Order{
		{OrderID: "a", PurchasedAt: ts("2018-01-06 23:59"), EstimatedDelivery: ts("2018-01-08 00:00")},
		{OrderID: "b", PurchasedAt: ts("2018-01-06 01:00"), DeliveredCustomer: ts("2018-04-01 12:00")},
	}

	rows, lookup := BuildDates(orders)

	require.Len(t, rows, 3)
	assert.Equal(t, []int{20180106, 20180108, 20180401}, []int{rows[0].DateKey, rows[1].DateKey, rows[2].DateKey})

	sat := rows[0]
	assert.Equal(t, 5, sat.DayOfWeek)
	assert.Equal(t, "Saturday", sat.DayName)
	assert.Equal(t, 1, sat.IsWeekend)
	assert.Equal(t, 1, sat.Quarter)

	mon := rows[1]
	assert.Equal(t, 0, mon.DayOfWeek)
	assert.Equal(t, 0, mon.IsWeekend)

	assert.Equal(t, 2, rows[2].Quarter)
	assert.Len(t, lookup, 3)
}

func TestDateDimensionCoversFacts(t *testing.T) {
	schema, err := Build(exampleSet(), Options{})
	require.NoError(t, err)

	keys := map[int]bool{}
	for _, d := range schema.Dates {
		keys[d.DateKey] = true
	}
	for _, o := range exampleSet().Orders {
		for _, tsv := range o.Timestamps() {
			if tsv != nil {
				assert.True(t, keys[DateKey(*tsv)], "missing date %s", tsv)
			}
		}
	}
}

func TestAggregatePayments(t *testing.T) {
	agg := AggregatePayments([]model.Payment{
		{OrderID: "o1", Type: "voucher", Value: 10},
		{OrderID: "o1", Type: "credit_card", Value: 20},
		{OrderID: "o1", Type: "credit_card", Value: 30},
		{OrderID: "o2", Type: "", Value: 5},
	})

	require.Len(t, agg, 2)
	assert.InDelta(t, 60.0, agg["o1"].Total, 1e-9)
	assert.Equal(t, "credit_card", agg["o1"].Type)
	assert.Equal(t, DefaultPaymentType, agg["o2"].Type)
}

func TestLatestReviews(t *testing.T) {
	latest := LatestReviews([]model.Review{
		{ReviewID: "old", OrderID: "o1", Score: score(3), CreatedAt: ts("2018-02-01 00:00")},
		{ReviewID: "none", OrderID: "o1", Score: score(1)},
		{ReviewID: "new", OrderID: "o1", Score: score(5), CreatedAt: ts("2018-02-10 00:00")},
		{ReviewID: "first-tie", OrderID: "o2", Score: score(2), CreatedAt: ts("2018-03-01 00:00")},
		{ReviewID: "second-tie", OrderID: "o2", Score: score(4), CreatedAt: ts("2018-03-01 00:00")},
		{ReviewID: "only-null", OrderID: "o3", Score: score(4)},
	})

	assert.Equal(t, "new", latest["o1"].ReviewID)
	assert.Equal(t, "first-tie", latest["o2"].ReviewID)
	assert.Equal(t, "only-null", latest["o3"].ReviewID)
}

func TestLookupResolve(t *testing.T) {
	l := Lookup{"a": 1}
	require.NotNil(t, l.Resolve("a"))
	assert.Equal(t, int64(1), *l.Resolve("a"))
	assert.Nil(t, l.Resolve("b"))
	assert.Nil(t, l.Resolve(""))
}

func TestBuildCustomersCountsSkippedRows(t *testing.T) {
	geo := Lookup{"01000": 1}
	rows, lookup, rep := BuildCustomers([]model.Customer{
		{CustomerID: "c1", ZipPrefix: "01000", City: "Sao Paulo", State: "SP"},
		{CustomerID: "", ZipPrefix: "01000", City: "Sao Paulo", State: "SP"},
		{CustomerID: "c1", ZipPrefix: "20000", City: "Rio De Janeiro", State: "RJ"},
		{CustomerID: "c2", ZipPrefix: "20000", City: "Rio De Janeiro", State: "RJ"},
	}, geo)

	require.Len(t, rows, 2)
	assert.Equal(t, "Sao Paulo", rows[0].City, "first occurrence wins")
	assert.Equal(t, int64(2), lookup["c2"])

	assert.Equal(t, DimCustomers, rep.Dimension)
	assert.Equal(t, 4, rep.RowsIn)
	assert.Equal(t, 2, rep.Rows)
	assert.Equal(t, 1, rep.EmptyKeys)
	assert.Equal(t, 1, rep.RepeatedKeys)
	assert.Equal(t, 2, rep.Skipped())
	assert.Equal(t, []string{"c1"}, rep.Samples)
}

func TestBuildReportsEveryDimension(t *testing.T) {
	schema, err := Build(exampleSet(), Options{})
	require.NoError(t, err)

	require.Len(t, schema.Dimensions, 4)
	byName := map[string]*DimensionReport{}
	for _, rep := range schema.Dimensions {
		byName[rep.Dimension] = rep
	}
	assert.Equal(t, 1, byName[DimCustomers].RepeatedKeys, "c1 appears twice")
	assert.Zero(t, byName[DimGeolocation].Skipped())
	assert.Zero(t, byName[DimSellers].Skipped())
	assert.Zero(t, byName[DimProducts].Skipped())
}

func TestBuildProductsKeepsFractionalPhotoCount(t *testing.T) {
	rows, _, _ := BuildProducts([]model.Product{
		{ProductID: "p1", CategoryPT: "unknown", CategoryEN: "unknown", PhotosQty: float(1.5)},
		{ProductID: "p2", CategoryPT: "unknown", CategoryEN: "unknown"},
	})

	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].PhotosQty)
	assert.InDelta(t, 1.5, *rows[0].PhotosQty, 1e-9)
	assert.Nil(t, rows[1].PhotosQty)
}
