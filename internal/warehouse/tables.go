package warehouse

import (
	"github.com/pgEdge/pgedge-starload/internal/star"
)

// Table is one star table ready for COPY.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Tables converts a built schema into loadable tables in dependency order.
func Tables(s *star.Schema) []Table {
	return []Table{
		datesTable(s.Dates),
		geoTable(s.Geo),
		customersTable(s.Customers),
		sellersTable(s.Sellers),
		productsTable(s.Products),
		factTable(s.Facts),
	}
}

func datesTable(rows []star.DateRow) Table {
	t := Table{
		Name: TableDates,
		Columns: []string{
			"date_key", "full_date", "year", "quarter", "month", "day",
			"day_of_week", "day_name", "is_weekend",
		},
		Rows: make([][]any, 0, len(rows)),
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{
			r.DateKey, r.FullDate, r.Year, r.Quarter, r.Month, r.Day,
			r.DayOfWeek, r.DayName, r.IsWeekend,
		})
	}
	return t
}

func geoTable(rows []star.GeoRow) Table {
	t := Table{
		Name:    TableGeolocation,
		Columns: []string{"geo_key", "zip_code_prefix", "lat", "lng", "city", "state"},
		Rows:    make([][]any, 0, len(rows)),
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.GeoKey, r.ZipPrefix, r.Lat, r.Lng, r.City, r.State})
	}
	return t
}

func customersTable(rows []star.CustomerRow) Table {
	t := Table{
		Name:    TableCustomers,
		Columns: []string{"customer_key", "customer_id", "customer_unique_id", "geo_key", "city", "state"},
		Rows:    make([][]any, 0, len(rows)),
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.CustomerKey, r.CustomerID, r.UniqueID, r.GeoKey, r.City, r.State})
	}
	return t
}

func sellersTable(rows []star.SellerRow) Table {
	t := Table{
		Name:    TableSellers,
		Columns: []string{"seller_key", "seller_id", "geo_key", "city", "state"},
		Rows:    make([][]any, 0, len(rows)),
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.SellerKey, r.SellerID, r.GeoKey, r.City, r.State})
	}
	return t
}

func productsTable(rows []star.ProductRow) Table {
	t := Table{
		Name: TableProducts,
		Columns: []string{
			"product_key", "product_id", "category_name_pt", "category_name_en",
			"weight_g", "length_cm", "height_cm", "width_cm", "photos_qty",
		},
		Rows: make([][]any, 0, len(rows)),
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{
			r.ProductKey, r.ProductID, r.CategoryPT, r.CategoryEN,
			r.WeightG, r.LengthCm, r.HeightCm, r.WidthCm, r.PhotosQty,
		})
	}
	return t
}

func factTable(rows []star.FactRow) Table {
	t := Table{
		Name: TableFacts,
		Columns: []string{
			"order_id", "order_item_id", "date_key", "customer_key", "seller_key",
			"product_key", "customer_geo_key", "seller_geo_key", "order_status",
			"price", "freight_value", "order_payment_total", "payment_type",
			"review_score", "delivery_days", "estimated_days", "delivery_delta_days",
		},
		Rows: make([][]any, 0, len(rows)),
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{
			r.OrderID, r.OrderItemID, r.DateKey, r.CustomerKey, r.SellerKey,
			r.ProductKey, r.CustomerGeoKey, r.SellerGeoKey, r.OrderStatus,
			r.Price, r.FreightValue, r.OrderPaymentTotal, r.PaymentType,
			r.ReviewScore, r.DeliveryDays, r.EstimatedDays, r.DeliveryDeltaDays,
		})
	}
	return t
}
