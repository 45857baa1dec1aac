// Package extract reads the raw Olist CSV extracts into untyped tables.
package extract

// Source names used throughout the pipeline.
const (
	Customers           = "customers"
	Geolocation         = "geolocation"
	Orders              = "orders"
	OrderItems          = "order_items"
	OrderPayments       = "order_payments"
	OrderReviews        = "order_reviews"
	Products            = "products"
	Sellers             = "sellers"
	CategoryTranslation = "category_translation"
)

// Source describes one named extract and its versioned column schema.
type Source struct {
	// Name is the source identifier.
	Name string

	// File is the default file name inside the data directory.
	File string

	// Columns lists the columns the cleaners rely on.
	Columns []string
}

// Catalog lists every source the pipeline requires, in read order.
var Catalog = []Source{
	{
		Name: Customers,
		File: "olist_customers_dataset.csv",
		Columns: []string{
			"customer_id", "customer_unique_id", "customer_zip_code_prefix",
			"customer_city", "customer_state",
		},
	},
	{
		Name: Geolocation,
		File: "olist_geolocation_dataset.csv",
		Columns: []string{
			"geolocation_zip_code_prefix", "geolocation_lat", "geolocation_lng",
			"geolocation_city", "geolocation_state",
		},
	},
	{
		Name: Orders,
		File: "olist_orders_dataset.csv",
		Columns: []string{
			"order_id", "customer_id", "order_status",
			"order_purchase_timestamp", "order_approved_at",
			"order_delivered_carrier_date", "order_delivered_customer_date",
			"order_estimated_delivery_date",
		},
	},
	{
		Name: OrderItems,
		File: "olist_order_items_dataset.csv",
		Columns: []string{
			"order_id", "order_item_id", "product_id", "seller_id",
			"shipping_limit_date", "price", "freight_value",
		},
	},
	{
		Name: OrderPayments,
		File: "olist_order_payments_dataset.csv",
		Columns: []string{
			"order_id", "payment_sequential", "payment_type",
			"payment_installments", "payment_value",
		},
	},
	{
		Name: OrderReviews,
		File: "olist_order_reviews_dataset.csv",
		Columns: []string{
			"review_id", "order_id", "review_score", "review_comment_title",
			"review_comment_message", "review_creation_date",
			"review_answer_timestamp",
		},
	},
	{
		Name: Products,
		File: "olist_products_dataset.csv",
		Columns: []string{
			"product_id", "product_category_name", "product_name_lenght",
			"product_description_lenght", "product_photos_qty",
			"product_weight_g", "product_length_cm", "product_height_cm",
			"product_width_cm",
		},
	},
	{
		Name: Sellers,
		File: "olist_sellers_dataset.csv",
		Columns: []string{
			"seller_id", "seller_zip_code_prefix", "seller_city", "seller_state",
		},
	},
	{
		Name: CategoryTranslation,
		File: "product_category_name_translation.csv",
		Columns: []string{
			"product_category_name", "product_category_name_english",
		},
	},
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (Source, bool) {
	for _, s := range Catalog {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}
