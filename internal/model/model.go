//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package model defines the typed records that flow between pipeline phases.
// Nullable source values are represented as pointers; nil means NULL.
package model

import "time"

// RawTable is an untyped CSV extract exactly as read from the source.
type RawTable struct {
	// Name is the source name from the catalog (e.g. "orders").
	Name string

	// Header holds the column names in file order.
	Header []string

	// Rows holds one slice of cells per data row.
	Rows [][]string
}

// Column returns the index of the named column, or -1 if absent.
func (t *RawTable) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// RawSet is the full set of raw extracts keyed by source name.
type RawSet map[string]*RawTable

// Customer is a cleaned row of the customers source.
type Customer struct {
	CustomerID string
	UniqueID   string
	ZipPrefix  string
	City       string
	State      string
}

// Geolocation is one deduplicated row per zip-code prefix.
type Geolocation struct {
	ZipPrefix string
	Lat       *float64
	Lng       *float64
	City      string
	State     string
}

// Order is a cleaned row of the orders source.
type Order struct {
	OrderID           string
	CustomerID        string
	Status            string
	PurchasedAt       *time.Time
	ApprovedAt        *time.Time
	DeliveredCarrier  *time.Time
	DeliveredCustomer *time.Time
	EstimatedDelivery *time.Time
}

// Timestamps returns every timestamp column of the order, nil entries included.
func (o *Order) Timestamps() []*time.Time {
	return []*time.Time{
		o.PurchasedAt,
		o.ApprovedAt,
		o.DeliveredCarrier,
		o.DeliveredCustomer,
		o.EstimatedDelivery,
	}
}

// OrderItem is a cleaned line item; the grain of the fact table.
type OrderItem struct {
	OrderID       string
	ItemID        int
	ProductID     string
	SellerID      string
	ShippingLimit *time.Time
	Price         float64
	Freight       float64
}

// Payment is one payment installment or method of an order.
type Payment struct {
	OrderID      string
	Sequential   int
	Type         string
	Installments int
	Value        float64
}

// Review is a customer review of an order.
type Review struct {
	ReviewID   string
	OrderID    string
	Score      *int
	Title      string
	Message    string
	CreatedAt  *time.Time
	AnsweredAt *time.Time
}

// CategoryTranslation maps a Portuguese category name to English.
type CategoryTranslation struct {
	Name    string
	English string
}

// Product is a cleaned product joined with its English category name.
type Product struct {
	ProductID         string
	CategoryPT        string
	CategoryEN        string
	NameLength        *float64
	DescriptionLength *float64
	PhotosQty         *float64
	WeightG           *float64
	LengthCm          *float64
	HeightCm          *float64
	WidthCm           *float64
}

// Seller is a cleaned row of the sellers source.
type Seller struct {
	SellerID  string
	ZipPrefix string
	City      string
	State     string
}

// Cleaned holds every cleaned source, ready for the build phase.
type Cleaned struct {
	Customers    []Customer
	Geolocations []Geolocation
	Orders       []Order
	OrderItems   []OrderItem
	Payments     []Payment
	Reviews      []Review
	Translations []CategoryTranslation
	Products     []Product
	Sellers      []Seller
}
