// Package star builds the Olist star schema from raw source tables: four
// dimensions (customers, sellers, products, date) and one order fact table.
//
// The Dim* functions are pure: tables in, one new table out. FactOrders and
// Build pull their inputs from a catalog.Catalog so only the tables a job
// needs are fetched.
package star

import (
	"context"
	"fmt"

	"staretl/internal/catalog"
	"staretl/internal/table"
	"staretl/internal/transformer"
	"staretl/internal/transformer/builtin"
)

// Source table names.
const (
	CustomersTable   = "olist_customers_dataset"
	SellersTable     = "olist_sellers_dataset"
	ProductsTable    = "olist_products_dataset"
	TranslationTable = "product_category_name_translation"
	OrdersTable      = "olist_orders_dataset"
	ItemsTable       = "olist_order_items_dataset"
	PaymentsTable    = "olist_order_payments_dataset"
	ReviewsTable     = "olist_order_reviews_dataset"
)

// Target table names.
const (
	DimCustomersTable = "dim_customers"
	DimSellersTable   = "dim_sellers"
	DimProductsTable  = "dim_products"
	DimDateTable      = "dim_date"
	FactOrdersTable   = "fact_orders"
)

// dedupPolicy picks any one row per key. Source reads are unordered, so
// "first" is only first in whatever order the store returned.
const dedupPolicy = "keep-first"

// DimCustomers returns one row per customer_id with customer_unique_id as
// text.
func DimCustomers(customers *table.Table) (*table.Table, error) {
	return named(DimCustomersTable, transformer.Chain{
		builtin.DeDup{Keys: []string{"customer_id"}, Policy: dedupPolicy},
		builtin.Coerce{Types: map[string]string{"customer_unique_id": "text"}},
	}, customers)
}

// DimSellers returns one row per seller_id.
func DimSellers(sellers *table.Table) (*table.Table, error) {
	return named(DimSellersTable,
		builtin.DeDup{Keys: []string{"seller_id"}, Policy: dedupPolicy},
		sellers)
}

// DimProducts left-joins the English category name onto each product and
// returns one row per product_id. Products whose category has no translation
// keep a nil translated name.
func DimProducts(products, translation *table.Table) (*table.Table, error) {
	joined, err := products.LeftJoin(translation, "product_category_name")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", DimProductsTable, err)
	}
	return named(DimProductsTable,
		builtin.DeDup{Keys: []string{"product_id"}, Policy: dedupPolicy},
		joined)
}

func named(name string, tr transformer.Transformer, in *table.Table) (*table.Table, error) {
	out, err := tr.Apply(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if out == in {
		out = in.Clone()
	}
	out.Name = name
	return out, nil
}

// Job is one target table and the function that builds it.
type Job struct {
	Table string
	Build func(ctx context.Context) (*table.Table, error)
}

// Build returns the star-schema jobs in load order: dim_customers,
// dim_sellers, dim_products, dim_date, fact_orders. Each job reads its inputs
// from cat when it runs.
func Build(cat catalog.Catalog) []Job {
	return []Job{
		{Table: DimCustomersTable, Build: func(ctx context.Context) (*table.Table, error) {
			t, err := cat.Table(ctx, CustomersTable)
			if err != nil {
				return nil, err
			}
			return DimCustomers(t)
		}},
		{Table: DimSellersTable, Build: func(ctx context.Context) (*table.Table, error) {
			t, err := cat.Table(ctx, SellersTable)
			if err != nil {
				return nil, err
			}
			return DimSellers(t)
		}},
		{Table: DimProductsTable, Build: func(ctx context.Context) (*table.Table, error) {
			p, err := cat.Table(ctx, ProductsTable)
			if err != nil {
				return nil, err
			}
			tr, err := cat.Table(ctx, TranslationTable)
			if err != nil {
				return nil, err
			}
			return DimProducts(p, tr)
		}},
		{Table: DimDateTable, Build: func(ctx context.Context) (*table.Table, error) {
			t, err := cat.Table(ctx, OrdersTable)
			if err != nil {
				return nil, err
			}
			return DimDate(t)
		}},
		{Table: FactOrdersTable, Build: func(ctx context.Context) (*table.Table, error) {
			return FactOrders(ctx, cat)
		}},
	}
}
