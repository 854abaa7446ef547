package star

import (
	"context"
	"fmt"

	"staretl/internal/catalog"
	"staretl/internal/table"
	"staretl/internal/transformer"
	"staretl/internal/transformer/builtin"
)

// FactColumns are the fact_orders columns in order.
var FactColumns = []string{
	"order_id",
	"customer_id",
	"order_purchase_timestamp",
	"order_approved_at",
	"order_delivered_carrier_date",
	"order_delivered_customer_date",
	"order_estimated_delivery_date",
	"product_id",
	"seller_id",
	"price",
	"freight_value",
	"payment_type",
	"payment_installments",
	"payment_value",
	"review_score",
}

// Only the purchase timestamp is parsed and only these two measures are
// coerced; every other projected column keeps the value the source returned.
var (
	orderTimestamps = map[string]string{"order_purchase_timestamp": "timestamp"}
	factMeasures    = map[string]string{"payment_value": "numeric", "review_score": "numeric"}
)

// factInputs are the columns each fact input must carry.
var factInputs = [4]builtin.Require{
	{Columns: []string{"order_id", "customer_id", "order_purchase_timestamp", "order_approved_at",
		"order_delivered_carrier_date", "order_delivered_customer_date", "order_estimated_delivery_date"}},
	{Columns: []string{"order_id", "product_id", "seller_id", "price", "freight_value"}},
	{Columns: []string{"order_id", "payment_type", "payment_installments", "payment_value"}},
	{Columns: []string{"order_id", "review_score"}},
}

// FactOrders joins orders with items, payments and reviews on order_id (left
// joins, in that order) and projects FactColumns. An order with several
// items, payments or reviews fans out to one row per combination; an order
// with none keeps one row with nil right-side columns. Non-numeric measures
// become nil.
func FactOrders(ctx context.Context, cat catalog.Catalog) (*table.Table, error) {
	var inputs [4]*table.Table
	for i, name := range []string{OrdersTable, ItemsTable, PaymentsTable, ReviewsTable} {
		t, err := cat.Table(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", FactOrdersTable, err)
		}
		inputs[i] = t
	}
	return JoinFact(inputs[0], inputs[1], inputs[2], inputs[3])
}

// JoinFact is FactOrders over already fetched tables.
func JoinFact(orders, items, payments, reviews *table.Table) (*table.Table, error) {
	for i, in := range []*table.Table{orders, items, payments, reviews} {
		if _, err := factInputs[i].Apply(in); err != nil {
			return nil, fmt.Errorf("%s: %w", FactOrdersTable, err)
		}
	}

	orders, err := builtin.Coerce{Types: orderTimestamps}.Apply(orders)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", FactOrdersTable, err)
	}

	joined := orders
	for _, right := range []*table.Table{items, payments, reviews} {
		if joined, err = joined.LeftJoin(right, "order_id"); err != nil {
			return nil, fmt.Errorf("%s: join %s: %w", FactOrdersTable, right.Name, err)
		}
	}

	return named(FactOrdersTable, transformer.Chain{
		transformer.Func(func(in *table.Table) (*table.Table, error) { return in.Select(FactColumns...) }),
		builtin.Coerce{Types: factMeasures},
	}, joined)
}
