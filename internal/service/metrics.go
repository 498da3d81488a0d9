package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cartOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_operations_total",
		Help: "Cart mutations by operation and outcome",
	}, []string{"operation", "outcome"})

	checkoutTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkout_transitions_total",
		Help: "Checkout session state changes by transition and outcome",
	}, []string{"transition", "outcome"})

	ordersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Orders created by checkout finalization",
	})

	orderRevenue = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_order_revenue_cents_total",
		Help: "Sum of finalized order totals in cents",
	})
)

// Outcome labels.
const (
	outcomeOK       = "ok"
	outcomeConflict = "conflict"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)
