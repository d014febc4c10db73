package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BasketsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_baskets_created_total",
		Help: "Total number of baskets created",
	})

	BasketItemsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_basket_items_added_total",
		Help: "Total number of units added to baskets",
	})

	OrdersConvertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_orders_converted_total",
		Help: "Total number of baskets converted to proforma invoices",
	})

	OrdersFinalizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_orders_finalized_total",
		Help: "Total number of orders sold",
	})

	OrdersDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_orders_deleted_total",
		Help: "Total number of draft baskets deleted",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_order_operations_failed_total",
		Help: "Total number of failed order operations",
	}, []string{"operation", "code"})

	SalesAmountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_amount_total",
		Help: "Sum of final totals of sold orders",
	}, []string{"shop_id"})

	StockDeductedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_stock_deducted_total",
		Help: "Units deducted from stock on sale",
	}, []string{"location"})

	StockShortfallTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_stock_shortfall_total",
		Help: "Units sold beyond recorded stock",
	})

	FinalizeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_finalize_latency_seconds",
		Help:    "Latency of the finalize sale transaction",
		Buckets: prometheus.DefBuckets,
	})

	InventoryCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_inventory_cache_hits_total",
		Help: "Inventory reads served from redis",
	})

	InventoryCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_inventory_cache_misses_total",
		Help: "Inventory reads that went to the database",
	})

	EventsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_events_processed_total",
		Help: "Order events handled by the worker",
	}, []string{"event_type", "result"})

	SessionCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_session_commands_total",
		Help: "Terminal session commands by outcome",
	}, []string{"command", "result"})

	StaleResponsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_session_stale_responses_total",
		Help: "Store responses dropped because the active order changed",
	})

	RemoteCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_remote_calls_total",
		Help: "Calls from the terminal to the store API",
	}, []string{"method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
