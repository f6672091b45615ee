package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/likearthian/orderstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderReportYAML(t *testing.T) {
	report := orderstore.ReconcileReport{
		ID:        "0b6c7d2e-5f1a-4f51-9d0e-3f7f0c1d2e3a",
		Table:     "customers",
		Inserted:  1,
		Updated:   2,
		Conflicts: 1,
		Errors:    1,
		Failed: []orderstore.RowFailure{
			{Key: int64(121), Op: orderstore.KindUpdate, Err: orderstore.ErrConflict},
			{Key: int64(900), Op: orderstore.KindInsert, Err: errors.New("duplicate key")},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, renderReport(&buf, "yaml", report))

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "report", buf.Bytes())
}

func TestRenderReportText(t *testing.T) {
	report := orderstore.ReconcileReport{
		Table:     "customers",
		Deleted:   1,
		Conflicts: 1,
		Failed: []orderstore.RowFailure{
			{Key: int64(121), Op: orderstore.KindDelete, Err: orderstore.ErrConflict},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, renderReport(&buf, "table", report))
	assert.Equal(t, "customers: inserted=0 updated=0 deleted=1 conflicts=1 errors=0\n  delete 121: conflict\n", buf.String())
}

func TestRenderOrders(t *testing.T) {
	order := &orderstore.Order{
		Number:         10100,
		OrderDate:      time.Date(2003, 1, 6, 0, 0, 0, 0, time.UTC),
		Status:         "Shipped",
		CustomerNumber: 363,
	}
	order.AddDetail(
		orderstore.OrderLine{ProductCode: "S18_1749", Quantity: 30, Price: 136},
		orderstore.OrderLine{ProductCode: "S18_2248", Quantity: 50, Price: 55.09},
	)

	view := newOrderView(order)
	assert.Equal(t, orderView{Number: 10100, Ordered: "2003-01-06", Customer: 363, Status: "Shipped", Details: 2, Total: "6834.50"}, view)

	var buf bytes.Buffer
	require.NoError(t, renderOrders(&buf, "yaml", []*orderstore.Order{order}))
	assert.Contains(t, buf.String(), "- number: 10100\n")
	assert.Contains(t, buf.String(), "  status: Shipped\n")

	buf.Reset()
	require.NoError(t, renderOrders(&buf, "table", []*orderstore.Order{order}))
	assert.Contains(t, buf.String(), "10100")
	assert.Contains(t, buf.String(), "6834.50")
}

func TestRenderRows(t *testing.T) {
	tb, err := orderstore.ClassicModels().Table(orderstore.TableOrderDetails)
	require.NoError(t, err)
	rows := []map[string]any{
		{"orderNumber": int64(10100), "productCode": "S18_1749", "quantityOrdered": int64(30), "priceEach": 136.0, "orderLineNumber": int64(3)},
	}

	var buf bytes.Buffer
	require.NoError(t, renderRows(&buf, "table", tb, rows))
	assert.Contains(t, buf.String(), "S18_1749")
	assert.Contains(t, buf.String(), "136.00")

	buf.Reset()
	require.NoError(t, renderRows(&buf, "yaml", tb, rows))
	assert.Contains(t, buf.String(), "productCode: S18_1749\n")
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "NULL", formatCell(nil))
	assert.Equal(t, "21000.00", formatCell(21000.0))
	assert.Equal(t, "103", formatCell(int64(103)))
	assert.Equal(t, "Gent", formatCell("Gent"))
}

func TestGatherMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "orderstore_order_writes_total"}, []string{"outcome"})
	other := prometheus.NewCounter(prometheus.CounterOpts{Name: "http_requests_total"})
	reg.MustRegister(writes, other)
	writes.WithLabelValues("ok").Add(3)
	writes.WithLabelValues("error").Inc()
	other.Inc()

	metrics, err := gatherMetrics(reg)
	require.NoError(t, err)
	assert.Equal(t, []metricView{
		{Name: "orderstore_order_writes_total", Labels: "outcome=error", Value: 1},
		{Name: "orderstore_order_writes_total", Labels: "outcome=ok", Value: 3},
	}, metrics)

	var buf bytes.Buffer
	require.NoError(t, renderMetrics(&buf, "yaml", metrics[1:]))
	assert.Equal(t, "- name: orderstore_order_writes_total\n  labels: outcome=ok\n  value: 3\n", buf.String())

	buf.Reset()
	require.NoError(t, renderMetrics(&buf, "table", metrics))
	assert.Contains(t, buf.String(), "outcome=error")
}
