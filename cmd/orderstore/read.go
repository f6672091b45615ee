package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/likearthian/orderstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var customersCmd = &cobra.Command{
	Use:   "customers",
	Short: "List customers straight from the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listTable(cmd, "customers")
	},
}

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List products straight from the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listTable(cmd, "products")
	},
}

var flagCustomer int64

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List orders with their detail count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := contextOrBackground(cmd.Context())

		var (
			orders []*orderstore.Order
			err    error
		)
		if flagCustomer != 0 {
			orders, err = storage.OrdersForCustomer(ctx, flagCustomer)
		} else {
			orders, err = storage.Orders(ctx)
		}
		if err != nil {
			return err
		}
		return renderOrders(cmd.OutOrStdout(), flagFormat, orders)
	},
}

var flagMetrics bool

var statsCmd = &cobra.Command{
	Use:   "stats [customer] [--metrics]",
	Short: "Print the highest customer and order numbers, and a customer's order total",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := contextOrBackground(cmd.Context())
		out := cmd.OutOrStdout()

		maxCustomer, err := storage.MaxCustomerNumber(ctx)
		if err != nil {
			return err
		}
		maxOrder, err := storage.MaxOrderNumber(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "max customer number: %d\n", maxCustomer)
		fmt.Fprintf(out, "max order number: %d\n", maxOrder)

		if len(args) == 1 {
			customer, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("customer number: %w", err)
			}
			total, err := storage.CustomerTotal(ctx, customer)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "total for customer %d: %.2f\n", customer, total)
		}

		if flagMetrics {
			metrics, err := gatherMetrics(prometheus.DefaultGatherer)
			if err != nil {
				return err
			}
			return renderMetrics(out, flagFormat, metrics)
		}
		return nil
	},
}

// gatherMetrics collects the orderstore counters of g, one entry per label set.
func gatherMetrics(g prometheus.Gatherer) ([]metricView, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gathering metrics: %w", err)
	}

	var out []metricView
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "orderstore_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			sort.Strings(labels)
			out = append(out, metricView{
				Name:   mf.GetName(),
				Labels: strings.Join(labels, ","),
				Value:  m.GetCounter().GetValue(),
			})
		}
	}
	return out, nil
}

func init() {
	ordersCmd.Flags().Int64Var(&flagCustomer, "customer", 0, "only list orders of this customer")
	statsCmd.Flags().BoolVar(&flagMetrics, "metrics", false, "also print the counters collected during this run")
}

func listTable(cmd *cobra.Command, table string) error {
	tb, err := storage.Catalog().Table(table)
	if err != nil {
		return err
	}
	rows, err := storage.ReadAll(contextOrBackground(cmd.Context()), table)
	if err != nil {
		return err
	}
	return renderRows(cmd.OutOrStdout(), flagFormat, tb, rows)
}
