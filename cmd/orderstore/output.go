package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/likearthian/orderstore"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

const nullCell = "NULL"

func renderRows(out io.Writer, format string, tb orderstore.TableDef, rows []map[string]any) error {
	if format == "yaml" {
		return encodeYAML(out, rows)
	}

	cols := tb.ColumnNames()
	cells := make([][]string, len(rows))
	for n, row := range rows {
		cells[n] = make([]string, len(cols))
		for i, col := range cols {
			cells[n][i] = formatCell(row[col])
		}
	}
	return renderTable(out, cols, cells)
}

func renderTable(out io.Writer, header []string, rows [][]string) error {
	var table = tablewriter.NewWriter(out)
	table.Header(header)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

type rowView struct {
	Key    any            `yaml:"key"`
	State  string         `yaml:"state"`
	Fields map[string]any `yaml:"fields"`
}

// renderSnapshot prints the cache rows with their pending state.
func renderSnapshot(out io.Writer, format string, tb orderstore.TableDef, rows []orderstore.Row) error {
	if format == "yaml" {
		views := make([]rowView, len(rows))
		for i, r := range rows {
			views[i] = rowView{Key: r.Key, State: r.State.String(), Fields: r.Current}
		}
		return encodeYAML(out, views)
	}

	cols := tb.ColumnNames()
	cells := make([][]string, len(rows))
	for n, r := range rows {
		cells[n] = []string{r.State.String()}
		for _, col := range cols {
			cells[n] = append(cells[n], formatCell(r.Get(col)))
		}
	}
	return renderTable(out, append([]string{"state"}, cols...), cells)
}

type orderView struct {
	Number   int64  `yaml:"number"`
	Ordered  string `yaml:"ordered"`
	Customer int64  `yaml:"customer"`
	Status   string `yaml:"status"`
	Details  int    `yaml:"details"`
	Total    string `yaml:"total"`
}

func newOrderView(o *orderstore.Order) orderView {
	var total float64
	for _, l := range o.Details() {
		total += l.Total()
	}
	return orderView{
		Number:   o.Number,
		Ordered:  o.OrderDate.Format("2006-01-02"),
		Customer: o.CustomerNumber,
		Status:   o.Status,
		Details:  len(o.Details()),
		Total:    strconv.FormatFloat(total, 'f', 2, 64),
	}
}

func renderOrders(out io.Writer, format string, orders []*orderstore.Order) error {
	views := make([]orderView, len(orders))
	for i, o := range orders {
		views[i] = newOrderView(o)
	}
	if format == "yaml" {
		return encodeYAML(out, views)
	}

	cells := orderstore.Map(views, func(v orderView) []string {
		return []string{
			strconv.FormatInt(v.Number, 10), v.Ordered, strconv.FormatInt(v.Customer, 10),
			v.Status, strconv.Itoa(v.Details), v.Total,
		}
	})
	return renderTable(out, []string{"Order", "Ordered", "Customer", "Status", "Details", "Total"}, cells)
}

type failureView struct {
	Key   string `yaml:"key"`
	Op    string `yaml:"op"`
	Error string `yaml:"error"`
}

type reportView struct {
	Table     string        `yaml:"table"`
	Inserted  int           `yaml:"inserted"`
	Updated   int           `yaml:"updated"`
	Deleted   int           `yaml:"deleted"`
	Conflicts int           `yaml:"conflicts"`
	Errors    int           `yaml:"errors"`
	Failed    []failureView `yaml:"failed,omitempty"`
}

// renderReport prints a reconciliation report. The pass id is left out so the
// output only depends on what was written.
func renderReport(out io.Writer, format string, report orderstore.ReconcileReport) error {
	view := reportView{
		Table:     report.Table,
		Inserted:  report.Inserted,
		Updated:   report.Updated,
		Deleted:   report.Deleted,
		Conflicts: report.Conflicts,
		Errors:    report.Errors,
	}
	for _, f := range report.Failed {
		view.Failed = append(view.Failed, failureView{Key: fmt.Sprint(f.Key), Op: f.Op.String(), Error: f.Err.Error()})
	}
	if format == "yaml" {
		return encodeYAML(out, view)
	}

	fmt.Fprintln(out, report.String())
	for _, f := range view.Failed {
		fmt.Fprintf(out, "  %s %s: %s\n", f.Op, f.Key, f.Error)
	}
	return nil
}

type metricView struct {
	Name   string  `yaml:"name"`
	Labels string  `yaml:"labels,omitempty"`
	Value  float64 `yaml:"value"`
}

func renderMetrics(out io.Writer, format string, metrics []metricView) error {
	if format == "yaml" {
		return encodeYAML(out, metrics)
	}
	cells := orderstore.Map(metrics, func(m metricView) []string {
		return []string{m.Name, m.Labels, strconv.FormatFloat(m.Value, 'f', -1, 64)}
	})
	return renderTable(out, []string{"Metric", "Labels", "Value"}, cells)
}

func encodeYAML(out io.Writer, v any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return nullCell
	case float64:
		return strconv.FormatFloat(t, 'f', 2, 64)
	default:
		return fmt.Sprint(t)
	}
}
