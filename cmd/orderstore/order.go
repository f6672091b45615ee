package main

import (
	"fmt"
	"os"
	"time"

	"github.com/likearthian/orderstore"
	"github.com/spf13/cobra"
	"gopkg.in/guregu/null.v4"
	"gopkg.in/yaml.v3"
)

// orderFile is the YAML form of an order accepted by "order write".
type orderFile struct {
	Number         int64      `yaml:"number"`
	OrderDate      string     `yaml:"orderDate"`
	RequiredDate   string     `yaml:"requiredDate"`
	ShippedDate    string     `yaml:"shippedDate,omitempty"`
	Status         string     `yaml:"status"`
	Comments       string     `yaml:"comments,omitempty"`
	CustomerNumber int64      `yaml:"customerNumber"`
	Details        []lineFile `yaml:"details"`
}

type lineFile struct {
	ProductCode string  `yaml:"productCode"`
	Quantity    int64   `yaml:"quantity"`
	Price       float64 `yaml:"price"`
	LineNumber  int64   `yaml:"lineNumber,omitempty"`
}

func (f orderFile) toOrder() (*orderstore.Order, error) {
	ordered, err := time.Parse("2006-01-02", f.OrderDate)
	if err != nil {
		return nil, fmt.Errorf("orderDate: %w", err)
	}
	required, err := time.Parse("2006-01-02", f.RequiredDate)
	if err != nil {
		return nil, fmt.Errorf("requiredDate: %w", err)
	}

	o := &orderstore.Order{
		Number:         f.Number,
		OrderDate:      ordered,
		RequiredDate:   required,
		Status:         f.Status,
		Comments:       null.NewString(f.Comments, f.Comments != ""),
		CustomerNumber: f.CustomerNumber,
	}
	if f.ShippedDate != "" {
		shipped, err := time.Parse("2006-01-02", f.ShippedDate)
		if err != nil {
			return nil, fmt.Errorf("shippedDate: %w", err)
		}
		o.ShippedDate = null.TimeFrom(shipped)
	}

	for _, l := range f.Details {
		o.AddDetail(orderstore.OrderLine{
			ProductCode: l.ProductCode,
			Quantity:    l.Quantity,
			Price:       l.Price,
			LineNumber:  l.LineNumber,
		})
	}
	return o, nil
}

var flagOrderFile string

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Write orders with their details in one transaction",
}

var orderWriteCmd = &cobra.Command{
	Use:   "write -f ORDER.yaml",
	Short: "Write an order and all its details, or nothing at all",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(flagOrderFile)
		if err != nil {
			return err
		}
		var f orderFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("decode %s: %w", flagOrderFile, err)
		}
		if f.Number == 0 {
			next, err := storage.MaxOrderNumber(contextOrBackground(cmd.Context()))
			if err != nil {
				return err
			}
			f.Number = next + 1
		}

		order, err := f.toOrder()
		if err != nil {
			return err
		}
		if err := storage.WriteOrder(contextOrBackground(cmd.Context()), order); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), order.String())
		return nil
	},
}

func init() {
	orderWriteCmd.Flags().StringVarP(&flagOrderFile, "file", "f", "", "YAML file holding the order")
	_ = orderWriteCmd.MarkFlagRequired("file")
	orderCmd.AddCommand(orderWriteCmd)
}
