package main

import (
	"context"
	"fmt"

	"github.com/likearthian/orderstore"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Global flag values.
var (
	flagConfig string
	flagFormat string
)

// storage is opened by PersistentPreRunE for every command that needs it.
var storage *orderstore.Storage

var rootCmd = &cobra.Command{
	Use:           "orderstore",
	Short:         "Read and write the customers and orders store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[annotationNoStorage] == "true" {
			return nil
		}
		cfg, err := setup(cmd)
		if err != nil {
			return err
		}
		return openStorage(cmd.Context(), cfg)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeStorage(cmd.Context())
	},
}

// annotationNoStorage marks commands that open the store themselves.
const annotationNoStorage = "no-storage"

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: ./orderstore.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "table", "output format: table or yaml")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(customersCmd)
	rootCmd.AddCommand(ordersCmd)
	rootCmd.AddCommand(productsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(orderCmd)
	rootCmd.AddCommand(importCmd)
}

// setup loads the configuration and initializes logging.
func setup(cmd *cobra.Command) (appConfig, error) {
	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return appConfig{}, err
	}
	if err := initLog(cfg.Log); err != nil {
		return appConfig{}, err
	}
	if flagFormat != "table" && flagFormat != "yaml" {
		return appConfig{}, fmt.Errorf("unknown output format %q", flagFormat)
	}
	return cfg, nil
}

func openStorage(ctx context.Context, cfg appConfig) error {
	backend, err := orderstore.Open(contextOrBackground(ctx), cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	s, err := orderstore.NewStorage(backend,
		orderstore.WithStatements(cfg.Store.Statements),
		orderstore.WithLogger(log.WithField("component", "orderstore")),
	)
	if err != nil {
		_ = backend.Close()
		return err
	}
	storage = s
	return nil
}

// closeStorage reconciles pending cache rows and releases the store.
func closeStorage(ctx context.Context) error {
	if storage == nil {
		return nil
	}
	err := storage.Close(contextOrBackground(ctx))
	storage = nil
	return err
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
