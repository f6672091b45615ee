package main

import (
	"fmt"

	"github.com/likearthian/orderstore"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a default config file and create the store's tables",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoStorage: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := flagConfig
		if path == "" {
			path = defaultConfigPath
		}
		written, err := writeDefaultConfig(path)
		if err != nil {
			return err
		}
		if written {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		}
		flagConfig = path

		cfg, err := setup(cmd)
		if err != nil {
			return err
		}
		backend, err := orderstore.Open(contextOrBackground(cmd.Context()), cfg.Store)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer backend.Close()

		if err := orderstore.CreateSchema(contextOrBackground(cmd.Context()), backend, orderstore.ClassicModels()); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema ready on %s\n", backend.Name())
		return nil
	},
}
