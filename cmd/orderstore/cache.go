package main

import (
	"fmt"
	"os"

	"github.com/likearthian/orderstore"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Work on a table through the offline cache",
	Long: `Cache commands load a whole table into memory, apply the requested
change there and reconcile the pending rows with the store afterwards.`,
}

var cacheShowCmd = &cobra.Command{
	Use:   "show TABLE",
	Short: "Print the cached rows of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := storage.LoadCache(contextOrBackground(cmd.Context()), args[0]); err != nil {
			return err
		}
		return printSnapshot(cmd)
	},
}

var flagRecordFile string

var cacheAddCmd = &cobra.Command{
	Use:   "add TABLE -f RECORD.yaml",
	Short: "Add a record read from a YAML mapping of column to value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(flagRecordFile)
		if err != nil {
			return err
		}
		var record map[string]any
		if err := yaml.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("decode %s: %w", flagRecordFile, err)
		}

		return withCache(cmd, args[0], func() error {
			return storage.CacheAdd(record)
		})
	},
}

var (
	flagPatchFields string
	flagPatchValues string
)

var cachePatchCmd = &cobra.Command{
	Use:   "patch TABLE KEY --fields f1;f2 --values v1;v2",
	Short: "Change fields of a cached row",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := orderstore.ParsePatch(flagPatchFields, flagPatchValues)
		if err != nil {
			return err
		}
		return withCache(cmd, args[0], func() error {
			return storage.CachePatch(args[1], patch)
		})
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete TABLE KEY...",
	Short: "Delete cached rows by key",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd, args[0], func() error {
			for _, key := range args[1:] {
				if err := storage.CacheMarkDelete(key); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func init() {
	cacheAddCmd.Flags().StringVarP(&flagRecordFile, "file", "f", "", "YAML file holding the record")
	_ = cacheAddCmd.MarkFlagRequired("file")

	cachePatchCmd.Flags().StringVar(&flagPatchFields, "fields", "", "semicolon separated column names")
	cachePatchCmd.Flags().StringVar(&flagPatchValues, "values", "", "semicolon separated values")
	_ = cachePatchCmd.MarkFlagRequired("fields")
	_ = cachePatchCmd.MarkFlagRequired("values")

	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheAddCmd)
	cacheCmd.AddCommand(cachePatchCmd)
	cacheCmd.AddCommand(cacheDeleteCmd)
}

// withCache loads table, applies change to the cache and reconciles.
func withCache(cmd *cobra.Command, table string, change func() error) error {
	ctx := contextOrBackground(cmd.Context())
	if err := storage.LoadCache(ctx, table); err != nil {
		return err
	}
	if err := change(); err != nil {
		return err
	}

	report, err := storage.Reconcile(ctx)
	if rerr := renderReport(cmd.OutOrStdout(), flagFormat, report); rerr != nil {
		return rerr
	}
	return err
}

func printSnapshot(cmd *cobra.Command) error {
	c, err := storage.Cache()
	if err != nil {
		return err
	}
	return renderSnapshot(cmd.OutOrStdout(), flagFormat, c.Table(), c.Snapshot())
}
