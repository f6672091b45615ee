// Command orderstore reads and writes the classicmodels customers and orders
// store, either directly or through an offline cache that is reconciled on
// exit.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes one command line. Cobra skips PersistentPostRunE when a
// command fails, so the store is closed here as well.
func run(ctx context.Context, args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	return errors.Join(err, closeStorage(ctx))
}
