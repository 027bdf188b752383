// Command corerpcd is the example CLI wiring a Calc service over the
// TCP transport (SPEC_FULL.md §8 end-to-end scenarios), with optional
// etcd-backed discovery. Grounded on the teacher's
// test/integration_test.go server/client wiring, using
// github.com/spf13/cobra for the "serve"/"call" command surface.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	root := &cobra.Command{
		Use:   "corerpcd",
		Short: "Example corerpc server/client CLI",
	}
	root.AddCommand(newServeCmd(logger))
	root.AddCommand(newCallCmd(logger))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
