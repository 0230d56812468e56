// Command dynarec-conformance drives the EE/VU dynarec core against
// the hand-written conformance corpus: integer ALU, branch-likely,
// FMAC pipeline, divide-by-zero, XGKICK stall, and heap-invalidation
// scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "dynarec-conformance",
		Short: "Conformance runner for the EE/VU dynamic recompiler",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newDisasmCmd())
	root.AddCommand(newInvalidateFuzzCmd())
	root.AddCommand(newBenchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
