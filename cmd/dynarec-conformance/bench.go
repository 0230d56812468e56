package main

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/spf13/cobra"

	"github.com/ps2re/dynarec/ee"
	"github.com/ps2re/dynarec/hostapi"
)

func newBenchCmd() *cobra.Command {
	var blocks int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Translate and compile synthetic EE blocks repeatedly and report throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(blocks)
		},
	}
	cmd.Flags().IntVar(&blocks, "blocks", 100000, "number of synthetic blocks to translate and compile")
	return cmd
}

// runBench measures translate+compile throughput on a fixed ten-
// instruction ALU block. It never calls the resulting machine code,
// only the generator itself.
func runBench(blocks int) error {
	words := map[uint32]uint32{
		0:  encodeRType(opSPECIAL, 1, 2, 3, 0, functADD),
		4:  0x24040001,
		8:  0x24050002,
		12: 0x24060003,
		16: 0x24070004,
		20: encodeRType(opSPECIAL, 4, 5, 8, 0, functADD),
		24: encodeRType(opSPECIAL, 6, 7, 9, 0, functADD),
		28: encodeRType(opSPECIAL, 8, 9, 10, 0, functADD),
		32: jumpWord(0),
		36: 0x00000000, // nop (delay slot), terminates translation
	}
	fetch := func(addr uint32) uint32 { return words[addr%40] }

	var state hostapi.EEState
	gen := ee.NewCodeGen(newFlatMemory(1), noopEEHandlers{})
	statePtr := uintptr(unsafe.Pointer(&state))

	start := time.Now()
	var totalBytes int
	for i := 0; i < blocks; i++ {
		block := ee.Translate(0, fetch)
		code := gen.Compile(block, statePtr)
		totalBytes += len(code)
	}
	elapsed := time.Since(start)

	fmt.Printf("ok   bench                 %d blocks in %s (%.0f blocks/s, %d bytes total)\n",
		blocks, elapsed, float64(blocks)/elapsed.Seconds(), totalBytes)
	return nil
}
