package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ps2re/dynarec/ee"
	"github.com/ps2re/dynarec/ir"
	"github.com/ps2re/dynarec/vu"
)

func newDisasmCmd() *cobra.Command {
	var arch string
	var pc uint32
	cmd := &cobra.Command{
		Use:   "disasm <hex-words>",
		Short: "Translate a hex-encoded guest block into IR and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("decoding hex: %w", err)
			}
			if len(raw)%4 != 0 {
				return fmt.Errorf("input must be a whole number of 32-bit words")
			}
			words := make([]uint32, len(raw)/4)
			for i := range words {
				words[i] = uint32(raw[i*4])<<24 | uint32(raw[i*4+1])<<16 | uint32(raw[i*4+2])<<8 | uint32(raw[i*4+3])
			}

			var block *ir.Block
			switch arch {
			case "ee":
				fetch := func(addr uint32) uint32 {
					idx := (addr - pc) / 4
					if int(idx) >= len(words) {
						return 0
					}
					return words[idx]
				}
				block = ee.Translate(pc, fetch)
			case "vu":
				if len(words)%2 != 0 {
					return fmt.Errorf("vu input must be an even number of words (upper,lower pairs)")
				}
				fetch := func(addr uint32) (uint32, uint32) {
					idx := (addr - pc) / 8
					if int(idx*2+1) >= len(words) {
						return 0, 0
					}
					return words[idx*2], words[idx*2+1]
				}
				block = vu.Translate(pc, fetch)
			default:
				return fmt.Errorf("unknown arch %q, want \"ee\" or \"vu\"", arch)
			}

			for i, inst := range block.Instructions {
				fmt.Printf("%3d  %-10s dest=%v src=%v src2=%v field=%#x class=%d cycles=%d\n",
					i, mnemonic(inst.Op), inst.Dest, inst.Source, inst.Source2, inst.Field, inst.Class, inst.CycleCount)
			}
			fmt.Printf("-- %d instructions, %d guest cycles\n", len(block.Instructions), block.CycleCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&arch, "arch", "ee", "guest architecture: ee or vu")
	cmd.Flags().Uint32Var(&pc, "pc", 0, "entry PC the words are fetched from")
	return cmd
}
