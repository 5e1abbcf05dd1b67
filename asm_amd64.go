package writeprobe

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

func disassemble(code []byte) (string, error) {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return "", fmt.Errorf("decode error: %w", err)
	}
	return inst.String(), nil
}
