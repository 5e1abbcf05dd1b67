package writeprobe

import (
	"fmt"

	"golang.org/x/arch/arm64/arm64asm"
)

func disassemble(code []byte) (string, error) {
	// Instructions are always 4 bytes.
	if len(code) < 4 {
		return "", fmt.Errorf("need 4 bytes, have %d", len(code))
	}

	inst, err := arm64asm.Decode(code[:4])
	if err != nil {
		return "", fmt.Errorf("decode error: %w", err)
	}
	return inst.String(), nil
}
