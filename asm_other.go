//go:build !amd64 && !arm64

package writeprobe

import "errors"

func disassemble(code []byte) (string, error) {
	return "", errors.New("disassembly is not supported on this architecture")
}
