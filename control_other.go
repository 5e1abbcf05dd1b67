//go:build !unix

package writeprobe

import "errors"

// Controls are only available on Unix, see control.go.
type Controls struct {
	Writable []byte
	ReadOnly []byte
	Guard    []byte
}

func NewControls() (*Controls, error) {
	return nil, errors.New("control regions are not supported on this platform")
}

func (c *Controls) Landmarks() []Landmark {
	return nil
}

func (c *Controls) Close() error {
	return nil
}
