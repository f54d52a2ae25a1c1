// Package utils holds small parsing helpers shared by the CLI entry point,
// kept separate from main.go so they can be unit tested directly.
package utils

import (
	"encoding/hex"
	"fmt"
)

// ParseFrameData decodes the hex payload given to -send-frame (e.g.
// "3E00" for a 2-byte UDS request) into raw frame bytes ready for
// transport.Send.
func ParseFrameData(in string) ([]byte, error) {
	data, err := hex.DecodeString(in)
	if err != nil {
		return nil, fmt.Errorf("utils: parsing frame data %q: %w", in, err)
	}
	return data, nil
}
