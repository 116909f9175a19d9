package starschema

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
)

const (
	bbyte    = 1.0
	kilobyte = 1024 * bbyte
	megabyte = 1024 * kilobyte
	gigabyte = 1024 * megabyte
	terabyte = 1024 * gigabyte
)

// Bytes is a byte count which prints in human units (e.g. 1.5M).
type Bytes uint64

func (b Bytes) String() string {
	unit := ""
	value := float32(b)

	switch {
	case b >= terabyte:
		unit = "T"
		value = value / terabyte
	case b >= gigabyte:
		unit = "G"
		value = value / gigabyte
	case b >= megabyte:
		unit = "M"
		value = value / megabyte
	case b >= kilobyte:
		unit = "K"
		value = value / kilobyte
	case b >= bbyte:
		unit = "B"
	case b == 0:
		return "0"
	}

	stringValue := fmt.Sprintf("%.1f", value)
	stringValue = strings.TrimSuffix(stringValue, ".0")
	return fmt.Sprintf("%s%s", stringValue, unit)
}

// CountingReader counts the bytes read through it into a shared total.
type CountingReader struct {
	R     io.Reader
	Total *uint64
}

func (c CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	atomic.AddUint64(c.Total, uint64(n))
	return n, err
}
