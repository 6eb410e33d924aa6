package scrub

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"
)

// validateSegment checks that segment content is a well-formed columnar
// file: parseable footer, readable row groups. It does not verify the rows
// against the manifest's offset range.
func validateSegment(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("segment is empty")
	}

	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open segment: %w", err)
	}
	if f.NumRows() == 0 {
		return fmt.Errorf("segment holds no rows")
	}
	return nil
}
