package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

func CompressLz4(src []byte, output *bytes.Buffer) error {
	zw := lz4.NewWriter(output)

	if _, err := zw.Write(src); err != nil {
		return fmt.Errorf("unable to compress: %w", err)
	}
	flushErr := zw.Flush()

	if flushErr != nil {
		return flushErr
	}

	return zw.Close()
}

func DecompressLz4(src []byte, output *bytes.Buffer) error {
	zr := lz4.NewReader(bytes.NewReader(src))

	if _, err := io.Copy(output, zr); err != nil {
		return fmt.Errorf("unable to decompress: %w", err)
	}
	return nil
}
