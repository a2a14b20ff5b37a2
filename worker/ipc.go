package worker

import (
	"bytes"
	"fmt"

	"github.com/ankoh/dashql-sub001/compression"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// encodeRecord writes rec as an lz4-compressed arrow IPC stream.
func encodeRecord(rec arrow.Record, mem memory.Allocator) ([]byte, error) {
	var stream bytes.Buffer

	w := ipc.NewWriter(&stream, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err := w.Write(rec); err != nil {
		w.Close()
		return nil, fmt.Errorf("unable to write ipc stream: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("unable to close ipc stream: %w", err)
	}

	var compressed bytes.Buffer
	if err := compression.CompressLz4(stream.Bytes(), &compressed); err != nil {
		return nil, err
	}
	return compressed.Bytes(), nil
}

// decodeRecord reads the single record of an encoded stream.
func decodeRecord(payload []byte, mem memory.Allocator) (arrow.Record, error) {
	var stream bytes.Buffer
	if err := compression.DecompressLz4(payload, &stream); err != nil {
		return nil, err
	}

	r, err := ipc.NewReader(bytes.NewReader(stream.Bytes()), ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("unable to open ipc stream: %w", err)
	}
	defer r.Release()

	if !r.Next() {
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("unable to read ipc stream: %w", err)
		}
		return nil, fmt.Errorf("ipc stream without record batch")
	}
	rec := r.Record()
	rec.Retain()
	return rec, nil
}
