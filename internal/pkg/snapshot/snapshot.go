// Package snapshot stores domains as zstd-compressed JSON, both in memory
// for the result cache and on disk for the CLI.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

// Encoders and decoders are safe for concurrent EncodeAll/DecodeAll.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// Encode compresses d.
func Encode(d *domain.Domain) ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal domain: %w", err)
	}
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

// Decode reverses Encode.
func Decode(data []byte) (*domain.Domain, error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	var d domain.Domain
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("unmarshal domain: %w", err)
	}
	return &d, nil
}

// WriteFile streams d to filename with the best compression level.
func WriteFile(filename string, d *domain.Domain) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer file.Close()

	bufWriter := bufio.NewWriterSize(file, 1024*1024)
	enc, err := zstd.NewWriter(bufWriter, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(d); err != nil {
		enc.Close()
		return fmt.Errorf("encode domain: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := bufWriter.Flush(); err != nil {
		return err
	}
	return file.Close()
}

// ReadFile loads a snapshot written by WriteFile.
func ReadFile(filename string) (*domain.Domain, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()
	return Read(bufio.NewReaderSize(file, 1024*1024))
}

// Read decodes one snapshot stream.
func Read(r io.Reader) (*domain.Domain, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	var d domain.Domain
	if err := json.NewDecoder(dec).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode domain: %w", err)
	}
	return &d, nil
}
