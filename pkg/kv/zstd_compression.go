package kv

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

func compress(inData []byte) ([]byte, error) {
	var out bytes.Buffer
	encoder, err := zstd.NewWriter(&out, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	if _, err := io.Copy(encoder, bytes.NewReader(inData)); err != nil {
		encoder.Close()
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func decompress(inData []byte) ([]byte, error) {
	d, err := zstd.NewReader(bytes.NewReader(inData))
	if err != nil {
		return nil, err
	}
	defer d.Close()

	var out bytes.Buffer
	if _, err := io.Copy(&out, d); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
