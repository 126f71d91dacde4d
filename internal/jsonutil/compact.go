// Package jsonutil compacts JSON documents before they are stored as KV
// values or sent as request bodies.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"pkt.systems/jpact"
)

const smallJSONThreshold = 2048

// Compact reads a JSON document from r and returns it without insignificant
// whitespace. maxBytes limits how much is read (<=0 disables the limit).
// Small documents are validated in memory and returned untouched when they are
// already compact; larger ones stream through jpact.
func Compact(r io.Reader, maxBytes int64) ([]byte, error) {
	threshold := smallJSONThreshold
	if maxBytes > 0 && maxBytes < int64(threshold) {
		threshold = int(maxBytes)
	}
	head := make([]byte, threshold+1)
	n, err := io.ReadFull(r, head)
	switch err {
	case nil:
		if maxBytes > 0 && int64(n) > maxBytes {
			return nil, fmt.Errorf("json: payload exceeds %d bytes", maxBytes)
		}
		return jpact.CompactToBuffer(io.MultiReader(bytes.NewReader(head[:n]), r), maxBytes)
	case io.EOF, io.ErrUnexpectedEOF:
	default:
		return nil, err
	}
	payload := head[:n]
	if !json.Valid(payload) {
		return nil, fmt.Errorf("json: invalid input")
	}
	if bytes.IndexAny(payload, " \t\r\n") < 0 {
		return payload, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return buf.Bytes(), nil
}

// CompactWriter streams the compacted form of r into w.
func CompactWriter(w io.Writer, r io.Reader, maxBytes int64) error {
	return jpact.CompactWriter(w, r, maxBytes)
}
