// MIT License
//
// Copyright (c) 2023 kache.io
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package cacheval defines the serialized envelope written to the store for
// each cache entry, and its self-describing, length-prefixed binary codec.
package cacheval

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
)

// Value is the envelope persisted for a cache entry.
type Value struct {
	Status    int
	Headers   http.Header
	Body      []byte
	Timestamp int64
	Validity  int64
}

// Fresh reports whether the entry is still within its validity window at now.
func (v Value) Fresh(now int64) bool {
	return now-v.Timestamp <= v.Validity
}

// StaleUsable reports whether the entry is still usable as a stale fallback
// at now, given staleThreshold seconds.
func (v Value) StaleUsable(now, staleThreshold int64) bool {
	return now-v.Timestamp <= staleThreshold
}

const formatVersion = 1

// Encode serializes v into a self-describing, length-prefixed binary form.
// Every variable-length field (each header name, each header value, the
// body) is preceded by its length; status, timestamp and validity are
// fixed-width. The format is internal and not required to be stable across
// versions.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer

	if err := binary.Write(&buf, binary.BigEndian, uint8(formatVersion)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, int32(v.Status)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, v.Timestamp); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, v.Validity); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(v.Headers))
	for name := range v.Headers {
		names = append(names, name)
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(names))); err != nil {
		return nil, err
	}
	for _, name := range names {
		values := v.Headers[name]
		if err := writeString(&buf, name); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, uint32(len(values))); err != nil {
			return nil, err
		}
		for _, value := range values {
			if err := writeString(&buf, value); err != nil {
				return nil, err
			}
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, uint32(len(v.Body))); err != nil {
		return nil, err
	}
	if _, err := buf.Write(v.Body); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses data produced by Encode. It returns an error on truncated or
// malformed input rather than panicking.
func Decode(data []byte) (Value, error) {
	r := bytes.NewReader(data)
	var v Value

	var version uint8
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return Value{}, fmt.Errorf("cacheval: read version: %w", err)
	}
	if version != formatVersion {
		return Value{}, fmt.Errorf("cacheval: unsupported format version %d", version)
	}

	var status int32
	if err := binary.Read(r, binary.BigEndian, &status); err != nil {
		return Value{}, fmt.Errorf("cacheval: read status: %w", err)
	}
	v.Status = int(status)

	if err := binary.Read(r, binary.BigEndian, &v.Timestamp); err != nil {
		return Value{}, fmt.Errorf("cacheval: read timestamp: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &v.Validity); err != nil {
		return Value{}, fmt.Errorf("cacheval: read validity: %w", err)
	}

	var headerCount uint32
	if err := binary.Read(r, binary.BigEndian, &headerCount); err != nil {
		return Value{}, fmt.Errorf("cacheval: read header count: %w", err)
	}
	headers := make(http.Header, headerCount)
	for i := uint32(0); i < headerCount; i++ {
		name, err := readString(r)
		if err != nil {
			return Value{}, fmt.Errorf("cacheval: read header name: %w", err)
		}
		var valueCount uint32
		if err := binary.Read(r, binary.BigEndian, &valueCount); err != nil {
			return Value{}, fmt.Errorf("cacheval: read header value count: %w", err)
		}
		values := make([]string, 0, valueCount)
		for j := uint32(0); j < valueCount; j++ {
			value, err := readString(r)
			if err != nil {
				return Value{}, fmt.Errorf("cacheval: read header value: %w", err)
			}
			values = append(values, value)
		}
		headers[name] = values
	}
	v.Headers = headers

	var bodyLen uint32
	if err := binary.Read(r, binary.BigEndian, &bodyLen); err != nil {
		return Value{}, fmt.Errorf("cacheval: read body length: %w", err)
	}
	body := make([]byte, bodyLen)
	if _, err := readFull(r, body); err != nil {
		return Value{}, fmt.Errorf("cacheval: read body: %w", err)
	}
	v.Body = body

	return v, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if err := binary.Write(buf, binary.BigEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := buf.WriteString(s)
	return err
}

func readString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := readFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	return io.ReadFull(r, b)
}
