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

package cacheval

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := Value{
		Status: 200,
		Headers: http.Header{
			"Content-Type": {"application/json"},
			"Set-Cookie":   {"a=1", "b=2"},
		},
		Body:      []byte(`{"ok":true}`),
		Timestamp: 1_700_000_000,
		Validity:  600,
	}

	data, err := Encode(v)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, v.Status, got.Status)
	assert.Equal(t, v.Body, got.Body)
	assert.Equal(t, v.Timestamp, got.Timestamp)
	assert.Equal(t, v.Validity, got.Validity)
	assert.Equal(t, v.Headers, got.Headers)
}

func TestEncodeDecodeEmptyBodyAndHeaders(t *testing.T) {
	v := Value{Status: 204, Headers: http.Header{}, Body: nil, Timestamp: 1, Validity: 0}

	data, err := Encode(v)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, 204, got.Status)
	assert.Empty(t, got.Body)
	assert.Empty(t, got.Headers)
}

func TestDecodeRejectsTruncatedData(t *testing.T) {
	v := Value{Status: 200, Headers: http.Header{"X": {"y"}}, Body: []byte("abc"), Timestamp: 1, Validity: 2}
	data, err := Encode(v)
	require.NoError(t, err)

	_, err = Decode(data[:len(data)-2])
	assert.Error(t, err)
}

func TestFreshAndStaleUsable(t *testing.T) {
	v := Value{Timestamp: 1000, Validity: 600}

	assert.True(t, v.Fresh(1000))
	assert.True(t, v.Fresh(1600))
	assert.False(t, v.Fresh(1601))

	assert.True(t, v.StaleUsable(1000+172800, 172800))
	assert.False(t, v.StaleUsable(1000+172801, 172800))
}
