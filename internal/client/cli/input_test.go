package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPassword(t *testing.T) {
	old := readPassword
	t.Cleanup(func() { readPassword = old })

	readPassword = func(int) ([]byte, error) { return []byte("s3cret"), nil }
	var out bytes.Buffer
	pw, err := GetPassword(&out, "Device secret: ")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(pw))
	assert.Equal(t, "Device secret: \n", out.String())

	readPassword = func(int) ([]byte, error) { return nil, errors.New("boom") }
	_, err = GetPassword(&out, "Device secret: ")
	require.Error(t, err)
}

func TestCutFields(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		n        int
		wantHead []string
		wantRest string
	}{
		{name: "json remainder", line: `bookings  {"a": 1, "b": 2}`, n: 1, wantHead: []string{"bookings"}, wantRest: `{"a": 1, "b": 2}`},
		{name: "two tokens", line: "bookings b-1", n: 2, wantHead: []string{"bookings", "b-1"}, wantRest: ""},
		{name: "short", line: "  bookings ", n: 2, wantHead: []string{"bookings"}, wantRest: ""},
		{name: "tabs", line: "a\tb\tc d", n: 2, wantHead: []string{"a", "b"}, wantRest: "c d"},
		{name: "empty", line: "   ", n: 1, wantHead: []string{}, wantRest: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			head, rest := cutFields(tt.line, tt.n)
			assert.Equal(t, tt.wantHead, head)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
}

func TestParseFields(t *testing.T) {
	data, err := parseFields(`{"name":"Ann","pax":2}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ann", "pax": 2.0}, data)

	for _, bad := range []string{"", "  ", "[1,2]", "null", "{broken"} {
		_, err := parseFields(bad)
		assert.Error(t, err, bad)
	}
}
