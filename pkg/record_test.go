package buildstamp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	tests := []struct {
		input    string
		expected Record
	}{
		{"1.2.3.4", Record{1, 2, 3, 4}},
		{"1.2.3.4\n", Record{1, 2, 3, 4}},
		{"1.2.3.4\r\n", Record{1, 2, 3, 4}},
		{"0.0.0.0", Record{}},
		{"10.20.30", Record{10, 20, 30, 0}},
		{"18446744073709551615.0.0.1", Record{Major: 18446744073709551615, Build: 1}},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			r, err := ParseRecord(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, r)
		})
	}
}

func TestParseRecordMalformed(t *testing.T) {
	inputs := []string{
		"",
		"1.2",
		"1.2.3.4.5",
		"1.x.3.4",
		"1.2.3.-4",
		"1.2.3.+4",
		"1..3.4",
		" 1.2.3.4",
		"1.2.3.99999999999999999999",
		"01.2.3.4",
		"1.2.3.00",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := ParseRecord(in)
			var malformed *MalformedVersionError
			require.ErrorAs(t, err, &malformed)
			assert.Contains(t, err.Error(), "malformed version")
		})
	}
}

func TestRecordText(t *testing.T) {
	r := Record{Major: 1, Minor: 2, Patch: 3, Build: 4}
	assert.Equal(t, "1.2.3.4", r.Text())
	assert.Equal(t, "1.2.3.4", r.String())
	assert.Equal(t, "1.2.3", r.Release())

	r.Build++
	assert.Equal(t, "1.2.3.5", r.Text())
}

// TestLoadSaveRoundTrip checks that saving a loaded record reproduces the
// file, apart from the trailing newline Save always writes.
func TestLoadSaveRoundTrip(t *testing.T) {
	tests := []struct {
		input, saved string
	}{
		{"0.0.0.0\n", "0.0.0.0\n"},
		{"1.2.3.4\n", "1.2.3.4\n"},
		{"7.0.12.345\n", "7.0.12.345\n"},
		{"1.2.3.4", "1.2.3.4\n"},
		{"1.2.3.4\r\n", "1.2.3.4\n"},
	}
	for _, tc := range tests {
		path := filepath.Join(t.TempDir(), "VERSION")
		require.NoError(t, os.WriteFile(path, []byte(tc.input), 0644))

		store := NewStore(path)
		r, err := store.Load(context.Background(), false)
		require.NoError(t, err)
		require.NoError(t, store.Save(context.Background(), r))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, tc.saved, string(data), "input %q", tc.input)
	}
}

func TestLoadRejectsLeadingZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "VERSION")
	require.NoError(t, os.WriteFile(path, []byte("01.2.3.4\n"), 0644))

	_, err := NewStore(path).Load(context.Background(), false)
	var malformed *MalformedVersionError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Reason, "leading zero")
	assert.Equal(t, "01.2.3.4\n", readFile(t, path))
}

func TestMalformedVersionErrorIsTyped(t *testing.T) {
	_, err := ParseRecord("banana")
	var malformed *MalformedVersionError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "banana", malformed.Text)
}
