package cursor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	assert.Equal(t, Cursor("1"), Encode(1))
	assert.Equal(t, Cursor("42"), Encode(42))
	assert.Equal(t, Cursor("4"), Next(3))
}

func TestPage(t *testing.T) {
	tests := []struct {
		name    string
		raw     Cursor
		want    int
		wantErr bool
	}{
		{name: "first page", raw: "1", want: 1},
		{name: "later page", raw: "17", want: 17},
		{name: "surrounding space", raw: " 3 ", want: 3},
		{name: "zero", raw: "0", wantErr: true},
		{name: "negative", raw: "-2", wantErr: true},
		{name: "not a number", raw: "abc", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "fraction", raw: "1.5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.raw.Page()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidCursor)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPageOf(t *testing.T) {
	page, err := PageOf(nil)
	require.NoError(t, err)
	assert.Equal(t, FirstPage, page)

	c := Encode(5)
	page, err = PageOf(&c)
	require.NoError(t, err)
	assert.Equal(t, 5, page)

	bad := Cursor("x")
	_, err = PageOf(&bad)
	assert.ErrorIs(t, err, ErrInvalidCursor)
}
