package parse

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"assetdesk-backend/internal/errs"
)

func TestAssetCode(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  string
		expectErr bool
	}{
		{name: "Already normalized", raw: "LAP-0012", expected: "LAP-0012"},
		{name: "Lower case", raw: "lap-0012", expected: "LAP-0012"},
		{name: "Inner spaces", raw: "  mon  22 ", expected: "MON-22"},
		{name: "Dots and underscores", raw: "srv_01.a", expected: "SRV_01.A"},
		{name: "Too short", raw: "A", expectErr: true},
		{name: "Empty", raw: "   ", expectErr: true},
		{name: "Bad characters", raw: "LAP#1", expectErr: true},
		{name: "Leading dash", raw: "-LAP1", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			code, err := AssetCode(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, code)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	s := Search("  Printer   JAM ")
	assert.False(t, s.Empty())
	assert.Equal(t, "printer jam", s.Lower())
	assert.Equal(t, "%printer jam%", s.LikePattern())
	_, ok := s.Number()
	assert.False(t, ok)

	n, ok := Search("42").Number()
	assert.True(t, ok)
	assert.Equal(t, uint64(42), n)

	_, ok = Search("-42").Number()
	assert.False(t, ok)

	assert.True(t, Search(" \t ").Empty())

	assert.Equal(t, `%50\% a\_b c\\d%`, Search(`50% A_B c\d`).LikePattern())
	assert.Equal(t, `LOWER(code) LIKE ? ESCAPE '\' OR LOWER(name) LIKE ? ESCAPE '\'`, LikeAny("code", "name"))
}

func TestDate(t *testing.T) {
	d, err := Date("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, datatypes.Date(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)), d)

	_, err = Date("2023-02-29")
	assert.Error(t, err)
	_, err = Date("29/02/2024")
	assert.Error(t, err)

	blank := " "
	opt, err := OptionalDate(&blank)
	assert.NoError(t, err)
	assert.Nil(t, opt)

	opt, err = OptionalDate(nil)
	assert.NoError(t, err)
	assert.Nil(t, opt)

	raw := "2025-01-10"
	opt, err = OptionalDate(&raw)
	require.NoError(t, err)
	require.NotNil(t, DateTime(opt))
	assert.Equal(t, 10, DateTime(opt).Day())
	assert.Nil(t, DateTime(nil))
}

func TestParseErrorsAreValidation(t *testing.T) {
	_, err := AssetCode("#")
	assert.True(t, errors.Is(err, errs.ErrValidation))
	_, err = Date("tomorrow")
	assert.True(t, errors.Is(err, errs.ErrValidation))
}
