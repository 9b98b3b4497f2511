// Package parse normalizes user-entered values: asset codes, search terms and
// calendar dates.
package parse

import (
	"regexp"
	"strings"
	"time"

	"gorm.io/datatypes"

	"assetdesk-backend/internal/errs"
)

var (
	codeRe  = regexp.MustCompile(`^[A-Z0-9][A-Z0-9._-]{1,63}$`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// AssetCode upper-cases an asset code and turns inner whitespace into dashes,
// so "lap 0012" and "LAP-0012" name the same asset.
func AssetCode(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = spaceRe.ReplaceAllString(s, "-")
	if !codeRe.MatchString(s) {
		return "", errs.Validation("invalid asset code %q", raw)
	}
	return s, nil
}

// Date parses a YYYY-MM-DD calendar date.
func Date(raw string) (datatypes.Date, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return datatypes.Date{}, errs.Validation("invalid date %q, want YYYY-MM-DD", raw)
	}
	return datatypes.Date(t), nil
}

// OptionalDate parses raw when it is non-nil and non-blank.
func OptionalDate(raw *string) (*datatypes.Date, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	d, err := Date(*raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DateTime converts an optional calendar date to a time for classification.
func DateTime(d *datatypes.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := time.Time(*d)
	return &t
}
