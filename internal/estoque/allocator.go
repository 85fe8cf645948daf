package estoque

import (
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// GroupCodeStep is the spacing between group codes.
const GroupCodeStep = 10000

// NextProductCode returns the next globally sequential product code.
// Codes start at 1 and follow the current maximum.
func NextProductCode(currentMax int64) int64 {
	if currentMax < 0 {
		currentMax = 0
	}
	return currentMax + 1
}

// NextGroupCode rounds the current maximum up to the next multiple of
// GroupCodeStep and adds one step, so codes are always positive multiples
// of 10000 and strictly increasing. Imported data with codes off the grid
// is absorbed by the rounding.
func NextGroupCode(currentMax int64) int64 {
	if currentMax <= 0 {
		return GroupCodeStep
	}
	return ((currentMax + GroupCodeStep - 1) / GroupCodeStep) * GroupCodeStep + GroupCodeStep
}

// retryOnCodeConflict runs fn and, when it loses a code allocation race,
// runs it once more so the recomputed code can win. attempt is 0 on the
// first run and 1 on the retry.
func retryOnCodeConflict(fn func(attempt int) error) error {
	err := fn(0)
	if errors.Is(err, ErrCodeConflict) {
		return fn(1)
	}
	return err
}

// NormalizeName trims, NFC-normalizes and uppercases a group name or
// product identity field. Group names like "Iluminação" carry combining
// marks depending on the client, so compose before comparing.
func NormalizeName(s string) string {
	return strings.ToUpper(norm.NFC.String(strings.TrimSpace(s)))
}
