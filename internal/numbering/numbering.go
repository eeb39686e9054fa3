// Package numbering issues sequential human readable document numbers per company and
// document prefix.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Width is the minimum number of digits in the numeric suffix.
const Width = 4

// ErrInvalidPrefix indicates an empty or malformed prefix.
var ErrInvalidPrefix = errors.New("numbering: invalid prefix")

// ErrInvalidNumber indicates a string that is not PREFIX-NNNN.
var ErrInvalidNumber = errors.New("numbering: invalid number")

// Sequencer atomically increments and returns the counter of (company, prefix).
// The first call for a pair returns 1.
type Sequencer interface {
	NextSequence(ctx context.Context, companyID int64, prefix string) (int64, error)
}

// Format renders PREFIX-NNNN.
func Format(prefix string, n int64) string {
	return fmt.Sprintf("%s-%0*d", prefix, Width, n)
}

// Parse splits a formatted number into prefix and value.
func Parse(number string) (string, int64, error) {
	idx := strings.LastIndex(number, "-")
	if idx <= 0 || idx == len(number)-1 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidNumber, number)
	}
	n, err := strconv.ParseInt(number[idx+1:], 10, 64)
	if err != nil || n <= 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidNumber, number)
	}
	return number[:idx], n, nil
}

// Next returns the next number for the prefix.
func Next(ctx context.Context, seq Sequencer, companyID int64, prefix string) (string, error) {
	if err := validatePrefix(prefix); err != nil {
		return "", err
	}
	n, err := seq.NextSequence(ctx, companyID, prefix)
	if err != nil {
		return "", fmt.Errorf("numbering: next %s: %w", prefix, err)
	}
	return Format(prefix, n), nil
}

func validatePrefix(prefix string) error {
	if prefix == "" {
		return ErrInvalidPrefix
	}
	for _, r := range prefix {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
		}
	}
	return nil
}
