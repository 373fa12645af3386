package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"rivalwatch/internal/monitoring"
)

// ProductFetcher returns one competitor's listing for a keyword. Failures
// are reported as *TransientError or *PermanentError; anything else is
// treated as transient.
type ProductFetcher interface {
	FetchListing(ctx context.Context, keyword, competitor string) (*monitoring.ProductSnapshot, error)
}

// TransientError is a failure worth retrying: 5xx, 429, timeouts and
// network errors.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient fetch failure (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient fetch failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error     { return e.Err }
func (e *TransientError) IsRetryable() bool { return true }

// PermanentError is a failure that repeating the call cannot fix.
type PermanentError struct {
	StatusCode int
	Err        error
}

func (e *PermanentError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("permanent fetch failure (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("permanent fetch failure: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }
func (e *PermanentError) IsFatal() bool { return true }

func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}

// derivedProductID names a product the upstream gave no ID for, from the
// first non-empty of its link or title. Listing position is not used so a
// reordered listing keeps its IDs. Empty when there is nothing to hash.
func derivedProductID(link, title string) string {
	key := strings.TrimSpace(link)
	if key == "" {
		key = strings.TrimSpace(title)
	}
	if key == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(key))
	return "h" + hex.EncodeToString(sum[:8])
}

// classifyStatus maps a non-2xx upstream status to an error kind.
func classifyStatus(status int) error {
	err := fmt.Errorf("upstream returned status: %d", status)
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= http.StatusInternalServerError {
		return &TransientError{StatusCode: status, Err: err}
	}
	return &PermanentError{StatusCode: status, Err: err}
}

// parseNumber reads a listing number such as "27,000원" or "(1,234)".
func parseNumber(text string) (float64, bool) {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// matchesCompetitor reports whether any of the seller fields names the
// competitor, ignoring case and surrounding space.
func matchesCompetitor(competitor string, fields ...string) bool {
	want := strings.ToLower(monitoring.CanonicalName(competitor))
	if want == "" {
		return false
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(monitoring.CanonicalName(f)), want) {
			return true
		}
	}
	return false
}
