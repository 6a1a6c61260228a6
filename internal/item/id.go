package item

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	idTimeLayout = "20060102_150405"
	idStemLen    = len("20060102_150405_000000")
	idSuffixLen  = 8
)

// idRegex accepts current ids (with disambiguator) and legacy ids (without).
var idRegex = regexp.MustCompile(`^\d{8}_\d{6}_\d{6}(_[0-9A-HJKMNP-TV-Z]{8})?$`)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// ID timestamps must fit both the ULID time range and a four-digit year.
var (
	minIDTime = time.Unix(0, 0).UTC()
	maxIDTime = time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC)
)

// NewID returns an id for an item created at ts.
// Format: YYYYMMDD_HHMMSS_uuuuuu_XXXXXXXX (UTC, microseconds, ULID tail).
// Instants before 1970 or after year 9999 have no id.
func NewID(ts time.Time) (string, error) {
	ts = ts.UTC()
	if ts.Before(minIDTime) || ts.After(maxIDTime) {
		return "", fmt.Errorf("timestamp %s is outside %d..%d", ts.Format(time.RFC3339), minIDTime.Year(), maxIDTime.Year())
	}

	entropyMu.Lock()
	u, err := ulid.New(ulid.Timestamp(ts), entropy)
	entropyMu.Unlock()
	if err != nil {
		return "", fmt.Errorf("id for %s: %w", ts.Format(time.RFC3339), err)
	}

	s := u.String()
	return fmt.Sprintf("%s_%06d_%s", ts.Format(idTimeLayout), ts.Nanosecond()/1000, s[len(s)-idSuffixLen:]), nil
}

// ValidID reports whether id has the shape of an item id. Anything else is
// rejected before it can be joined into a filesystem path.
func ValidID(id string) bool {
	return idRegex.MatchString(id)
}

// ParseIDTime recovers the creation instant encoded in id. Legacy ids carry
// local wall-clock time; current ids are UTC.
func ParseIDTime(id string) (time.Time, bool) {
	if !ValidID(id) {
		return time.Time{}, false
	}
	loc := time.UTC
	if len(id) == idStemLen {
		loc = time.Local
	}
	base, err := time.ParseInLocation(idTimeLayout, id[:len(idTimeLayout)], loc)
	if err != nil {
		return time.Time{}, false
	}
	micros, err := strconv.Atoi(id[len(idTimeLayout)+1 : idStemLen])
	if err != nil {
		return time.Time{}, false
	}
	return base.Add(time.Duration(micros) * time.Microsecond), true
}
