package amendment

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var idRegexp = regexp.MustCompile(`^(\d+)-([0-9A-Fa-f]{40})$`)

var (
	// ErrIDRequired ...
	ErrIDRequired = errors.New("Amendment ID is required")
	// ErrBadID ...
	ErrBadID = errors.New("Amendment ID format is incorrect, must be 'number-hash'")
)

// ID formats an amendment identifier.
func ID(number int, hash string) string {
	return fmt.Sprintf("%d-%s", number, hash)
}

// ParseID parses a "number-hash" identifier. The hash is returned upper-case.
func ParseID(id string) (int, string, error) {
	if id == "" {
		return 0, "", ErrIDRequired
	}

	m := idRegexp.FindStringSubmatch(id)
	if m == nil {
		return 0, "", ErrBadID
	}

	number, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", ErrBadID
	}

	return number, strings.ToUpper(m[2]), nil
}
