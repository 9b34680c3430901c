package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

const sliceSep = "|"

// StringSlice stores a []string in a single text column. Elements are
// pipe separated so no element may contain a pipe.
type StringSlice []string

// Value implements the driver.Valuer interface.
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "", nil
	}

	for _, v := range s {
		if strings.Contains(v, sliceSep) {
			return "", fmt.Errorf("unsafe string, %q", v)
		}
	}

	return strings.Join(s, sliceSep), nil
}

// Scan implements the sql.Scanner interface.
func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	str, ok := value.(string)
	if !ok {
		b, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan StringSlice, %v", value)
		}

		str = string(b)
	}

	if str == "" {
		*s = StringSlice{}
	} else {
		*s = strings.Split(str, sliceSep)
	}

	return nil
}
