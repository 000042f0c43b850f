package book

import "strconv"

// ParseYear extracts a publication year from the first four characters of a free-text date.
// Anything that does not start with four digits yields nil.
func ParseYear(date string) *int {
	if len(date) < 4 {
		return nil
	}
	prefix := date[:4]
	for _, r := range prefix {
		if r < '0' || r > '9' {
			return nil
		}
	}
	year, err := strconv.Atoi(prefix)
	if err != nil {
		return nil
	}
	return &year
}
