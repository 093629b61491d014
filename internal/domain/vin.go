package domain

// VIN alphabet excludes I, O and Q, which are never stamped to avoid
// confusion with 1 and 0.
func vinChar(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'A' && c <= 'H':
		return true
	case c >= 'J' && c <= 'N':
		return true
	case c == 'P' || c == 'R':
		return true
	case c >= 'S' && c <= 'Z':
		return true
	}
	return false
}

// ValidVIN reports whether s is a well-formed 17-character VIN.
func ValidVIN(s string) bool {
	if len(s) != 17 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !vinChar(s[i]) {
			return false
		}
	}
	return true
}

// Bounds accepted for parsed listing attributes.
const (
	MinPrice   = 1_000
	MaxPrice   = 500_000
	MinMileage = 0
	MaxMileage = 999_998
)

// ValidPrice reports whether p is a plausible used-car listing price.
func ValidPrice(p int) bool {
	return p >= MinPrice && p <= MaxPrice
}

// ValidMileage reports whether m is a plausible odometer reading.
func ValidMileage(m int) bool {
	return m >= MinMileage && m <= MaxMileage
}
