package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"autospa/internal/rut"
)

// MaxQty caps the quantity of a single cart line.
const MaxQty = 50

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reQ     = regexp.MustCompile(`^[\p{L}0-9 _'.\-]{1,50}$`)
	reID    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reSKU   = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{1,39}$`)
	// Chilean numbers: mobiles start with 9, landlines with an area digit.
	rePhone = regexp.MustCompile(`^(?:\+?56)?([2-9][0-9]{8})$`)
	phoneWS = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

func Email(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 0 || len(s) > 254 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Q validates a search query: trims, enforces allowed characters and max length
func Q(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if utf8.RuneCountInString(s) > 50 {
		s = string([]rune(s)[:50])
	}
	return s, reQ.MatchString(s)
}

// Qty reports whether n is an acceptable line quantity.
func Qty(n int) bool { return n >= 1 && n <= MaxQty }

// ID validates a simple resource identifier (product/category ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// SKU uppercases s and checks it against the catalog code format.
func SKU(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	return s, reSKU.MatchString(s)
}

// Name validates a displayable name with a reasonable max length.
func Name(s string) (string, bool) {
	return Text(s, 80)
}

// Text trims s and requires 1..max characters.
func Text(s string, max int) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > max {
		return "", false
	}
	return s, true
}

// OptionalText trims s and allows it to be empty.
func OptionalText(s string, max int) (string, bool) {
	s = strings.TrimSpace(s)
	return s, utf8.RuneCountInString(s) <= max
}

// Phone accepts Chilean numbers with or without the +56 prefix and returns
// them as +56XXXXXXXXX.
func Phone(s string) (string, bool) {
	m := rePhone.FindStringSubmatch(phoneWS.Replace(strings.TrimSpace(s)))
	if m == nil {
		return "", false
	}
	return "+56" + m[1], true
}

// RUT validates a Chilean tax id and returns its display form.
func RUT(s string) (string, error) {
	r, err := rut.Parse(s)
	if err != nil {
		return "", err
	}
	return r.String(), nil
}

// Price reports whether a peso amount is acceptable for a catalog price.
func Price(n int64) bool { return n >= 0 && n <= 100_000_000 }

// Password enforces the account password strength rule.
func Password(s string) bool {
	l := len(s)
	if l < 8 || l > 64 {
		return false
	}
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z':
			hasLower = true
		case 'A' <= r && r <= 'Z':
			hasUpper = true
		case '0' <= r && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSymbol
}
