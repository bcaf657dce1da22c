// Package phone formats Brazilian registry phone numbers for display and dialing.
package phone

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/zatekoja/obstetric-locator/pkg/textutil"
)

// NotInformed is shown when the registry phone cannot be formatted.
const NotInformed = "Telefone não informado"

// Formatted holds both renderings of a phone number.
type Formatted struct {
	Display string // "+55 (11) 98765-4321"
	E164    string // "+5511987654321"; empty when invalid
}

// Valid reports whether an E.164 form could be derived.
func (f Formatted) Valid() bool {
	return f.E164 != ""
}

// Format parses raw registry digits (area code plus subscriber number,
// optionally with country code or trunk prefix) into display and E.164 forms.
// Numbers libphonenumber rejects are reported as NotInformed.
func Format(raw string) Formatted {
	national, ok := nationalNumber(raw)
	if !ok {
		return Formatted{Display: NotInformed}
	}
	num, err := phonenumbers.Parse("+55"+national, "BR")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return Formatted{Display: NotInformed}
	}

	significant := phonenumbers.GetNationalSignificantNumber(num)
	ddd, subscriber := significant[:2], significant[2:]
	split := len(subscriber) - 4
	return Formatted{
		Display: fmt.Sprintf("+55 (%s) %s-%s", ddd, subscriber[:split], subscriber[split:]),
		E164:    phonenumbers.Format(num, phonenumbers.E164),
	}
}

// nationalNumber reduces raw input to the 10 or 11 national digits.
func nationalNumber(raw string) (string, bool) {
	digits := textutil.Digits(raw)
	if (len(digits) == 12 || len(digits) == 13) && strings.HasPrefix(digits, "55") {
		digits = digits[2:]
	}
	// trunk prefix
	digits = strings.TrimPrefix(digits, "0")
	if len(digits) != 10 && len(digits) != 11 {
		return "", false
	}
	return digits, true
}
