package reconcile

import (
	"regexp"
	"strings"
)

// A free-text name followed by an optional "(", "-" and a trailing code that
// is either ITPL<digits> or plain digits, with an optional closing ")".
var driverFieldPattern = regexp.MustCompile(`^(.*?)\s*[-(]?\s*((?i:ITPL)\d+|\d+)\s*\)?\s*$`)

// DriverIdentity is the driver recovered from a trip's StartDriver field.
// An empty ID means the field carried no code.
type DriverIdentity struct {
	Name string
	ID   string
}

// ParseDriverField splits values such as "Ramesh Kumar (ITPL123)" or
// "Ramesh Kumar - 456" into a name and an upper-cased code. A value without
// a trailing code is returned whole as the name.
func ParseDriverField(raw string) DriverIdentity {
	m := driverFieldPattern.FindStringSubmatch(raw)
	if m == nil {
		return DriverIdentity{Name: raw}
	}
	return DriverIdentity{
		Name: strings.TrimSpace(m[1]),
		ID:   strings.ToUpper(m[2]),
	}
}
