package options

import (
	"fmt"
	"net"

	"github.com/spf13/pflag"
)

// IOptions is implemented by every option group so that command option structs
// can aggregate, validate and bind them uniformly.
type IOptions interface {
	// Validate parses and validates the user-supplied parameters.
	Validate() []error

	// AddFlags binds the group's flags to the given FlagSet.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// ValidateAddress checks that addr is a host:port string usable for listening
// or dialing.
func ValidateAddress(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return nil
}
