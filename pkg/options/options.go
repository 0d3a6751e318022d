package options

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/pflag"
)

// IOptions is implemented by every option group in this package.
type IOptions interface {
	// Validate validates all the required options.
	Validate() []error

	// AddFlags adds flags to the specified FlagSet object.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// ValidateAddress checks that addr is a host:port pair with a usable port.
func ValidateAddress(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%q is not in a valid format (host:port): %w", addr, err)
	}

	if host != "" && net.ParseIP(host) == nil {
		if _, err := net.LookupHost(host); err != nil {
			return fmt.Errorf("%q is not a valid IP address or host name", host)
		}
	}

	return validatePort(port)
}

func validatePort(port string) error {
	p, err := strconv.Atoi(port)
	if err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("%q is not a valid port number", port)
	}
	return nil
}

func validatePortNumber(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("--%s: %d is not a valid port number", name, port)
	}
	return nil
}
