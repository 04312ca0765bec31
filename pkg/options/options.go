// Package options defines the option-group contract shared by every
// configurable component and the flag naming helper.
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// Join concatenates prefixes with "." and appends a trailing "." when the
// result is non-empty, so Join("embedding")+"llm.model" == "embedding.llm.model".
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined != "" && !strings.HasSuffix(joined, ".") {
		joined += "."
	}
	return joined
}

// IOptions is implemented by every option group.
type IOptions interface {
	// Validate reports every invalid field; it never mutates the options.
	Validate() []error

	// AddFlags binds the options to fs, with flag names under prefixes.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}
