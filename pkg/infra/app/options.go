package app

import cliflag "k8s.io/component-base/cli/flag"

// CliOptions is implemented by the root options of a command.
type CliOptions interface {
	// Flags returns the flag sets grouped by section.
	Flags() cliflag.NamedFlagSets
	// Complete fills derived fields after flags and config are loaded.
	Complete() error
	// Validate validates the options.
	Validate() error
}
