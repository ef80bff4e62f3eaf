/*
Copyright (c) YugabyteDB, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

/*
bindCobraFlagsToViper fills in flags the user did not set on the command
line from viper, i.e. from the config file or COUCH_CONTINUUM_* environment
variables. For each unset flag it checks, in order:

 1. A command-scoped key: "<command-path>.<flag-name>" (e.g. "migrate-all.url").
 2. The global key: "<flag-name>" (e.g. "url").

If a value is found, the flag is set with it. Command-line input always
takes precedence since flags the user changed are skipped.
*/
func bindCobraFlagsToViper(cmd *cobra.Command, v *viper.Viper) error {
	subCmdPath := strings.TrimPrefix(cmd.CommandPath(), cmd.Root().Name())
	configKeyPrefix := strings.ReplaceAll(strings.TrimSpace(subCmdPath), " ", "-")

	var bindErr error
	bind := func(flags *pflag.FlagSet) {
		flags.VisitAll(func(f *pflag.Flag) {
			if bindErr != nil || f.Changed {
				return // Skip already-set flags or if an error occurred.
			}
			var key string
			switch {
			case configKeyPrefix != "" && v.IsSet(configKeyPrefix+"."+f.Name):
				key = configKeyPrefix + "." + f.Name
			case v.IsSet(f.Name):
				key = f.Name
			default:
				return // Leave the flag at its default.
			}
			if err := flags.Set(f.Name, v.GetString(key)); err != nil {
				bindErr = fmt.Errorf("config key %q: %w", key, err)
			}
		})
	}

	// Local flags of the command, then persistent flags inherited from the
	// root (--state-dir, --verbose, ...).
	bind(cmd.Flags())
	bind(cmd.InheritedFlags())
	return bindErr
}
