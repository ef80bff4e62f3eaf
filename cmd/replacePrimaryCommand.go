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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yugabyte/couch-continuum/src/utils"
)

var replacePrimaryCmd = &cobra.Command{
	Use:   "replace-primary",
	Short: "Destroy and recreate the primary with the new settings, then copy the replica back",
	Long: `Destroys the source database, recreates it with the desired q/n/placement, copies
the replica back into it, and deletes the replica. The source is marked unavailable
for the duration of the copy-back. Requires a verified replica created by
create-replica. DESTRUCTIVE: once the primary is destroyed there is no abort.`,

	Run: func(cmd *cobra.Command, args []string) {
		engine := newEngine(sourceArg)
		printPlan(engine.Source.DisplayURL(), engine.Target.DisplayURL())
		fmt.Println(warnLine(fmt.Sprintf("this will destroy and recreate %q", engine.Source.Name)))
		if !utils.AskPrompt(fmt.Sprintf("Are you sure you want to replace %q", engine.Source.Name)) {
			utils.PrintAndLog("Aborting.")
			return
		}
		if err := engine.ReplacePrimary(context.Background()); err != nil {
			utils.ErrExit("replace primary %q failed: %s", engine.Source.Name, friendlyError(err))
		}
		fmt.Println(successLine(fmt.Sprintf("primary %q replaced with new settings", engine.Source.Name)))
	},
}

func init() {
	rootCmd.AddCommand(replacePrimaryCmd)
	registerMigrationFlags(replacePrimaryCmd, true)
}
