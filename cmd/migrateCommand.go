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

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run both phases: create-replica, confirm, then replace-primary",

	Run: func(cmd *cobra.Command, args []string) {
		engine := newEngine(sourceArg)
		printPlan(engine.Source.DisplayURL(), engine.Target.DisplayURL())

		ctx := context.Background()
		if err := engine.CreateReplica(ctx); err != nil {
			utils.ErrExit("create replica of %q failed: %s", engine.Source.Name, friendlyError(err))
		}
		fmt.Println(successLine(fmt.Sprintf("replica %q created and verified", engine.Target.Name)))

		fmt.Println(warnLine(fmt.Sprintf("next step destroys and recreates %q", engine.Source.Name)))
		if !utils.AskPrompt(fmt.Sprintf("Proceed with replacing %q", engine.Source.Name)) {
			utils.PrintAndLog("Replica %q left in place. Re-run or use replace-primary to finish.", engine.Target.Name)
			return
		}
		if err := engine.ReplacePrimary(ctx); err != nil {
			utils.ErrExit("replace primary %q failed: %s", engine.Source.Name, friendlyError(err))
		}
		fmt.Println(successLine(fmt.Sprintf("migration of %q complete", engine.Source.Name)))
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	registerMigrationFlags(migrateCmd, true)
}
