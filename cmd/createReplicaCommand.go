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

var createReplicaCmd = &cobra.Command{
	Use:   "create-replica",
	Short: "Copy the source database into a verified replica with the new settings",
	Long: `Creates the replica database with the desired q/n/placement, replicates the
source into it, and verifies the copy. Non-destructive and safe to re-run.`,

	Run: func(cmd *cobra.Command, args []string) {
		engine := newEngine(sourceArg)
		printPlan(engine.Source.DisplayURL(), engine.Target.DisplayURL())
		if err := engine.CreateReplica(context.Background()); err != nil {
			utils.ErrExit("create replica of %q failed: %s", engine.Source.Name, friendlyError(err))
		}
		fmt.Println(successLine(fmt.Sprintf("replica %q created and verified", engine.Target.Name)))
	},
}

func init() {
	rootCmd.AddCommand(createReplicaCmd)
	registerMigrationFlags(createReplicaCmd, true)
}
