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
	"strings"

	"github.com/spf13/cobra"

	"github.com/yugabyte/couch-continuum/src/checkpoint"
	"github.com/yugabyte/couch-continuum/src/continuum"
	"github.com/yugabyte/couch-continuum/src/utils"
)

var migrateAllCmd = &cobra.Command{
	Use:   "migrate-all",
	Short: "Migrate every database on the cluster, resumable via a checkpoint",
	Long: `Migrates every non-system database on the cluster, one at a time, in lexicographic
order. After each database completes, a checkpoint records its name in the state
directory; an interrupted run resumes from the database after the checkpoint.`,

	Run: func(cmd *cobra.Command, args []string) {
		client := newCouchClient()
		store := checkpoint.NewFileStore(checkpointFilePath())
		runner := continuum.NewBulkRunner(client, clusterURL, store, func(dbName string) (*continuum.Continuum, error) {
			return continuum.New(engineConfig(dbName), client, newProgressReporter())
		})

		ctx := context.Background()
		candidates, err := runner.Candidates(ctx)
		if err != nil {
			utils.ErrExit("list databases: %s", friendlyError(err))
		}
		remaining, err := checkpoint.Remaining(store, candidates)
		if err != nil {
			utils.ErrExit("read checkpoint: %s", err)
		}

		fmt.Println(titleStyle.Render("Bulk migration plan"))
		fmt.Printf("  cluster:   %s\n", redactCredentials(clusterURL))
		fmt.Printf("  databases: %d (%d remaining)\n", len(candidates), len(remaining))
		fmt.Println(warnLine("every remaining database will be destroyed and recreated in turn"))
		if !utils.AskPrompt(fmt.Sprintf("Migrate %d databases on %s", len(remaining), redactCredentials(clusterURL))) {
			utils.PrintAndLog("Aborting.")
			return
		}

		migrated, skipped, err := runner.Run(ctx)
		if err != nil {
			utils.ErrExit("bulk migration failed (checkpoint retained, re-run to resume): %s", friendlyError(err))
		}
		if len(skipped) > 0 {
			fmt.Println(warnLine(fmt.Sprintf("skipped unavailable databases needing manual recovery: %s",
				strings.Join(skipped, ", "))))
		}
		fmt.Println(successLine(fmt.Sprintf("migrated %d databases", len(migrated))))
	},
}

func init() {
	rootCmd.AddCommand(migrateAllCmd)
	registerMigrationFlags(migrateAllCmd, false)
}
