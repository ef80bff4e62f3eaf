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
	"os"
	"path/filepath"
	"strings"

	"github.com/nightlyone/lockfile"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yugabyte/couch-continuum/src/utils"
)

var (
	cfgFile  string
	stateDir string
	verbose  bool
	lockFile lockfile.Lockfile
)

var rootCmd = &cobra.Command{
	Use:   "couch-continuum",
	Short: "Migrate CouchDB databases to new q/n/placement settings without data loss",
	Long: `couch-continuum migrates CouchDB databases whose sharding settings (q, n, placement)
are immutable after creation. It copies the database into a temporary replica created
with the desired settings, verifies the copy, then destroys and recreates the primary
and copies the data back. Bulk mode migrates every database on a cluster with a
crash-resumable checkpoint.`,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Use == "version" {
			return
		}
		if err := bindCobraFlagsToViper(cmd, viper.GetViper()); err != nil {
			utils.ErrExit("invalid configuration: %s", err)
		}
		initStateDir()
		lockStateDir(cmd)
		InitLogging(stateDir, cmd.Name())
	},

	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			cmd.Help()
			os.Exit(0)
		}
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if cmd.Use != "version" {
			unlockStateDir()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.couch-continuum.yaml)")

	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "",
		"directory for logs, the bulk-migration checkpoint, and the process lock (default is $HOME/.couch-continuum)")

	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false,
		"enable verbose logging")

	rootCmd.PersistentFlags().BoolVarP(&utils.DoNotPrompt, "yes", "y", false,
		"assume answer as yes for all questions (default false)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".couch-continuum")
	}

	viper.SetEnvPrefix("couch_continuum")
	// Flag names use dashes; environment variables use underscores
	// (--state-dir -> COUCH_CONTINUUM_STATE_DIR).
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func initStateDir() {
	if stateDir == "" {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		stateDir = filepath.Join(home, ".couch-continuum")
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		utils.ErrExit("create state directory %q: %s", stateDir, err)
	}
}

// lockStateDir prevents two migration processes from interleaving
// checkpoints in the same state directory.
func lockStateDir(cmd *cobra.Command) {
	lockFileName := filepath.Join(stateDir, ".lockfile.lck")
	lockFilePath, err := filepath.Abs(lockFileName)
	if err != nil {
		utils.ErrExit("invalid lockfile path %q: %s", lockFileName, err)
	}
	lockFile, err = lockfile.New(lockFilePath)
	if err != nil {
		utils.ErrExit("create lockfile %q: %s", lockFilePath, err)
	}
	if err := lockFile.TryLock(); err != nil {
		utils.ErrExit("another couch-continuum process is already running against %q: %s", stateDir, err)
	}
}

func unlockStateDir() {
	if err := lockFile.Unlock(); err != nil {
		log.Warnf("unlock state directory: %v", err)
	}
}

func checkpointFilePath() string {
	return filepath.Join(stateDir, "checkpoint.json")
}
