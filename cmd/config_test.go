package cmd

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetMigrationFlags restores the package-level flag variables a test may
// have rebound.
func resetMigrationFlags() {
	clusterURL = "http://localhost:5984"
	sourceArg = ""
	targetArg = ""
	shardCount = 0
	replicaCount = 0
	placement = ""
	pollInterval = time.Second
	filterTombstones = false
	replicateSecurity = false
	allowReplications = false
	continuous = false
	disablePB = false
}

func newBoundCommand(t *testing.T) *cobra.Command {
	t.Cleanup(resetMigrationFlags)
	root := &cobra.Command{Use: "couch-continuum"}
	cmd := &cobra.Command{Use: "migrate"}
	root.AddCommand(cmd)
	registerMigrationFlags(cmd, true)
	return cmd
}

func TestConfigValuesReachEngineConfig(t *testing.T) {
	cmd := newBoundCommand(t)
	v := viper.New()
	v.Set("url", "http://config-host:5984")
	v.Set("shards", "8")
	v.Set("filter-tombstones", "true")

	require.NoError(t, bindCobraFlagsToViper(cmd, v))

	config := engineConfig("alpha")
	assert.Equal(t, "http://config-host:5984", config.ClusterURL)
	assert.Equal(t, 8, config.Q)
	assert.True(t, config.FilterTombstones)
}

func TestCommandLineTakesPrecedenceOverConfig(t *testing.T) {
	cmd := newBoundCommand(t)
	require.NoError(t, cmd.Flags().Set("url", "http://cli-host:5984"))

	v := viper.New()
	v.Set("url", "http://config-host:5984")
	require.NoError(t, bindCobraFlagsToViper(cmd, v))

	assert.Equal(t, "http://cli-host:5984", engineConfig("alpha").ClusterURL)
}

func TestCommandScopedKeyBeatsGlobalKey(t *testing.T) {
	cmd := newBoundCommand(t)
	v := viper.New()
	v.Set("url", "http://global-host:5984")
	v.Set("migrate.url", "http://scoped-host:5984")

	require.NoError(t, bindCobraFlagsToViper(cmd, v))
	assert.Equal(t, "http://scoped-host:5984", engineConfig("alpha").ClusterURL)
}

func TestUnsetConfigLeavesFlagDefaults(t *testing.T) {
	cmd := newBoundCommand(t)
	require.NoError(t, bindCobraFlagsToViper(cmd, viper.New()))

	config := engineConfig("alpha")
	assert.Equal(t, "http://localhost:5984", config.ClusterURL)
	assert.Equal(t, 0, config.Q)
}

func TestInvalidConfigValueReportsKey(t *testing.T) {
	cmd := newBoundCommand(t)
	v := viper.New()
	v.Set("shards", "not-a-number")

	err := bindCobraFlagsToViper(cmd, v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shards")
}
