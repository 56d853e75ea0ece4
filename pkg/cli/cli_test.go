package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().String("listen-addr", "localhost:8080", "")
	cmd.Flags().String("access-code", "", "")
	return cmd
}

func TestConfig_Precedence(t *testing.T) {
	t.Setenv("TESTAPP_LISTEN_ADDR", "0.0.0.0:9000")
	t.Setenv("LIST_ACCESS_CODE", "from-env")

	cmd := newCommand()
	c := NewConfig("TESTAPP")
	c.MustBindEnv("access-code", "LIST_ACCESS_CODE")
	require.NoError(t, c.Load(cmd, ""))
	assert.Equal(t, "0.0.0.0:9000", c.GetString("listen-addr"))
	assert.Equal(t, "from-env", c.GetString("access-code"))

	require.NoError(t, cmd.Flags().Set("listen-addr", "127.0.0.1:1"))
	assert.Equal(t, "127.0.0.1:1", c.GetString("listen-addr"))
}

func TestConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("access-code: from-file\n"), 0o600))

	c := NewConfig("TESTAPP")
	require.NoError(t, c.Load(newCommand(), path))
	assert.Equal(t, "from-file", c.GetString("access-code"))
	assert.Equal(t, "localhost:8080", c.GetString("listen-addr"))

	require.Error(t, NewConfig("TESTAPP").Load(newCommand(), filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestConfig_EmptyEnvIsSet(t *testing.T) {
	c := NewConfig("TESTAPP")
	c.MustBindEnv("access-code", "TESTAPP_UNUSED_CODE")
	require.NoError(t, c.Load(newCommand(), ""))
	assert.False(t, c.IsSet("access-code"))

	t.Setenv("TESTAPP_UNUSED_CODE", "  ")
	assert.True(t, c.IsSet("access-code"))
	assert.Equal(t, "  ", c.GetString("access-code"))
}

func TestSetupLogging(t *testing.T) {
	require.NoError(t, SetupLogging("debug"))
	require.NoError(t, SetupLogging("INFO"))
	require.Error(t, SetupLogging("loud"))
}
