package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"camlink/pkg/config"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zap.DebugLevel, ParseLevel("DEBUG"))
	require.Equal(t, zap.WarnLevel, ParseLevel("warning"))
	require.Equal(t, zap.ErrorLevel, ParseLevel("error"))
	require.Equal(t, zap.InfoLevel, ParseLevel("chatty"))
}

func TestSetupLogger_FileOutputs(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain", "camlink.log")
	rotated := filepath.Join(dir, "rotated.log")

	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	log, err := SetupLogger(config.LogConfig{Level: "debug", Format: "json", Outputs: []string{plain}})
	require.NoError(t, err)
	log.Debug("exchange start", zap.String("cmd", "RESET"))
	require.NoError(t, log.Sync())
	require.Same(t, log, zap.L())

	b, err := os.ReadFile(plain)
	require.NoError(t, err)
	require.Contains(t, string(b), `"msg":"exchange start"`)
	require.Contains(t, string(b), `"cmd":"RESET"`)

	log, err = SetupLogger(config.LogConfig{
		Level:    "warn",
		Format:   "console",
		Outputs:  []string{"ignored.log"},
		Rotation: config.RotationConfig{Enable: true, Filename: rotated, MaxSizeMB: 1},
	})
	require.NoError(t, err)
	log.Info("filtered out")
	log.Warn("kept")
	_ = log.Sync()

	b, err = os.ReadFile(rotated)
	require.NoError(t, err)
	require.NotContains(t, string(b), "filtered out")
	require.Contains(t, string(b), "kept")
	_, err = os.Stat("ignored.log")
	require.True(t, os.IsNotExist(err))
}
