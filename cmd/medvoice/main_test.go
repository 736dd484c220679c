package main

import (
	"errors"
	"os"
	"os/exec"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMainHelp(t *testing.T) {
	output, err := runMain(t, "--help")
	require.NoError(t, err, string(output))
	require.Contains(t, string(output), "Transcribe an existing audio FILE")
}

func TestMainUsageErrorExitsTwo(t *testing.T) {
	output, err := runMain(t, "upload")
	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "expected exit error, got %v", err)
	require.Equal(t, 2, exitErr.ExitCode())
	require.Contains(t, string(output), "takes exactly 1 argument")
}

// TestMainHelperProcess runs main when re-executed by runMain.
func TestMainHelperProcess(t *testing.T) {
	if os.Getenv("MEDVOICE_HELPER_PROCESS") != "1" {
		return
	}
	i := slices.Index(os.Args, "--")
	os.Args = append([]string{"medvoice"}, os.Args[i+1:]...)
	main()
}

func runMain(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()
	cmd := exec.Command(os.Args[0], append([]string{"-test.run=^TestMainHelperProcess$", "--"}, args...)...)
	cmd.Env = append(os.Environ(), "MEDVOICE_HELPER_PROCESS=1")
	return cmd.CombinedOutput()
}
