package audio

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyPulseError(t *testing.T) {
	t.Setenv("FLATPAK_ID", "")
	t.Setenv("SNAP", "")

	require.Nil(t, classifyPulseError(nil))
	require.ErrorIs(t, classifyPulseError(fmt.Errorf("dial: %w", os.ErrPermission)), ErrPermissionDenied)
	require.ErrorIs(t, classifyPulseError(errors.New("pulse: access denied")), ErrPermissionDenied)
	require.ErrorIs(t, classifyPulseError(errors.New("pulse: no such entity")), ErrNoDevice)
	require.ErrorIs(t, classifyPulseError(fmt.Errorf("dial: %w", os.ErrNotExist)), ErrNoDevice)
	require.ErrorIs(t, classifyPulseError(errors.New("device or resource busy")), ErrDeviceBusy)

	other := errors.New("protocol mismatch")
	require.Equal(t, other, classifyPulseError(other))
}

func TestClassifyPulseErrorInsideSandbox(t *testing.T) {
	t.Setenv("FLATPAK_ID", "org.example.MedVoice")

	err := classifyPulseError(fmt.Errorf("dial: %w", os.ErrPermission))
	require.ErrorIs(t, err, ErrSecurityBlocked)
	require.ErrorIs(t, err, os.ErrPermission)
}
