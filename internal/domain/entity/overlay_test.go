package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFacingMode_Toggle(t *testing.T) {
	require.Equal(t, FacingEnvironment, FacingUser.Toggle())
	require.Equal(t, FacingUser, FacingEnvironment.Toggle())
}

func TestParseFacingMode(t *testing.T) {
	m, err := ParseFacingMode("user")
	require.NoError(t, err)
	require.Equal(t, FacingUser, m)

	m, err = ParseFacingMode("back")
	require.NoError(t, err)
	require.Equal(t, FacingEnvironment, m)

	_, err = ParseFacingMode("sideways")
	require.Error(t, err)
}

func TestNewControllerState_DefaultPhase(t *testing.T) {
	s := NewControllerState(FacingEnvironment)
	require.Equal(t, PhaseIdle, s.Phase)
	require.Equal(t, FacingEnvironment, s.FacingMode)
	require.True(t, s.PendingSince.IsZero())
	require.Empty(t, s.ActiveOverlayRef)
}

func TestPhase_OverlayVisible(t *testing.T) {
	require.True(t, PhaseOverlayActive.OverlayVisible())
	require.True(t, PhasePendingUnload.OverlayVisible())
	require.False(t, PhaseIdle.OverlayVisible())
	require.False(t, PhaseAwaitingResult.OverlayVisible())
}

func TestNewSubscriber_DefaultUnmuted(t *testing.T) {
	s := NewSubscriber(1, 10)
	require.False(t, s.Muted)
	require.Equal(t, int64(1), s.UserID)
	require.Equal(t, int64(10), s.ChatID)
	s.SetMuted(true)
	require.True(t, s.Muted)
}
