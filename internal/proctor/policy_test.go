package proctor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTerminalKindsEndTheAttempt(t *testing.T) {
	for _, kind := range []Kind{KindTabSwitch, KindFullscreenExit, KindBrowserChange} {
		require.True(t, ShouldTerminate(kind), "kind %s must terminate", kind)
		require.True(t, IsValidKind(kind))
	}
}

func TestAdvisoryKindsAreOnlyLogged(t *testing.T) {
	for _, kind := range []Kind{KindCopyPaste, KindSuspiciousActivity, KindNetworkDisconnect} {
		require.False(t, ShouldTerminate(kind), "kind %s must not terminate", kind)
		require.True(t, IsValidKind(kind))
	}
}

func TestUnknownKindsAreRejected(t *testing.T) {
	require.False(t, IsValidKind(Kind("screenshot")))
	require.False(t, IsValidKind(Kind("")))
	// Unknown kinds never terminate either.
	require.False(t, ShouldTerminate(Kind("screenshot")))
}
