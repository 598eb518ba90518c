// Package proctor classifies security violations reported by the exam
// client. The classification is a fixed table, not configuration: its
// behavior is part of the service contract and is tested directly.
package proctor

// Kind identifies a reported violation.
type Kind string

const (
	KindTabSwitch          Kind = "tab_switch"
	KindFullscreenExit     Kind = "fullscreen_exit"
	KindBrowserChange      Kind = "browser_change"
	KindCopyPaste          Kind = "copy_paste"
	KindSuspiciousActivity Kind = "suspicious_activity"
	KindNetworkDisconnect  Kind = "network_disconnect"
)

// terminal violations force-submit the attempt immediately; everything else
// known is advisory and only gets logged.
var terminal = map[Kind]bool{
	KindTabSwitch:      true,
	KindFullscreenExit: true,
	KindBrowserChange:  true,
}

var advisory = map[Kind]bool{
	KindCopyPaste:          true,
	KindSuspiciousActivity: true,
	KindNetworkDisconnect:  true,
}

// ShouldTerminate reports whether the violation must end the attempt.
func ShouldTerminate(kind Kind) bool {
	return terminal[kind]
}

// IsValidKind reports whether the kind is one this service understands.
func IsValidKind(kind Kind) bool {
	return terminal[kind] || advisory[kind]
}
