package permissions

import "errors"

// Microphone authorization states, as reported by AVFoundation.
const (
	PermissionNotDetermined = 0
	PermissionRestricted    = 1
	PermissionDenied        = 2
	PermissionAuthorized    = 3
)

// ErrMicrophoneDenied means recording would capture silence.
var ErrMicrophoneDenied = errors.New("microphone permission not granted; allow it in System Settings → Privacy & Security → Microphone and run again")

// checkMicrophone asks once when the user has not decided yet and blocks
// until they answer.
func checkMicrophone(status int, request func() bool) error {
	switch status {
	case PermissionAuthorized:
		return nil
	case PermissionNotDetermined:
		if request() {
			return nil
		}
	}
	return ErrMicrophoneDenied
}
