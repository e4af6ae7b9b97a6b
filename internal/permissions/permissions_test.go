package permissions

import (
	"errors"
	"testing"
)

func TestCheckMicrophone(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		granted   bool
		wantAsked bool
		wantErr   error
	}{
		{"authorized", PermissionAuthorized, false, false, nil},
		{"first run granted", PermissionNotDetermined, true, true, nil},
		{"first run refused", PermissionNotDetermined, false, true, ErrMicrophoneDenied},
		{"denied earlier", PermissionDenied, true, false, ErrMicrophoneDenied},
		{"restricted", PermissionRestricted, true, false, ErrMicrophoneDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asked := false
			err := checkMicrophone(tt.status, func() bool {
				asked = true
				return tt.granted
			})

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("checkMicrophone() error = %v, want %v", err, tt.wantErr)
			}
			if asked != tt.wantAsked {
				t.Errorf("asked = %v, want %v", asked, tt.wantAsked)
			}
		})
	}
}
