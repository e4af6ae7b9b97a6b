//go:build darwin

package permissions

/*
#cgo CFLAGS: -x objective-c -fobjc-arc
#cgo LDFLAGS: -framework AVFoundation
#import <AVFoundation/AVFoundation.h>

int checkMicrophonePermission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

// Blocks until the user answers the system dialog.
int requestMicrophonePermission() {
    dispatch_semaphore_t done = dispatch_semaphore_create(0);
    __block BOOL result = NO;
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {
        result = granted;
        dispatch_semaphore_signal(done);
    }];
    dispatch_semaphore_wait(done, DISPATCH_TIME_FOREVER);
    return result ? 1 : 0;
}
*/
import "C"

// CheckMicrophone returns the current microphone permission status
func CheckMicrophone() int {
	return int(C.checkMicrophonePermission())
}

// RequestMicrophone shows the system microphone permission dialog and
// reports whether access was granted.
func RequestMicrophone() bool {
	return C.requestMicrophonePermission() == 1
}

// EnsureMicrophone asks for microphone access on first run and fails when
// it has been refused.
func EnsureMicrophone() error {
	return checkMicrophone(CheckMicrophone(), RequestMicrophone)
}
