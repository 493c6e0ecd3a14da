package camera

import "fmt"

// ErrorKind is a transport status code. Zero means success.
// ErrorKind implements error so callers can match with errors.Is(err, KindDeviceBusy).
type ErrorKind uint32

const (
	KindOK                  ErrorKind = 0x00000000
	KindUnimplemented       ErrorKind = 0x00000001
	KindInternalError       ErrorKind = 0x00000002
	KindMemAllocFailed      ErrorKind = 0x00000003
	KindOperationCancelled  ErrorKind = 0x00000005
	KindIncompatibleVersion ErrorKind = 0x00000006
	KindNotSupported        ErrorKind = 0x00000007
	KindUnexpectedException ErrorKind = 0x00000008
	KindFileIOError         ErrorKind = 0x00000020
	KindFileNotFound        ErrorKind = 0x00000022
	KindFileOpenError       ErrorKind = 0x00000023
	KindFileWriteError      ErrorKind = 0x00000026
	KindFileDiskFullError   ErrorKind = 0x00000032
	KindInvalidParameter    ErrorKind = 0x00000060
	KindInvalidHandle       ErrorKind = 0x00000061
	KindInvalidIndex        ErrorKind = 0x00000066
	KindDeviceNotFound      ErrorKind = 0x00000080
	KindDeviceBusy          ErrorKind = 0x00000081
	KindDeviceInvalid       ErrorKind = 0x00000082
	KindDeviceEmergency     ErrorKind = 0x00000083
	KindDeviceMemoryFull    ErrorKind = 0x00000084
	KindDeviceInternalError ErrorKind = 0x00000085
	KindDeviceNoDisk        ErrorKind = 0x00000087
	KindDeviceDiskError     ErrorKind = 0x00000088
	KindCommPortInUse       ErrorKind = 0x000000c0
	KindCommDisconnected    ErrorKind = 0x000000c1
	KindCommUSBBusError     ErrorKind = 0x000000c4
	KindSessionNotOpen      ErrorKind = 0x00002003
	KindIncompleteTransfer  ErrorKind = 0x00002007
	KindTakePictureAFNG     ErrorKind = 0x00008d01
	KindTakePictureNoCardNG ErrorKind = 0x00008d06
)

var kindDescriptions = map[ErrorKind]string{
	KindOK:                  "no error",
	KindUnimplemented:       "not implemented",
	KindInternalError:       "internal error",
	KindMemAllocFailed:      "memory allocation failed",
	KindOperationCancelled:  "operation cancelled",
	KindIncompatibleVersion: "incompatible version",
	KindNotSupported:        "not supported",
	KindUnexpectedException: "unexpected exception",
	KindFileIOError:         "file I/O error",
	KindFileNotFound:        "file not found",
	KindFileOpenError:       "file open error",
	KindFileWriteError:      "file write error",
	KindFileDiskFullError:   "disk full",
	KindInvalidParameter:    "invalid parameter",
	KindInvalidHandle:       "invalid handle",
	KindInvalidIndex:        "invalid index",
	KindDeviceNotFound:      "device not found",
	KindDeviceBusy:          "device busy",
	KindDeviceInvalid:       "device invalid",
	KindDeviceEmergency:     "device emergency",
	KindDeviceMemoryFull:    "device memory full",
	KindDeviceInternalError: "device internal error",
	KindDeviceNoDisk:        "no card in device",
	KindDeviceDiskError:     "device card error",
	KindCommPortInUse:       "port in use",
	KindCommDisconnected:    "device disconnected",
	KindCommUSBBusError:     "USB bus error",
	KindSessionNotOpen:      "session not open",
	KindIncompleteTransfer:  "incomplete transfer",
	KindTakePictureAFNG:     "autofocus failed",
	KindTakePictureNoCardNG: "no card, cannot take picture",
}

func (k ErrorKind) String() string {
	if s, ok := kindDescriptions[k]; ok {
		return s
	}
	return fmt.Sprintf("unknown error 0x%08x", uint32(k))
}

func (k ErrorKind) Error() string {
	return k.String()
}

// Error is a failed transport call.
type Error struct {
	Op   string
	Kind ErrorKind
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Kind.String()
}

// Is matches an ErrorKind target.
func (e *Error) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

// Check converts a raw status code returned by op into an error.
func Check(op string, code uint32) error {
	if ErrorKind(code) == KindOK {
		return nil
	}
	return &Error{Op: op, Kind: ErrorKind(code)}
}
