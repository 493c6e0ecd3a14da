package camera

import "fmt"

// Media format codes reported in ItemInfo.Format.
const (
	FormatMOV uint32 = 45317
	FormatJPG uint32 = 14337
)

// Record property values.
const (
	RecordStop  uint32 = 0
	RecordStart uint32 = 4
)

// SaveTo property values.
const (
	SaveToCamera uint32 = 1
	SaveToHost   uint32 = 2
	SaveToBoth   uint32 = 3
)

// PropertyID identifies a body property.
type PropertyID uint32

const (
	PropProductName     PropertyID = 0x00000002
	PropBodyIDEx        PropertyID = 0x00000015
	PropFirmwareVersion PropertyID = 0x00000007
	PropBatteryLevel    PropertyID = 0x00000008
	PropSaveTo          PropertyID = 0x0000000b
	PropAvailableShots  PropertyID = 0x0000040a
	PropEvfOutputDevice PropertyID = 0x00000500
	PropRecord          PropertyID = 0x00000510
)

var propertyNames = map[PropertyID]string{
	PropProductName:     "ProductName",
	PropBodyIDEx:        "BodyIDEx",
	PropFirmwareVersion: "FirmwareVersion",
	PropBatteryLevel:    "BatteryLevel",
	PropSaveTo:          "SaveTo",
	PropAvailableShots:  "AvailableShots",
	PropEvfOutputDevice: "Evf_OutputDevice",
	PropRecord:          "Record",
}

func (p PropertyID) String() string {
	if s, ok := propertyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("PropertyID(0x%x)", uint32(p))
}

// CommandID identifies a body command.
type CommandID uint32

const (
	CommandTakePicture         CommandID = 0x00000000
	CommandExtendShutDownTimer CommandID = 0x00000001
)

func (c CommandID) String() string {
	switch c {
	case CommandTakePicture:
		return "TakePicture"
	case CommandExtendShutDownTimer:
		return "ExtendShutDownTimer"
	default:
		return fmt.Sprintf("CommandID(0x%x)", uint32(c))
	}
}

// ObjectEvent is a file-level notification.
type ObjectEvent uint32

const (
	ObjectVolumeInfoChanged      ObjectEvent = 0x00000101
	ObjectVolumeUpdateItems      ObjectEvent = 0x00000102
	ObjectFolderUpdateItems      ObjectEvent = 0x00000103
	ObjectDirItemCreated         ObjectEvent = 0x00000104
	ObjectDirItemRemoved         ObjectEvent = 0x00000105
	ObjectDirItemInfoChanged     ObjectEvent = 0x00000106
	ObjectDirItemContentChanged  ObjectEvent = 0x00000107
	ObjectDirItemRequestTransfer ObjectEvent = 0x00000108
	ObjectVolumeAdded            ObjectEvent = 0x0000010c
	ObjectVolumeRemoved          ObjectEvent = 0x0000010d
)

var objectEventNames = map[ObjectEvent]string{
	ObjectVolumeInfoChanged:      "VolumeInfoChanged",
	ObjectVolumeUpdateItems:      "VolumeUpdateItems",
	ObjectFolderUpdateItems:      "FolderUpdateItems",
	ObjectDirItemCreated:         "DirItemCreated",
	ObjectDirItemRemoved:         "DirItemRemoved",
	ObjectDirItemInfoChanged:     "DirItemInfoChanged",
	ObjectDirItemContentChanged:  "DirItemContentChanged",
	ObjectDirItemRequestTransfer: "DirItemRequestTransfer",
	ObjectVolumeAdded:            "VolumeAdded",
	ObjectVolumeRemoved:          "VolumeRemoved",
}

func (e ObjectEvent) String() string {
	if s, ok := objectEventNames[e]; ok {
		return s
	}
	return fmt.Sprintf("ObjectEvent(0x%x)", uint32(e))
}

// PropertyEvent is a property-level notification.
type PropertyEvent uint32

const (
	PropertyChanged     PropertyEvent = 0x00000101
	PropertyDescChanged PropertyEvent = 0x00000102
)

func (e PropertyEvent) String() string {
	switch e {
	case PropertyChanged:
		return "PropertyChanged"
	case PropertyDescChanged:
		return "PropertyDescChanged"
	default:
		return fmt.Sprintf("PropertyEvent(0x%x)", uint32(e))
	}
}

// StateEvent is a body lifecycle notification.
type StateEvent uint32

const (
	StateShutdown            StateEvent = 0x00000301
	StateJobStatusChanged    StateEvent = 0x00000302
	StateWillSoonShutDown    StateEvent = 0x00000303
	StateShutDownTimerUpdate StateEvent = 0x00000304
	StateCaptureError        StateEvent = 0x00000305
	StateInternalError       StateEvent = 0x00000306
	StateAfResult            StateEvent = 0x00000309
	StateBulbExposureTime    StateEvent = 0x00000310
)

var stateEventNames = map[StateEvent]string{
	StateShutdown:            "Shutdown",
	StateJobStatusChanged:    "JobStatusChanged",
	StateWillSoonShutDown:    "WillSoonShutDown",
	StateShutDownTimerUpdate: "ShutDownTimerUpdate",
	StateCaptureError:        "CaptureError",
	StateInternalError:       "InternalError",
	StateAfResult:            "AfResult",
	StateBulbExposureTime:    "BulbExposureTime",
}

func (e StateEvent) String() string {
	if s, ok := stateEventNames[e]; ok {
		return s
	}
	return fmt.Sprintf("StateEvent(0x%x)", uint32(e))
}
