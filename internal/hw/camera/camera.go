package camera

import "io"

// Ref is an opaque handle handed out by the transport: a device body or a
// directory item on its storage. Every Ref obtained from the transport must
// be released exactly once.
type Ref uint32

// DeviceInfo describes one enumerated body.
type DeviceInfo struct {
	Description string `json:"description"`
	Port        string `json:"port"`
	Reserved    uint32 `json:"reserved"`
}

// ItemInfo describes a file resident on the device.
type ItemInfo struct {
	Name   string
	Size   uint64
	Format uint32
}

// Capacity is the storage capacity declared to the body when saving to host.
type Capacity struct {
	NumberOfFreeClusters int32
	BytesPerSector       int32
	Reset                bool
}

// ObjectEventHandler receives file events. item is zero when the event
// carries no directory item.
type ObjectEventHandler func(event ObjectEvent, item Ref) error

// PropertyEventHandler receives property change notifications.
type PropertyEventHandler func(event PropertyEvent, prop PropertyID, param uint32) error

// StateEventHandler receives body lifecycle notifications.
type StateEventHandler func(event StateEvent, param uint32) error

// Transport is the vendor control interface to tethered bodies.
// It represents the capability regardless of how it's implemented
// (vendor SDK binding, PTP over USB, simulator, etc.).
//
// Handlers registered on a device are invoked synchronously from
// PumpEvents, on the caller's goroutine.
type Transport interface {
	Initialize() error
	Terminate() error

	// ListDevices refreshes the device list. Indexes passed to Device
	// refer to the most recent listing.
	ListDevices() ([]DeviceInfo, error)
	Device(index int) (Ref, error)

	OpenSession(dev Ref) error
	CloseSession(dev Ref) error

	PropertyString(dev Ref, prop PropertyID) (string, error)
	PropertyUint32(dev Ref, prop PropertyID) (uint32, error)
	SetPropertyUint32(dev Ref, prop PropertyID, value uint32) error
	SetCapacity(dev Ref, c Capacity) error
	SendCommand(dev Ref, cmd CommandID, param int32) error

	SetObjectEventHandler(dev Ref, fn ObjectEventHandler) error
	SetPropertyEventHandler(dev Ref, fn PropertyEventHandler) error
	SetStateEventHandler(dev Ref, fn StateEventHandler) error
	PumpEvents() error

	ItemInfo(item Ref) (ItemInfo, error)
	Download(item Ref, size uint64, w io.Writer) error
	DownloadComplete(item Ref) error
	DeleteItem(item Ref) error
	Release(ref Ref) error
}
