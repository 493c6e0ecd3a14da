package camera

import (
	"fmt"
	"io"
	"sync"
)

// Default synthetic media sizes produced by SimBody.
const (
	DefaultSimVideoSize = 64 * 1024
	DefaultSimImageSize = 16 * 1024
)

// SimBody is one simulated body exposed by Sim.
type SimBody struct {
	Description string
	Port        string
	Serial      string
	VideoSize   int
	ImageSize   int

	open     bool
	record   uint32
	saveTo   uint32
	capacity Capacity
	files    map[Ref]*simItem
	counter  int

	objectFn   ObjectEventHandler
	propertyFn PropertyEventHandler
	stateFn    StateEventHandler
}

// IsOpen reports whether a session is open on the body.
func (b *SimBody) IsOpen() bool { return b.open }

// Recording reports whether the body is recording a movie.
func (b *SimBody) Recording() bool { return b.record == RecordStart }

// SaveTo returns the current save destination property.
func (b *SimBody) SaveTo() uint32 { return b.saveTo }

// Capacity returns the last capacity declared by the host.
func (b *SimBody) Capacity() Capacity { return b.capacity }

// FileCount returns the number of files left on the body's card.
func (b *SimBody) FileCount() int { return len(b.files) }

type simItem struct {
	body     *SimBody
	name     string
	format   uint32
	data     []byte
	deleted  bool
	released bool
}

type simEvent struct {
	body   *SimBody
	object ObjectEvent
	item   Ref
	prop   PropertyEvent
	propID PropertyID
	state  StateEvent
	param  uint32
	kind   int // 0 object, 1 property, 2 state
}

// Call is one recorded transport invocation.
type Call struct {
	Op     string
	Detail string
}

// Sim is an in-memory Transport used for development without a physical
// body and for tests. It records every call, tracks outstanding refs and
// can be told to fail specific operations.
type Sim struct {
	mu          sync.Mutex
	bodies      []*SimBody
	initialized bool
	listed      int
	nextRef     Ref
	devices     map[Ref]*SimBody
	items       map[Ref]*simItem
	queue       []simEvent
	calls       []Call
	faults      map[string]ErrorKind
	downloaded  map[Ref]bool
}

// NewSim creates a simulator exposing n default bodies.
func NewSim(n int) *Sim {
	bodies := make([]*SimBody, n)
	for i := range bodies {
		bodies[i] = &SimBody{
			Description: "Canon EOS Simulator",
			Port:        fmt.Sprintf("usb:%03d", i+1),
			Serial:      fmt.Sprintf("SIM%08d", i+1),
		}
	}
	return NewSimWith(bodies...)
}

// NewSimWith creates a simulator exposing the given bodies.
func NewSimWith(bodies ...*SimBody) *Sim {
	for _, b := range bodies {
		if b.VideoSize <= 0 {
			b.VideoSize = DefaultSimVideoSize
		}
		if b.ImageSize <= 0 {
			b.ImageSize = DefaultSimImageSize
		}
		if b.saveTo == 0 {
			b.saveTo = SaveToCamera
		}
		b.files = make(map[Ref]*simItem)
	}
	return &Sim{
		bodies:     bodies,
		nextRef:    1,
		devices:    make(map[Ref]*SimBody),
		items:      make(map[Ref]*simItem),
		faults:     make(map[string]ErrorKind),
		downloaded: make(map[Ref]bool),
	}
}

// Body returns the i-th simulated body.
func (s *Sim) Body(i int) *SimBody {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[i]
}

// FailOn makes every subsequent call of op fail with kind.
func (s *Sim) FailOn(op string, kind ErrorKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = kind
}

// ClearFaults removes all injected failures.
func (s *Sim) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]ErrorKind)
}

// Calls returns a copy of the recorded calls.
func (s *Sim) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount counts recorded calls matching op and, if non-empty, detail.
func (s *Sim) CallCount(op, detail string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Op == op && (detail == "" || c.Detail == detail) {
			n++
		}
	}
	return n
}

// OutstandingItems returns the number of item refs handed out and not yet released.
func (s *Sim) OutstandingItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// OutstandingDevices returns the number of device refs not yet released.
func (s *Sim) OutstandingDevices() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices)
}

// Initialized reports whether Initialize was called without a matching Terminate.
func (s *Sim) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// EmitState queues a state event for body i, delivered on the next PumpEvents.
func (s *Sim) EmitState(i int, event StateEvent, param uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, simEvent{kind: 2, body: s.bodies[i], state: event, param: param})
}

// EmitFile creates a file on body i and queues DirItemCreated for it.
// It returns the ref that will be handed to the object handler.
func (s *Sim) EmitFile(i int, name string, format uint32, data []byte) Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newFileLocked(s.bodies[i], name, format, data)
}

// EmitObject queues an object event without a directory item.
func (s *Sim) EmitObject(i int, event ObjectEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, simEvent{kind: 0, body: s.bodies[i], object: event})
}

func (s *Sim) record(op, detail string) ErrorKind {
	s.calls = append(s.calls, Call{Op: op, Detail: detail})
	if k, ok := s.faults[op]; ok {
		return k
	}
	if !s.initialized && op != "Initialize" {
		return KindInternalError
	}
	return KindOK
}

func (s *Sim) fail(op string, k ErrorKind) error {
	return Check(op, uint32(k))
}

func (s *Sim) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.record("Initialize", ""); k != KindOK {
		return s.fail("Initialize", k)
	}
	s.initialized = true
	return nil
}

func (s *Sim) Terminate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.record("Terminate", ""); k != KindOK {
		return s.fail("Terminate", k)
	}
	s.initialized = false
	return nil
}

func (s *Sim) ListDevices() ([]DeviceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.record("ListDevices", ""); k != KindOK {
		return nil, s.fail("ListDevices", k)
	}
	s.listed = len(s.bodies)
	infos := make([]DeviceInfo, len(s.bodies))
	for i, b := range s.bodies {
		infos[i] = DeviceInfo{Description: b.Description, Port: b.Port}
	}
	return infos, nil
}

func (s *Sim) Device(index int) (Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.record("Device", fmt.Sprint(index)); k != KindOK {
		return 0, s.fail("Device", k)
	}
	if index < 0 || index >= s.listed {
		return 0, s.fail("Device", KindInvalidIndex)
	}
	ref := s.nextRef
	s.nextRef++
	s.devices[ref] = s.bodies[index]
	return ref, nil
}

func (s *Sim) body(op string, dev Ref, needOpen bool) (*SimBody, error) {
	b, ok := s.devices[dev]
	if !ok {
		return nil, s.fail(op, KindInvalidHandle)
	}
	if needOpen && !b.open {
		return nil, s.fail(op, KindSessionNotOpen)
	}
	return b, nil
}

func (s *Sim) OpenSession(dev Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.record("OpenSession", ""); k != KindOK {
		return s.fail("OpenSession", k)
	}
	b, err := s.body("OpenSession", dev, false)
	if err != nil {
		return err
	}
	b.open = true
	return nil
}

func (s *Sim) CloseSession(dev Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.record("CloseSession", ""); k != KindOK {
		return s.fail("CloseSession", k)
	}
	b, err := s.body("CloseSession", dev, true)
	if err != nil {
		return err
	}
	b.open = false
	return nil
}

func (s *Sim) PropertyString(dev Ref, prop PropertyID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.record("PropertyString", prop.String()); k != KindOK {
		return "", s.fail("PropertyString", k)
	}
	b, err := s.body("PropertyString", dev, true)
	if err != nil {
		return "", err
	}
	switch prop {
	case PropBodyIDEx:
		return b.Serial, nil
	case PropProductName:
		return b.Description, nil
	case PropFirmwareVersion:
		return "1.0.0", nil
	default:
		return "", s.fail("PropertyString", KindNotSupported)
	}
}

func (s *Sim) PropertyUint32(dev Ref, prop PropertyID) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.record("PropertyUint32", prop.String()); k != KindOK {
		return 0, s.fail("PropertyUint32", k)
	}
	b, err := s.body("PropertyUint32", dev, true)
	if err != nil {
		return 0, err
	}
	switch prop {
	case PropRecord:
		return b.record, nil
	case PropSaveTo:
		return b.saveTo, nil
	case PropBatteryLevel:
		return 100, nil
	default:
		return 0, s.fail("PropertyUint32", KindNotSupported)
	}
}

func (s *Sim) SetPropertyUint32(dev Ref, prop PropertyID, value uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.record("SetPropertyUint32", fmt.Sprintf("%s=%d", prop, value)); k != KindOK {
		return s.fail("SetPropertyUint32", k)
	}
	b, err := s.body("SetPropertyUint32", dev, true)
	if err != nil {
		return err
	}
	switch prop {
	case PropRecord:
		if value != RecordStart && value != RecordStop {
			return s.fail("SetPropertyUint32", KindInvalidParameter)
		}
		s.setRecordLocked(b, value)
	case PropSaveTo:
		b.saveTo = value
		s.queue = append(s.queue, simEvent{kind: 1, body: b, prop: PropertyChanged, propID: PropSaveTo, param: 0})
	default:
		return s.fail("SetPropertyUint32", KindNotSupported)
	}
	return nil
}

// PressRecord starts or stops a movie from the body's own record button.
// The change is reported like a host-side SetPropertyUint32.
func (s *Sim) PressRecord(i int, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value := RecordStop
	if on {
		value = RecordStart
	}
	s.setRecordLocked(s.bodies[i], value)
}

func (s *Sim) setRecordLocked(b *SimBody, value uint32) {
	wasRecording := b.record == RecordStart
	b.record = value
	s.queue = append(s.queue, simEvent{kind: 1, body: b, prop: PropertyChanged, propID: PropRecord, param: 0})
	if wasRecording && value == RecordStop {
		b.counter++
		s.newFileLocked(b, fmt.Sprintf("MVI_%04d.MOV", b.counter), FormatMOV, pattern(b.VideoSize))
	}
}

func (s *Sim) SetCapacity(dev Ref, c Capacity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.record("SetCapacity", fmt.Sprintf("%d/%d", c.NumberOfFreeClusters, c.BytesPerSector)); k != KindOK {
		return s.fail("SetCapacity", k)
	}
	b, err := s.body("SetCapacity", dev, true)
	if err != nil {
		return err
	}
	b.capacity = c
	return nil
}

func (s *Sim) SendCommand(dev Ref, cmd CommandID, param int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.record("SendCommand", cmd.String()); k != KindOK {
		return s.fail("SendCommand", k)
	}
	b, err := s.body("SendCommand", dev, true)
	if err != nil {
		return err
	}
	switch cmd {
	case CommandTakePicture:
		if b.record == RecordStart {
			return s.fail("SendCommand", KindDeviceBusy)
		}
		b.counter++
		s.newFileLocked(b, fmt.Sprintf("IMG_%04d.JPG", b.counter), FormatJPG, pattern(b.ImageSize))
	case CommandExtendShutDownTimer:
		s.queue = append(s.queue, simEvent{kind: 2, body: b, state: StateShutDownTimerUpdate})
	default:
		return s.fail("SendCommand", KindNotSupported)
	}
	return nil
}

func (s *Sim) SetObjectEventHandler(dev Ref, fn ObjectEventHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.record("SetObjectEventHandler", ""); k != KindOK {
		return s.fail("SetObjectEventHandler", k)
	}
	b, err := s.body("SetObjectEventHandler", dev, false)
	if err != nil {
		return err
	}
	b.objectFn = fn
	return nil
}

func (s *Sim) SetPropertyEventHandler(dev Ref, fn PropertyEventHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.record("SetPropertyEventHandler", ""); k != KindOK {
		return s.fail("SetPropertyEventHandler", k)
	}
	b, err := s.body("SetPropertyEventHandler", dev, false)
	if err != nil {
		return err
	}
	b.propertyFn = fn
	return nil
}

func (s *Sim) SetStateEventHandler(dev Ref, fn StateEventHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.record("SetStateEventHandler", ""); k != KindOK {
		return s.fail("SetStateEventHandler", k)
	}
	b, err := s.body("SetStateEventHandler", dev, false)
	if err != nil {
		return err
	}
	b.stateFn = fn
	return nil
}

// PumpEvents delivers the events queued so far. Events queued by handlers
// while pumping are delivered on the next call.
func (s *Sim) PumpEvents() error {
	s.mu.Lock()
	if k := s.record("PumpEvents", ""); k != KindOK {
		s.mu.Unlock()
		return s.fail("PumpEvents", k)
	}
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, ev := range pending {
		switch ev.kind {
		case 0:
			if ev.body.objectFn == nil {
				s.dropItem(ev.item)
				continue
			}
			_ = ev.body.objectFn(ev.object, ev.item)
		case 1:
			if ev.body.propertyFn != nil {
				_ = ev.body.propertyFn(ev.prop, ev.propID, ev.param)
			}
		case 2:
			if ev.body.stateFn != nil {
				_ = ev.body.stateFn(ev.state, ev.param)
			}
		}
	}
	return nil
}

func (s *Sim) dropItem(ref Ref) {
	if ref == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, ref)
}

func (s *Sim) item(op string, ref Ref) (*simItem, error) {
	it, ok := s.items[ref]
	if !ok || it.released {
		return nil, s.fail(op, KindInvalidHandle)
	}
	return it, nil
}

func (s *Sim) ItemInfo(item Ref) (ItemInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.record("ItemInfo", ""); k != KindOK {
		return ItemInfo{}, s.fail("ItemInfo", k)
	}
	it, err := s.item("ItemInfo", item)
	if err != nil {
		return ItemInfo{}, err
	}
	return ItemInfo{Name: it.name, Size: uint64(len(it.data)), Format: it.format}, nil
}

func (s *Sim) Download(item Ref, size uint64, w io.Writer) error {
	s.mu.Lock()
	if k := s.record("Download", ""); k != KindOK {
		s.mu.Unlock()
		return s.fail("Download", k)
	}
	it, err := s.item("Download", item)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if it.deleted {
		s.mu.Unlock()
		return s.fail("Download", KindFileNotFound)
	}
	if size > uint64(len(it.data)) {
		size = uint64(len(it.data))
	}
	data := it.data[:size]
	s.mu.Unlock()

	if _, err := w.Write(data); err != nil {
		return &Error{Op: "Download", Kind: KindFileWriteError}
	}
	return nil
}

func (s *Sim) DownloadComplete(item Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.record("DownloadComplete", ""); k != KindOK {
		return s.fail("DownloadComplete", k)
	}
	if _, err := s.item("DownloadComplete", item); err != nil {
		return err
	}
	s.downloaded[item] = true
	return nil
}

// Downloaded reports whether DownloadComplete was signalled for item.
func (s *Sim) Downloaded(item Ref) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloaded[item]
}

func (s *Sim) DeleteItem(item Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.record("DeleteItem", ""); k != KindOK {
		return s.fail("DeleteItem", k)
	}
	it, err := s.item("DeleteItem", item)
	if err != nil {
		return err
	}
	it.deleted = true
	delete(it.body.files, item)
	return nil
}

func (s *Sim) Release(ref Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.record("Release", ""); k != KindOK {
		return s.fail("Release", k)
	}
	if _, ok := s.devices[ref]; ok {
		delete(s.devices, ref)
		return nil
	}
	it, err := s.item("Release", ref)
	if err != nil {
		return err
	}
	it.released = true
	delete(s.items, ref)
	return nil
}

func (s *Sim) newFileLocked(b *SimBody, name string, format uint32, data []byte) Ref {
	ref := s.nextRef
	s.nextRef++
	it := &simItem{body: b, name: name, format: format, data: data}
	s.items[ref] = it
	b.files[ref] = it
	s.queue = append(s.queue, simEvent{kind: 0, body: b, object: ObjectDirItemCreated, item: ref})
	return ref
}

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

var _ Transport = (*Sim)(nil)
