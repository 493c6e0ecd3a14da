package session

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/camtether/internal/hw/camera"
)

// DeviceRecord describes one connected body for --list-devices.
type DeviceRecord struct {
	Description string `json:"description"`
	Port        string `json:"port"`
	Reserved    uint32 `json:"reserved"`
	Body        string `json:"body"`
}

// Devices enumerates the connected bodies. Each one is opened briefly to
// read its identity. The body held by an open session is read through it
// instead, so listing never disturbs the long-lived session.
func (s *Session) Devices() ([]DeviceRecord, error) {
	infos, err := s.transport.ListDevices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	records := make([]DeviceRecord, 0, len(infos))
	for i, info := range infos {
		rec := DeviceRecord{
			Description: info.Description,
			Port:        info.Port,
			Reserved:    info.Reserved,
		}
		if s.sessionOpen && i == s.cfg.DeviceIndex {
			rec.Body, err = s.Serial()
		} else {
			rec.Body, err = s.probeBody(i)
		}
		if err != nil {
			return nil, fmt.Errorf("camera %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Session) probeBody(index int) (body string, err error) {
	dev, err := s.transport.Device(index)
	if err != nil {
		return "", err
	}
	defer func() {
		if rerr := s.transport.Release(dev); rerr != nil {
			err = errors.Join(err, fmt.Errorf("release camera: %w", rerr))
		}
	}()

	if err := s.transport.OpenSession(dev); err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if cerr := s.transport.CloseSession(dev); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close session: %w", cerr))
		}
	}()

	body, err = s.transport.PropertyString(dev, camera.PropBodyIDEx)
	if err != nil {
		return "", fmt.Errorf("read body id: %w", err)
	}
	return body, nil
}
