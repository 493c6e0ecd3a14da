package session

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/camtether/internal/hw/camera"
	"github.com/cjeanneret/camtether/internal/metrics"
)

// registerHandlers routes the three device event families to the session.
// The transport invokes them synchronously from PumpEvents, inside Tick.
func (s *Session) registerHandlers(dev camera.Ref) error {
	if err := s.transport.SetObjectEventHandler(dev, s.handleObjectEvent); err != nil {
		return fmt.Errorf("set object event handler: %w", err)
	}
	if err := s.transport.SetPropertyEventHandler(dev, s.handlePropertyEvent); err != nil {
		return fmt.Errorf("set property event handler: %w", err)
	}
	if err := s.transport.SetStateEventHandler(dev, s.handleStateEvent); err != nil {
		return fmt.Errorf("set state event handler: %w", err)
	}
	return nil
}

func (s *Session) handleObjectEvent(event camera.ObjectEvent, item camera.Ref) error {
	metrics.IncEvent("object")
	s.log.Status("%s", event)
	if item == 0 {
		return nil
	}

	var err error
	switch event {
	case camera.ObjectDirItemCreated:
		if s.canceled {
			s.canceled = false
			err = s.discard(item)
		} else {
			err = s.download(item)
		}
	default:
		if event == camera.ObjectDirItemRemoved {
			s.log.Status("item removed")
		}
		if rerr := s.transport.Release(item); rerr != nil {
			err = fmt.Errorf("release item: %w", rerr)
		}
	}

	if err != nil {
		s.log.Errorf("%s: %v", event, err)
	}
	return err
}

// discard deletes a canceled recording from the body without downloading it.
func (s *Session) discard(item camera.Ref) error {
	s.log.Status("deleting canceled recording from device")
	var errs []error
	if err := s.transport.DeleteItem(item); err != nil {
		errs = append(errs, fmt.Errorf("delete item: %w", err))
	} else {
		metrics.IncDeletedWithoutDownload()
	}
	if err := s.transport.Release(item); err != nil {
		errs = append(errs, fmt.Errorf("release item: %w", err))
	}
	return errors.Join(errs...)
}

func (s *Session) handlePropertyEvent(event camera.PropertyEvent, prop camera.PropertyID, param uint32) error {
	metrics.IncEvent("property")
	s.log.Verbose("%s: %s / %d", event, prop, param)
	if event != camera.PropertyChanged || prop != camera.PropRecord {
		return nil
	}
	if err := s.syncRecording(); err != nil {
		s.log.Errorf("%s: %v", prop, err)
		return err
	}
	return nil
}

// syncRecording follows record changes made on the body itself so the
// tally lamp and max duration track them.
func (s *Session) syncRecording() error {
	rec, err := s.IsRecording()
	if err != nil {
		return err
	}
	switch {
	case rec && s.recordStarted.IsZero():
		s.log.Status("recording started on device")
		s.recordStarted = s.now()
		s.setRecording(true)
	case !rec && !s.recordStarted.IsZero():
		s.log.Status("recording stopped on device")
		s.setRecording(false)
	}
	return nil
}

func (s *Session) handleStateEvent(event camera.StateEvent, param uint32) error {
	metrics.IncEvent("state")
	s.log.Status("%s: %d", event, param)

	switch event {
	case camera.StateShutDownTimerUpdate:
		s.log.Status("shutdown timer extended")
	case camera.StateWillSoonShutDown:
		if err := s.sendKeepalive("device"); err != nil {
			s.log.Error(err)
			return err
		}
	case camera.StateShutdown:
		s.log.Status("camera disconnected")
		s.markShutdown()
	default:
		s.log.Warning("unhandled state event %s", event)
	}
	return nil
}
