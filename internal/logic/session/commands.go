package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cjeanneret/camtether/internal/hw/camera"
	"github.com/cjeanneret/camtether/internal/logic/command"
	"github.com/cjeanneret/camtether/internal/metrics"
)

func (s *Session) execute(cmd command.Command) error {
	s.log.Verbose("command: %s", cmd)
	switch cmd.Verb() {
	case command.Record:
		return s.record()
	case command.Stop:
		return s.stop(cmd.Arg(0))
	case command.Picture:
		return s.picture(cmd.Arg(0))
	case command.Cancel:
		return s.cancel()
	case command.State:
		return s.reportState()
	default:
		s.log.Warning("unknown command: %s", cmd.Verb())
		metrics.IncCommand(cmd.Verb(), "rejected")
		return nil
	}
}

func (s *Session) record() error {
	rec, err := s.IsRecording()
	if err != nil {
		metrics.IncCommand(command.Record, "error")
		return err
	}
	if rec {
		s.log.Warning("already recording")
		metrics.IncCommand(command.Record, "rejected")
		return nil
	}

	s.log.Status("start recording")
	if err := s.transport.SetPropertyUint32(s.device, camera.PropRecord, camera.RecordStart); err != nil {
		metrics.IncCommand(command.Record, "error")
		return fmt.Errorf("start recording: %w", err)
	}
	metrics.IncCommand(command.Record, "issued")
	s.recordStarted = s.now()
	s.setRecording(true)
	return nil
}

// stop ends the recording. The movie arrives later as a DirItemCreated
// event, which runs the download.
func (s *Session) stop(name string) error {
	rec, err := s.IsRecording()
	if err != nil {
		metrics.IncCommand(command.Stop, "error")
		return err
	}
	if !rec {
		s.log.Warning("not recording")
		metrics.IncCommand(command.Stop, "rejected")
		return nil
	}

	s.outfile = ""
	if name != "" {
		s.outfile = s.resolveName(name)
	}

	s.log.Status("stopping")
	if err := s.transport.SetPropertyUint32(s.device, camera.PropRecord, camera.RecordStop); err != nil {
		s.outfile = ""
		metrics.IncCommand(command.Stop, "error")
		return fmt.Errorf("stop recording: %w", err)
	}
	metrics.IncCommand(command.Stop, "issued")
	s.setRecording(false)
	return nil
}

func (s *Session) picture(name string) error {
	rec, err := s.IsRecording()
	if err != nil {
		metrics.IncCommand(command.Picture, "error")
		return err
	}
	if rec {
		s.log.Warning("can't take a picture while recording")
		metrics.IncCommand(command.Picture, "rejected")
		return nil
	}

	s.outfile = ""
	if name != "" {
		s.outfile = s.resolveName(name)
	}

	s.log.Status("taking picture")
	if err := s.transport.SendCommand(s.device, camera.CommandTakePicture, 0); err != nil {
		s.outfile = ""
		metrics.IncCommand(command.Picture, "error")
		return fmt.Errorf("take picture: %w", err)
	}
	metrics.IncCommand(command.Picture, "issued")
	return nil
}

// cancel stops the recording and marks the resulting file for deletion.
func (s *Session) cancel() error {
	rec, err := s.IsRecording()
	if err != nil {
		metrics.IncCommand(command.Cancel, "error")
		return err
	}
	if !rec {
		s.log.Warning("not recording")
		metrics.IncCommand(command.Cancel, "rejected")
		return nil
	}

	s.log.Status("canceling")
	s.canceled = true
	if err := s.transport.SetPropertyUint32(s.device, camera.PropRecord, camera.RecordStop); err != nil {
		s.canceled = false
		metrics.IncCommand(command.Cancel, "error")
		return fmt.Errorf("cancel recording: %w", err)
	}
	metrics.IncCommand(command.Cancel, "issued")
	s.setRecording(false)
	return nil
}

func (s *Session) reportState() error {
	st, err := s.State()
	if err != nil {
		metrics.IncCommand(command.State, "error")
		return err
	}
	s.log.Status("state %s", st)
	metrics.IncCommand(command.State, "reported")
	return nil
}

// resolveName places name under the default directory. When the name
// leaves that directory, or the file exists and overwriting is off, it
// warns and returns "" so the default naming policy applies.
func (s *Session) resolveName(name string) string {
	path := filepath.Join(s.cfg.DefaultDir, name)
	if !within(s.cfg.DefaultDir, path) {
		s.log.Warning("%s is outside %s. using default name instead", name, s.cfg.DefaultDir)
		return ""
	}
	if !s.cfg.Overwrite && fileExists(path) {
		s.log.Warning("%s already exists. using default name instead", path)
		return ""
	}
	return path
}

// within reports whether path names a file below dir.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
