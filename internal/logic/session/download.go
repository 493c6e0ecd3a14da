package session

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/google/renameio/v2"

	"github.com/cjeanneret/camtether/internal/hw/camera"
	"github.com/cjeanneret/camtether/internal/metrics"
)

// download transfers a ready item to the host. Whatever happens, the item
// ref is released, the pending name is cleared and downloading ends.
func (s *Session) download(item camera.Ref) (err error) {
	s.downloading.Store(true)
	kind := "unknown"
	var written int64
	defer func() {
		if rerr := s.transport.Release(item); rerr != nil {
			err = errors.Join(err, fmt.Errorf("release item: %w", rerr))
		}
		s.outfile = ""
		s.downloading.Store(false)
		metrics.ObserveDownload(kind, written, err)
	}()

	info, err := s.transport.ItemInfo(item)
	if err != nil {
		return fmt.Errorf("read item info: %w", err)
	}
	kind = mediaKind(info.Format)
	s.log.Status("file size %.2f mb", float64(info.Size)/1000000.0)

	path := s.outfile
	if path == "" {
		path = s.defaultName(info.Format)
	}
	s.log.Status("downloading %s", path)

	written, err = s.transfer(item, info.Size, path)
	if err != nil {
		return err
	}

	if s.cfg.DeleteAfterDownload {
		s.log.Status("deleting file from device")
		if err := s.transport.DeleteItem(item); err != nil {
			return fmt.Errorf("delete item after download: %w", err)
		}
	}

	s.log.Status("downloaded %s", path)
	return nil
}

// transfer streams the item into a pending file next to path and renames
// it into place once the whole item arrived. Completion is always
// signalled to the body.
func (s *Session) transfer(item camera.Ref, size uint64, path string) (int64, error) {
	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return 0, errors.Join(fmt.Errorf("create %s: %w", path, err), s.complete(item))
	}
	defer func() {
		if err := pf.Cleanup(); err != nil {
			s.log.Verbose("cleanup pending file: %v", err)
		}
	}()

	cw := &countingWriter{w: pf}
	dlErr := s.transport.Download(item, size, cw)
	if doneErr := s.complete(item); doneErr != nil || dlErr != nil {
		if dlErr != nil {
			dlErr = fmt.Errorf("download %s: %w", path, dlErr)
		}
		return cw.n, errors.Join(dlErr, doneErr)
	}

	if err := pf.CloseAtomicallyReplace(); err != nil {
		return cw.n, fmt.Errorf("commit %s: %w", path, err)
	}
	return cw.n, nil
}

func (s *Session) complete(item camera.Ref) error {
	if err := s.transport.DownloadComplete(item); err != nil {
		return fmt.Errorf("download complete: %w", err)
	}
	return nil
}

// defaultName builds <dir>/canon_<index>_<epoch>.<ext>. A numeric suffix
// is added when that file already exists and overwriting is off.
func (s *Session) defaultName(format uint32) string {
	ext := extension(format)
	if ext == "" {
		s.log.Warning("unknown file type %d", format)
	}
	stem := "canon_" + strconv.Itoa(s.cfg.DeviceIndex) + "_" + strconv.FormatInt(s.now().Unix(), 10)
	path := filepath.Join(s.cfg.DefaultDir, stem+ext)
	for i := 1; !s.cfg.Overwrite && fileExists(path); i++ {
		path = filepath.Join(s.cfg.DefaultDir, stem+"_"+strconv.Itoa(i)+ext)
	}
	return path
}

func extension(format uint32) string {
	switch format {
	case camera.FormatMOV:
		return ".mp4"
	case camera.FormatJPG:
		return ".jpg"
	default:
		return ""
	}
}

func mediaKind(format uint32) string {
	switch format {
	case camera.FormatMOV:
		return "video"
	case camera.FormatJPG:
		return "image"
	default:
		return "unknown"
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
