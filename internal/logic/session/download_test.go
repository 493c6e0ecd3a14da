package session

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/camtether/internal/hw/camera"
)

// observingSim records the downloading flag while a transfer is running.
type observingSim struct {
	*camera.Sim
	sess   *Session
	during []bool
}

func (o *observingSim) Download(item camera.Ref, size uint64, w io.Writer) error {
	o.during = append(o.during, o.sess.Downloading())
	return o.Sim.Download(item, size, w)
}

// Scenario A: record, stop with a name, the movie lands under that name.
func TestRecordStopDownloadsNamedMovie(t *testing.T) {
	obs := &observingSim{Sim: camera.NewSim(1)}
	h := newHarnessWith(t, Config{}, obs)
	h.sim = obs.Sim
	obs.sess = h.s

	h.run(t, "record")
	require.True(t, h.sim.Body(0).Recording())

	h.run(t, "stop out.mp4")
	require.False(t, h.sim.Body(0).Recording())
	assert.Equal(t, filepath.Join(h.dir, "out.mp4"), h.s.outfile)
	assert.False(t, h.s.Downloading())

	h.tick(t)
	assert.Equal(t, []bool{true}, obs.during)
	assert.False(t, h.s.Downloading())
	assert.Empty(t, h.s.outfile)

	data, err := os.ReadFile(filepath.Join(h.dir, "out.mp4"))
	require.NoError(t, err)
	assert.Len(t, data, camera.DefaultSimVideoSize)
	assert.Zero(t, h.sim.OutstandingItems())
	assert.Equal(t, 1, h.sim.CallCount("DownloadComplete", ""))
}

func TestDownload_DeleteAfterDownload(t *testing.T) {
	for _, tc := range []struct {
		name      string
		del       bool
		wantFiles int
	}{
		{"keep on card", false, 1},
		{"delete from card", true, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, Config{DeleteAfterDownload: tc.del}, 1)
			h.run(t, "picture shot.jpg")
			h.tick(t)

			assert.FileExists(t, filepath.Join(h.dir, "shot.jpg"))
			assert.Equal(t, tc.wantFiles, h.sim.Body(0).FileCount())
			assert.False(t, h.s.Downloading())
			assert.Empty(t, h.s.outfile)
			assert.Zero(t, h.sim.OutstandingItems())
		})
	}
}

func TestDownload_ExistingNameFallsBackToDefault(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	existing := filepath.Join(h.dir, "existing.mp4")
	require.NoError(t, os.WriteFile(existing, []byte("keep"), 0o644))

	h.run(t, "record")
	h.run(t, "stop existing.mp4")
	assert.Contains(t, h.out.String(), existing+" already exists. using default name instead")
	assert.Empty(t, h.s.outfile)

	h.tick(t)
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
	assert.FileExists(t, filepath.Join(h.dir, "canon_0_1704067200.mp4"))
}

func TestPicture_ExistingNameFallsBackToDefault(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	existing := filepath.Join(h.dir, "shot.jpg")
	require.NoError(t, os.WriteFile(existing, []byte("keep"), 0o644))

	h.run(t, "picture shot.jpg")
	h.tick(t)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
	assert.FileExists(t, filepath.Join(h.dir, "canon_0_1704067200.jpg"))
}

func TestDownload_OverwriteReplacesExisting(t *testing.T) {
	h := newHarness(t, Config{Overwrite: true}, 1)
	existing := filepath.Join(h.dir, "existing.mp4")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))

	h.run(t, "record")
	h.run(t, "stop existing.mp4")
	h.tick(t)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Len(t, data, camera.DefaultSimVideoSize)
}

func TestDefaultName_AddsSuffixOnCollision(t *testing.T) {
	h := newHarness(t, Config{DeviceIndex: 1}, 2)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "canon_1_1704067200.jpg"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "canon_1_1704067200_1.jpg"), nil, 0o644))

	h.run(t, "picture")
	h.tick(t)
	assert.FileExists(t, filepath.Join(h.dir, "canon_1_1704067200_2.jpg"))
}

func TestDownload_UnknownFormatHasNoExtension(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	h.tick(t)

	h.sim.EmitFile(0, "IMG_0001.CR2", 0x1234, []byte("raw"))
	h.tick(t)

	assert.Contains(t, h.out.String(), "unknown file type 4660")
	data, err := os.ReadFile(filepath.Join(h.dir, "canon_0_1704067200"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(data))
}

func TestDownload_TransferFailureCleansUp(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	h.sim.FailOn("Download", camera.KindCommDisconnected)

	h.run(t, "picture shot.jpg")
	h.tick(t)

	assert.NoFileExists(t, filepath.Join(h.dir, "shot.jpg"))
	assert.False(t, h.s.Downloading())
	assert.Empty(t, h.s.outfile)
	assert.Zero(t, h.sim.OutstandingItems())
	assert.Equal(t, 1, h.sim.CallCount("DownloadComplete", ""))
	assert.Contains(t, h.out.String(), "device disconnected")

	// The session keeps working.
	h.sim.ClearFaults()
	h.run(t, "picture again.jpg")
	h.tick(t)
	assert.FileExists(t, filepath.Join(h.dir, "again.jpg"))
}

func TestTick_DefersCommandsWhileDownloading(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	h.tick(t)

	h.s.downloading.Store(true)
	h.run(t, "record")
	assert.Equal(t, 1, h.queue.Len())
	assert.False(t, h.sim.Body(0).Recording())

	h.s.downloading.Store(false)
	h.tick(t)
	assert.Zero(t, h.queue.Len())
	assert.True(t, h.sim.Body(0).Recording())
}

func TestDownload_NameOutsideDefaultDirFallsBack(t *testing.T) {
	for _, tc := range []struct {
		name  string
		lines []string
		ext   string
	}{
		{"stop", []string{"record", "stop ../x.mp4"}, ".mp4"},
		{"picture", []string{"picture ../x.jpg"}, ".jpg"},
		{"nested escape", []string{"picture sub/../../x.jpg"}, ".jpg"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			media := filepath.Join(root, "media")
			require.NoError(t, os.MkdirAll(media, 0o755))
			h := newHarness(t, Config{DefaultDir: media, Overwrite: true}, 1)

			for _, line := range tc.lines {
				h.run(t, line)
			}
			assert.Empty(t, h.s.outfile)
			assert.Contains(t, h.out.String(), "is outside "+media+". using default name instead")

			h.tick(t)
			assert.NoFileExists(t, filepath.Join(root, "x"+tc.ext))
			assert.FileExists(t, filepath.Join(media, "canon_0_1704067200"+tc.ext))
			assert.Zero(t, h.sim.OutstandingItems())
		})
	}
}

func TestResolveName_KeepsSubdirectories(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	assert.Equal(t, filepath.Join(h.dir, "day1", "a.jpg"), h.s.resolveName("day1/../day1/a.jpg"))
	assert.Equal(t, filepath.Join(h.dir, "abs.jpg"), h.s.resolveName("/abs.jpg"))
	assert.Empty(t, h.s.resolveName(".."))
	assert.Empty(t, h.s.resolveName("."))
}

func TestDownload_DeleteFailureStillReleases(t *testing.T) {
	h := newHarness(t, Config{DeleteAfterDownload: true}, 1)
	h.sim.FailOn("DeleteItem", camera.KindDeviceBusy)

	h.run(t, "picture shot.jpg")
	h.tick(t)

	assert.FileExists(t, filepath.Join(h.dir, "shot.jpg"))
	assert.Equal(t, 1, h.sim.Body(0).FileCount())
	assert.Equal(t, 1, h.sim.CallCount("DeleteItem", ""))
	assert.Zero(t, h.sim.OutstandingItems())
	assert.False(t, h.s.Downloading())
	assert.Empty(t, h.s.outfile)
	assert.Contains(t, h.out.String(), "delete item after download")
}

func TestCancel_DeleteFailureStillReleases(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	h.run(t, "record")
	h.run(t, "cancel")
	require.True(t, h.s.canceled)

	h.sim.FailOn("DeleteItem", camera.KindDeviceBusy)
	h.tick(t)

	assert.False(t, h.s.canceled)
	assert.Equal(t, 1, h.sim.CallCount("DeleteItem", ""))
	assert.Zero(t, h.sim.CallCount("Download", ""))
	assert.Equal(t, 1, h.sim.Body(0).FileCount())
	assert.Zero(t, h.sim.OutstandingItems())
	assert.False(t, h.s.Downloading())
	assert.Empty(t, h.s.outfile)
	assert.Contains(t, h.out.String(), "delete item: DeleteItem: device busy")

	// The next file is downloaded, not deleted.
	h.sim.ClearFaults()
	h.run(t, "picture after.jpg")
	h.tick(t)
	assert.FileExists(t, filepath.Join(h.dir, "after.jpg"))
}
