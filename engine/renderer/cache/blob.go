package cache

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
	"github.com/vmihailenco/msgpack/v5"
)

// BlobVersion is bumped whenever the envelope layout changes.
const BlobVersion = 1

// blobEnvelope wraps the driver's opaque pipeline-cache data with the
// identity of the device that produced it.
type blobEnvelope struct {
	Version  int
	DeviceID string
	Name     string
	VendorID uint32
	Driver   uint32
	Data     []byte
	SavedAt  time.Time
}

// BlobPath is the file holding the pipeline-cache blob for one device.
func BlobPath(dir string, id metadata.DeviceIdentity) string {
	return filepath.Join(dir, fmt.Sprintf("pipeline-%s.bin.zst", id.ID))
}

// SaveBlob writes data for id into dir. The file is replaced atomically.
func SaveBlob(dir string, id metadata.DeviceIdentity, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := BlobPath(dir, id)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		tmp.Close()
		return err
	}
	env := blobEnvelope{
		Version:  BlobVersion,
		DeviceID: id.ID.String(),
		Name:     id.Name,
		VendorID: id.VendorID,
		Driver:   id.Driver,
		Data:     data,
		SavedAt:  time.Now(),
	}
	if err := msgpack.NewEncoder(zw).Encode(env); err != nil {
		zw.Close()
		tmp.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadBlob returns the cached data for id, or nil when there is none. A
// blob written by another device or driver is ignored, not an error.
func LoadBlob(dir string, id metadata.DeviceIdentity) ([]byte, error) {
	f, err := os.Open(BlobPath(dir, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(bufio.NewReader(f), zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var env blobEnvelope
	if err := msgpack.NewDecoder(zr).Decode(&env); err != nil {
		core.LogWarn("pipeline cache blob %s unreadable, ignoring: %v", f.Name(), err)
		return nil, nil
	}
	if env.Version != BlobVersion {
		core.LogWarn("pipeline cache blob version %d, want %d; ignoring", env.Version, BlobVersion)
		return nil, nil
	}
	if env.DeviceID != id.ID.String() || env.VendorID != id.VendorID || env.Driver != id.Driver {
		core.LogWarn("pipeline cache blob belongs to %s (%s), not %s; ignoring", env.DeviceID, env.Name, id.ID)
		return nil, nil
	}
	return env.Data, nil
}
