// Copyright 2026 The tdengine-backup-engine Authors
// This file is part of tdengine-backup-engine.
//
// tdengine-backup-engine is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// tdengine-backup-engine is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with tdengine-backup-engine. If not, see <http://www.gnu.org/licenses/>.

package engine

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/spf13/afero"

	"github.com/ZhangZui123/tdengine-backup-engine/internal/persist"
	"github.com/ZhangZui123/tdengine-backup-engine/pkg/bitmap"
	"github.com/ZhangZui123/tdengine-backup-engine/pkg/errs"
)

// SaveSnapshot writes the engine's current state to path on fs, for
// persistence_enabled restart recovery. The write path goes through the
// afero.Fs abstraction so tests can use an in-memory filesystem.
func (e *Engine) SaveSnapshot(fs afero.Fs, path string) error {
	dirty, newBm, deleted, meta := e.Snapshot()

	f, err := fs.Create(path)
	if err != nil {
		return errs.Wrap(errs.FileIO, err, "create snapshot file")
	}
	defer f.Close()

	w := &snapshotWriter{w: f}
	w.writeUint32(persist.SchemaVersion)
	w.writeBitmap(dirty)
	w.writeBitmap(newBm)
	w.writeBitmap(deleted)
	w.writeMeta(meta)
	if w.err != nil {
		return errs.Wrap(errs.FileIO, w.err, "write snapshot")
	}
	return nil
}

// LoadSnapshot reads a snapshot previously written by SaveSnapshot and
// replaces e's entire state with it, via a memory-mapped read so large
// snapshots don't need to be read fully into the Go heap before decoding.
func (e *Engine) LoadSnapshot(path string) error {
	data, closeFn, err := mmapFile(path)
	if err != nil {
		return errs.Wrap(errs.FileIO, err, "mmap snapshot file")
	}
	defer closeFn()

	r := &snapshotReader{data: data}
	version := r.readUint32()
	if version != persist.SchemaVersion {
		return errs.New(errs.DataCorruption, fmt.Sprintf("snapshot schema version %d != %d", version, persist.SchemaVersion))
	}
	dirty := r.readBitmap()
	newBm := r.readBitmap()
	deleted := r.readBitmap()
	meta := r.readMeta()
	if r.err != nil {
		return errs.Wrap(errs.DataCorruption, r.err, "decode snapshot")
	}
	e.Restore(dirty, newBm, deleted, meta)
	return nil
}

func mmapFile(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return m, func() error {
		m.Unmap()
		return f.Close()
	}, nil
}

type snapshotWriter struct {
	w   io.Writer
	err error
}

func (w *snapshotWriter) writeUint32(v uint32) {
	if w.err != nil {
		return
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, w.err = w.w.Write(buf[:])
}

func (w *snapshotWriter) writeBytes(b []byte) {
	w.writeUint32(uint32(len(b)))
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(b)
}

func (w *snapshotWriter) writeBitmap(b *bitmap.Bitmap) {
	if w.err != nil {
		return
	}
	data, err := b.MarshalPortable()
	if err != nil {
		w.err = err
		return
	}
	w.writeBytes(data)
}

func (w *snapshotWriter) writeMeta(meta map[uint64]Metadata) {
	w.writeUint32(uint32(len(meta)))
	for id, m := range meta {
		if w.err != nil {
			return
		}
		var buf [8 + 8 + 8 + 1]byte
		binary.LittleEndian.PutUint64(buf[0:8], id)
		binary.LittleEndian.PutUint64(buf[8:16], m.WALOffset)
		binary.LittleEndian.PutUint64(buf[16:24], uint64(m.Timestamp))
		buf[24] = byte(m.State)
		_, w.err = w.w.Write(buf[:])
	}
}

type snapshotReader struct {
	data []byte
	pos  int
	err  error
}

func (r *snapshotReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.data) {
		r.err = io.ErrUnexpectedEOF
		return false
	}
	return true
}

func (r *snapshotReader) readUint32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *snapshotReader) readBytes() []byte {
	n := int(r.readUint32())
	if !r.need(n) {
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *snapshotReader) readBitmap() *bitmap.Bitmap {
	b := bitmap.New()
	data := r.readBytes()
	if r.err != nil {
		return b
	}
	if err := b.UnmarshalPortable(data); err != nil {
		r.err = err
	}
	return b
}

func (r *snapshotReader) readMeta() map[uint64]Metadata {
	n := int(r.readUint32())
	out := make(map[uint64]Metadata, n)
	for i := 0; i < n; i++ {
		if !r.need(25) {
			return out
		}
		id := binary.LittleEndian.Uint64(r.data[r.pos : r.pos+8])
		wal := binary.LittleEndian.Uint64(r.data[r.pos+8 : r.pos+16])
		ts := int64(binary.LittleEndian.Uint64(r.data[r.pos+16 : r.pos+24]))
		state := State(r.data[r.pos+24])
		r.pos += 25
		out[id] = Metadata{BlockID: id, WALOffset: wal, Timestamp: ts, State: state}
	}
	return out
}
