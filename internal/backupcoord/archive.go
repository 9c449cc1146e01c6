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

package backupcoord

import (
	"crypto/rand"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/gofrs/flock"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/ZhangZui123/tdengine-backup-engine/pkg/errs"
)

const (
	archiveMagic   = "TAOS" // 4 significant bytes of "TAOSZ", per spec quirk
	archiveVersion = 0o10   // octal 10 = decimal 8; never normalized to "1.0"

	apiCommitIDLen    = 40
	serverCommitIDLen = 40
	maxObjNameLen     = 256
)

// ArchiveHeader is the fixed-layout header of a backup archive (spec §6.3).
type ArchiveHeader struct {
	APICommitID    string
	ServerCommitID string
	ObjName        string
	TimestampMs    int64
	VGID           uint8
	FileSeq        uint32
}

// Shared zstd encoder/decoder: construction allocates internal state
// tables and is too expensive to pay per archive.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// ArchiveWriter serializes a backup archive to a single file, taking an
// exclusive lock for the duration so concurrent coordinators cannot
// interleave writes to the same path.
type ArchiveWriter struct {
	fs            afero.Fs
	path          string
	compress      bool
	encoder       *zstd.Encoder // nil when compress is false or level is the package default
	encryptionKey []byte        // 32 bytes, chacha20poly1305 key; nil disables encryption

	lock *flock.Flock
	f    afero.File
}

// encoderForLevel maps spec §6.4's compression_level (1=fastest,
// 2=balanced, 3=best) to a zstd.EncoderLevel, returning nil for 0/unset so
// the caller falls back to the shared package-level encoder.
func encoderForLevel(level int) *zstd.Encoder {
	var opt zstd.EOption
	switch level {
	case 1:
		opt = zstd.WithEncoderLevel(zstd.SpeedFastest)
	case 2:
		opt = zstd.WithEncoderLevel(zstd.SpeedDefault)
	case 3:
		opt = zstd.WithEncoderLevel(zstd.SpeedBestCompression)
	default:
		return nil
	}
	enc, err := zstd.NewWriter(nil, opt)
	if err != nil {
		return nil
	}
	return enc
}

// OpenArchiveWriter acquires an exclusive lock on path and truncates/creates
// the file for writing the header and body blocks. The lock is backed by a
// real OS-level flock and only applies when fs is backed by the real
// filesystem (afero.OsFs); an in-memory fs, used in tests, has no
// meaningful OS path to lock and is left unlocked. compressLevel is spec
// §6.4's compression_level (1/2/3); 0 uses the package default encoder.
func OpenArchiveWriter(fs afero.Fs, path string, compress bool, compressLevel int, encryptionKey []byte) (*ArchiveWriter, error) {
	var lock *flock.Flock
	if _, ok := fs.(*afero.OsFs); ok {
		lock = flock.New(path + ".lock")
		locked, err := lock.TryLock()
		if err != nil {
			return nil, errs.Wrap(errs.FileIO, err, "acquire archive lock")
		}
		if !locked {
			return nil, errs.New(errs.FileIO, "archive already locked by another writer")
		}
	}

	f, err := fs.Create(path)
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, errs.Wrap(errs.FileIO, err, "create archive file")
	}

	var encoder *zstd.Encoder
	if compress {
		encoder = encoderForLevel(compressLevel)
	}

	return &ArchiveWriter{fs: fs, path: path, compress: compress, encoder: encoder, encryptionKey: encryptionKey, lock: lock, f: f}, nil
}

// WriteHeader writes the fixed-layout archive header exactly once, at the
// start of the file.
func (w *ArchiveWriter) WriteHeader(h ArchiveHeader) error {
	if len(h.ObjName) > maxObjNameLen {
		return errs.New(errs.InvalidParam, "obj_name exceeds 256 bytes")
	}

	buf := make([]byte, 0, 4+2+apiCommitIDLen+serverCommitIDLen+1+len(h.ObjName)+8+1+4)
	buf = append(buf, padOrTrim([]byte(archiveMagic), 4)...)
	buf = appendUint16(buf, archiveVersion)
	buf = append(buf, padOrTrim([]byte(h.APICommitID), apiCommitIDLen)...)
	buf = append(buf, padOrTrim([]byte(h.ServerCommitID), serverCommitIDLen)...)
	buf = append(buf, byte(len(h.ObjName)))
	buf = append(buf, []byte(h.ObjName)...)
	buf = appendUint64(buf, uint64(h.TimestampMs))
	buf = append(buf, h.VGID)
	buf = appendUint32(buf, h.FileSeq)

	if _, err := w.f.Write(buf); err != nil {
		return errs.Wrap(errs.FileIO, err, "write archive header")
	}
	return nil
}

// WriteBlock appends one body block: block_type, msg_len, msg_type,
// (optionally compressed and/or encrypted) payload, and a trailing CRC-32
// of the on-wire payload.
func (w *ArchiveWriter) WriteBlock(typ BlockType, msgType uint16, payload []byte) error {
	if !typ.valid() {
		return errs.New(errs.InvalidParam, "invalid block_type")
	}

	wire := payload
	if w.compress {
		enc := w.encoder
		if enc == nil {
			enc = zstdEncoder
		}
		wire = enc.EncodeAll(wire, nil)
	}
	if w.encryptionKey != nil {
		sealed, err := seal(w.encryptionKey, wire)
		if err != nil {
			return errs.Wrap(errs.DataCorruption, err, "encrypt archive block")
		}
		wire = sealed
	}

	header := make([]byte, 0, 1+4+2)
	header = append(header, byte(typ))
	header = appendUint32(header, uint32(len(wire)))
	header = appendUint16(header, msgType)
	if _, err := w.f.Write(header); err != nil {
		return errs.Wrap(errs.FileIO, err, "write block header")
	}
	if _, err := w.f.Write(wire); err != nil {
		return errs.Wrap(errs.FileIO, err, "write block payload")
	}

	crc := crc32.ChecksumIEEE(wire)
	crcBuf := appendUint32(nil, crc)
	if _, err := w.f.Write(crcBuf); err != nil {
		return errs.Wrap(errs.FileIO, err, "write block crc")
	}
	return nil
}

// Close flushes and releases the archive's exclusive lock.
func (w *ArchiveWriter) Close() error {
	err := w.f.Close()
	if w.lock != nil {
		_ = w.lock.Unlock()
	}
	if err != nil {
		return errs.Wrap(errs.FileIO, err, "close archive file")
	}
	return nil
}

// ArchiveReader reads back an archive written by ArchiveWriter, verifying
// every block's CRC and rejecting mismatches with DataCorruption.
type ArchiveReader struct {
	f             afero.File
	compress      bool
	encryptionKey []byte
}

// OpenArchiveReader opens path for reading. compress/encryptionKey must
// match the settings the archive was written with.
func OpenArchiveReader(fs afero.Fs, path string, compress bool, encryptionKey []byte) (*ArchiveReader, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.FileIO, err, "open archive file")
	}
	return &ArchiveReader{f: f, compress: compress, encryptionKey: encryptionKey}, nil
}

// ReadHeader reads and validates the archive's fixed-layout header,
// rejecting a bad magic or version with DataCorruption.
func (r *ArchiveReader) ReadHeader() (ArchiveHeader, error) {
	fixed := make([]byte, 4+2+apiCommitIDLen+serverCommitIDLen+1)
	if _, err := io.ReadFull(r.f, fixed); err != nil {
		return ArchiveHeader{}, errs.Wrap(errs.DataCorruption, err, "read archive header")
	}
	if string(fixed[:4]) != archiveMagic {
		return ArchiveHeader{}, errs.New(errs.DataCorruption, "bad archive magic")
	}
	version := binary.LittleEndian.Uint16(fixed[4:6])
	if version != archiveVersion {
		return ArchiveHeader{}, errs.New(errs.DataCorruption, "unsupported archive version")
	}
	apiCommit := trimNul(fixed[6 : 6+apiCommitIDLen])
	serverCommit := trimNul(fixed[6+apiCommitIDLen : 6+apiCommitIDLen+serverCommitIDLen])
	objNameLen := int(fixed[6+apiCommitIDLen+serverCommitIDLen])

	objName := make([]byte, objNameLen)
	if objNameLen > 0 {
		if _, err := io.ReadFull(r.f, objName); err != nil {
			return ArchiveHeader{}, errs.Wrap(errs.DataCorruption, err, "read obj_name")
		}
	}

	tail := make([]byte, 8+1+4)
	if _, err := io.ReadFull(r.f, tail); err != nil {
		return ArchiveHeader{}, errs.Wrap(errs.DataCorruption, err, "read archive header tail")
	}
	ts := int64(binary.LittleEndian.Uint64(tail[0:8]))
	vgID := tail[8]
	fileSeq := binary.LittleEndian.Uint32(tail[9:13])

	return ArchiveHeader{
		APICommitID:    apiCommit,
		ServerCommitID: serverCommit,
		ObjName:        string(objName),
		TimestampMs:    ts,
		VGID:           vgID,
		FileSeq:        fileSeq,
	}, nil
}

// ReadBlock reads one body block, verifying its CRC-32. Returns io.EOF once
// no further block header is available.
func (r *ArchiveReader) ReadBlock() (typ BlockType, msgType uint16, payload []byte, err error) {
	header := make([]byte, 1+4+2)
	if _, err := io.ReadFull(r.f, header); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, 0, nil, io.EOF
		}
		return 0, 0, nil, err
	}
	typ = BlockType(header[0])
	msgLen := binary.LittleEndian.Uint32(header[1:5])
	msgType = binary.LittleEndian.Uint16(header[5:7])

	wire := make([]byte, msgLen)
	if msgLen > 0 {
		if _, err := io.ReadFull(r.f, wire); err != nil {
			return 0, 0, nil, errs.Wrap(errs.DataCorruption, err, "read block payload")
		}
	}

	crcBuf := make([]byte, 4)
	if _, err := io.ReadFull(r.f, crcBuf); err != nil {
		return 0, 0, nil, errs.Wrap(errs.DataCorruption, err, "read block crc")
	}
	wantCRC := binary.LittleEndian.Uint32(crcBuf)
	gotCRC := crc32.ChecksumIEEE(wire)
	if gotCRC != wantCRC {
		return 0, 0, nil, errs.New(errs.DataCorruption, "block crc mismatch")
	}

	if r.encryptionKey != nil {
		opened, err := open(r.encryptionKey, wire)
		if err != nil {
			return 0, 0, nil, errs.Wrap(errs.DataCorruption, err, "decrypt archive block")
		}
		wire = opened
	}
	if r.compress {
		decoded, err := zstdDecoder.DecodeAll(wire, nil)
		if err != nil {
			return 0, 0, nil, errs.Wrap(errs.DataCorruption, err, "decompress archive block")
		}
		wire = decoded
	}

	return typ, msgType, wire, nil
}

// Close releases the archive's underlying file handle.
func (r *ArchiveReader) Close() error {
	return r.f.Close()
}

func seal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, sealed...), nil
}

func open(key, wire []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(wire) < aead.NonceSize() {
		return nil, errs.New(errs.DataCorruption, "encrypted block shorter than nonce")
	}
	nonce, ciphertext := wire[:aead.NonceSize()], wire[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}

func padOrTrim(b []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, b)
	return out
}

func trimNul(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func appendUint16(b []byte, v uint16) []byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return append(b, buf[:]...)
}

func appendUint32(b []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}

func appendUint64(b []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(b, buf[:]...)
}
