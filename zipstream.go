//
// Copyright 2018-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package zipfetch

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// Errors returned while decoding the archive stream.
var (
	ErrNotArchive        = errors.New("zipfetch: response body is not a zip archive")
	ErrInvalidHeader     = errors.New("zipfetch: invalid zip local header")
	ErrUnsupportedMethod = errors.New("zipfetch: unsupported compression method")
	ErrEncrypted         = errors.New("zipfetch: encrypted entries are not supported")
	ErrStoredDescriptor  = errors.New("zipfetch: stored entry with data descriptor has unknown size")
)

const (
	sigLocalHeader      = 0x04034b50
	sigCentralDir       = 0x02014b50
	sigEndOfCentralDir  = 0x06054b50
	sigZip64End         = 0x06064b50
	sigZip64Locator     = 0x07064b50
	sigDigitalSignature = 0x05054b50
	sigDataDescriptor   = 0x08074b50

	methodStore   = 0
	methodDeflate = 8

	flagEncrypted      = 0x1
	flagDataDescriptor = 0x8

	zip64ExtraID = 0x0001
	uint32Max    = 0xffffffff
)

// zipEntry is the part of a local file header needed to extract it.
type zipEntry struct {
	Name             string
	Method           uint16
	Flags            uint16
	CompressedSize   uint64
	UncompressedSize uint64
	zip64            bool
}

func (e *zipEntry) hasDataDescriptor() bool {
	return e.Flags&flagDataDescriptor != 0
}

// zipStream decodes a zip archive sequentially from its local file headers,
// without seeking and without reading the central directory.
type zipStream struct {
	r       *bufio.Reader
	cur     *entryReader
	flater  io.ReadCloser
	entries int
	done    bool
}

func newZipStream(r io.Reader) *zipStream {
	return &zipStream{r: bufio.NewReaderSize(r, 32*1024)}
}

// Next advances to the next entry, skipping the unread data of the previous
// one. It returns io.EOF once the central directory (or the end of the
// stream) is reached. The returned reader is valid until the next call.
func (z *zipStream) Next() (*zipEntry, io.Reader, error) {
	if z.done {
		return nil, nil, io.EOF
	}
	if z.cur != nil {
		if _, err := io.Copy(io.Discard, z.cur); err != nil {
			return nil, nil, err
		}
		z.cur = nil
	}

	var sig [4]byte
	if _, err := io.ReadFull(z.r, sig[:]); err != nil {
		if err == io.EOF {
			z.done = true
			if z.entries == 0 {
				return nil, nil, ErrNotArchive
			}
			return nil, nil, io.EOF
		}
		return nil, nil, err
	}

	switch binary.LittleEndian.Uint32(sig[:]) {
	case sigLocalHeader:
	case sigCentralDir, sigEndOfCentralDir, sigZip64End, sigZip64Locator, sigDigitalSignature:
		z.done = true
		return nil, nil, io.EOF
	default:
		z.done = true
		if z.entries == 0 {
			return nil, nil, ErrNotArchive
		}
		return nil, nil, ErrInvalidHeader
	}

	entry, err := z.readLocalHeader()
	if err != nil {
		return nil, nil, err
	}
	z.entries++

	src, err := z.dataReader(entry)
	if err != nil {
		return nil, nil, err
	}
	z.cur = &entryReader{z: z, entry: entry, src: src}
	return entry, z.cur, nil
}

func (z *zipStream) readLocalHeader() (*zipEntry, error) {
	var hdr [26]byte
	if _, err := io.ReadFull(z.r, hdr[:]); err != nil {
		return nil, unexpected(err)
	}
	le := binary.LittleEndian
	entry := &zipEntry{
		Flags:            le.Uint16(hdr[2:4]),
		Method:           le.Uint16(hdr[4:6]),
		CompressedSize:   uint64(le.Uint32(hdr[14:18])),
		UncompressedSize: uint64(le.Uint32(hdr[18:22])),
	}
	nameLen := int(le.Uint16(hdr[22:24]))
	extraLen := int(le.Uint16(hdr[24:26]))

	buf := make([]byte, nameLen+extraLen)
	if _, err := io.ReadFull(z.r, buf); err != nil {
		return nil, unexpected(err)
	}
	entry.Name = string(buf[:nameLen])
	if entry.Name == "" {
		return nil, fmt.Errorf("%w: empty entry name", ErrInvalidHeader)
	}
	parseZip64Extra(entry, buf[nameLen:])

	if entry.Flags&flagEncrypted != 0 {
		return nil, fmt.Errorf("%w: %s", ErrEncrypted, entry.Name)
	}
	return entry, nil
}

// parseZip64Extra replaces the saturated 32 bit sizes with the values of
// the zip64 extended information field, if present.
func parseZip64Extra(entry *zipEntry, extra []byte) {
	le := binary.LittleEndian
	for len(extra) >= 4 {
		id := le.Uint16(extra[0:2])
		size := int(le.Uint16(extra[2:4]))
		extra = extra[4:]
		if size > len(extra) {
			return
		}
		field := extra[:size]
		extra = extra[size:]
		if id != zip64ExtraID {
			continue
		}
		entry.zip64 = true
		if entry.UncompressedSize == uint32Max && len(field) >= 8 {
			entry.UncompressedSize = le.Uint64(field[:8])
			field = field[8:]
		}
		if entry.CompressedSize == uint32Max && len(field) >= 8 {
			entry.CompressedSize = le.Uint64(field[:8])
		}
	}
}

func (z *zipStream) dataReader(entry *zipEntry) (io.Reader, error) {
	switch entry.Method {
	case methodStore:
		if entry.hasDataDescriptor() && entry.CompressedSize == 0 && entry.UncompressedSize == 0 && !isDirName(entry.Name) {
			return nil, fmt.Errorf("%w: %s", ErrStoredDescriptor, entry.Name)
		}
		return io.LimitReader(z.r, int64(entry.CompressedSize)), nil
	case methodDeflate:
		// bufio.Reader is an io.ByteReader, so the decompressor stops
		// exactly at the end of the deflate stream.
		if z.flater == nil {
			z.flater = flate.NewReader(z.r)
		} else if err := z.flater.(flate.Resetter).Reset(z.r, nil); err != nil {
			return nil, err
		}
		return z.flater, nil
	default:
		return nil, fmt.Errorf("%w %d: %s", ErrUnsupportedMethod, entry.Method, entry.Name)
	}
}

// readDataDescriptor consumes the descriptor that follows the data of
// entries with flag bit 3. Its signature is optional.
func (z *zipStream) readDataDescriptor(entry *zipEntry) error {
	sizeLen := 8
	if entry.zip64 {
		sizeLen = 16
	}
	var head [4]byte
	if _, err := io.ReadFull(z.r, head[:]); err != nil {
		return unexpected(err)
	}
	rest := 4 + sizeLen
	if binary.LittleEndian.Uint32(head[:]) != sigDataDescriptor {
		// the four bytes were the CRC
		rest = sizeLen
	}
	if _, err := io.CopyN(io.Discard, z.r, int64(rest)); err != nil {
		return unexpected(err)
	}
	return nil
}

// entryReader yields the decompressed content of one entry and consumes the
// trailing data descriptor once the content is exhausted.
type entryReader struct {
	z     *zipStream
	entry *zipEntry
	src   io.Reader
	read  uint64
	err   error
}

func (e *entryReader) Read(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.src.Read(p)
	e.read += uint64(n)
	if err == io.EOF {
		if e.entry.Method == methodStore && e.read != e.entry.CompressedSize {
			err = io.ErrUnexpectedEOF
		} else if e.entry.hasDataDescriptor() {
			if derr := e.z.readDataDescriptor(e.entry); derr != nil {
				err = derr
			}
		}
	}
	e.err = err
	return n, err
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func isDirName(name string) bool {
	return len(name) > 0 && name[len(name)-1] == '/'
}
