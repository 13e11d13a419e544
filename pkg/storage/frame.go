package storage

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

// Constants for the framed binary layout of native graph (.ig) files.
const (
	// MagicByte marks the start of a frame.
	MagicByte = 0xA5

	// HeaderSize is 1 byte (Magic) + 1 byte (Kind) + 4 bytes (Length) + 4 bytes (CRC32).
	HeaderSize = 10
)

// Frame kinds of a native graph file, written in this order.
const (
	FrameHeader   byte = 0x01 // edge header text
	FrameVertices byte = 0x02 // (side uint8, value int64) per vertex
	FrameLines    byte = 0x03 // (start uint64, end uint64) per edge
)

var (
	// ErrInvalidMagic indicates the stream is not a framed graph file.
	ErrInvalidMagic = errors.New("invalid magic byte")
	// ErrChecksumMismatch indicates data corruption within a frame payload.
	ErrChecksumMismatch = errors.New("crc32 checksum mismatch")
	// ErrIncompleteFrame indicates the file ended inside a frame.
	ErrIncompleteFrame = errors.New("incomplete frame")
)

// FrameWriter writes kind-tagged, checksummed frames.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter wraps w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame encodes payload as [Magic(1)][Kind(1)][Length(4)][CRC(4)][Payload(N)].
func (fw *FrameWriter) WriteFrame(kind byte, payload []byte) error {
	// 1. Prepare Header
	header := make([]byte, HeaderSize)
	header[0] = MagicByte
	header[1] = kind
	binary.LittleEndian.PutUint32(header[2:6], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[6:10], crc32.ChecksumIEEE(payload))

	// 2. Write Header
	if _, err := fw.w.Write(header); err != nil {
		return err
	}

	// 3. Write Payload
	_, err := fw.w.Write(payload)
	return err
}

// ReadFrame reads and validates the next frame, returning its kind and payload.
// remaining is the number of bytes left in the stream; a frame claiming more
// is reported as incomplete before its payload is allocated.
// A clean end of stream before a header yields io.EOF.
func ReadFrame(r io.Reader, remaining int64) (byte, []byte, error) {
	// 1. Read Header
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return 0, nil, io.EOF
		}
		return 0, nil, ErrIncompleteFrame
	}

	// 2. Validate Magic Byte
	if header[0] != MagicByte {
		return 0, nil, ErrInvalidMagic
	}

	// 3. Parse Length and Expected CRC
	kind := header[1]
	length := binary.LittleEndian.Uint32(header[2:6])
	expectedCRC := binary.LittleEndian.Uint32(header[6:10])
	if int64(length) > remaining-HeaderSize {
		return 0, nil, ErrIncompleteFrame
	}

	// 4. Read Payload
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, ErrIncompleteFrame
	}

	// 5. Verify Checksum
	if crc32.ChecksumIEEE(payload) != expectedCRC {
		return 0, nil, ErrChecksumMismatch
	}
	return kind, payload, nil
}
