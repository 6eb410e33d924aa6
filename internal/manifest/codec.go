package manifest

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Format identifies the manifest wire encoding.
type Format int

const (
	// FormatJSON is the legacy encoding, predating spillover support.
	FormatJSON Format = iota
	// FormatBinary is the framed binary encoding.
	FormatBinary
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Codec identifies the payload compression of a binary manifest.
type Codec byte

const (
	CodecNone Codec = iota
	CodecSnappy
	CodecLZ4
	CodecZstd
)

// MagicBytes prefixes every binary-encoded manifest.
const MagicBytes = "SCOURMF"

const binaryVersion = 1

// Binary frame: magic (7) | version (1) | codec (1) | crc32 of compressed
// payload (4) | payload length (4) | payload.
const frameHeaderSize = 7 + 1 + 1 + 4 + 4

var (
	ErrInvalidMagic     = errors.New("manifest: invalid magic bytes")
	ErrChecksumMismatch = errors.New("manifest: checksum mismatch")
	ErrTruncated        = errors.New("manifest: truncated frame")
)

// Encode serializes a manifest in the given format. The codec applies to
// FormatBinary only.
func Encode(m *Manifest, format Format, codec Codec) ([]byte, error) {
	if format == FormatJSON {
		return json.Marshal(m)
	}

	payload := encodePayload(m)
	compressed, err := compress(codec, payload)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, frameHeaderSize+len(compressed))
	out = append(out, MagicBytes...)
	out = append(out, binaryVersion, byte(codec))
	out = binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(compressed))
	out = binary.BigEndian.AppendUint32(out, uint32(len(compressed)))
	out = append(out, compressed...)
	return out, nil
}

// Decode parses a manifest, sniffing the encoding from the leading bytes.
// The detected format is returned alongside the manifest so callers can
// flag structurally impossible combinations (legacy JSON with spillovers).
func Decode(data []byte) (*Manifest, Format, error) {
	if bytes.HasPrefix(data, []byte(MagicBytes)) {
		m, err := decodeBinary(data)
		return m, FormatBinary, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, FormatJSON, fmt.Errorf("manifest: decode json: %w", err)
	}
	return &m, FormatJSON, nil
}

func decodeBinary(data []byte) (*Manifest, error) {
	if len(data) < frameHeaderSize {
		return nil, ErrTruncated
	}
	if string(data[:7]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	version := data[7]
	if version != binaryVersion {
		return nil, fmt.Errorf("manifest: unsupported version %d", version)
	}
	codec := Codec(data[8])
	checksum := binary.BigEndian.Uint32(data[9:13])
	length := binary.BigEndian.Uint32(data[13:17])

	if len(data) < frameHeaderSize+int(length) {
		return nil, ErrTruncated
	}
	compressed := data[frameHeaderSize : frameHeaderSize+int(length)]

	if crc32.ChecksumIEEE(compressed) != checksum {
		return nil, ErrChecksumMismatch
	}

	payload, err := decompress(codec, compressed)
	if err != nil {
		return nil, err
	}
	return decodePayload(payload)
}

func encodePayload(m *Manifest) []byte {
	var buf bytes.Buffer

	writeString(&buf, m.Topic)
	writeInt32(&buf, m.Partition)
	writeInt64(&buf, m.Revision)

	writeInt32(&buf, int32(len(m.Segments)))
	for _, s := range m.Segments {
		writeInt64(&buf, s.BaseOffset)
		writeInt64(&buf, s.LastOffset)
		writeInt64(&buf, s.BaseKafkaOffset)
		writeInt64(&buf, s.NextKafkaOffset)
		writeInt64(&buf, s.BaseTimestampMs)
		writeInt64(&buf, s.MaxTimestampMs)
		writeInt64(&buf, s.SizeBytes)
	}

	writeInt32(&buf, int32(len(m.Spillover)))
	for _, r := range m.Spillover {
		writeInt64(&buf, r.BaseOffset)
		writeInt64(&buf, r.LastOffset)
		writeInt64(&buf, r.BaseKafkaOffset)
		writeInt64(&buf, r.NextKafkaOffset)
		writeInt64(&buf, r.BaseTimestampMs)
		writeInt64(&buf, r.MaxTimestampMs)
	}

	return buf.Bytes()
}

func decodePayload(data []byte) (*Manifest, error) {
	r := &payloadReader{data: data}

	var m Manifest
	m.Topic = r.readString()
	m.Partition = r.readInt32()
	m.Revision = r.readInt64()

	segCount := r.readInt32()
	if r.err == nil && segCount > 0 {
		m.Segments = make([]SegmentMeta, 0, segCount)
		for i := int32(0); i < segCount && r.err == nil; i++ {
			m.Segments = append(m.Segments, SegmentMeta{
				BaseOffset:      r.readInt64(),
				LastOffset:      r.readInt64(),
				BaseKafkaOffset: r.readInt64(),
				NextKafkaOffset: r.readInt64(),
				BaseTimestampMs: r.readInt64(),
				MaxTimestampMs:  r.readInt64(),
				SizeBytes:       r.readInt64(),
			})
		}
	}

	spillCount := r.readInt32()
	if r.err == nil && spillCount > 0 {
		m.Spillover = make([]SpilloverRange, 0, spillCount)
		for i := int32(0); i < spillCount && r.err == nil; i++ {
			m.Spillover = append(m.Spillover, SpilloverRange{
				BaseOffset:      r.readInt64(),
				LastOffset:      r.readInt64(),
				BaseKafkaOffset: r.readInt64(),
				NextKafkaOffset: r.readInt64(),
				BaseTimestampMs: r.readInt64(),
				MaxTimestampMs:  r.readInt64(),
			})
		}
	}

	if r.err != nil {
		return nil, r.err
	}
	return &m, nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeInt32(buf, int32(len(s)))
	buf.WriteString(s)
}

func writeInt32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

type payloadReader struct {
	data []byte
	pos  int
	err  error
}

func (r *payloadReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.data) {
		r.err = ErrTruncated
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *payloadReader) readInt32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (r *payloadReader) readInt64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (r *payloadReader) readString() string {
	n := r.readInt32()
	if r.err != nil || n < 0 {
		return ""
	}
	b := r.take(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}

func compress(codec Codec, data []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return data, nil
	case CodecSnappy:
		return snappy.Encode(nil, data), nil
	case CodecLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("manifest: lz4 compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("manifest: lz4 close: %w", err)
		}
		return buf.Bytes(), nil
	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("manifest: zstd writer: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("manifest: unknown codec %d", codec)
	}
}

func decompress(codec Codec, data []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return data, nil
	case CodecSnappy:
		out, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("manifest: snappy decompress: %w", err)
		}
		return out, nil
	case CodecLZ4:
		r := lz4.NewReader(bytes.NewReader(data))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("manifest: lz4 decompress: %w", err)
		}
		return out, nil
	case CodecZstd:
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("manifest: zstd reader: %w", err)
		}
		defer dec.Close()
		out, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("manifest: zstd decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("manifest: unknown codec %d", codec)
	}
}
