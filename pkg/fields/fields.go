// Package fields implements the word-size and endianness aware encoding
// used to move semihosting parameter blocks and TPIU register values
// between host memory and target memory.
package fields

import (
	"encoding/binary"
	"errors"
)

// WordSize is the width, in bytes, of a single target-memory field.
type WordSize int

const (
	Word4 WordSize = 4
	Word8 WordSize = 8
)

var ErrBadWordSize = errors.New("fields: word size must be 4 or 8 bytes")

func (w WordSize) validate() error {
	if w != Word4 && w != Word8 {
		return ErrBadWordSize
	}
	return nil
}

// Codec packs and unpacks target-memory fields of a fixed word size and
// byte order. A single target descriptor has one WordSize (its address
// width) that every field on it shares.
type Codec struct {
	WordSize  WordSize
	ByteOrder binary.ByteOrder
}

func NewCodec(wordSize WordSize, order binary.ByteOrder) (*Codec, error) {
	if err := wordSize.validate(); err != nil {
		return nil, err
	}
	if order == nil {
		return nil, errors.New("fields: byte order must not be nil")
	}
	return &Codec{WordSize: wordSize, ByteOrder: order}, nil
}

// PackField encodes v into exactly WordSize bytes, truncating silently
// above the word width the way 32-bit semihosting parameter slots do.
func (c *Codec) PackField(v uint64) []byte {
	buf := make([]byte, c.WordSize)
	c.putField(buf, v)
	return buf
}

// SetField writes v into buf at byteOffset, which must be WordSize-aligned
// and fit within buf.
func (c *Codec) SetField(buf []byte, byteOffset int, v uint64) error {
	end := byteOffset + int(c.WordSize)
	if byteOffset < 0 || end > len(buf) {
		return errors.New("fields: offset out of range")
	}
	c.putField(buf[byteOffset:end], v)
	return nil
}

func (c *Codec) putField(dst []byte, v uint64) {
	switch c.WordSize {
	case Word4:
		c.ByteOrder.PutUint32(dst, uint32(v))
	case Word8:
		c.ByteOrder.PutUint64(dst, v)
	}
}

// GetField reads a single field out of buf at byteOffset.
func (c *Codec) GetField(buf []byte, byteOffset int) (uint64, error) {
	end := byteOffset + int(c.WordSize)
	if byteOffset < 0 || end > len(buf) {
		return 0, errors.New("fields: offset out of range")
	}
	switch c.WordSize {
	case Word4:
		return uint64(c.ByteOrder.Uint32(buf[byteOffset:end])), nil
	case Word8:
		return c.ByteOrder.Uint64(buf[byteOffset:end]), nil
	}
	return 0, ErrBadWordSize
}

// MemoryReader is the narrow slice of pkg/target.Target this codec needs
// to pull a field block in from target memory.
type MemoryReader interface {
	ReadMemory(addr uint64, buf []byte) error
}

// MemoryWriter is the narrow slice of pkg/target.Target this codec needs
// to push a field block out to target memory.
type MemoryWriter interface {
	WriteMemory(addr uint64, buf []byte) error
}

// ReadFields reads count consecutive WordSize fields starting at addr,
// using 4-byte-granularity transfers even when WordSize is 8, matching
// debug-probe transports that only ever move memory a word at a time.
func (c *Codec) ReadFields(m MemoryReader, addr uint64, count int) ([]uint64, error) {
	if count < 0 {
		return nil, errors.New("fields: negative count")
	}
	totalBytes := count * int(c.WordSize)
	buf := make([]byte, totalBytes)
	if err := c.readInChunks(m, addr, buf); err != nil {
		return nil, err
	}
	out := make([]uint64, count)
	for i := 0; i < count; i++ {
		v, err := c.GetField(buf, i*int(c.WordSize))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// WriteFields writes values to addr as consecutive WordSize fields, using
// 4-byte-granularity transfers.
func (c *Codec) WriteFields(m MemoryWriter, addr uint64, values []uint64) error {
	buf := make([]byte, len(values)*int(c.WordSize))
	for i, v := range values {
		if err := c.SetField(buf, i*int(c.WordSize), v); err != nil {
			return err
		}
	}
	return c.writeInChunks(m, addr, buf)
}

const chunkSize = 4

func (c *Codec) readInChunks(m MemoryReader, addr uint64, buf []byte) error {
	for off := 0; off < len(buf); off += chunkSize {
		n := chunkSize
		if off+n > len(buf) {
			n = len(buf) - off
		}
		if err := m.ReadMemory(addr+uint64(off), buf[off:off+n]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Codec) writeInChunks(m MemoryWriter, addr uint64, buf []byte) error {
	for off := 0; off < len(buf); off += chunkSize {
		n := chunkSize
		if off+n > len(buf) {
			n = len(buf) - off
		}
		if err := m.WriteMemory(addr+uint64(off), buf[off:off+n]); err != nil {
			return err
		}
	}
	return nil
}
