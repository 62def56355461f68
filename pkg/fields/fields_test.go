package fields

import (
	"encoding/binary"
	"reflect"
	"testing"
)

type memFake struct {
	data map[uint64]byte
}

func newMemFake() *memFake {
	return &memFake{data: make(map[uint64]byte)}
}

func (f *memFake) ReadMemory(addr uint64, buf []byte) error {
	for i := range buf {
		buf[i] = f.data[addr+uint64(i)]
	}
	return nil
}

func (f *memFake) WriteMemory(addr uint64, buf []byte) error {
	for i, b := range buf {
		f.data[addr+uint64(i)] = b
	}
	return nil
}

func TestCodec_PackField(t *testing.T) {
	tests := []struct {
		name     string
		wordSize WordSize
		order    binary.ByteOrder
		value    uint64
		want     []byte
	}{
		{"le32", Word4, binary.LittleEndian, 0x01020304, []byte{0x04, 0x03, 0x02, 0x01}},
		{"be32", Word4, binary.BigEndian, 0x01020304, []byte{0x01, 0x02, 0x03, 0x04}},
		{"le64", Word8, binary.LittleEndian, 0x0102030405060708, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCodec(tt.wordSize, tt.order)
			if err != nil {
				t.Fatalf("NewCodec: %v", err)
			}
			if got := c.PackField(tt.value); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PackField() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestCodec_ReadWriteFields_Roundtrip(t *testing.T) {
	c, err := NewCodec(Word4, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	mem := newMemFake()
	values := []uint64{1, 2, 0xdeadbeef}
	if err := c.WriteFields(mem, 0x1000, values); err != nil {
		t.Fatalf("WriteFields: %v", err)
	}
	got, err := c.ReadFields(mem, 0x1000, len(values))
	if err != nil {
		t.Fatalf("ReadFields: %v", err)
	}
	if !reflect.DeepEqual(got, values) {
		t.Errorf("roundtrip = %#v, want %#v", got, values)
	}
}

func TestNewCodec_BadWordSize(t *testing.T) {
	if _, err := NewCodec(3, binary.LittleEndian); err != ErrBadWordSize {
		t.Errorf("NewCodec(3, ...) err = %v, want %v", err, ErrBadWordSize)
	}
}

func TestCodec_GetField_OutOfRange(t *testing.T) {
	c, _ := NewCodec(Word4, binary.LittleEndian)
	if _, err := c.GetField([]byte{1, 2, 3}, 0); err == nil {
		t.Error("GetField() on short buffer should error")
	}
}
