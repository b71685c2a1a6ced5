package binary

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestReaderReadByte(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	r := NewReaderBytes(data)

	for i, want := range data {
		if r.Position() != i {
			t.Errorf("position before read %d: got %d, want %d", i, r.Position(), i)
		}
		b, err := r.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte %d: %v", i, err)
		}
		if b != want {
			t.Errorf("ReadByte %d: got 0x%02x, want 0x%02x", i, b, want)
		}
	}

	_, err := r.ReadByte()
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReaderReadBytesCopies(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	r := NewReaderBytes(data)

	got, err := r.ReadBytes(3)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	got[0] = 0xff
	if data[0] != 0x01 {
		t.Error("ReadBytes must not alias the input")
	}
	if r.Len() != 2 {
		t.Errorf("Len: got %d, want 2", r.Len())
	}

	if _, err = r.ReadBytes(10); err == nil {
		t.Error("expected error for reading past EOF")
	}
}

func TestReaderSubTracksPosition(t *testing.T) {
	r := NewReaderBytes([]byte{0xaa, 0xbb, 0x01, 0x02, 0xcc})
	if _, err := r.ReadBytes(2); err != nil {
		t.Fatal(err)
	}
	sub, err := r.Sub(2)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if sub.Position() != 2 {
		t.Errorf("sub position: got %d, want 2", sub.Position())
	}
	if _, err := sub.ReadU32LE(); err == nil {
		t.Error("sub-reader must stop at its bound")
	}
	if b, _ := r.ReadByte(); b != 0xcc {
		t.Errorf("outer reader continues after sub: got 0x%02x", b)
	}
	if _, err := r.Sub(1); err == nil {
		t.Error("expected error for Sub past end")
	}
}

func TestReaderReadU32(t *testing.T) {
	tests := []struct {
		encoded []byte
		want    uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xFFFFFFFF},
	}

	for _, tt := range tests {
		got, err := NewReaderBytes(tt.encoded).ReadU32()
		if err != nil {
			t.Errorf("ReadU32(%v): %v", tt.encoded, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ReadU32(%v) = %d, want %d", tt.encoded, got, tt.want)
		}
	}
}

func TestReaderReadU32Overflow(t *testing.T) {
	for _, enc := range [][]byte{
		{0xff, 0xff, 0xff, 0xff, 0x1f},
		{0x80, 0x80, 0x80, 0x80, 0x80, 0x01},
	} {
		_, err := NewReaderBytes(enc).ReadU32()
		if !errors.Is(err, ErrOverflow) {
			t.Errorf("ReadU32(%v): expected overflow, got %v", enc, err)
		}
	}
}

func TestReaderReadSigned(t *testing.T) {
	tests := []struct {
		name    string
		encoded []byte
		read    func(*Reader) (int64, error)
		want    int64
	}{
		{"s32 zero", []byte{0x00}, readS32, 0},
		{"s32 minus one", []byte{0x7f}, readS32, -1},
		{"s32 minus 128", []byte{0x80, 0x7f}, readS32, -128},
		{"s32 min", []byte{0x80, 0x80, 0x80, 0x80, 0x78}, readS32, -2147483648},
		{"s33 void block", []byte{0x40}, (*Reader).ReadS33, -64},
		{"s33 type index", []byte{0x05}, (*Reader).ReadS33, 5},
		{"s64 min", []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x7f}, (*Reader).ReadS64, -9223372036854775808},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.read(NewReaderBytes(tt.encoded))
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func readS32(r *Reader) (int64, error) {
	v, err := r.ReadS32()
	return int64(v), err
}

func TestReaderReadS32OutOfRange(t *testing.T) {
	// 0xFFFFFFFF as a positive 5-byte value does not fit in s32.
	_, err := NewReaderBytes([]byte{0xff, 0xff, 0xff, 0xff, 0x0f}).ReadS32()
	if !errors.Is(err, ErrOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}
}

func TestReaderReadName(t *testing.T) {
	w := NewWriter()
	w.WriteName("memory")
	got, err := NewReaderBytes(w.Bytes()).ReadName()
	if err != nil {
		t.Fatalf("ReadName: %v", err)
	}
	if got != "memory" {
		t.Errorf("ReadName: got %q", got)
	}

	if _, err := NewReaderBytes([]byte{0x02, 0xff, 0xfe}).ReadName(); err == nil {
		t.Error("expected error for invalid UTF-8")
	}
	if _, err := NewReaderBytes([]byte{0x05, 'a'}).ReadName(); err == nil {
		t.Error("expected error for truncated name")
	}
}

func TestReaderFixedWidth(t *testing.T) {
	w := NewWriter()
	w.WriteU32LE(0x6D736100)
	w.WriteU64LE(0x0102030405060708)
	r := NewReaderBytes(w.Bytes())

	v32, err := r.ReadU32LE()
	if err != nil || v32 != 0x6D736100 {
		t.Errorf("ReadU32LE = %#x, %v", v32, err)
	}
	v64, err := r.ReadU64LE()
	if err != nil || v64 != 0x0102030405060708 {
		t.Errorf("ReadU64LE = %#x, %v", v64, err)
	}
	if _, err := r.ReadU32LE(); err == nil {
		t.Error("expected error for truncated u32")
	}
}

func TestReaderWrapError(t *testing.T) {
	r := NewReaderBytes([]byte{0x01, 0x02})
	_, _ = r.ReadByte()

	err := r.WrapError("test section", errors.New("test error"))
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Position != 1 || pe.Section != "test section" {
		t.Errorf("unexpected ParseError: %+v", pe)
	}

	// Wrapping twice keeps the innermost position.
	_, _ = r.ReadByte()
	if again := r.WrapError("outer", err); again != err {
		t.Errorf("re-wrap changed error: %v", again)
	}
}

func TestParseErrorFormatting(t *testing.T) {
	inner := errors.New("inner")
	pe := &ParseError{Position: 10, Section: "code", Err: inner}
	if pe.Error() != "wasm: code at position 10: inner" {
		t.Errorf("Error() = %q", pe.Error())
	}
	if !errors.Is(pe, inner) {
		t.Error("ParseError must unwrap to its cause")
	}
	noSection := &ParseError{Position: 5, Err: inner}
	if noSection.Error() != "wasm: at position 5: inner" {
		t.Errorf("Error() = %q", noSection.Error())
	}
}

func TestWriterLEB128(t *testing.T) {
	tests := []struct {
		write func(*Writer)
		want  []byte
	}{
		{func(w *Writer) { w.WriteU32(0) }, []byte{0x00}},
		{func(w *Writer) { w.WriteU32(624485) }, []byte{0xe5, 0x8e, 0x26}},
		{func(w *Writer) { w.WriteU64(128) }, []byte{0x80, 0x01}},
		{func(w *Writer) { w.WriteS64(-1) }, []byte{0x7f}},
		{func(w *Writer) { w.WriteS64(-64) }, []byte{0x40}},
		{func(w *Writer) { w.WriteS64(64) }, []byte{0xc0, 0x00}},
	}

	for i, tt := range tests {
		w := NewWriter()
		tt.write(w)
		if !bytes.Equal(w.Bytes(), tt.want) {
			t.Errorf("case %d: got %x, want %x", i, w.Bytes(), tt.want)
		}
	}
}

func TestWriterSection(t *testing.T) {
	w := NewWriter()
	w.Section(1, []byte{0xaa, 0xbb})
	if !bytes.Equal(w.Bytes(), []byte{0x01, 0x02, 0xaa, 0xbb}) {
		t.Errorf("Section: got %x", w.Bytes())
	}
}

func TestRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteU32(300)
	w.WriteS64(-300)
	w.WriteName("hello")
	w.Byte(0x7f)

	r := NewReaderBytes(w.Bytes())
	if v, _ := r.ReadU32(); v != 300 {
		t.Errorf("u32: got %d", v)
	}
	if v, _ := r.ReadS64(); v != -300 {
		t.Errorf("s64: got %d", v)
	}
	if v, _ := r.ReadName(); v != "hello" {
		t.Errorf("name: got %q", v)
	}
	if b, _ := r.ReadByte(); b != 0x7f {
		t.Errorf("byte: got 0x%02x", b)
	}
	if r.Len() != 0 {
		t.Errorf("trailing bytes: %d", r.Len())
	}
}
