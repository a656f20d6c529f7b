package object

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kristofer/lumen/pkg/chunk"
	"github.com/kristofer/lumen/pkg/value"
)

// Bytecode file format: a magic + version header followed by length-prefixed
// sections, recursively encoding a function's chunk and its constant pool
// (including nested function constants, for closures over closures).
//
//	magic   "LUMN" (4 bytes)
//	version uint32
//	<function>
//
// A <function> is: arity uint32, upvalueCount uint32, name (nullable
// string), then its chunk: code length + bytes, line count + uint32s,
// constant count + <constant>* where each <constant> is a 1-byte type tag
// followed by type-specific payload. Function-typed constants recurse.

const (
	magic         = "LUMN"
	formatVersion = 1
)

const (
	tagNumber byte = iota
	tagNil
	tagTrue
	tagFalse
	tagString
	tagFunction
)

// Encode writes fn (expected to be the compiled top-level script) to w in
// lumen's .lb bytecode format.
func Encode(fn *Function, w io.Writer) error {
	if _, err := w.Write([]byte(magic)); err != nil {
		return err
	}
	if err := writeUint32(w, formatVersion); err != nil {
		return err
	}
	return encodeFunction(fn, w)
}

func encodeFunction(fn *Function, w io.Writer) error {
	if err := writeUint32(w, uint32(fn.Arity)); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(fn.UpvalueCount)); err != nil {
		return err
	}
	if err := writeNullableString(fn.Name, w); err != nil {
		return err
	}

	c := fn.Chunk
	if err := writeUint32(w, uint32(len(c.Code))); err != nil {
		return err
	}
	if _, err := w.Write(c.Code); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(c.Lines))); err != nil {
		return err
	}
	for _, line := range c.Lines {
		if err := writeUint32(w, uint32(line)); err != nil {
			return err
		}
	}

	if err := writeUint32(w, uint32(len(c.Constants))); err != nil {
		return err
	}
	for _, k := range c.Constants {
		if err := encodeConstant(k, w); err != nil {
			return err
		}
	}
	return nil
}

func encodeConstant(v value.Value, w io.Writer) error {
	switch {
	case v.IsNumber():
		if _, err := w.Write([]byte{tagNumber}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, v.AsNumber())
	case v.IsNil():
		_, err := w.Write([]byte{tagNil})
		return err
	case v.IsBool() && v.AsBool():
		_, err := w.Write([]byte{tagTrue})
		return err
	case v.IsBool():
		_, err := w.Write([]byte{tagFalse})
		return err
	case v.IsObjType(value.ObjTypeString):
		if _, err := w.Write([]byte{tagString}); err != nil {
			return err
		}
		return writeString(v.AsObj().(*String).Chars, w)
	case v.IsObjType(value.ObjTypeFunction):
		if _, err := w.Write([]byte{tagFunction}); err != nil {
			return err
		}
		return encodeFunction(v.AsObj().(*Function), w)
	default:
		return fmt.Errorf("object: cannot serialize constant of type %v", v.Type())
	}
}

// Decode reads a lumen bytecode file, allocating every string and function
// it encounters through heap so the result participates in interning and GC
// like any other object.
func Decode(r io.Reader, heap *Heap) (*Function, error) {
	gotMagic := make([]byte, 4)
	if _, err := io.ReadFull(r, gotMagic); err != nil {
		return nil, err
	}
	if string(gotMagic) != magic {
		return nil, fmt.Errorf("object: not a lumen bytecode file")
	}
	version, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, fmt.Errorf("object: unsupported bytecode version %d", version)
	}
	return decodeFunction(r, heap)
}

func decodeFunction(r io.Reader, heap *Heap) (*Function, error) {
	arity, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	upvalueCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	name, err := readNullableString(r, heap)
	if err != nil {
		return nil, err
	}

	codeLen, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	code := make([]byte, codeLen)
	if _, err := io.ReadFull(r, code); err != nil {
		return nil, err
	}

	lineCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	lines := make([]int, lineCount)
	for i := range lines {
		line, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		lines[i] = int(line)
	}

	constCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	constants := make([]value.Value, constCount)
	for i := range constants {
		k, err := decodeConstant(r, heap)
		if err != nil {
			return nil, err
		}
		constants[i] = k
	}

	fn := heap.NewFunction()
	fn.Arity = int(arity)
	fn.UpvalueCount = int(upvalueCount)
	fn.Name = name
	fn.Chunk = &chunk.Chunk{Code: code, Lines: lines, Constants: constants}
	return fn, nil
}

func decodeConstant(r io.Reader, heap *Heap) (value.Value, error) {
	tag := make([]byte, 1)
	if _, err := io.ReadFull(r, tag); err != nil {
		return value.NilVal(), err
	}
	switch tag[0] {
	case tagNumber:
		var n float64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return value.NilVal(), err
		}
		return value.NumberVal(n), nil
	case tagNil:
		return value.NilVal(), nil
	case tagTrue:
		return value.BoolVal(true), nil
	case tagFalse:
		return value.BoolVal(false), nil
	case tagString:
		s, err := readString(r, heap)
		if err != nil {
			return value.NilVal(), err
		}
		return value.ObjVal(s), nil
	case tagFunction:
		fn, err := decodeFunction(r, heap)
		if err != nil {
			return value.NilVal(), err
		}
		return value.ObjVal(fn), nil
	default:
		return value.NilVal(), fmt.Errorf("object: unknown constant tag %d", tag[0])
	}
}

func writeUint32(w io.Writer, n uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], n)
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeString(s string, w io.Writer) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader, heap *Heap) (*String, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return heap.NewString(string(buf)), nil
}

func writeNullableString(s *String, w io.Writer) error {
	if s == nil {
		return writeUint32(w, 0)
	}
	if err := writeUint32(w, 1); err != nil {
		return err
	}
	return writeString(s.Chars, w)
}

func readNullableString(r io.Reader, heap *Heap) (*String, error) {
	present, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	return readString(r, heap)
}
