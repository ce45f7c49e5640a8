package codec

// Binary database format (little-endian):
//
//	magic:    "RFDB"
//	version:  uint16
//	strings:  uint32 count, then per string uint32 length + bytes
//	          (index 0 is always the empty string)
//	prims:    uint32 count, then per primitive
//	            kind:uint8 name:str parent:str + kind-specific payload
//	inherit:  uint32 count, then derived:str base:str hasOrder:uint8 order:int32
//	locs:     uint32 count, then file:str + uint32 count + keys
//	prov:     uint32 count, then key + unit:str
//
// str is a uint32 index into the string table; key is kind:uint8 name:str
// scope:uint32.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/jward/reflectdb/internal/database"
)

var magic = [4]byte{'R', 'F', 'D', 'B'}

// ============================================================================
// Encoding
// ============================================================================

type binWriter struct {
	body    bytes.Buffer
	strings []string
	index   map[string]uint32
}

func newBinWriter() *binWriter {
	return &binWriter{strings: []string{""}, index: map[string]uint32{"": 0}}
}

func (w *binWriter) u8(v uint8) { w.body.WriteByte(v) }

func (w *binWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.body.Write(b[:])
}

func (w *binWriter) i32(v int32) { w.u32(uint32(v)) }

func (w *binWriter) boolean(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *binWriter) str(s string) {
	i, ok := w.index[s]
	if !ok {
		i = uint32(len(w.strings))
		w.strings = append(w.strings, s)
		w.index[s] = i
	}
	w.u32(i)
}

func (w *binWriter) key(k keyRef) error {
	kind, err := database.ParseKind(k.Kind)
	if err != nil {
		return err
	}
	w.u8(uint8(kind))
	w.str(k.Name)
	w.u32(k.Scope)
	return nil
}

func encodeBinary(doc *document) ([]byte, error) {
	w := newBinWriter()

	w.u32(uint32(len(doc.Primitives)))
	for _, r := range doc.Primitives {
		if err := w.record(r); err != nil {
			return nil, err
		}
	}

	w.u32(uint32(len(doc.Inheritance)))
	for _, e := range doc.Inheritance {
		w.str(e.Derived)
		w.str(e.Base)
		w.boolean(e.Order != nil)
		if e.Order != nil {
			w.i32(int32(*e.Order))
		} else {
			w.i32(0)
		}
	}

	w.u32(uint32(len(doc.Locations)))
	for _, loc := range doc.Locations {
		w.str(loc.File)
		w.u32(uint32(len(loc.Keys)))
		for _, k := range loc.Keys {
			if err := w.key(k); err != nil {
				return nil, err
			}
		}
	}

	w.u32(uint32(len(doc.Provenance)))
	for _, o := range doc.Provenance {
		if err := w.key(o.keyRef); err != nil {
			return nil, err
		}
		w.str(o.Unit)
	}

	var out bytes.Buffer
	out.Write(magic[:])
	var v [2]byte
	binary.LittleEndian.PutUint16(v[:], version)
	out.Write(v[:])

	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(w.strings)))
	out.Write(n[:])
	for _, s := range w.strings {
		binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
		out.Write(n[:])
		out.WriteString(s)
	}
	out.Write(w.body.Bytes())
	return out.Bytes(), nil
}

func (w *binWriter) record(r Record) error {
	kind, err := database.ParseKind(r.Kind)
	if err != nil {
		return err
	}
	w.u8(uint8(kind))
	w.str(r.Name)
	w.str(r.Parent)

	switch kind {
	case database.KindType:
		w.u32(r.Size)
	case database.KindClass:
		w.u32(r.Size)
		w.boolean(r.IsClass)
	case database.KindEnum:
		w.str(r.Scoped)
	case database.KindEnumConstant, database.KindIntAttribute:
		w.i32(r.Value)
	case database.KindField:
		w.str(r.Type)
		w.str(r.Op)
		w.boolean(r.Const)
		w.i32(r.Offset)
		w.u32(r.ParentUniqueID)
	case database.KindFunction:
		w.u32(r.UniqueID)
	case database.KindTemplateType:
		w.u32(r.Size)
		w.u8(uint8(len(r.Params)))
		for _, p := range r.Params {
			w.str(p.Type)
			w.boolean(p.Ptr)
		}
	case database.KindContainerInfo:
		w.u32(r.Flags)
		w.u32(r.Count)
	case database.KindFloatAttribute:
		w.u32(math.Float32bits(r.Float))
	case database.KindPrimitiveAttribute:
		w.str(r.Ref)
	case database.KindTextAttribute:
		w.str(r.Text)
	}
	return nil
}

// ============================================================================
// Decoding
// ============================================================================

// binReader reads bounds-checked values; the first failure sticks and
// every later read returns zero.
type binReader struct {
	data    []byte
	off     int
	strings []string
	err     error
}

func (r *binReader) need(n int, what string) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("truncated at %s (offset %d, need %d)", what, r.off, n)
		return false
	}
	return true
}

func (r *binReader) u8(what string) uint8 {
	if !r.need(1, what) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

func (r *binReader) u16(what string) uint16 {
	if !r.need(2, what) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

func (r *binReader) u32(what string) uint32 {
	if !r.need(4, what) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

func (r *binReader) i32(what string) int32 { return int32(r.u32(what)) }

func (r *binReader) boolean(what string) bool { return r.u8(what) != 0 }

func (r *binReader) str(what string) string {
	i := r.u32(what)
	if r.err != nil {
		return ""
	}
	if int(i) >= len(r.strings) {
		r.err = fmt.Errorf("string index %d out of range at %s", i, what)
		return ""
	}
	return r.strings[i]
}

// count reads an element count, rejecting counts that cannot fit in the
// remaining input at minSize bytes per element.
func (r *binReader) count(what string, minSize int) int {
	n := int(r.u32(what))
	if r.err == nil && n*minSize > len(r.data)-r.off {
		r.err = fmt.Errorf("%s count %d exceeds input", what, n)
		return 0
	}
	return n
}

func (r *binReader) key(what string) keyRef {
	kind := database.Kind(r.u8(what))
	return keyRef{Kind: kind.String(), Name: r.str(what), Scope: r.u32(what)}
}

func decodeBinary(data []byte) (*document, error) {
	if len(data) < len(magic) || !bytes.Equal(data[:len(magic)], magic[:]) {
		return nil, ErrBadMagic
	}
	r := &binReader{data: data, off: len(magic)}
	doc := &document{Version: int(r.u16("version"))}
	if r.err == nil && doc.Version != version {
		return nil, fmt.Errorf("codec: unsupported binary version %d", doc.Version)
	}

	nstr := r.count("string table", 4)
	r.strings = make([]string, 0, nstr)
	for i := 0; i < nstr && r.err == nil; i++ {
		n := int(r.u32("string length"))
		if !r.need(n, "string") {
			break
		}
		r.strings = append(r.strings, string(r.data[r.off:r.off+n]))
		r.off += n
	}

	nprim := r.count("primitives", 9)
	for i := 0; i < nprim && r.err == nil; i++ {
		doc.Primitives = append(doc.Primitives, r.record())
	}

	ninh := r.count("inheritance", 13)
	for i := 0; i < ninh && r.err == nil; i++ {
		e := edge{Derived: r.str("derived"), Base: r.str("base")}
		has := r.boolean("order flag")
		o := int(r.i32("order"))
		if has {
			e.Order = &o
		}
		doc.Inheritance = append(doc.Inheritance, e)
	}

	nloc := r.count("locations", 8)
	for i := 0; i < nloc && r.err == nil; i++ {
		loc := location{File: r.str("location file")}
		nkeys := r.count("location keys", 9)
		for j := 0; j < nkeys && r.err == nil; j++ {
			loc.Keys = append(loc.Keys, r.key("location key"))
		}
		doc.Locations = append(doc.Locations, loc)
	}

	nprov := r.count("provenance", 13)
	for i := 0; i < nprov && r.err == nil; i++ {
		k := r.key("provenance key")
		doc.Provenance = append(doc.Provenance, origin{keyRef: k, Unit: r.str("provenance unit")})
	}

	if r.err != nil {
		return nil, r.err
	}
	if r.off != len(r.data) {
		return nil, fmt.Errorf("%d trailing bytes", len(r.data)-r.off)
	}
	return doc, nil
}

func (r *binReader) record() Record {
	kind := database.Kind(r.u8("primitive kind"))
	rec := Record{Kind: kind.String(), Name: r.str("name"), Parent: r.str("parent")}

	switch kind {
	case database.KindType:
		rec.Size = r.u32("size")
	case database.KindClass:
		rec.Size = r.u32("size")
		rec.IsClass = r.boolean("is_class")
	case database.KindEnum:
		rec.Scoped = r.str("scoped")
	case database.KindEnumConstant, database.KindIntAttribute:
		rec.Value = r.i32("value")
	case database.KindField:
		rec.Type = r.str("type")
		rec.Op = r.str("op")
		rec.Const = r.boolean("const")
		rec.Offset = r.i32("offset")
		rec.ParentUniqueID = r.u32("parent_unique_id")
	case database.KindFunction:
		rec.UniqueID = r.u32("unique_id")
	case database.KindTemplateType:
		rec.Size = r.u32("size")
		n := int(r.u8("param count"))
		for i := 0; i < n && r.err == nil; i++ {
			rec.Params = append(rec.Params, Param{Type: r.str("param type"), Ptr: r.boolean("param ptr")})
		}
	case database.KindContainerInfo:
		rec.Flags = r.u32("flags")
		rec.Count = r.u32("count")
	case database.KindFloatAttribute:
		rec.Float = math.Float32frombits(r.u32("float"))
	case database.KindPrimitiveAttribute:
		rec.Ref = r.str("ref")
	case database.KindTextAttribute:
		rec.Text = r.str("text")
	case database.KindNamespace, database.KindTemplate, database.KindFlagAttribute:
	default:
		if r.err == nil {
			r.err = fmt.Errorf("unknown primitive kind %d at offset %d", kind, r.off)
		}
	}
	return rec
}
