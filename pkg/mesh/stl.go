package mesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// stlHeaderSize is the fixed size of the arbitrary STL file header.
const stlHeaderSize = 80

// stlTriangleSize is 12 normal bytes + 3 vertices of 3 float32 + 2
// attribute bytes.
const stlTriangleSize = 12 + 3*3*4 + 2

// WriteSTL writes the mesh as binary STL: an 80-byte header, a
// little-endian uint32 triangle count, then per triangle 12 zero bytes
// in place of the normal, nine little-endian float32 coordinates, and a
// zero attribute word. Positions are truncated from double to single
// precision. Meshes whose triangle count does not fit the 32-bit count
// field are rejected.
func (m *Mesh) WriteSTL(w io.Writer) error {
	if uint64(len(m.Triangles)) > math.MaxUint32 {
		return fmt.Errorf("mesh: %d triangles exceed the STL count field", len(m.Triangles))
	}

	var header [stlHeaderSize]byte
	for i := range header {
		header[i] = 'x'
	}
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(m.Triangles)))
	if _, err := w.Write(count[:]); err != nil {
		return err
	}

	var buf [stlTriangleSize]byte
	for _, t := range m.Triangles {
		// buf[0:12] stays zero: the normal is left for readers to derive.
		at := 12
		for _, vi := range t.V {
			p := m.Vertices[vi].Pos
			binary.LittleEndian.PutUint32(buf[at:], math.Float32bits(float32(p.X)))
			binary.LittleEndian.PutUint32(buf[at+4:], math.Float32bits(float32(p.Y)))
			binary.LittleEndian.PutUint32(buf[at+8:], math.Float32bits(float32(p.Z)))
			at += 12
		}
		// buf[48:50] stays zero: no attributes.
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

// SaveSTL writes the mesh to a file at path.
func (m *Mesh) SaveSTL(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := m.WriteSTL(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
