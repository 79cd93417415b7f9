package vtk

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

type vtkFile struct {
	XMLName    xml.Name          `xml:"VTKFile"`
	Type       string            `xml:"type,attr"`
	Version    string            `xml:"version,attr"`
	ByteOrder  string            `xml:"byte_order,attr,omitempty"`
	HeaderType string            `xml:"header_type,attr,omitempty"`
	Compressor string            `xml:"compressor,attr,omitempty"`
	Grid       *unstructuredGrid `xml:"UnstructuredGrid,omitempty"`
	Collection *collection       `xml:"Collection,omitempty"`
}

type unstructuredGrid struct {
	Pieces []piece `xml:"Piece"`
}

type piece struct {
	NumberOfPoints int        `xml:"NumberOfPoints,attr"`
	NumberOfCells  int        `xml:"NumberOfCells,attr"`
	Points         dataArrays `xml:"Points"`
	Cells          dataArrays `xml:"Cells"`
	PointData      dataArrays `xml:"PointData"`
	CellData       dataArrays `xml:"CellData"`
}

type dataArrays struct {
	Scalars string      `xml:"Scalars,attr,omitempty"`
	Arrays  []dataArray `xml:"DataArray"`
}

type dataArray struct {
	Type               string `xml:"type,attr"`
	Name               string `xml:"Name,attr,omitempty"`
	NumberOfComponents int    `xml:"NumberOfComponents,attr,omitempty"`
	Format             string `xml:"format,attr"`
	Data               string `xml:",chardata"`
}

type collection struct {
	DataSets []DataSet `xml:"DataSet"`
}

// DataSet is one entry of a .pvd collection.
type DataSet struct {
	Timestep float64 `xml:"timestep,attr" json:"timestep"`
	Group    string  `xml:"group,attr,omitempty" json:"group,omitempty"`
	Part     int     `xml:"part,attr" json:"part"`
	File     string  `xml:"file,attr" json:"file"`
}

func formatFloats(vs []float64) string {
	var sb strings.Builder
	for i, v := range vs {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return sb.String()
}

func formatInts[T int | uint8](vs []T) string {
	var sb strings.Builder
	for i, v := range vs {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Itoa(int(v)))
	}
	return sb.String()
}

func fieldArrays(fields []Field) dataArrays {
	da := dataArrays{}
	for _, f := range fields {
		da.Arrays = append(da.Arrays, dataArray{Type: "Float64", Name: f.Name, Format: "ascii", Data: formatFloats(f.Values)})
	}
	if len(fields) > 0 {
		da.Scalars = fields[0].Name
	}
	return da
}

func writeXML(w io.Writer, f *vtkFile) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to encode %s: %w", f.Type, err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteVTU writes g as an ASCII UnstructuredGrid file. The first point
// field, if any, is flagged as the active scalars.
func WriteVTU(w io.Writer, g *Grid) error {
	if err := g.Validate(); err != nil {
		return err
	}
	p := piece{
		NumberOfPoints: g.NumPoints(),
		NumberOfCells:  g.NumCells(),
		Points: dataArrays{Arrays: []dataArray{
			{Type: "Float64", NumberOfComponents: 3, Format: "ascii", Data: formatFloats(g.Points)},
		}},
		Cells: dataArrays{Arrays: []dataArray{
			{Type: "Int32", Name: "connectivity", Format: "ascii", Data: formatInts(g.Connectivity)},
			{Type: "Int32", Name: "offsets", Format: "ascii", Data: formatInts(g.Offsets)},
			{Type: "UInt8", Name: "types", Format: "ascii", Data: formatInts(g.Types)},
		}},
		PointData: fieldArrays(g.PointData),
		CellData:  fieldArrays(g.CellData),
	}
	return writeXML(w, &vtkFile{
		Type:      "UnstructuredGrid",
		Version:   "0.1",
		ByteOrder: "LittleEndian",
		Grid:      &unstructuredGrid{Pieces: []piece{p}},
	})
}

// WritePVD writes a Collection descriptor listing the given data sets.
func WritePVD(w io.Writer, sets []DataSet) error {
	if len(sets) == 0 {
		return fmt.Errorf("collection needs at least one data set")
	}
	return writeXML(w, &vtkFile{
		Type:       "Collection",
		Version:    "0.1",
		ByteOrder:  "LittleEndian",
		Collection: &collection{DataSets: sets},
	})
}

func decodeFile(r io.Reader, want string) (*vtkFile, error) {
	var f vtkFile
	if err := xml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse VTK XML: %w", err)
	}
	if f.Type != want {
		return nil, fmt.Errorf("expected VTKFile type %q, got %q", want, f.Type)
	}
	return &f, nil
}

// ReadPVD parses a Collection descriptor. Data sets are sorted by timestep.
func ReadPVD(r io.Reader) ([]DataSet, error) {
	f, err := decodeFile(r, "Collection")
	if err != nil {
		return nil, err
	}
	if f.Collection == nil || len(f.Collection.DataSets) == 0 {
		return nil, fmt.Errorf("collection has no data sets")
	}
	sets := append([]DataSet(nil), f.Collection.DataSets...)
	sort.SliceStable(sets, func(i, j int) bool { return sets[i].Timestep < sets[j].Timestep })
	return sets, nil
}

// ReadVTU parses an UnstructuredGrid file. Multiple pieces are merged.
// ASCII and uncompressed inline binary arrays are supported.
func ReadVTU(r io.Reader) (*Grid, error) {
	f, err := decodeFile(r, "UnstructuredGrid")
	if err != nil {
		return nil, err
	}
	if f.Compressor != "" {
		return nil, fmt.Errorf("compressed VTK data (%s) is not supported", f.Compressor)
	}
	if f.Grid == nil || len(f.Grid.Pieces) == 0 {
		return nil, fmt.Errorf("unstructured grid has no pieces")
	}
	dec := arrayDecoder{headerType: f.HeaderType, bigEndian: f.ByteOrder == "BigEndian"}

	g := &Grid{}
	for pi, p := range f.Grid.Pieces {
		base := g.NumPoints()
		connBase := len(g.Connectivity)
		if len(p.Points.Arrays) == 0 {
			return nil, fmt.Errorf("piece %d has no points", pi)
		}
		pts, err := dec.floats(p.Points.Arrays[0])
		if err != nil {
			return nil, fmt.Errorf("piece %d points: %w", pi, err)
		}
		comps := p.Points.Arrays[0].NumberOfComponents
		if comps == 0 {
			comps = 3
		}
		if comps != 3 {
			return nil, fmt.Errorf("piece %d: points have %d components", pi, comps)
		}
		g.Points = append(g.Points, pts...)

		for _, a := range p.Cells.Arrays {
			vals, err := dec.floats(a)
			if err != nil {
				return nil, fmt.Errorf("piece %d %s: %w", pi, a.Name, err)
			}
			switch a.Name {
			case "connectivity":
				for _, v := range vals {
					g.Connectivity = append(g.Connectivity, base+int(v))
				}
			case "offsets":
				for _, v := range vals {
					g.Offsets = append(g.Offsets, connBase+int(v))
				}
			case "types":
				for _, v := range vals {
					g.Types = append(g.Types, uint8(v))
				}
			}
		}

		if g.PointData, err = mergeFields(dec, g.PointData, p.PointData, pi); err != nil {
			return nil, err
		}
		if g.CellData, err = mergeFields(dec, g.CellData, p.CellData, pi); err != nil {
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func mergeFields(dec arrayDecoder, into []Field, arrays dataArrays, pi int) ([]Field, error) {
	// Active scalars first so Grid.Scalars and the writer keep the same default.
	ordered := append([]dataArray(nil), arrays.Arrays...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Name == arrays.Scalars && ordered[j].Name != arrays.Scalars
	})
	for _, a := range ordered {
		if a.NumberOfComponents > 1 {
			continue
		}
		vals, err := dec.floats(a)
		if err != nil {
			return nil, fmt.Errorf("piece %d field %s: %w", pi, a.Name, err)
		}
		found := false
		for i := range into {
			if into[i].Name == a.Name {
				into[i].Values = append(into[i].Values, vals...)
				found = true
			}
		}
		if !found {
			if pi > 0 {
				return nil, fmt.Errorf("piece %d introduces field %q", pi, a.Name)
			}
			into = append(into, Field{Name: a.Name, Values: vals})
		}
	}
	return into, nil
}

type arrayDecoder struct {
	headerType string
	bigEndian  bool
}

func (d arrayDecoder) order() binary.ByteOrder {
	if d.bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (d arrayDecoder) floats(a dataArray) ([]float64, error) {
	switch strings.ToLower(a.Format) {
	case "ascii", "":
		fields := strings.Fields(a.Data)
		out := make([]float64, len(fields))
		for i, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("bad value %q: %w", s, err)
			}
			out[i] = v
		}
		return out, nil
	case "binary":
		raw, err := d.payload(a.Data)
		if err != nil {
			return nil, err
		}
		return d.values(a.Type, raw)
	}
	return nil, fmt.Errorf("unsupported data array format %q", a.Format)
}

func (d arrayDecoder) headerSize() int {
	if strings.EqualFold(d.headerType, "UInt64") {
		return 8
	}
	return 4
}

// payload strips the byte-count header from an inline base64 array. Writers
// differ on whether header and data are encoded together or separately.
func (d arrayDecoder) payload(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	hs := d.headerSize()

	if all, err := base64.StdEncoding.DecodeString(s); err == nil && len(all) >= hs {
		if n := d.readHeader(all[:hs]); n == len(all)-hs {
			return all[hs:], nil
		}
	}

	headerChars := base64.StdEncoding.EncodedLen(hs)
	if len(s) < headerChars {
		return nil, fmt.Errorf("binary array too short")
	}
	head, err := base64.StdEncoding.DecodeString(s[:headerChars])
	if err != nil {
		return nil, fmt.Errorf("bad binary header: %w", err)
	}
	body, err := base64.StdEncoding.DecodeString(s[headerChars:])
	if err != nil {
		return nil, fmt.Errorf("bad binary payload: %w", err)
	}
	if n := d.readHeader(head); n != len(body) {
		return nil, fmt.Errorf("binary header announces %d bytes, found %d", n, len(body))
	}
	return body, nil
}

func (d arrayDecoder) readHeader(b []byte) int {
	if len(b) == 8 {
		return int(d.order().Uint64(b))
	}
	return int(d.order().Uint32(b))
}

func (d arrayDecoder) values(typ string, raw []byte) ([]float64, error) {
	var size int
	var read func([]byte) float64
	o := d.order()
	switch typ {
	case "Float64":
		size, read = 8, func(b []byte) float64 { return math.Float64frombits(o.Uint64(b)) }
	case "Float32":
		size, read = 4, func(b []byte) float64 { return float64(math.Float32frombits(o.Uint32(b))) }
	case "Int64":
		size, read = 8, func(b []byte) float64 { return float64(int64(o.Uint64(b))) }
	case "UInt64":
		size, read = 8, func(b []byte) float64 { return float64(o.Uint64(b)) }
	case "Int32":
		size, read = 4, func(b []byte) float64 { return float64(int32(o.Uint32(b))) }
	case "UInt32":
		size, read = 4, func(b []byte) float64 { return float64(o.Uint32(b)) }
	case "Int16":
		size, read = 2, func(b []byte) float64 { return float64(int16(o.Uint16(b))) }
	case "UInt16":
		size, read = 2, func(b []byte) float64 { return float64(o.Uint16(b)) }
	case "Int8":
		size, read = 1, func(b []byte) float64 { return float64(int8(b[0])) }
	case "UInt8":
		size, read = 1, func(b []byte) float64 { return float64(b[0]) }
	default:
		return nil, fmt.Errorf("unsupported data array type %q", typ)
	}
	if len(raw)%size != 0 {
		return nil, fmt.Errorf("%d bytes is not a whole number of %s values", len(raw), typ)
	}
	r := bytes.NewReader(raw)
	out := make([]float64, 0, len(raw)/size)
	buf := make([]byte, size)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			break
		}
		out = append(out, read(buf))
	}
	return out, nil
}
