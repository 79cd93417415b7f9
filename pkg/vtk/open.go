package vtk

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/aretw0/amrviz/pkg/mesh"
)

// Extensions of the supported interchange files.
const (
	ExtVTU = ".vtu"
	ExtPVD = ".pvd"
)

// Open reads the grid stored under name in fsys. A .pvd descriptor is
// resolved to its first data set, the equivalent of selecting time point 0.
func Open(fsys fs.FS, name string) (*Grid, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ExtVTU:
		return readVTUFile(fsys, name)
	case ExtPVD:
		f, err := fsys.Open(name)
		if err != nil {
			return nil, err
		}
		sets, err := ReadPVD(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		target := path.Join(path.Dir(name), sets[0].File)
		if !fs.ValidPath(target) {
			return nil, fmt.Errorf("%s references invalid path %q", name, sets[0].File)
		}
		return readVTUFile(fsys, target)
	}
	return nil, fmt.Errorf("unsupported file type %q", path.Ext(name))
}

func readVTUFile(fsys fs.FS, name string) (*Grid, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := ReadVTU(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return g, nil
}

// SeriesPaths returns the descriptor name and the single data file name
// used for one solution: base.pvd referencing base/base_0.vtu. base must
// not contain a directory.
func SeriesPaths(base string) (pvd, vtu string) {
	return base + ExtPVD, path.Join(base, base+"_0"+ExtVTU)
}

// CreateFunc opens a named file for writing.
type CreateFunc func(name string) (io.WriteCloser, error)

// Aborter is implemented by writers that can drop a failed write instead
// of publishing it on Close.
type Aborter interface {
	Abort() error
}

// WriteSeries writes one solution as a .vtu piece plus its .pvd descriptor
// through create and returns the descriptor name.
func WriteSeries(create CreateFunc, base string, m *mesh.Mesh, pointData, cellData []Field) (string, error) {
	if base == "" || strings.ContainsAny(base, `/\`) {
		return "", fmt.Errorf("series name %q must be a plain file name", base)
	}
	g, err := FromMesh(m, pointData, cellData)
	if err != nil {
		return "", err
	}
	pvdName, vtuName := SeriesPaths(base)

	if err := writeWith(create, vtuName, func(w io.Writer) error { return WriteVTU(w, g) }); err != nil {
		return "", err
	}
	sets := []DataSet{{Timestep: 0, Part: 0, File: vtuName}}
	if err := writeWith(create, pvdName, func(w io.Writer) error { return WritePVD(w, sets) }); err != nil {
		return "", err
	}
	return pvdName, nil
}

func writeWith(create CreateFunc, name string, fn func(io.Writer) error) error {
	w, err := create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := fn(w); err != nil {
		if a, ok := w.(Aborter); ok {
			_ = a.Abort()
		} else {
			_ = w.Close()
		}
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	return nil
}
