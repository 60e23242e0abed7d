package dataset

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/sbinet/npyio/npz"
)

const (
	xKey = "x.npy"
	yKey = "y.npy"
)

// WriteNPZ writes ds as an npz archive holding two float32 arrays, x.npy and
// y.npy.
func WriteNPZ(w io.Writer, ds *Dataset) error {
	zw := npz.NewWriter(w)
	if err := zw.Write(xKey, ds.X); err != nil {
		return fmt.Errorf("while writing %s: %w", xKey, err)
	}
	if err := zw.Write(yKey, ds.Y); err != nil {
		return fmt.Errorf("while writing %s: %w", yKey, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("while closing npz archive: %w", err)
	}
	return nil
}

func ReadNPZ(r io.ReaderAt, size int64) (*Dataset, error) {
	zr, err := npz.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("while opening npz archive: %w", err)
	}

	ds := &Dataset{}
	if err := zr.Read(xKey, &ds.X); err != nil {
		return nil, fmt.Errorf("while reading %s: %w", xKey, err)
	}
	if err := zr.Read(yKey, &ds.Y); err != nil {
		return nil, fmt.Errorf("while reading %s: %w", yKey, err)
	}
	if len(ds.X) != len(ds.Y) {
		return nil, fmt.Errorf("x has %d samples but y has %d", len(ds.X), len(ds.Y))
	}

	return ds, nil
}

func SaveNPZ(path string, ds *Dataset) error {
	buf := &bytes.Buffer{}
	if err := WriteNPZ(buf, ds); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("while writing %s: %w", path, err)
	}
	return nil
}

func LoadNPZ(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("while reading %s: %w", path, err)
	}
	ds, err := ReadNPZ(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("while decoding %s: %w", path, err)
	}
	return ds, nil
}
