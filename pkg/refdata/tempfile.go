package refdata

import "os"

// writeTempCSV spills embedded CSV bytes to a real file so DuckDB's
// read_csv_auto (which takes a path, not a byte slice) can read it. The
// returned cleanup removes the file.
func writeTempCSV(data []byte) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "cubebuilder-refdata-*.csv")
	if err != nil {
		return "", nil, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}
