package table

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// #region read
// ReadCSV reads a header row followed by data rows. Empty header fields are
// named "Unnamed: <index>", the name pandas gives a written index column.
// Short rows are padded with missing cells; long rows are an error.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read header: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	names := make([]string, len(header))
	for i, h := range header {
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		names[i] = h
	}

	values := make([][]Value, len(names))
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		line++
		if len(rec) > len(names) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", line, len(rec), len(names))
		}
		for i := range names {
			if i < len(rec) {
				values[i] = append(values[i], ParseCell(rec[i]))
			} else {
				values[i] = append(values[i], Missing())
			}
		}
	}

	t := &Table{}
	for i, n := range names {
		if values[i] == nil {
			values[i] = []Value{}
		}
		if err := t.Append(Column{Name: n, Values: values[i]}); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ReadCSVFile opens and reads a CSV file.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// #endregion read

// #region write
// WriteCSV writes the header and every row. Missing cells are written empty.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, t.Width())
	for r := 0; r < t.Rows(); r++ {
		for c := range t.cols {
			rec[c] = t.cols[c].Values[r].String()
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", r+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile creates (or truncates) path and writes the table to it.
func WriteCSVFile(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// #endregion write
