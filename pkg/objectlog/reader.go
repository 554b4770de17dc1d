package objectlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Scan calls fn for each entry in the file at path, in write order. It stops
// at the first error from fn. A final line without a newline is reported as
// a torn entry.
func Scan(path string, fn func(Entry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("objectlog: open %s: %w", path, err)
	}
	defer f.Close()

	return scan(f, path, fn)
}

func scan(r io.Reader, path string, fn func(Entry) error) error {
	br := bufio.NewReader(r)

	for lineNo := 1; ; lineNo++ {
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("objectlog: read %s: %w", path, err)
		}
		atEOF := err != nil

		if len(bytes.TrimSpace(line)) > 0 {
			if atEOF {
				return fmt.Errorf("objectlog: %s line %d: torn entry without newline", path, lineNo)
			}
			var entry Entry
			if uerr := json.Unmarshal(line, &entry); uerr != nil {
				return fmt.Errorf("objectlog: %s line %d: %w", path, lineNo, uerr)
			}
			if ferr := fn(entry); ferr != nil {
				return ferr
			}
		}

		if atEOF {
			return nil
		}
	}
}

// ReadEntries returns every entry in the file at path
func ReadEntries(path string) ([]Entry, error) {
	var entries []Entry
	err := Scan(path, func(e Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
