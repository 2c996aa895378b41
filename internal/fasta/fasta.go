// Package fasta parses FASTA formatted sequence files into discrete
// records. Parsing is conservative: malformed input degrades to zero or
// few records rather than failing, the pipeline handles empty results
// downstream.
package fasta

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record represents a single FASTA record. Records are transient, they
// are produced by the parser, consumed by the matcher and discarded.
type Record struct {
	Header   string
	Sequence string
}

// Length returns the number of bases in the sequence.
func (r *Record) Length() int {
	return len(r.Sequence)
}

// GCContent returns the fraction of G and C bases in the sequence,
// case-insensitive. Returns 0 for an empty sequence.
func (r *Record) GCContent() float64 {
	if len(r.Sequence) == 0 {
		return 0
	}
	gc := 0
	for i := 0; i < len(r.Sequence); i++ {
		switch r.Sequence[i] {
		case 'G', 'C', 'g', 'c':
			gc++
		}
	}
	return float64(gc) / float64(len(r.Sequence))
}

// Parse reads FASTA records from r. A line starting with '>' begins a
// new record with the remainder of the line (trimmed) as the header;
// subsequent non-marker lines are trimmed and concatenated into the
// sequence body. A record is emitted only when both header and body are
// non-empty. Lines before the first marker (such as converter preamble
// comments) are discarded. Input with no markers yields zero records and
// no error.
func Parse(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var records []Record
	var header string
	var body strings.Builder
	inRecord := false

	flush := func() {
		if inRecord && header != "" && body.Len() > 0 {
			records = append(records, Record{Header: header, Sequence: body.String()})
		}
		body.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, ">") {
			flush()
			header = strings.TrimSpace(line[1:])
			inRecord = true
			continue
		}
		if !inRecord {
			// Preamble before the first record, ignore.
			continue
		}
		body.WriteString(strings.TrimSpace(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning sequence data: %w", err)
	}
	flush()

	return records, nil
}

// ParseFile opens path and parses its content with Parse.
func ParseFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening sequence file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
