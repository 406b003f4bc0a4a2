package dataset

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/fpang/tooltrace/internal/sequence"
)

// Metadata is an external table keyed by Video Name, e.g. Category and
// Youtuber's Experience. Columns keep file order and exclude the key.
type Metadata struct {
	Columns []string
	rows    []metadataRow
}

type metadataRow struct {
	video  string
	values []string
}

// ReadMetadata reads a metadata table. Video Name is required; every other
// column is carried through the join.
func ReadMetadata(r io.Reader) (*Metadata, error) {
	cr := newReader(r)
	h, cols, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	keyIdx, err := h.require(ColVideoName)
	if err != nil {
		return nil, err
	}

	md := &Metadata{}
	var valueIdx []int
	for i, c := range cols {
		if i == keyIdx {
			continue
		}
		md.Columns = append(md.Columns, c)
		valueIdx = append(valueIdx, i)
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := metadataRow{video: field(rec, keyIdx), values: make([]string, len(valueIdx))}
		for j, i := range valueIdx {
			row.values[j] = field(rec, i)
		}
		md.rows = append(md.rows, row)
	}
	return md, nil
}

// ReadMetadataFile reads a metadata table from path.
func ReadMetadataFile(path string) (*Metadata, error) {
	return readFile(path, ReadMetadata)
}

// Len returns the number of metadata rows.
func (m *Metadata) Len() int {
	return len(m.rows)
}

// MergedRecord is one sequence row with the metadata of its video. When no
// metadata row matched, Matched is false and every value is null.
type MergedRecord struct {
	VideoName string
	Sequence  string
	Matched   bool
	Values    []string
}

// Merged is the result of LeftJoin.
type Merged struct {
	// MetadataColumns are the columns after Video Name and Action_x.
	MetadataColumns []string
	Records         []MergedRecord
}

// Metadata returns record i's metadata keyed by column, or nil when the
// record had no match.
func (m *Merged) Metadata(i int) map[string]string {
	rec := m.Records[i]
	if !rec.Matched {
		return nil
	}
	meta := make(map[string]string, len(m.MetadataColumns))
	for j, col := range m.MetadataColumns {
		meta[col] = rec.Values[j]
	}
	return meta
}

// LeftJoin attaches metadata to each sequence by exact Video Name match.
// Output has exactly one record per sequence, in sequence order. Metadata
// rows with no sequence are dropped. When several metadata rows share a
// name the first one is used and the rest are reported on logger.
func LeftJoin(seqs []sequence.ActionSequence, md *Metadata, logger zerolog.Logger) *Merged {
	index := make(map[string][]string, md.Len())
	dups := make(map[string]int)
	for _, row := range md.rows {
		if _, seen := index[row.video]; seen {
			dups[row.video]++
			continue
		}
		index[row.video] = row.values
	}
	for video, n := range dups {
		logger.Warn().
			Str("video", video).
			Int("ignored_rows", n).
			Msg("Duplicate metadata rows, using the first")
	}

	out := &Merged{
		MetadataColumns: mergedColumns(md.Columns),
		Records:         make([]MergedRecord, len(seqs)),
	}
	unmatched := 0
	for i, s := range seqs {
		rec := MergedRecord{VideoName: s.VideoName, Sequence: s.String()}
		if values, ok := index[s.VideoName]; ok {
			rec.Matched = true
			rec.Values = values
		} else {
			unmatched++
		}
		out.Records[i] = rec
	}

	logger.Info().
		Int("sequences", len(seqs)).
		Int("metadata_rows", md.Len()).
		Int("unmatched", unmatched).
		Msg("Sequences joined with metadata")
	return out
}

// mergedColumns renames a metadata column that collides with Action_x the
// way a pandas merge would.
func mergedColumns(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		if c == ColActionX {
			c = "Action_y"
		}
		out[i] = c
	}
	return out
}

// Header returns the merged dataset header.
func (m *Merged) Header() []string {
	return append([]string{ColVideoName, ColActionX}, m.MetadataColumns...)
}

// WriteMerged writes the merged dataset. Null metadata is an empty cell.
func WriteMerged(w io.Writer, m *Merged) error {
	rows := make([][]string, 0, len(m.Records)+1)
	rows = append(rows, m.Header())
	for _, rec := range m.Records {
		row := make([]string, 2, 2+len(m.MetadataColumns))
		row[0], row[1] = rec.VideoName, rec.Sequence
		if rec.Matched {
			row = append(row, rec.Values...)
		} else {
			row = append(row, make([]string, len(m.MetadataColumns))...)
		}
		rows = append(rows, row)
	}
	return writeAll(w, rows)
}

// WriteMergedFile writes the merged dataset to path.
func WriteMergedFile(path string, m *Merged) error {
	return writeFile(path, func(w io.Writer) error { return WriteMerged(w, m) })
}
