package dataset

import (
	"errors"
	"fmt"
	"io"

	"github.com/fpang/tooltrace/internal/sequence"
)

// SequenceColumns is the sequence dataset header.
var SequenceColumns = []string{ColVideoName, ColActionX}

// WriteSequences writes one row per video.
func WriteSequences(w io.Writer, seqs []sequence.ActionSequence) error {
	rows := make([][]string, 0, len(seqs)+1)
	rows = append(rows, SequenceColumns)
	for _, s := range seqs {
		rows = append(rows, []string{s.VideoName, s.String()})
	}
	return writeAll(w, rows)
}

// WriteSequencesFile writes the sequence dataset to path.
func WriteSequencesFile(path string, seqs []sequence.ActionSequence) error {
	return writeFile(path, func(w io.Writer) error { return WriteSequences(w, seqs) })
}

// ReadSequences reads a sequence dataset. Rows keep file order.
func ReadSequences(r io.Reader) ([]sequence.ActionSequence, error) {
	cr := newReader(r)
	h, _, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	videoIdx, err := h.require(ColVideoName)
	if err != nil {
		return nil, err
	}
	actionIdx, err := h.require(ColActionX, ColAction)
	if err != nil {
		return nil, err
	}

	var out []sequence.ActionSequence
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, sequence.ActionSequence{
			VideoName: field(rec, videoIdx),
			Actions:   sequence.Parse(field(rec, actionIdx)),
		})
	}
	return out, nil
}

// ReadSequencesFile reads a sequence dataset from path.
func ReadSequencesFile(path string) ([]sequence.ActionSequence, error) {
	return readFile(path, ReadSequences)
}
