package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/agbru/parglm/internal/errors"
	"github.com/agbru/parglm/internal/glm"
)

// csvLayout maps header positions to roles.
type csvLayout struct {
	response   int
	weights    int
	offset     int
	predictors []int
	names      []string
}

func newCSVLayout(header []string, opts Options) (csvLayout, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	find := func(name string) (int, error) {
		if name == "" {
			return -1, nil
		}
		i, ok := index[name]
		if !ok {
			return -1, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
		return i, nil
	}

	var l csvLayout
	var err error
	if l.response, err = find(opts.response()); err != nil {
		return l, err
	}
	if l.weights, err = find(opts.Weights); err != nil {
		return l, err
	}
	if l.offset, err = find(opts.Offset); err != nil {
		return l, err
	}
	for i, name := range header {
		if i == l.response || i == l.weights || i == l.offset {
			continue
		}
		l.predictors = append(l.predictors, i)
		l.names = append(l.names, strings.TrimSpace(name))
	}
	return l, nil
}

func parseValue(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrMalformed, s)
	}
	return v, nil
}

// ReadCSV parses a CSV stream whose first record is a header. The response
// column defaults to "y"; every column that is not the response, weights or
// offset becomes a predictor in header order.
//
// Parameters:
//   - r: The CSV input.
//   - source: A name for error messages, usually the file path.
//   - opts: Column selection.
//
// Returns:
//   - *Dataset: The parsed dataset.
//   - error: A DataError carrying the offending line.
func ReadCSV(r io.Reader, source string, opts Options) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.NewDataError(source, 0, ErrEmptyDataset)
	}
	if err != nil {
		return nil, apperrors.NewDataError(source, 1, err)
	}
	layout, err := newCSVLayout(header, opts)
	if err != nil {
		return nil, apperrors.NewDataError(source, 1, err)
	}

	b := newBuilder(layout.names, opts.Intercept)
	row := make([]float64, len(layout.predictors))
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.Line
			}
			return nil, apperrors.NewDataError(source, line, err)
		}
		line, _ := cr.FieldPos(0)

		for j, col := range layout.predictors {
			if row[j], err = parseValue(record[col]); err != nil {
				return nil, apperrors.NewDataError(source, line, err)
			}
		}
		y, err := parseValue(record[layout.response])
		if err != nil {
			return nil, apperrors.NewDataError(source, line, err)
		}
		weight, offset := 1.0, 0.0
		if layout.weights >= 0 {
			if weight, err = parseValue(record[layout.weights]); err != nil {
				return nil, apperrors.NewDataError(source, line, err)
			}
		}
		if layout.offset >= 0 {
			if offset, err = parseValue(record[layout.offset]); err != nil {
				return nil, apperrors.NewDataError(source, line, err)
			}
		}
		b.add(row, y, weight, offset)
	}
	return b.build(source)
}

// WriteCSV writes a problem as CSV with a header of names followed by the
// response column. Weights and offset are written only when they are not all
// 1 and all 0 respectively.
func WriteCSV(w io.Writer, names []string, response string, prob glm.Problem) error {
	if len(names) != prob.X.P {
		return apperrors.NewDimensionError("names", prob.X.P, len(names))
	}
	withWeights := !allEqual(prob.Weights, 1)
	withOffset := !allEqual(prob.Offset, 0)

	cw := csv.NewWriter(w)
	header := append(append([]string(nil), names...), response)
	if withWeights {
		header = append(header, "weights")
	}
	if withOffset {
		header = append(header, "offset")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	format := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for i := 0; i < prob.X.N; i++ {
		record = record[:0]
		for _, v := range prob.X.Observation(i) {
			record = append(record, format(v))
		}
		record = append(record, format(prob.Y[i]))
		if withWeights {
			record = append(record, format(prob.Weights[i]))
		}
		if withOffset {
			record = append(record, format(prob.Offset[i]))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func allEqual(v []float64, want float64) bool {
	for _, x := range v {
		if x != want {
			return false
		}
	}
	return true
}
