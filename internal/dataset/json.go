package dataset

import (
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	apperrors "github.com/agbru/parglm/internal/errors"
)

// ParseJSON parses a JSON dataset of the form
//
//	{"x": [[1, 0.5], [1, 1.5]], "y": [0, 1], "weights": [...],
//	 "offset": [...], "names": ["a", "b"], "beta0": [...]}
//
// Only "x" and "y" are required. Rows of x are observations. Missing names
// default to x1..xp.
func ParseJSON(data []byte, source string, opts Options) (*Dataset, error) {
	if !gjson.ValidBytes(data) {
		return nil, apperrors.NewDataError(source, 0, fmt.Errorf("%w: invalid JSON document", ErrMalformed))
	}
	return FromJSON(gjson.ParseBytes(data), source, opts)
}

// FromJSON builds a dataset from an already parsed JSON object. The HTTP
// server uses it on the "data" member of a fit request.
func FromJSON(doc gjson.Result, source string, opts Options) (*Dataset, error) {
	if !doc.IsObject() {
		return nil, apperrors.NewDataError(source, 0, fmt.Errorf("%w: dataset must be a JSON object", ErrMalformed))
	}
	rows := doc.Get("x")
	if !rows.Exists() {
		return nil, apperrors.NewDataError(source, 0, fmt.Errorf("%w: %q", ErrMissingColumn, "x"))
	}
	if !rows.IsArray() {
		return nil, apperrors.NewDataError(source, 0, fmt.Errorf("%w: x must be an array of rows", ErrMalformed))
	}

	y, err := numbers(doc, "y")
	if err != nil {
		return nil, apperrors.NewDataError(source, 0, err)
	}
	if y == nil {
		return nil, apperrors.NewDataError(source, 0, fmt.Errorf("%w: %q", ErrMissingColumn, "y"))
	}

	p := -1
	var names []string
	var b *builder
	var rowErr error
	line := 0
	rows.ForEach(func(_, row gjson.Result) bool {
		line++
		values, err := numberArray(row, "x row")
		if err != nil {
			rowErr = err
			return false
		}
		if p < 0 {
			p = len(values)
			if names, err = predictorNames(doc, p); err != nil {
				rowErr = err
				return false
			}
			b = newBuilder(names, opts.Intercept)
		}
		if len(values) != p {
			rowErr = apperrors.NewDimensionError("x row", p, len(values))
			return false
		}
		if line > len(y) {
			rowErr = apperrors.NewDimensionError("y", line, len(y))
			return false
		}
		b.add(values, y[line-1], 1, 0)
		return true
	})
	if rowErr != nil {
		return nil, apperrors.NewDataError(source, line, rowErr)
	}
	if b == nil {
		return nil, apperrors.NewDataError(source, 0, ErrEmptyDataset)
	}
	if len(y) != line {
		return nil, apperrors.NewDataError(source, 0, apperrors.NewDimensionError("y", line, len(y)))
	}

	for _, col := range []struct {
		field string
		dst   []float64
	}{
		{"weights", b.weights},
		{"offset", b.offset},
	} {
		values, err := numbers(doc, col.field)
		if err != nil {
			return nil, apperrors.NewDataError(source, 0, err)
		}
		if values == nil {
			continue
		}
		if len(values) != line {
			return nil, apperrors.NewDataError(source, 0, apperrors.NewDimensionError(col.field, line, len(values)))
		}
		copy(col.dst, values)
	}

	ds, err := b.build(source)
	if err != nil {
		return nil, err
	}
	beta0, err := numbers(doc, "beta0")
	if err != nil {
		return nil, apperrors.NewDataError(source, 0, err)
	}
	if beta0 != nil {
		if len(beta0) != ds.Problem.X.P {
			return nil, apperrors.NewDataError(source, 0, apperrors.NewDimensionError("beta0", ds.Problem.X.P, len(beta0)))
		}
		ds.Problem.Beta0 = beta0
	}
	return ds, nil
}

// numbers returns the numeric array stored at field, or nil if the field is
// absent.
func numbers(doc gjson.Result, field string) ([]float64, error) {
	v := doc.Get(field)
	if !v.Exists() {
		return nil, nil
	}
	return numberArray(v, field)
}

func numberArray(v gjson.Result, field string) ([]float64, error) {
	if !v.IsArray() {
		return nil, fmt.Errorf("%w: %s must be an array of numbers", ErrMalformed, field)
	}
	elems := v.Array()
	out := make([]float64, len(elems))
	for i, e := range elems {
		if e.Type != gjson.Number {
			return nil, fmt.Errorf("%w: %s[%d] = %s is not a number", ErrMalformed, field, i, e.Raw)
		}
		out[i] = e.Float()
	}
	return out, nil
}

func predictorNames(doc gjson.Result, p int) ([]string, error) {
	v := doc.Get("names")
	if !v.Exists() {
		names := make([]string, p)
		for i := range names {
			names[i] = "x" + strconv.Itoa(i+1)
		}
		return names, nil
	}
	if !v.IsArray() {
		return nil, fmt.Errorf("%w: names must be an array of strings", ErrMalformed)
	}
	elems := v.Array()
	if len(elems) != p {
		return nil, apperrors.NewDimensionError("names", p, len(elems))
	}
	names := make([]string, p)
	for i, e := range elems {
		if e.Type != gjson.String {
			return nil, fmt.Errorf("%w: names[%d] is not a string", ErrMalformed, i)
		}
		names[i] = e.String()
	}
	return names, nil
}
