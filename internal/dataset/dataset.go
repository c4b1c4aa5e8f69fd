// Package dataset loads model inputs from CSV and JSON into glm problems.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/agbru/parglm/internal/errors"
	"github.com/agbru/parglm/internal/glm"
)

// Format names an input encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// InterceptName is the predictor name given to the generated intercept column.
const InterceptName = "(Intercept)"

// DefaultResponse is the response column used when none is configured.
const DefaultResponse = "y"

var (
	// ErrEmptyDataset is returned when the input holds no observations.
	ErrEmptyDataset = errors.New("dataset has no observations")
	// ErrMissingColumn is returned when a configured column is absent.
	ErrMissingColumn = errors.New("column not found")
	// ErrNoPredictors is returned when no predictor remains after the
	// response, weights and offset columns are removed and no intercept is
	// requested.
	ErrNoPredictors = errors.New("dataset has no predictors")
	// ErrMalformed is returned for values that are not finite numbers or
	// records of the wrong shape.
	ErrMalformed = errors.New("malformed value")
	// ErrUnknownFormat is returned by Load for unsupported formats.
	ErrUnknownFormat = errors.New("unknown dataset format")
)

// Options selects columns and the intercept.
type Options struct {
	// Response is the response column for CSV input. Empty means "y".
	Response string
	// Weights and Offset name optional CSV columns.
	Weights string
	Offset  string
	// Intercept prepends a column of ones to the design.
	Intercept bool
}

func (o Options) response() string {
	if o.Response == "" {
		return DefaultResponse
	}
	return o.Response
}

// Dataset is a loaded problem together with its predictor names.
type Dataset struct {
	Names   []string
	Problem glm.Problem
}

// Observations returns the number of rows.
func (d *Dataset) Observations() int { return d.Problem.X.N }

// builder accumulates rows and produces a Dataset.
type builder struct {
	names     []string
	intercept bool
	data      []float64
	y         []float64
	weights   []float64
	offset    []float64
}

func newBuilder(names []string, intercept bool) *builder {
	b := &builder{intercept: intercept}
	if intercept {
		b.names = append(b.names, InterceptName)
	}
	b.names = append(b.names, names...)
	return b
}

func (b *builder) add(x []float64, y, weight, offset float64) {
	if b.intercept {
		b.data = append(b.data, 1)
	}
	b.data = append(b.data, x...)
	b.y = append(b.y, y)
	b.weights = append(b.weights, weight)
	b.offset = append(b.offset, offset)
}

func (b *builder) build(source string) (*Dataset, error) {
	n := len(b.y)
	if n == 0 {
		return nil, apperrors.NewDataError(source, 0, ErrEmptyDataset)
	}
	p := len(b.names)
	if p == 0 {
		return nil, apperrors.NewDataError(source, 0, ErrNoPredictors)
	}
	x, err := glm.NewDesign(p, n, b.data)
	if err != nil {
		return nil, apperrors.NewDataError(source, 0, err)
	}
	prob := glm.NewProblem(x, b.y)
	prob.Weights = b.weights
	prob.Offset = b.offset
	return &Dataset{Names: b.names, Problem: prob}, nil
}

// DetectFormat infers the format from a file extension, defaulting to CSV.
func DetectFormat(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatCSV
}

// Load reads the dataset at path. An empty format is detected from the
// extension.
func Load(path string, format Format, opts Options) (*Dataset, error) {
	if format == "" {
		format = DetectFormat(path)
	}
	switch format {
	case FormatCSV:
		f, err := os.Open(path)
		if err != nil {
			return nil, apperrors.NewDataError(path, 0, err)
		}
		defer f.Close()
		return ReadCSV(f, path, opts)
	case FormatJSON:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.NewDataError(path, 0, err)
		}
		return ParseJSON(data, path, opts)
	default:
		return nil, apperrors.NewDataError(path, 0, fmt.Errorf("%w: %q", ErrUnknownFormat, format))
	}
}
