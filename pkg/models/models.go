/*
Package models defines the JSON documents exchanged by parglm: the fit
request accepted by the HTTP server and the fit response shared by the server
and the CLI's -json output.

Numeric fields that may be undefined (a standard error of an aliased
coefficient, the dispersion of a saturated fit) are pointers and encode as
null, because JSON has no NaN.
*/
package models

import "encoding/json"

// FitRequest is the body of POST /fit.
type FitRequest struct {
	// Family is a registered family name, e.g. "binomial_probit".
	Family string `json:"family"`
	// Data holds the dataset in the JSON dataset format:
	// {"x": [[...], ...], "y": [...], "weights": [...], "offset": [...], "names": [...]}.
	Data json.RawMessage `json:"data"`
	// Intercept prepends a column of ones. Defaults to true.
	Intercept *bool      `json:"intercept,omitempty"`
	Options   FitOptions `json:"options,omitempty"`
}

// FitOptions are the tunables a client may override. Zero values select the
// server defaults.
type FitOptions struct {
	Tolerance     float64 `json:"tol,omitempty"`
	MaxIterations int     `json:"max_iterations,omitempty"`
	BlockSize     int     `json:"block_size,omitempty"`
	Trace         bool    `json:"trace,omitempty"`
}

// Coefficient is one row of the coefficient table.
type Coefficient struct {
	Name     string   `json:"name"`
	Estimate float64  `json:"estimate"`
	StdError *float64 `json:"std_error"`
	// Statistic is the z value (fixed dispersion) or t value.
	Statistic *float64 `json:"statistic"`
	PValue    *float64 `json:"p_value"`
	Aliased   bool     `json:"aliased,omitempty"`
}

// IterationRecord mirrors one trace record.
type IterationRecord struct {
	Iteration int       `json:"iteration"`
	Beta      []float64 `json:"beta"`
	DeltaNorm float64   `json:"delta_norm"`
	Deviance  float64   `json:"deviance"`
}

// FitResponse is the outcome of one fit.
type FitResponse struct {
	Family           string            `json:"family"`
	Converged        bool              `json:"converged"`
	Iterations       int               `json:"iterations"`
	Deviance         float64           `json:"deviance"`
	Dispersion       *float64          `json:"dispersion"`
	Rank             int               `json:"rank"`
	Observations     int               `json:"observations"`
	GoodObservations int               `json:"good_observations"`
	Coefficients     []Coefficient     `json:"coefficients"`
	Duration         string            `json:"duration"`
	Trace            []IterationRecord `json:"trace,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// FamiliesResponse is the body of GET /families.
type FamiliesResponse struct {
	Families []string `json:"families"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	// Error is the HTTP status text.
	Error string `json:"error"`
	// Message describes the failure.
	Message string `json:"message,omitempty"`
}
