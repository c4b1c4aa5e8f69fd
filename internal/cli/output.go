package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/agbru/parglm/internal/glm"
	"github.com/agbru/parglm/internal/service"
	"github.com/agbru/parglm/internal/ui"
	"github.com/agbru/parglm/pkg/models"
)

// OutputConfig holds the output settings of a run.
type OutputConfig struct {
	// OutputFile receives the results when set. A .json extension selects
	// JSON, anything else the text summary.
	OutputFile string
	// Quiet prints only the estimates.
	Quiet bool
	// JSON prints models.FitResponse documents.
	JSON bool
}

// FitReport is one requested fit ready for display.
type FitReport struct {
	// Family is the requested family name.
	Family string
	// Result is nil when Err is set.
	Result *glm.Result
	Err    error
	// Names are the predictor names of the dataset.
	Names        []string
	Observations int
}

// Response converts the report to its JSON document.
func (r FitReport) Response() models.FitResponse {
	if r.Err != nil {
		return models.FitResponse{Family: r.Family, Error: r.Err.Error()}
	}
	return service.NewFitResponse(r.Result, r.Names, r.Observations)
}

// formatValue renders NaN as NA.
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func formatPValue(p float64) string {
	switch {
	case math.IsNaN(p):
		return "NA"
	case p < 2e-16:
		return "<2e-16"
	}
	return strconv.FormatFloat(p, 'g', 4, 64)
}

func coefficientName(names []string, j int) string {
	if j < len(names) {
		return names[j]
	}
	return fmt.Sprintf("x%d", j+1)
}

// writeFit prints the summary of a successful fit with the colors of th.
func writeFit(out io.Writer, rep FitReport, th ui.Theme) {
	res := rep.Result
	rows := glm.Summarize(res)

	statHeader, pHeader := "t value", "Pr(>|t|)"
	if res.DispersionFixed {
		statHeader, pHeader = "z value", "Pr(>|z|)"
	}

	fmt.Fprintf(out, "%s %s\n", th.Paint(th.Bold, "Family:"), th.Paint(th.Primary, res.Family))
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "\tEstimate\tStd. Error\t%s\t%s\n", statHeader, pHeader)
	aliased := 0
	for j, row := range rows {
		if row.Aliased {
			aliased++
			fmt.Fprintf(tw, "%s\tNA\tNA\tNA\tNA\n", coefficientName(rep.Names, j))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", coefficientName(rep.Names, j),
			formatValue(row.Estimate), formatValue(row.StdError), formatValue(row.Statistic), formatPValue(row.PValue))
	}
	tw.Flush()

	if aliased > 0 {
		fmt.Fprintf(out, "%s\n", th.Paint(th.Dim, fmt.Sprintf("(%d coefficients not defined because of singularities)", aliased)))
	}
	if res.DispersionFixed {
		fmt.Fprintf(out, "(Dispersion parameter taken to be 1)\n")
	} else {
		fmt.Fprintf(out, "Dispersion: %s\n", th.Paint(th.Secondary, formatValue(res.Dispersion)))
	}
	fmt.Fprintf(out, "Deviance: %s on %d degrees of freedom (%d of %d observations used)\n",
		th.Paint(th.Secondary, formatValue(res.Deviance)), res.ResidualDF(), res.GoodObservations, rep.Observations)
	fmt.Fprintf(out, "Rank: %d of %d\n", res.Rank, len(res.Coefficients))
	if res.Converged {
		fmt.Fprintf(out, "IRLS iterations: %d %s\n", res.Iterations, th.Paint(th.Success, "(converged)"))
	} else {
		fmt.Fprintf(out, "IRLS iterations: %d %s\n", res.Iterations, th.Paint(th.Warning, "(did not converge)"))
	}
	duration := FormatExecutionDuration(res.Duration)
	if res.Duration == 0 {
		duration = "< 1µs"
	}
	fmt.Fprintf(out, "Fit time: %s\n", duration)
}

// DisplayFit prints the coefficient table of a successful fit using the
// current theme.
//
// Parameters:
//   - rep: The fit to display; rep.Result must be set.
//   - out: The output writer.
func DisplayFit(rep FitReport, out io.Writer) {
	writeFit(out, rep, ui.GetCurrentTheme())
}

// FormatQuietResult lists one "name<TAB>estimate" line per coefficient, with
// full precision for scripts. Aliased coefficients print NA.
func FormatQuietResult(rep FitReport) string {
	var b strings.Builder
	rows := glm.Summarize(rep.Result)
	for j, row := range rows {
		value := strconv.FormatFloat(row.Estimate, 'g', -1, 64)
		if row.Aliased {
			value = "NA"
		}
		fmt.Fprintf(&b, "%s\t%s\n", coefficientName(rep.Names, j), value)
	}
	return b.String()
}

// WriteJSON encodes v as indented JSON.
func WriteJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// jsonDocument is a single FitResponse for one report, an array otherwise.
func jsonDocument(reports []FitReport) any {
	if len(reports) == 1 {
		return reports[0].Response()
	}
	docs := make([]models.FitResponse, len(reports))
	for i, rep := range reports {
		docs[i] = rep.Response()
	}
	return docs
}

// WriteResultsToFile saves the reports to path, creating missing
// directories.
//
// Parameters:
//   - path: The destination file.
//   - reports: The fits to save.
//
// Returns:
//   - error: An error if the file cannot be written.
func WriteResultsToFile(path string, reports []FitReport) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := WriteJSON(file, jsonDocument(reports)); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		return file.Close()
	}

	fmt.Fprintf(file, "# parglm fit results\n")
	fmt.Fprintf(file, "# Generated: %s\n\n", time.Now().Format(time.RFC3339))
	for _, rep := range reports {
		if rep.Err != nil {
			fmt.Fprintf(file, "Family: %s\nError: %v\n\n", rep.Family, rep.Err)
			continue
		}
		writeFit(file, rep, ui.NoColorTheme)
		fmt.Fprintln(file)
	}
	return file.Close()
}

// DisplayResults prints the reports in the mode selected by config and saves
// them when an output file is configured. Failed fits are skipped except in
// JSON mode, where they carry their error message.
//
// Parameters:
//   - out: The output writer.
//   - reports: The fits to display.
//   - config: The output settings.
//
// Returns:
//   - error: An error if encoding or file output fails.
func DisplayResults(out io.Writer, reports []FitReport, config OutputConfig) error {
	switch {
	case config.JSON:
		if err := WriteJSON(out, jsonDocument(reports)); err != nil {
			return err
		}
	case config.Quiet:
		for _, rep := range reports {
			if rep.Err != nil {
				continue
			}
			if len(reports) > 1 {
				fmt.Fprintf(out, "# %s\n", rep.Result.Family)
			}
			fmt.Fprint(out, FormatQuietResult(rep))
		}
	default:
		for _, rep := range reports {
			if rep.Err != nil {
				continue
			}
			fmt.Fprintln(out)
			DisplayFit(rep, out)
		}
	}

	if config.OutputFile != "" {
		if err := WriteResultsToFile(config.OutputFile, reports); err != nil {
			return err
		}
		if !config.Quiet && !config.JSON {
			fmt.Fprintf(out, "\n%s✓ Results saved to: %s%s%s\n", ColorGreen(), ColorCyan(), config.OutputFile, ColorReset())
		}
	}
	return nil
}
