package calibration

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/agbru/parglm/internal/cli"
	"github.com/agbru/parglm/internal/glm"
)

// printCalibrationResults prints one row per measurement, varying label.
func printCalibrationResults(out io.Writer, label string, results []Measurement, best Measurement) {
	fmt.Fprintf(out, "\n--- Calibration Summary: %s ---\n", label)
	tw := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "  %s%s%s\t│ %sMedian Fit Time%s\n", cli.ColorBold(), label, cli.ColorReset(), cli.ColorBold(), cli.ColorReset())
	fmt.Fprintf(tw, "  %s\t┼%s\n", strings.Repeat("─", 14), strings.Repeat("─", 25))
	for _, m := range results {
		value := m.BlockSize
		if label != "Block size" {
			value = m.MergeFanIn
		}
		valueLabel := strconv.Itoa(value)
		if label != "Block size" && value <= 1 {
			valueLabel = "single merge"
		}
		durationStr := fmt.Sprintf("%sN/A (%v)%s", cli.ColorRed(), m.Err, cli.ColorReset())
		if m.Err == nil {
			durationStr = cli.FormatExecutionDuration(m.Duration)
		}
		highlight := ""
		if m.Err == nil && m.Trial == best.Trial {
			highlight = fmt.Sprintf(" %s(Optimal)%s", cli.ColorGreen(), cli.ColorReset())
		}
		fmt.Fprintf(tw, "  %s%s%s\t│ %s%s%s%s\n", cli.ColorCyan(), valueLabel, cli.ColorReset(), cli.ColorYellow(), durationStr, cli.ColorReset(), highlight)
	}
	tw.Flush()
}

// printRecommendation prints the flags to use and, when the default block
// size was measured, the gain over it.
func printRecommendation(out io.Writer, best Measurement, blockResults []Measurement) {
	fmt.Fprintf(out, "\n%s✅ Recommendation for this machine: %s-block-size %d -merge-fan-in %d%s\n",
		cli.ColorGreen(), cli.ColorYellow(), best.BlockSize, best.MergeFanIn, cli.ColorReset())
	for _, m := range blockResults {
		if m.Err != nil || m.Trial != (Trial{BlockSize: glm.DefaultBlockSize}) || m.Duration <= best.Duration {
			continue
		}
		gain := 100 * float64(m.Duration-best.Duration) / float64(m.Duration)
		fmt.Fprintf(out, "%.0f%% faster than the default block size of %d.\n", gain, glm.DefaultBlockSize)
	}
}
