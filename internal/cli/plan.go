package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/agbru/parglm/internal/config"
	"github.com/agbru/parglm/internal/dataset"
	"github.com/agbru/parglm/internal/glm"
)

// GetFamiliesToRun resolves the families selected by cfg, in the order they
// were requested. "all" selects every registered family in sorted order.
// Names the factory does not know are skipped.
//
// Parameters:
//   - cfg: The application configuration.
//   - factory: The family registry.
//
// Returns:
//   - []glm.Family: The families to fit.
func GetFamiliesToRun(cfg config.AppConfig, factory glm.FamilyFactory) []glm.Family {
	names := cfg.FamilyNames(factory.List())
	families := make([]glm.Family, 0, len(names))
	for _, name := range names {
		if fam, err := factory.Get(name); err == nil {
			families = append(families, fam)
		}
	}
	return families
}

// PrintExecutionConfig displays the dataset and the fit settings.
//
// Parameters:
//   - cfg: The application configuration.
//   - ds: The loaded dataset.
//   - out: The writer for standard output.
func PrintExecutionConfig(cfg config.AppConfig, ds *dataset.Dataset, out io.Writer) {
	threads := cfg.Threads
	if threads == 0 {
		threads = runtime.NumCPU()
	}
	fmt.Fprintf(out, "--- Execution Configuration ---\n")
	fmt.Fprintf(out, "Dataset %s%s%s: %s%d%s observations, %s%d%s predictors (%s).\n",
		ColorBlue(), cfg.DataPath, ColorReset(),
		ColorCyan(), ds.Observations(), ColorReset(),
		ColorCyan(), len(ds.Names), ColorReset(),
		strings.Join(ds.Names, ", "))
	fmt.Fprintf(out, "IRLS: tol=%s%g%s, max-iter=%s%d%s, rank-tol=%s%g%s, timeout %s%s%s.\n",
		ColorCyan(), cfg.Tolerance, ColorReset(),
		ColorCyan(), cfg.MaxIterations, ColorReset(),
		ColorCyan(), cfg.RankTol, ColorReset(),
		ColorYellow(), cfg.Timeout, ColorReset())
	fmt.Fprintf(out, "Blocks of %s%d%s observations on %s%d%s workers (%d logical processors, Go %s).\n",
		ColorCyan(), cfg.BlockSize, ColorReset(),
		ColorCyan(), threads, ColorReset(),
		runtime.NumCPU(), runtime.Version())
}

// familyDetail names the distribution and link of catalog families.
func familyDetail(f glm.Family) string {
	d, ok := f.(interface {
		Distribution() string
		LinkName() string
	})
	if !ok {
		return ""
	}
	return fmt.Sprintf(" (%s distribution, %s link)", d.Distribution(), d.LinkName())
}

// PrintExecutionMode announces whether one family or a comparison runs.
//
// Parameters:
//   - families: The families that will be fitted; must not be empty.
//   - out: The writer for standard output.
func PrintExecutionMode(families []glm.Family, out io.Writer) {
	var mode string
	if len(families) > 1 {
		names := make([]string, len(families))
		for i, f := range families {
			names[i] = f.Name()
		}
		mode = fmt.Sprintf("Concurrent comparison of %d families (%s)", len(families), strings.Join(names, ", "))
	} else {
		mode = fmt.Sprintf("Single fit of the %s%s%s family%s", ColorGreen(), families[0].Name(), ColorReset(), familyDetail(families[0]))
	}
	fmt.Fprintf(out, "Execution mode: %s.\n", mode)
	fmt.Fprintf(out, "\n--- Starting Execution ---\n")
}
