package cli

import (
	"fmt"
	"io"
	"strings"
)

// GenerateCompletion writes a shell completion script for parglm.
//
// Parameters:
//   - out: The writer receiving the script.
//   - shell: "bash", "zsh", "fish" or "powershell" ("ps").
//   - families: The registered family names offered after -family.
//
// Returns:
//   - error: An error if the shell is not supported.
func GenerateCompletion(out io.Writer, shell string, families []string) error {
	switch shell {
	case "bash":
		return generateBashCompletion(out, families)
	case "zsh":
		return generateZshCompletion(out, families)
	case "fish":
		return generateFishCompletion(out, families)
	case "powershell", "ps":
		return generatePowerShellCompletion(out, families)
	default:
		return fmt.Errorf("unsupported shell: %s (accepted values: bash, zsh, fish, powershell)", shell)
	}
}

// completionFlag describes one flag for the generators.
type completionFlag struct {
	name  string
	short string
	desc  string
	// values are suggested after the flag; "@file" requests file completion.
	values string
}

var completionFlags = []completionFlag{
	{name: "help", short: "h", desc: "Show help message"},
	{name: "version", short: "V", desc: "Show version information"},
	{name: "data", desc: "Dataset file", values: "@file"},
	{name: "format", desc: "Dataset format", values: "csv json"},
	{name: "response", desc: "Response column"},
	{name: "weights", desc: "Prior weights column"},
	{name: "offset", desc: "Offset column"},
	{name: "no-intercept", desc: "Do not add an intercept"},
	{name: "family", desc: "Family to fit"},
	{name: "tol", desc: "Relative deviance tolerance", values: "1e-6 1e-8 1e-10"},
	{name: "threads", desc: "Worker pool size", values: "0 1 2 4 8"},
	{name: "max-iter", desc: "Maximum IRLS iterations", values: "25 50 100"},
	{name: "block-size", desc: "Observations per block", values: "1000 5000 10000 50000"},
	{name: "merge-fan-in", desc: "Factors merged per level", values: "0 4 8 16"},
	{name: "rank-tol", desc: "Rank test tolerance", values: "1e-7 1e-10"},
	{name: "trace", desc: "Log every IRLS iteration"},
	{name: "json", desc: "Output in JSON format"},
	{name: "quiet", short: "q", desc: "Quiet mode for scripts"},
	{name: "output", short: "o", desc: "Output file path", values: "@file"},
	{name: "no-color", desc: "Disable colored output"},
	{name: "server", desc: "Start HTTP server mode"},
	{name: "port", desc: "Server port", values: "8080 3000 5000 9000"},
	{name: "calibrate", desc: "Calibrate the block size"},
	{name: "calibration-profile", desc: "Calibration profile file", values: "@file"},
	{name: "log-level", desc: "Log level", values: "debug info warn error"},
	{name: "completion", desc: "Generate completion script", values: "bash zsh fish powershell"},
	{name: "timeout", desc: "Maximum run time", values: "1m 5m 10m 30m 1h"},
}

func familyValues(families []string) string {
	return strings.Join(append(append([]string(nil), families...), "all"), " ")
}

func generateBashCompletion(out io.Writer, families []string) error {
	var opts []string
	var cases strings.Builder
	for _, f := range completionFlags {
		opts = append(opts, "-"+f.name)
		if f.short != "" {
			opts = append(opts, "-"+f.short)
		}
		switch {
		case f.name == "family":
			fmt.Fprintf(&cases, "        -family)\n            COMPREPLY=( $(compgen -W \"%s\" -- \"${cur}\") )\n            return 0\n            ;;\n", familyValues(families))
		case f.values == "@file":
			fmt.Fprintf(&cases, "        -%s)\n            COMPREPLY=( $(compgen -f -- \"${cur}\") )\n            return 0\n            ;;\n", f.name)
		case f.values != "":
			fmt.Fprintf(&cases, "        -%s)\n            COMPREPLY=( $(compgen -W \"%s\" -- \"${cur}\") )\n            return 0\n            ;;\n", f.name, f.values)
		}
	}
	_, err := fmt.Fprintf(out, `# Bash completion script for parglm
# Add this to your ~/.bashrc or ~/.bash_completion

_parglm_completions() {
    local cur prev opts
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"
    opts="%s"

    case "${prev}" in
%s    esac

    if [[ "${cur}" == -* ]]; then
        COMPREPLY=( $(compgen -W "${opts}" -- "${cur}") )
        return 0
    fi
}

complete -F _parglm_completions parglm
`, strings.Join(opts, " "), cases.String())
	return err
}

func generateZshCompletion(out io.Writer, families []string) error {
	var args strings.Builder
	for _, f := range completionFlags {
		action := ""
		switch {
		case f.name == "family":
			action = ":family:(" + familyValues(families) + ")"
		case f.values == "@file":
			action = ":file:_files"
		case f.values != "":
			action = ":" + f.name + ":(" + f.values + ")"
		}
		if f.short != "" {
			fmt.Fprintf(&args, "        '(-%s -%s)'{-%s,-%s}'[%s]%s' \\\n", f.short, f.name, f.short, f.name, f.desc, action)
		} else {
			fmt.Fprintf(&args, "        '-%s[%s]%s' \\\n", f.name, f.desc, action)
		}
	}
	script := strings.TrimSuffix(args.String(), " \\\n")
	_, err := fmt.Fprintf(out, `#compdef parglm

# Zsh completion script for parglm
# Add this to your ~/.zshrc or place in $fpath

_parglm() {
    _arguments -s \
%s
}

_parglm "$@"
`, script)
	return err
}

func generateFishCompletion(out io.Writer, families []string) error {
	var b strings.Builder
	b.WriteString("# Fish completion script for parglm\n")
	b.WriteString("# Add this to ~/.config/fish/completions/parglm.fish\n\n")
	b.WriteString("complete -c parglm -f\n")
	for _, f := range completionFlags {
		fmt.Fprintf(&b, "complete -c parglm -o %s", f.name)
		if f.short != "" {
			fmt.Fprintf(&b, " -o %s", f.short)
		}
		fmt.Fprintf(&b, " -d '%s'", f.desc)
		switch {
		case f.name == "family":
			fmt.Fprintf(&b, " -xa '%s'", familyValues(families))
		case f.values == "@file":
			b.WriteString(" -rF")
		case f.values != "":
			fmt.Fprintf(&b, " -xa '%s'", f.values)
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(out, b.String())
	return err
}

func generatePowerShellCompletion(out io.Writer, families []string) error {
	quoted := make([]string, 0, len(families)+1)
	for _, f := range append(append([]string(nil), families...), "all") {
		quoted = append(quoted, "'"+f+"'")
	}
	var options strings.Builder
	var cases strings.Builder
	for _, f := range completionFlags {
		fmt.Fprintf(&options, "        @{Name = '-%s'; Description = '%s' }\n", f.name, f.desc)
		if f.short != "" {
			fmt.Fprintf(&options, "        @{Name = '-%s'; Description = '%s' }\n", f.short, f.desc)
		}
		if f.values != "" && f.values != "@file" {
			words := strings.Fields(f.values)
			for i := range words {
				words[i] = "'" + words[i] + "'"
			}
			fmt.Fprintf(&cases, "        '-%s' { $values = @(%s) }\n", f.name, strings.Join(words, ", "))
		}
	}
	_, err := fmt.Fprintf(out, `# PowerShell completion script for parglm
# Add this to your $PROFILE

$parglmFamilies = @(%s)

Register-ArgumentCompleter -CommandName 'parglm' -Native -ScriptBlock {
    param($wordToComplete, $commandAst, $cursorPosition)

    $options = @(
%s    )

    $elements = $commandAst.CommandElements
    $prevElement = if ($elements.Count -gt 2) { $elements[-2].ToString() } else { '' }

    $values = $null
    switch ($prevElement) {
        '-family' { $values = $parglmFamilies }
%s    }
    if ($values) {
        $values | Where-Object { $_ -like "$wordToComplete*" } | ForEach-Object {
            [System.Management.Automation.CompletionResult]::new($_, $_, 'ParameterValue', $_)
        }
        return
    }

    $options | Where-Object { $_.Name -like "$wordToComplete*" } | ForEach-Object {
        [System.Management.Automation.CompletionResult]::new($_.Name, $_.Name, 'ParameterName', $_.Description)
    }
}
`, strings.Join(quoted, ", "), options.String(), cases.String())
	return err
}
