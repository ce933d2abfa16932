// Package wizard provides the interactive project setup form used by the
// init command.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/zetareason/reasonbench/internal/config"
	"github.com/zetareason/reasonbench/internal/runners"
)

// ProjectSpec holds all fields collected during the interactive wizard.
type ProjectSpec struct {
	Provider    string
	Model       string
	UseCoT      bool
	Workers     int
	DatasetsDir string
	ServerPort  int
}

// RunProjectWizard runs an interactive huh form to collect project settings.
func RunProjectWizard(in io.Reader, out io.Writer) (*ProjectSpec, error) {
	defaults := config.New()

	var (
		provider   = defaults.Defaults.Provider
		model      = defaults.Defaults.Model
		useCoT     = true
		workersRaw = strconv.Itoa(defaults.Defaults.Workers)
		datasets   = defaults.Paths.Datasets
		portRaw    = strconv.Itoa(defaults.Server.Port)
	)

	providerOptions := make([]huh.Option[string], 0)
	for _, name := range runners.Providers() {
		providerOptions = append(providerOptions, huh.NewOption(name, name))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Default provider").
				Description("Which provider should runs use when none is given?").
				Options(providerOptions...).
				Value(&provider),
			huh.NewInput().
				Title("Default model").
				Description("Model identifier passed to the provider").
				Placeholder("gpt-4o").
				Value(&model).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("model is required")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Chain-of-thought prompting by default?").
				Value(&useCoT),
			huh.NewInput().
				Title("Parallel workers").
				Description("How many tasks run concurrently per model").
				Value(&workersRaw).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Datasets directory").
				Value(&datasets),
			huh.NewInput().
				Title("API server port").
				Value(&portRaw).
				Validate(validatePositiveInt),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	workers, _ := strconv.Atoi(workersRaw)
	port, _ := strconv.Atoi(portRaw)

	return &ProjectSpec{
		Provider:    provider,
		Model:       strings.TrimSpace(model),
		UseCoT:      useCoT,
		Workers:     workers,
		DatasetsDir: strings.TrimSpace(datasets),
		ServerPort:  port,
	}, nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive number")
	}
	return nil
}

// GenerateConfigYAML renders the .reasonbench.yaml for a collected spec.
func GenerateConfigYAML(spec *ProjectSpec) string {
	var b strings.Builder
	b.WriteString("paths:\n")
	fmt.Fprintf(&b, "  datasets: %q\n", spec.DatasetsDir)
	b.WriteString("defaults:\n")
	fmt.Fprintf(&b, "  provider: %s\n", spec.Provider)
	fmt.Fprintf(&b, "  model: %s\n", spec.Model)
	fmt.Fprintf(&b, "  cot: %t\n", spec.UseCoT)
	fmt.Fprintf(&b, "  workers: %d\n", spec.Workers)
	b.WriteString("server:\n")
	fmt.Fprintf(&b, "  port: %d\n", spec.ServerPort)
	return b.String()
}
