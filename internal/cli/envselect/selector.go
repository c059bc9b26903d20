package envselect

import (
	"fmt"
	"os"
	"sort"

	"github.com/manifoldco/promptui"

	"github.com/lavacar-app/lavacar/internal/cli/userconfig"
	"github.com/lavacar-app/lavacar/internal/config"
)

// Resolve determines which environment to use based on the following priority:
// 1. If the env flag is provided, use that environment
// 2. If LAVACAR_ENV is set, keep what config.Load chose
// 3. If user has a selected environment in their local config, use that
// 4. Otherwise keep the configured default
func Resolve(cfg *config.Config, flag string) error {
	if flag != "" {
		return cfg.UseEnvironment(flag)
	}

	if os.Getenv("LAVACAR_ENV") != "" {
		return nil
	}

	selected, err := userconfig.GetEnvironment()
	if err != nil {
		return fmt.Errorf("failed to load user config: %w", err)
	}
	if selected == "" {
		return nil
	}

	if err := cfg.UseEnvironment(selected); err != nil {
		// Selected environment no longer exists, clear it and continue
		_ = userconfig.SetEnvironment("")
	}
	return nil
}

// Select validates name and saves it as the selected environment
func Select(name string) error {
	if _, ok := config.Environments[name]; !ok {
		return fmt.Errorf("unknown environment %q (known: %v)", name, Names())
	}
	return userconfig.SetEnvironment(name)
}

// Names lists the known environments in order
func Names() []string {
	names := make([]string, 0, len(config.Environments))
	for name := range config.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PromptEnvironment shows an interactive prompt for the user to select an environment
func PromptEnvironment(current string) (string, error) {
	type envOption struct {
		Label string
		Name  string
	}

	names := Names()
	options := make([]envOption, len(names))
	cursor := 0
	for i, name := range names {
		label := fmt.Sprintf("%s (%s)", name, config.Environments[name])
		if name == current {
			label += " *"
			cursor = i
		}
		options[i] = envOption{Label: label, Name: name}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select an environment",
		Items:     options,
		Templates: templates,
		Size:      10,
		CursorPos: cursor,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("environment selection cancelled: %w", err)
	}

	return options[index].Name, nil
}
