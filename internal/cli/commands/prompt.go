package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// ErrNotInteractive is returned when a value is missing and stdin is not a terminal
var ErrNotInteractive = errors.New("not running interactively")

// promptValue returns current when set, otherwise asks for it
func promptValue(app *App, label, current string, validate promptui.ValidateFunc) (string, error) {
	if current != "" {
		return current, nil
	}
	if !app.Interactive {
		return "", fmt.Errorf("%s is required: %w", strings.ToLower(label), ErrNotInteractive)
	}

	prompt := promptui.Prompt{Label: label, Validate: validate}
	value, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("%s prompt cancelled: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(value), nil
}

// promptPassword returns current when set, otherwise reads it without echo
func promptPassword(app *App, label, current string) (string, error) {
	if current != "" {
		return current, nil
	}
	if !app.Interactive {
		return "", fmt.Errorf("%s is required: %w", strings.ToLower(label), ErrNotInteractive)
	}

	fmt.Fprintf(os.Stderr, "%s: ", label)
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

// confirm asks a yes/no question. Without a terminal the answer is no.
func confirm(app *App, label string) bool {
	if !app.Interactive {
		return false
	}
	prompt := promptui.Prompt{Label: label, IsConfirm: true}
	_, err := prompt.Run()
	return err == nil
}

// pick shows a selection list and returns the chosen item
func pick[T any](app *App, label string, items []T, describe func(T) string) (T, error) {
	var zero T
	if len(items) == 0 {
		return zero, fmt.Errorf("nothing to choose for %s", strings.ToLower(label))
	}
	if !app.Interactive {
		return zero, fmt.Errorf("%s is required: %w", strings.ToLower(label), ErrNotInteractive)
	}

	labels := make([]string, len(items))
	for i, item := range items {
		labels[i] = describe(item)
	}

	prompt := promptui.Select{
		Label: label,
		Items: labels,
		Size:  10,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "> {{ . | cyan }}",
			Inactive: "  {{ . }}",
			Selected: "{{ . | green }}",
		},
	}
	index, _, err := prompt.Run()
	if err != nil {
		return zero, fmt.Errorf("%s selection cancelled: %w", strings.ToLower(label), err)
	}
	return items[index], nil
}

func required(field string) promptui.ValidateFunc {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
