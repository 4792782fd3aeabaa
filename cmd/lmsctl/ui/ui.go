package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
)

// Field is one labelled line of a report.
type Field struct {
	Label string
	Value string
}

// Confirm asks a yes/no question in the terminal.
func Confirm(title, description string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithTheme(huh.ThemeCatppuccin())

	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}

// PromptSecret reads a value without echoing it.
func PromptSecret(title string) (string, error) {
	var value string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				EchoMode(huh.EchoModePassword).
				Value(&value).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("value is required")
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeCatppuccin())

	if err := form.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// PrintReport prints a titled list of fields.
func PrintReport(w io.Writer, title string, fields []Field) {
	fmt.Fprintln(w, titleStyle.Render(title))
	for _, f := range fields {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(f.Label), f.Value)
	}
	fmt.Fprintln(w)
}

// PrintSuccess prints a success message.
func PrintSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, successStyle.Render(msg))
}

// PrintError prints an error message.
func PrintError(w io.Writer, msg string) {
	fmt.Fprintln(w, errorStyle.Render("Error: "+msg))
}
