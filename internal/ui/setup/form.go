// Package setup collects the settings notifybell needs on first run.
package setup

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/daycare-notify/internal/model"
)

// Values are the fields the setup form fills in.
type Values struct {
	BaseURL string
	Role    string
	UserID  string
	Token   string
}

// Missing reports whether any required value is empty.
func (v Values) Missing() bool {
	return strings.TrimSpace(v.BaseURL) == "" ||
		strings.TrimSpace(v.Role) == "" ||
		strings.TrimSpace(v.UserID) == "" ||
		strings.TrimSpace(v.Token) == ""
}

// NewForm builds the setup form over v. Fields already set are kept as
// their defaults.
func NewForm(v *Values, width int) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API URL").
				Description("Root URL of the childcare REST API").
				Placeholder("https://daycare.example.com/api").
				Value(&v.BaseURL).
				Validate(validateURL),
			huh.NewSelect[string]().
				Title("Role").
				Description("Which notifications to receive").
				Options(
					huh.NewOption("Teacher", string(model.RecipientTeacher)),
					huh.NewOption("Supervisor", string(model.RecipientSupervisor)),
				).
				Value(&v.Role),
			huh.NewInput().
				Title("User ID").
				Description("Read marks are stored under this id").
				Value(&v.UserID).
				Validate(validateRequired("User ID")),
			huh.NewInput().
				Title("API Token").
				Description("Bearer token, kept in the system keyring").
				EchoMode(huh.EchoModePassword).
				Value(&v.Token).
				Validate(validateRequired("Token")),
		),
	).WithWidth(formWidth(width))
}

// Run shows the form in the terminal and blocks until it is submitted or
// aborted.
func Run(v *Values) error {
	if err := NewForm(v, 80).Run(); err != nil {
		return fmt.Errorf("running setup form: %w", err)
	}
	return nil
}

func formWidth(width int) int {
	return min(max(width-4, 40), 100)
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}
