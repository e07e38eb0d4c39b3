package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-gateway/internal/domain"
)

func promptConfirm(title, description string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	return ok, err
}

// leadForm collects the fields of a new lead interactively
func leadForm(req *domain.CreateLeadRequest, value *string) *huh.Form {
	if req.Priority == "" {
		req.Priority = domain.LeadPriorityMedium
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&req.Title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("title cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Company").
				Value(&req.Company),
			huh.NewInput().
				Title("Email").
				Placeholder("name@example.com").
				Value(&req.Email),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Value").
				Placeholder("0.00").
				Value(value).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					if _, err := decimal.NewFromString(strings.TrimSpace(s)); err != nil {
						return fmt.Errorf("not a number")
					}
					return nil
				}),
			huh.NewInput().
				Title("Currency").
				CharLimit(3).
				Value(&req.Currency),
			huh.NewSelect[domain.LeadPriority]().
				Title("Priority").
				Options(
					huh.NewOption("Low", domain.LeadPriorityLow),
					huh.NewOption("Medium", domain.LeadPriorityMedium),
					huh.NewOption("High", domain.LeadPriorityHigh),
				).
				Value(&req.Priority),
		),
	).WithShowHelp(false)
}
