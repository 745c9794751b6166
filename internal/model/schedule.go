package model

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/billrun/internal/recur"
)

// Currency and language allow-lists. Immutable, defined once.
var (
	Currencies = map[string]bool{"CHF": true, "EUR": true}
	Languages  = map[string]bool{"en": true, "de": true, "fr": true, "it": true}
)

// AllowedValues returns the keys of an allow-list in sorted order, for error
// messages and CLI help.
func AllowedValues(set map[string]bool) []string {
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// Schedule is a recurring bill definition. Its next billing date is a
// forward-only cursor: it advances every time a bill is generated and never
// decreases. Deactivating a schedule stops generation without deleting
// history.
type Schedule struct {
	StartDate           time.Time
	NextBillingDate     time.Time
	CreatedAt           time.Time
	FrequencyParams     map[string]any
	Frequency           string
	Currency            string
	Language            string
	DescriptionTemplate string
	Amount              decimal.Decimal
	ID                  int64
	ContactID           int64
	CreditorID          int64
	IsActive            bool
}

// Validate checks the schedule at creation time: the frequency must be an
// allow-listed offset kind with a legal parameter set (validated by
// attempting construction, surfaced verbatim), and the next billing date may
// not precede the start date.
func (s *Schedule) Validate() error {
	if s.ContactID == 0 {
		return validationErr("contact", "cannot be empty")
	}
	if s.CreditorID == 0 {
		return validationErr("creditor", "cannot be empty")
	}
	if !s.Amount.IsPositive() {
		return validationErr("amount", "must be positive")
	}
	if !Currencies[s.Currency] {
		return validationErr("currency", fmt.Sprintf("must be one of %s", strings.Join(AllowedValues(Currencies), ", ")))
	}
	if !Languages[s.Language] {
		return validationErr("language", fmt.Sprintf("must be one of %s", strings.Join(AllowedValues(Languages), ", ")))
	}
	if strings.TrimSpace(s.DescriptionTemplate) == "" {
		return validationErr("description_template", "cannot be empty")
	}
	if s.StartDate.IsZero() {
		return validationErr("start_date", "cannot be empty")
	}
	if !s.NextBillingDate.IsZero() && s.NextBillingDate.Before(s.StartDate) {
		return validationErr("next_billing_date", "cannot be before start_date")
	}
	if err := recur.Validate(s.Frequency, s.FrequencyParams); err != nil {
		return validationWrap("frequency", fmt.Sprintf("these arguments are not valid for the %q offset", s.Frequency), err)
	}
	return nil
}

// NextBillingDateAfter computes the cursor's successor by applying the
// schedule's offset rule to the current next billing date.
func (s *Schedule) NextBillingDateAfter() (time.Time, error) {
	offset, err := recur.Parse(s.Frequency, s.FrequencyParams)
	if err != nil {
		return time.Time{}, err
	}
	return offset.Advance(s.NextBillingDate), nil
}

// TemplateDate exposes billing-date fields to description templates.
type TemplateDate struct {
	t time.Time
}

// Year returns the four-digit year.
func (d TemplateDate) Year() int { return d.t.Year() }

// Month returns the month number (1-12).
func (d TemplateDate) Month() int { return int(d.t.Month()) }

// MonthName returns the English month name.
func (d TemplateDate) MonthName() string { return d.t.Month().String() }

// Day returns the day of the month.
func (d TemplateDate) Day() int { return d.t.Day() }

// Quarter returns the calendar quarter (1-4).
func (d TemplateDate) Quarter() int { return (int(d.t.Month())-1)/3 + 1 }

// ISO returns the date formatted as YYYY-MM-DD.
func (d TemplateDate) ISO() string { return d.t.Format("2006-01-02") }

// templateContext is the fixed, expression-free context description
// templates render against.
type templateContext struct {
	Amount      string
	Currency    string
	BillingDate TemplateDate
}

// GenerateBill renders the description template against the pending billing
// date and returns an unsaved pending Bill. The schedule is not mutated. The
// reference number is left unset; it is generated at first save.
func (s *Schedule) GenerateBill() (*Bill, error) {
	tmpl, err := template.New("description").Option("missingkey=error").Parse(s.DescriptionTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing description template of schedule %d: %v", ErrTemplate, s.ID, err)
	}

	var description bytes.Buffer
	ctx := templateContext{
		Amount:      s.Amount.StringFixed(2),
		Currency:    s.Currency,
		BillingDate: TemplateDate{t: s.NextBillingDate},
	}
	if err := tmpl.Execute(&description, ctx); err != nil {
		return nil, fmt.Errorf("%w: rendering description template of schedule %d: %v", ErrTemplate, s.ID, err)
	}

	scheduleID := s.ID
	return &Bill{
		ContactID:   s.ContactID,
		CreditorID:  s.CreditorID,
		ScheduleID:  &scheduleID,
		Amount:      s.Amount,
		Currency:    s.Currency,
		Language:    s.Language,
		Description: description.String(),
		Status:      StatusPending,
		BillingDate: s.NextBillingDate,
	}, nil
}
