package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxTitleLength       = 50
	MaxDescriptionLength = 200
)

var (
	ErrEmptyTitle        = errors.New("goal title is required")
	ErrTitleTooLong      = errors.New("goal title too long (max 50 characters)")
	ErrDescriptionLong   = errors.New("description too long (max 200 characters)")
	ErrTargetNotNumeric  = errors.New("target amount must be a number")
	ErrTargetNotPositive = errors.New("target amount must be greater than 0")
	ErrTargetTooLarge    = errors.New("target amount cannot exceed 1,000,000")
	ErrInvalidDeadline   = errors.New("deadline must be a date (YYYY-MM-DD)")
	ErrDeadlineInPast    = errors.New("deadline cannot be in the past")
)

type (
	// GoalInput is the raw user input for a new goal. Amounts and dates are
	// text so that numeric and date checks happen here.
	GoalInput struct {
		Title        string
		Description  string
		TargetAmount string
		Deadline     string
		Category     string
		Image        string
	}

	ValidGoalInput struct {
		Title        string
		Description  string
		TargetAmount Money
		Deadline     *time.Time
		Category     Category
		Image        string
	}

	// GoalPatch carries the fields to change; nil means untouched.
	// A present but empty Deadline clears it.
	GoalPatch struct {
		Title        *string
		Description  *string
		TargetAmount *string
		Deadline     *string
		Category     *string
		Image        *string
	}

	ValidGoalPatch struct {
		Title        *string
		Description  *string
		TargetAmount *Money
		SetDeadline  bool
		Deadline     *time.Time
		Category     *Category
		Image        *string
	}

	FieldError struct {
		Field string `json:"field"`
		Err   error  `json:"-"`
	}

	// ValidationError lists every failing field of an input.
	ValidationError struct {
		Fields []FieldError
	}
)

func (f FieldError) Error() string { return f.Field + ": " + f.Err.Error() }

func (f FieldError) Message() string { return f.Err.Error() }

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field string, err error) {
	e.Fields = append(e.Fields, FieldError{Field: field, Err: err})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ValidateGoalInput checks a new goal's input against the current time.
func ValidateGoalInput(in GoalInput, now time.Time) (ValidGoalInput, error) {
	var verr ValidationError
	out := ValidGoalInput{Image: strings.TrimSpace(in.Image)}

	if title, err := validateTitle(in.Title); err != nil {
		verr.add("title", err)
	} else {
		out.Title = title
	}
	if desc, err := validateDescription(in.Description); err != nil {
		verr.add("description", err)
	} else {
		out.Description = desc
	}
	if amt, err := validateTarget(in.TargetAmount); err != nil {
		verr.add("targetAmount", err)
	} else {
		out.TargetAmount = amt
	}
	if dl, err := validateDeadline(in.Deadline, now); err != nil {
		verr.add("deadline", err)
	} else {
		out.Deadline = dl
	}
	out.Category = NormalizeCategory(in.Category)

	if err := verr.orNil(); err != nil {
		return ValidGoalInput{}, err
	}
	return out, nil
}

// ValidateGoalPatch applies the same rules as ValidateGoalInput to the
// fields present in the patch.
func ValidateGoalPatch(p GoalPatch, now time.Time) (ValidGoalPatch, error) {
	var verr ValidationError
	var out ValidGoalPatch

	if p.Title != nil {
		if title, err := validateTitle(*p.Title); err != nil {
			verr.add("title", err)
		} else {
			out.Title = &title
		}
	}
	if p.Description != nil {
		if desc, err := validateDescription(*p.Description); err != nil {
			verr.add("description", err)
		} else {
			out.Description = &desc
		}
	}
	if p.TargetAmount != nil {
		if amt, err := validateTarget(*p.TargetAmount); err != nil {
			verr.add("targetAmount", err)
		} else {
			out.TargetAmount = &amt
		}
	}
	if p.Deadline != nil {
		if dl, err := validateDeadline(*p.Deadline, now); err != nil {
			verr.add("deadline", err)
		} else {
			out.SetDeadline = true
			out.Deadline = dl
		}
	}
	if p.Category != nil {
		cat := NormalizeCategory(*p.Category)
		out.Category = &cat
	}
	if p.Image != nil {
		img := strings.TrimSpace(*p.Image)
		out.Image = &img
	}

	if err := verr.orNil(); err != nil {
		return ValidGoalPatch{}, err
	}
	return out, nil
}

// Apply merges the patch into g. Ledger and milestones are untouched.
func (p ValidGoalPatch) Apply(g *Goal) {
	if p.Title != nil {
		g.Title = *p.Title
	}
	if p.Description != nil {
		g.Description = *p.Description
	}
	if p.TargetAmount != nil {
		g.TargetAmount = *p.TargetAmount
	}
	if p.SetDeadline {
		g.Deadline = cloneTime(p.Deadline)
	}
	if p.Category != nil {
		g.Category = *p.Category
	}
	if p.Image != nil {
		g.Image = *p.Image
	}
}

func validateTitle(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyTitle
	}
	if utf8.RuneCountInString(s) > MaxTitleLength {
		return "", ErrTitleTooLong
	}
	return s, nil
}

func validateDescription(s string) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > MaxDescriptionLength {
		return "", ErrDescriptionLong
	}
	return s, nil
}

func validateTarget(s string) (Money, error) {
	amt, err := ParseAmount(s)
	if err != nil {
		return Money{}, ErrTargetNotNumeric
	}
	if amt.Cents <= 0 {
		return Money{}, ErrTargetNotPositive
	}
	if amt.Cents > MaxTargetAmount.Cents {
		return Money{}, ErrTargetTooLarge
	}
	return amt, nil
}

// validateDeadline accepts YYYY-MM-DD or RFC 3339. The comparison is by
// calendar day in now's location: today is allowed.
func validateDeadline(s string, now time.Time) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var d time.Time
	var err error
	if d, err = time.ParseInLocation(time.DateOnly, s, now.Location()); err != nil {
		if d, err = time.Parse(time.RFC3339, s); err != nil {
			return nil, ErrInvalidDeadline
		}
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dl := d.In(now.Location())
	day := time.Date(dl.Year(), dl.Month(), dl.Day(), 0, 0, 0, 0, now.Location())
	if day.Before(today) {
		return nil, ErrDeadlineInPast
	}
	return &d, nil
}

// NormalizeCategory maps free text onto a known category, falling back to
// other for anything unrecognized.
func NormalizeCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return CategoryOther
	}
	return c
}
