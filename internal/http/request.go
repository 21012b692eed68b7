package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"saveup/internal/core"
)

const maxBodyBytes = 64 << 10

// textOrNumber accepts a JSON string or number and keeps its text, so
// amounts reach validation exactly as the client wrote them.
type textOrNumber string

func (t *textOrNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = textOrNumber(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("expected a number or a string")
	}
	*t = textOrNumber(n.String())
	return nil
}

type createGoalRequest struct {
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	TargetAmount textOrNumber `json:"targetAmount"`
	Deadline     string       `json:"deadline"`
	Category     string       `json:"category"`
	Image        string       `json:"image"`
}

func (r createGoalRequest) input() core.GoalInput {
	return core.GoalInput{
		Title:        sanitizeInput(r.Title),
		Description:  sanitizeInput(r.Description),
		TargetAmount: strings.TrimSpace(string(r.TargetAmount)),
		Deadline:     strings.TrimSpace(r.Deadline),
		Category:     strings.TrimSpace(r.Category),
		Image:        strings.TrimSpace(r.Image),
	}
}

type updateGoalRequest struct {
	Title        *string       `json:"title"`
	Description  *string       `json:"description"`
	TargetAmount *textOrNumber `json:"targetAmount"`
	Deadline     *string       `json:"deadline"`
	Category     *string       `json:"category"`
	Image        *string       `json:"image"`
}

func (r updateGoalRequest) patch() core.GoalPatch {
	p := core.GoalPatch{
		Title:       mapPtr(r.Title, sanitizeInput),
		Description: mapPtr(r.Description, sanitizeInput),
		Deadline:    mapPtr(r.Deadline, strings.TrimSpace),
		Category:    mapPtr(r.Category, strings.TrimSpace),
		Image:       mapPtr(r.Image, strings.TrimSpace),
	}
	if r.TargetAmount != nil {
		s := strings.TrimSpace(string(*r.TargetAmount))
		p.TargetAmount = &s
	}
	return p
}

type moneyRequest struct {
	Amount      textOrNumber `json:"amount"`
	Description string       `json:"description"`
}

// amount parses the requested amount. Anything unparsable becomes zero so
// the store reports it with the operation's own invalid-amount message.
func (r moneyRequest) amount() core.Money {
	m, err := core.ParseAmount(string(r.Amount))
	if err != nil {
		return core.Money{}
	}
	return m
}

func mapPtr(p *string, f func(string) string) *string {
	if p == nil {
		return nil
	}
	v := f(*p)
	return &v
}

// decodeJSON reads a single JSON object from the body. An empty body
// decodes to the zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body larger than %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
