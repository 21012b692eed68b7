package core

import (
	"encoding/json"
	"maps"
	"time"
)

// Extra keeps JSON object members unknown to this version so a record
// loaded and saved unchanged round-trips byte-for-byte in content.
type Extra map[string]json.RawMessage

func (e Extra) Clone() Extra {
	if len(e) == 0 {
		return nil
	}
	out := make(Extra, len(e))
	for k, v := range e {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// merge adds the extra members to an encoded object. Known members win.
func (e Extra) merge(encoded []byte) ([]byte, error) {
	if len(e) == 0 {
		return encoded, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &obj); err != nil {
		return nil, err
	}
	for k, v := range e {
		if _, known := obj[k]; !known {
			obj[k] = v
		}
	}
	return json.Marshal(obj)
}

func collectExtra(data []byte, known []string) (Extra, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(obj, k)
	}
	if len(obj) == 0 {
		return nil, nil
	}
	return Extra(maps.Clone(obj)), nil
}

type goalJSON struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	TargetAmount  Money         `json:"targetAmount"`
	CurrentAmount Money         `json:"currentAmount"`
	Deadline      *time.Time    `json:"deadline"`
	Category      Category      `json:"category"`
	Image         string        `json:"image"`
	IsLocked      bool          `json:"isLocked"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	Transactions  []Transaction `json:"transactions"`
	Milestones    []Milestone   `json:"milestones"`
}

var goalKeys = []string{
	"id", "title", "description", "targetAmount", "currentAmount", "deadline", "category",
	"image", "isLocked", "createdAt", "updatedAt", "transactions", "milestones",
}

func (g Goal) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(goalJSON{
		ID:            g.ID,
		Title:         g.Title,
		Description:   g.Description,
		TargetAmount:  g.TargetAmount,
		CurrentAmount: g.CurrentAmount,
		Deadline:      g.Deadline,
		Category:      g.Category,
		Image:         g.Image,
		IsLocked:      g.IsLocked,
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
		Transactions:  g.Transactions,
		Milestones:    g.Milestones,
	})
	if err != nil {
		return nil, err
	}
	return g.Extra.merge(b)
}

func (g *Goal) UnmarshalJSON(data []byte) error {
	var v goalJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := collectExtra(data, goalKeys)
	if err != nil {
		return err
	}
	*g = Goal{
		ID:            v.ID,
		Title:         v.Title,
		Description:   v.Description,
		TargetAmount:  v.TargetAmount,
		CurrentAmount: v.CurrentAmount,
		Deadline:      v.Deadline,
		Category:      v.Category,
		Image:         v.Image,
		IsLocked:      v.IsLocked,
		Transactions:  v.Transactions,
		Milestones:    v.Milestones,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
		Extra:         extra,
	}
	return nil
}

type transactionJSON struct {
	ID          string          `json:"id"`
	Amount      Money           `json:"amount"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
}

var transactionKeys = []string{"id", "amount", "type", "description", "createdAt"}

func (t Transaction) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(transactionJSON{
		ID:          t.ID,
		Amount:      t.Amount,
		Type:        t.Type,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	return t.Extra.merge(b)
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	var v transactionJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := collectExtra(data, transactionKeys)
	if err != nil {
		return err
	}
	*t = Transaction{
		ID:          v.ID,
		Amount:      v.Amount,
		Type:        v.Type,
		Description: v.Description,
		CreatedAt:   v.CreatedAt,
		Extra:       extra,
	}
	return nil
}

type milestoneJSON struct {
	Percentage int        `json:"percentage"`
	Reached    bool       `json:"reached"`
	ReachedAt  *time.Time `json:"reachedAt,omitempty"`
}

var milestoneKeys = []string{"percentage", "reached", "reachedAt"}

func (m Milestone) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(milestoneJSON{
		Percentage: m.Percentage,
		Reached:    m.Reached,
		ReachedAt:  m.ReachedAt,
	})
	if err != nil {
		return nil, err
	}
	return m.Extra.merge(b)
}

func (m *Milestone) UnmarshalJSON(data []byte) error {
	var v milestoneJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := collectExtra(data, milestoneKeys)
	if err != nil {
		return err
	}
	*m = Milestone{
		Percentage: v.Percentage,
		Reached:    v.Reached,
		ReachedAt:  v.ReachedAt,
		Extra:      extra,
	}
	return nil
}
