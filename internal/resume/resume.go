// Package resume builds the command that resumes a suspended agent run.
package resume

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nextlevelbuilder/hitlchat/internal/interrupt"
)

// Command carries the decisions for one interrupt batch, in emission order.
// A batch of one encodes as a scalar decision, anything else as a list.
type Command struct {
	decisions []interrupt.Decision
}

// Encode wraps decisions. The slice is copied.
func Encode(decisions []interrupt.Decision) *Command {
	return &Command{decisions: append([]interrupt.Decision(nil), decisions...)}
}

// Decisions returns the decisions in order.
func (c *Command) Decisions() []interrupt.Decision {
	if c == nil {
		return nil
	}
	return append([]interrupt.Decision(nil), c.decisions...)
}

// Len reports the number of decisions carried.
func (c *Command) Len() int {
	if c == nil {
		return 0
	}
	return len(c.decisions)
}

// Resume returns the resume value: a single Decision or []Decision.
func (c *Command) Resume() any {
	if len(c.decisions) == 1 {
		return c.decisions[0]
	}
	return c.Decisions()
}

type wireCommand struct {
	Resume json.RawMessage `json:"resume"`
}

func (c *Command) MarshalJSON() ([]byte, error) {
	v := c.Resume()
	if list, ok := v.([]interrupt.Decision); ok && list == nil {
		v = []interrupt.Decision{}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireCommand{Resume: raw})
}

func (c *Command) UnmarshalJSON(data []byte) error {
	var w wireCommand
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	raw := bytes.TrimSpace(w.Resume)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return errors.New("resume command: missing resume value")
	}

	if raw[0] == '[' {
		var list []interrupt.Decision
		if err := json.Unmarshal(raw, &list); err != nil {
			return fmt.Errorf("resume command: %w", err)
		}
		c.decisions = list
		return nil
	}

	var d interrupt.Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return fmt.Errorf("resume command: %w", err)
	}
	c.decisions = []interrupt.Decision{d}
	return nil
}
