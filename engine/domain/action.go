package domain

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type ActionType string

const (
	ActionLike    ActionType = "like"
	ActionComment ActionType = "comment"
	ActionFollow  ActionType = "follow"
	ActionView    ActionType = "view"
	ActionCustom  ActionType = "custom"
)

var ActionTypes = []ActionType{ActionLike, ActionComment, ActionFollow, ActionView, ActionCustom}

func (t ActionType) Valid() bool {
	for _, known := range ActionTypes {
		if t == known {
			return true
		}
	}
	return false
}

type CommentStrategy string

const (
	CommentNone   CommentStrategy = "none"
	CommentManual CommentStrategy = "manual"
	CommentAI     CommentStrategy = "ai"
)

// QuantityRange is either a fixed amount (Max == 0 or Max == Min) or an
// inclusive range a value is drawn from at dispatch time.
type QuantityRange struct {
	Min int `json:"min"`
	Max int `json:"max,omitempty"`
}

func Fixed(n int) QuantityRange {
	return QuantityRange{Min: n}
}

func (q QuantityRange) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Min, validation.Required, validation.Min(1)),
		validation.Field(&q.Max, validation.When(q.Max != 0, validation.Min(q.Min))),
	)
}

// Pick draws a quantity. rng may be nil.
func (q QuantityRange) Pick(rng *rand.Rand) int {
	if q.Max <= q.Min {
		return q.Min
	}
	span := q.Max - q.Min + 1
	if rng == nil {
		return q.Min + rand.Intn(span)
	}
	return q.Min + rng.Intn(span)
}

// ActionParams is the typed payload of an ActionSpec. Each ActionType has
// exactly one concrete payload type.
type ActionParams interface {
	Quantities() QuantityRange
	Validate() error
	accepts(t ActionType) bool
}

// EngagementParams serves like, follow and view actions.
type EngagementParams struct {
	Quantity QuantityRange `json:"quantity"`
}

func (p EngagementParams) Quantities() QuantityRange { return p.Quantity }

func (p EngagementParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Quantity),
	)
}

func (p EngagementParams) accepts(t ActionType) bool {
	return t == ActionLike || t == ActionFollow || t == ActionView
}

// CommentParams.Quantity is the number of comments to order.
type CommentParams struct {
	Quantity     QuantityRange   `json:"quantity"`
	Strategy     CommentStrategy `json:"strategy"`
	Manual       []string        `json:"manual_comments,omitempty"`
	Instructions string          `json:"ai_instructions,omitempty"`
	UseHashtags  bool            `json:"use_hashtags,omitempty"`
	UseEmojis    bool            `json:"use_emojis,omitempty"`
}

func (p CommentParams) Quantities() QuantityRange { return p.Quantity }

func (p CommentParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Quantity),
		validation.Field(&p.Strategy, validation.Required, validation.In(CommentNone, CommentManual, CommentAI)),
		validation.Field(&p.Manual, validation.When(p.Strategy == CommentManual, validation.Required)),
	)
}

func (p CommentParams) accepts(t ActionType) bool { return t == ActionComment }

// ManualComments returns the trimmed, non-empty manual entries.
func (p CommentParams) ManualComments() []string {
	out := make([]string, 0, len(p.Manual))
	for _, c := range p.Manual {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// CustomParams covers any provider service outside the built-in types.
type CustomParams struct {
	Quantity QuantityRange `json:"quantity"`
	Label    string        `json:"label"`
}

func (p CustomParams) Quantities() QuantityRange { return p.Quantity }

func (p CustomParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Quantity),
		validation.Field(&p.Label, validation.Required, validation.Length(1, 120)),
	)
}

func (p CustomParams) accepts(t ActionType) bool { return t == ActionCustom }

// ActionSpec is an action configured on an account: fire ServiceID with
// Params whenever a new post is detected.
type ActionSpec struct {
	ID          string       `json:"id"`
	AccountID   string       `json:"account_id"`
	Type        ActionType   `json:"type"`
	Params      ActionParams `json:"params"`
	ServiceID   int          `json:"service_id"`
	ServiceName string       `json:"service_name,omitempty"`
	Active      bool         `json:"active"`
	Seq         int64        `json:"seq"`
	CreatedAt   time.Time    `json:"created_at"`
}

// UnmarshalJSON decodes params into the payload type of s.Type.
func (s *ActionSpec) UnmarshalJSON(b []byte) error {
	type plain ActionSpec
	var aux struct {
		plain
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*s = ActionSpec(aux.plain)
	s.Params = nil
	if len(aux.Params) == 0 || string(aux.Params) == "null" {
		return nil
	}
	params, err := DecodeParams(s.Type, aux.Params)
	if err != nil {
		return err
	}
	s.Params = params
	return nil
}

// Validate checks the action as a whole and reports problems as *ConfigError.
func (s ActionSpec) Validate() error {
	if !s.Type.Valid() {
		return &ConfigError{Field: "type", Reason: fmt.Sprintf("unknown action type %q", s.Type)}
	}
	if s.ServiceID <= 0 {
		return &ConfigError{Field: "service_id", Reason: "must be a positive provider service id"}
	}
	if s.Params == nil {
		return &ConfigError{Field: "params", Reason: "missing parameters"}
	}
	if !s.Params.accepts(s.Type) {
		return &ConfigError{Field: "params", Reason: fmt.Sprintf("parameters do not match action type %q", s.Type)}
	}
	if err := s.Params.Validate(); err != nil {
		return &ConfigError{Field: "params", Reason: err.Error()}
	}
	return nil
}

// DecodeParams builds the payload type that belongs to t from raw JSON.
func DecodeParams(t ActionType, raw []byte) (ActionParams, error) {
	var (
		params ActionParams
		err    error
	)
	switch t {
	case ActionLike, ActionFollow, ActionView:
		var p EngagementParams
		err = json.Unmarshal(raw, &p)
		params = p
	case ActionComment:
		var p CommentParams
		err = json.Unmarshal(raw, &p)
		if p.Strategy == "" {
			p.Strategy = CommentNone
		}
		params = p
	case ActionCustom:
		var p CustomParams
		err = json.Unmarshal(raw, &p)
		params = p
	default:
		return nil, &ConfigError{Field: "type", Reason: fmt.Sprintf("unknown action type %q", t)}
	}
	if err != nil {
		return nil, &ConfigError{Field: "params", Reason: err.Error()}
	}
	return params, nil
}

// CreateActionRequest is the wire form of a new ActionSpec.
type CreateActionRequest struct {
	Type        ActionType      `json:"type"`
	Params      json.RawMessage `json:"params"`
	ServiceID   int             `json:"service_id"`
	ServiceName string          `json:"service_name"`
}

// ToSpec decodes and validates the request.
func (r CreateActionRequest) ToSpec(accountID string) (ActionSpec, error) {
	raw := r.Params
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	params, err := DecodeParams(r.Type, raw)
	if err != nil {
		return ActionSpec{}, err
	}
	spec := ActionSpec{
		AccountID:   accountID,
		Type:        r.Type,
		Params:      params,
		ServiceID:   r.ServiceID,
		ServiceName: r.ServiceName,
		Active:      true,
	}
	if err := spec.Validate(); err != nil {
		return ActionSpec{}, err
	}
	return spec, nil
}
