package optimization

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// RuleType determines how a rule's conditions payload is interpreted
type RuleType string

const (
	RuleTypeContentLength RuleType = "content_length" // Inclusive upper bound on token count
	RuleTypeToolPresence  RuleType = "tool_presence"  // Required match on tool attachment
)

// IsValid checks if the rule type is a recognized variant
func (t RuleType) IsValid() bool {
	switch t {
	case RuleTypeContentLength, RuleTypeToolPresence:
		return true
	default:
		return false
	}
}

// EntityType identifies the scope a rule belongs to
type EntityType string

const (
	EntityOrganization EntityType = "organization"
	EntityTeam         EntityType = "team"
)

// IsValid checks if the entity type is recognized
func (t EntityType) IsValid() bool {
	return t == EntityOrganization || t == EntityTeam
}

// Provider identifies the upstream LLM provider a rule applies to
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// IsValid checks if the provider is one of the supported providers
func (p Provider) IsValid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		return true
	default:
		return false
	}
}

// Conditions is the payload of a rule, tagged by the rule's type.
// Exactly one concrete variant exists per RuleType; payloads are decoded
// and validated once at the store boundary so the matcher only ever sees
// well-typed values.
type Conditions interface {
	RuleType() RuleType
}

// ContentLengthConditions gates on request size
type ContentLengthConditions struct {
	MaxLength int `json:"maxLength"`
}

func (ContentLengthConditions) RuleType() RuleType { return RuleTypeContentLength }

// ToolPresenceConditions gates on whether the request carries tool definitions
type ToolPresenceConditions struct {
	HasTools bool `json:"hasTools"`
}

func (ToolPresenceConditions) RuleType() RuleType { return RuleTypeToolPresence }

// Rule is a single optimization rule scoped to an organization or team.
// Rules sharing a TargetModel form one condition group and are ANDed
// together during matching.
type Rule struct {
	ID          string     `json:"id"`
	EntityType  EntityType `json:"entity_type"`
	EntityID    string     `json:"entity_id"`
	Provider    Provider   `json:"provider"`
	RuleType    RuleType   `json:"rule_type"`
	Conditions  Conditions `json:"conditions"`
	TargetModel string     `json:"target_model"`
	Enabled     bool       `json:"enabled"`
}

// Validate checks structural validity of the rule
func (r *Rule) Validate() error {
	if !r.EntityType.IsValid() {
		return fmt.Errorf("invalid entity type: %q", r.EntityType)
	}
	if r.EntityID == "" {
		return fmt.Errorf("entity id cannot be empty")
	}
	if !r.Provider.IsValid() {
		return fmt.Errorf("invalid provider: %q", r.Provider)
	}
	if !r.RuleType.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownRuleType, r.RuleType)
	}
	if r.TargetModel == "" {
		return fmt.Errorf("target model cannot be empty")
	}
	if r.Conditions == nil {
		return &MalformedConditionsError{RuleID: r.ID, RuleType: r.RuleType, Reason: "conditions missing"}
	}
	if r.Conditions.RuleType() != r.RuleType {
		return &MalformedConditionsError{
			RuleID:   r.ID,
			RuleType: r.RuleType,
			Reason:   fmt.Sprintf("conditions payload is for rule type %q", r.Conditions.RuleType()),
		}
	}
	return nil
}

// ErrUnknownRuleType indicates a rule type outside the recognized variants.
// Matching fails closed on it: an unrecognized condition must never
// silently match or be skipped.
var ErrUnknownRuleType = errors.New("unknown rule type")

// MalformedConditionsError indicates a conditions payload that does not
// match its declared rule type. It is a data-integrity failure and aborts
// the whole evaluation rather than being masked as a non-match.
type MalformedConditionsError struct {
	RuleID   string
	RuleType RuleType
	Reason   string
	Err      error // Underlying decode error
}

func (e *MalformedConditionsError) Error() string {
	msg := fmt.Sprintf("malformed conditions for rule type %q", e.RuleType)
	if e.RuleID != "" {
		msg = fmt.Sprintf("rule %s: %s", e.RuleID, msg)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedConditionsError) Unwrap() error {
	return e.Err
}

// DecodeConditions decodes a raw conditions payload according to the rule
// type. The decode is strict: unknown fields and missing required fields
// are rejected, so a payload shaped for a different rule type fails here
// instead of mis-matching at evaluation time.
func DecodeConditions(ruleType RuleType, raw []byte) (Conditions, error) {
	switch ruleType {
	case RuleTypeContentLength:
		var payload struct {
			MaxLength *int `json:"maxLength"`
		}
		if err := strictUnmarshal(raw, &payload); err != nil {
			return nil, &MalformedConditionsError{RuleType: ruleType, Err: err}
		}
		if payload.MaxLength == nil {
			return nil, &MalformedConditionsError{RuleType: ruleType, Reason: "maxLength is required"}
		}
		if *payload.MaxLength < 0 {
			return nil, &MalformedConditionsError{RuleType: ruleType, Reason: "maxLength must be non-negative"}
		}
		return ContentLengthConditions{MaxLength: *payload.MaxLength}, nil

	case RuleTypeToolPresence:
		var payload struct {
			HasTools *bool `json:"hasTools"`
		}
		if err := strictUnmarshal(raw, &payload); err != nil {
			return nil, &MalformedConditionsError{RuleType: ruleType, Err: err}
		}
		if payload.HasTools == nil {
			return nil, &MalformedConditionsError{RuleType: ruleType, Reason: "hasTools is required"}
		}
		return ToolPresenceConditions{HasTools: *payload.HasTools}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuleType, ruleType)
	}
}

// EncodeConditions serializes a conditions payload for storage
func EncodeConditions(conditions Conditions) ([]byte, error) {
	if conditions == nil {
		return nil, &MalformedConditionsError{Reason: "conditions missing"}
	}
	return json.Marshal(conditions)
}

func strictUnmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
