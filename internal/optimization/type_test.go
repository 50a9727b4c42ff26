package optimization

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeConditions_ContentLength(t *testing.T) {
	cond, err := DecodeConditions(RuleTypeContentLength, []byte(`{"maxLength":100}`))
	require.NoError(t, err)
	require.Equal(t, ContentLengthConditions{MaxLength: 100}, cond)
	require.Equal(t, RuleTypeContentLength, cond.RuleType())
}

func TestDecodeConditions_ToolPresence(t *testing.T) {
	cond, err := DecodeConditions(RuleTypeToolPresence, []byte(`{"hasTools":false}`))
	require.NoError(t, err)
	require.Equal(t, ToolPresenceConditions{HasTools: false}, cond)
}

func TestDecodeConditions_WrongShapeForRuleType(t *testing.T) {
	// A tool_presence payload declared as content_length must fail to
	// decode, never silently match or not-match.
	_, err := DecodeConditions(RuleTypeContentLength, []byte(`{"hasTools":true}`))

	var malformed *MalformedConditionsError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, RuleTypeContentLength, malformed.RuleType)
}

func TestDecodeConditions_MissingRequiredField(t *testing.T) {
	_, err := DecodeConditions(RuleTypeContentLength, []byte(`{}`))
	var malformed *MalformedConditionsError
	require.ErrorAs(t, err, &malformed)

	_, err = DecodeConditions(RuleTypeToolPresence, []byte(`{}`))
	require.ErrorAs(t, err, &malformed)
}

func TestDecodeConditions_NegativeMaxLength(t *testing.T) {
	_, err := DecodeConditions(RuleTypeContentLength, []byte(`{"maxLength":-1}`))
	var malformed *MalformedConditionsError
	require.ErrorAs(t, err, &malformed)
}

func TestDecodeConditions_InvalidJSON(t *testing.T) {
	_, err := DecodeConditions(RuleTypeToolPresence, []byte(`{"hasTools":`))
	var malformed *MalformedConditionsError
	require.ErrorAs(t, err, &malformed)
	require.Error(t, malformed.Unwrap())
}

func TestDecodeConditions_UnknownRuleType(t *testing.T) {
	_, err := DecodeConditions(RuleType("sentiment"), []byte(`{}`))
	require.ErrorIs(t, err, ErrUnknownRuleType)
}

func TestEncodeDecodeConditions_RoundTrip(t *testing.T) {
	raw, err := EncodeConditions(ContentLengthConditions{MaxLength: 42})
	require.NoError(t, err)

	cond, err := DecodeConditions(RuleTypeContentLength, raw)
	require.NoError(t, err)
	require.Equal(t, ContentLengthConditions{MaxLength: 42}, cond)
}

func TestRule_Validate(t *testing.T) {
	valid := Rule{
		ID:          "r1",
		EntityType:  EntityTeam,
		EntityID:    "team-1",
		Provider:    ProviderAnthropic,
		RuleType:    RuleTypeToolPresence,
		Conditions:  ToolPresenceConditions{HasTools: true},
		TargetModel: "claude-haiku",
		Enabled:     true,
	}
	require.NoError(t, valid.Validate())

	badEntity := valid
	badEntity.EntityType = EntityType("user")
	require.Error(t, badEntity.Validate())

	badProvider := valid
	badProvider.Provider = Provider("cohere")
	require.Error(t, badProvider.Validate())

	badType := valid
	badType.RuleType = RuleType("sentiment")
	require.ErrorIs(t, badType.Validate(), ErrUnknownRuleType)

	noTarget := valid
	noTarget.TargetModel = ""
	require.Error(t, noTarget.Validate())

	mismatched := valid
	mismatched.Conditions = ContentLengthConditions{MaxLength: 10}
	var malformed *MalformedConditionsError
	require.ErrorAs(t, mismatched.Validate(), &malformed)
}
