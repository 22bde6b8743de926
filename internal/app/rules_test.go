package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netgrid-io/netgrid/internal/errs"
	"github.com/netgrid-io/netgrid/internal/object"
)

// seedPorts creates a building with three ports: two connected, one free.
func seedPorts(t *testing.T, mapper *object.Mapper) (buildingID, connectedA, connectedB, free int64) {
	t.Helper()
	ctx := context.Background()
	var err error
	buildingID, err = mapper.CreateObject(ctx, "Building", 0, map[string][]string{"name": {"HQ"}})
	require.NoError(t, err)
	connectedA, err = mapper.CreateObject(ctx, "Port", buildingID, map[string][]string{
		"name": {"gi0/1"}, "state": {"connected"},
	})
	require.NoError(t, err)
	connectedB, err = mapper.CreateObject(ctx, "Port", buildingID, map[string][]string{
		"name": {"gi0/2"}, "state": {"connected"},
	})
	require.NoError(t, err)
	free, err = mapper.CreateObject(ctx, "Port", buildingID, map[string][]string{
		"name": {"gi0/3"}, "state": {"free"},
	})
	require.NoError(t, err)
	return
}

func TestCreateBusinessRuleValidation(t *testing.T) {
	svc, _ := newTestServices(t, true)
	ctx := context.Background()

	_, err := svc.CreateBusinessRule(ctx, BusinessRule{Type: RuleTypeRelationshipByAttributeValue})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument, "appliesTo is mandatory")

	_, err = svc.CreateBusinessRule(ctx, BusinessRule{
		AppliesTo:   "Port",
		Type:        RuleTypeRelationshipByAttributeValue,
		Constraints: []string{"Port", "state", "state"},
	})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument, "five constraints exactly")
}

func TestCheckRelationshipWithEnforcementOff(t *testing.T) {
	svc, mapper := newTestServices(t, false)
	ctx := context.Background()
	_, a, b, _ := seedPorts(t, mapper)

	// No rules exist, but nothing is checked either.
	assert.NoError(t, svc.CheckRelationshipByAttributeValue(ctx, "Port", a, "Port", b))
}

func TestCheckRelationshipDefaultDeny(t *testing.T) {
	svc, mapper := newTestServices(t, true)
	ctx := context.Background()
	_, a, b, _ := seedPorts(t, mapper)

	err := svc.CheckRelationshipByAttributeValue(ctx, "Port", a, "Port", b)
	require.ErrorIs(t, err, errs.ErrBusinessRule)
	var bre *errs.BusinessRuleError
	require.True(t, errors.As(err, &bre))
	assert.Contains(t, bre.Reason, "no matching rule")
}

func TestCheckRelationshipByAttributeValue(t *testing.T) {
	svc, mapper := newTestServices(t, true)
	ctx := context.Background()
	buildingID, a, b, free := seedPorts(t, mapper)

	_, err := svc.CreateBusinessRule(ctx, BusinessRule{
		Name:        "port-state-match",
		AppliesTo:   "Port",
		Type:        RuleTypeRelationshipByAttributeValue,
		Constraints: []string{"Port", "state", "state", "connected", "connected"},
	})
	require.NoError(t, err)

	// Both ends connected: permitted.
	assert.NoError(t, svc.CheckRelationshipByAttributeValue(ctx, "Port", a, "Port", b))

	// The target's state does not match the rule.
	err = svc.CheckRelationshipByAttributeValue(ctx, "Port", a, "Port", free)
	require.ErrorIs(t, err, errs.ErrBusinessRule)
	var bre *errs.BusinessRuleError
	require.True(t, errors.As(err, &bre))
	assert.Equal(t, "state", bre.SourceAttribute)
	assert.Equal(t, "state", bre.TargetAttribute)

	// A rule for the class exists but names a different target class.
	err = svc.CheckRelationshipByAttributeValue(ctx, "Port", a, "Building", buildingID)
	require.ErrorIs(t, err, errs.ErrBusinessRule)
	require.True(t, errors.As(err, &bre))
	assert.Contains(t, bre.Reason, "can not be connected")

	// A source whose state the rule does not mention falls through to the
	// default deny.
	err = svc.CheckRelationshipByAttributeValue(ctx, "Port", free, "Port", a)
	require.ErrorIs(t, err, errs.ErrBusinessRule)
	require.True(t, errors.As(err, &bre))
	assert.Contains(t, bre.Reason, "no matching rule")
}

func TestCheckRelationshipPermissiveRule(t *testing.T) {
	svc, mapper := newTestServices(t, true)
	ctx := context.Background()
	buildingID, a, _, _ := seedPorts(t, mapper)

	// Empty required values make the rule permissive for the class pair.
	_, err := svc.CreateBusinessRule(ctx, BusinessRule{
		AppliesTo:   "Building",
		Type:        RuleTypeRelationshipByAttributeValue,
		Constraints: []string{"Port", "", "", "", ""},
	})
	require.NoError(t, err)

	assert.NoError(t, svc.CheckRelationshipByAttributeValue(ctx, "Building", buildingID, "Port", a))
}

func TestBusinessRuleLifecycle(t *testing.T) {
	svc, _ := newTestServices(t, true)
	ctx := context.Background()

	id, err := svc.CreateBusinessRule(ctx, BusinessRule{
		Name:        "port-state-match",
		Description: "both ends must be connected",
		AppliesTo:   "Port",
		Type:        RuleTypeRelationshipByAttributeValue,
		Scope:       1,
		Version:     "1.0",
		Constraints: []string{"Port", "state", "state", "connected", "connected"},
	})
	require.NoError(t, err)

	rules, err := svc.GetBusinessRules(ctx, RuleTypeRelationshipByAttributeValue)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, id, rules[0].ID)
	assert.Equal(t, "port-state-match", rules[0].Name)
	assert.Equal(t, []string{"Port", "state", "state", "connected", "connected"}, rules[0].Constraints)

	other, err := svc.GetBusinessRules(ctx, RuleTypeStandardContainment)
	require.NoError(t, err)
	assert.Empty(t, other)

	all, err := svc.GetBusinessRules(ctx, -1)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, svc.DeleteBusinessRule(ctx, id))
	assert.ErrorIs(t, svc.DeleteBusinessRule(ctx, id), errs.ErrApplicationNotFound)
}
