package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/netgrid-io/netgrid/internal/errs"
	"github.com/netgrid-io/netgrid/internal/graph"
)

// Rule types understood by the rule engine.
const (
	RuleTypeRelationshipByClass = iota + 1
	RuleTypeRelationshipByName
	RuleTypeRelationshipByAttributeValue
	RuleTypeStandardContainment
	RuleTypeSpecialContainment
)

// BusinessRule restricts which relationships between typed objects are
// permitted. The meaning and arity of Constraints depend on the rule type;
// for relationship-by-attribute-value rules the five positions are: target
// class, source attribute name, target attribute name, required source
// value, required target value.
type BusinessRule struct {
	ID          int64
	Name        string
	Description string
	AppliesTo   string
	Type        int
	Scope       int
	Version     string
	Constraints []string
}

// CreateBusinessRule persists a rule.
func (s *Services) CreateBusinessRule(ctx context.Context, rule BusinessRule) (int64, error) {
	if rule.AppliesTo == "" {
		return 0, errs.InvalidArgument("business rule must declare the class it applies to")
	}
	if rule.Type == RuleTypeRelationshipByAttributeValue && len(rule.Constraints) != 5 {
		return 0, errs.InvalidArgument("relationship-by-attribute-value rules take exactly 5 constraints, got %d",
			len(rule.Constraints))
	}
	var id int64
	err := s.store.Update(ctx, func(tx *graph.Tx) error {
		var err error
		id, err = tx.CreateNode(graph.LabelBusinessRules)
		if err != nil {
			return err
		}
		now := time.Now().Unix()
		props := map[string]graph.Value{
			"name":         graph.Text(rule.Name),
			"description":  graph.Text(rule.Description),
			"appliesTo":    graph.Text(rule.AppliesTo),
			"type":         graph.Number(strconv.Itoa(rule.Type), float64(rule.Type)),
			"scope":        graph.Number(strconv.Itoa(rule.Scope), float64(rule.Scope)),
			"version":      graph.Text(rule.Version),
			"creationDate": graph.Number(strconv.FormatInt(now, 10), float64(now)),
		}
		for i, constraint := range rule.Constraints {
			props[fmt.Sprintf("constraint%d", i+1)] = graph.Text(constraint)
		}
		if err := tx.SetProperties(id, props); err != nil {
			return err
		}
		return tx.IndexAdd(graph.LabelBusinessRules, graph.IndexKeyID, strconv.FormatInt(id, 10), id)
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("business rule created",
		zap.String("appliesTo", rule.AppliesTo), zap.Int("type", rule.Type))
	return id, nil
}

// GetBusinessRules lists the rules of one type; type negative lists all.
func (s *Services) GetBusinessRules(ctx context.Context, ruleType int) ([]BusinessRule, error) {
	var rules []BusinessRule
	err := s.store.View(ctx, func(tx *graph.Tx) error {
		ids, err := tx.NodesByLabel(graph.LabelBusinessRules)
		if err != nil {
			return err
		}
		for _, id := range ids {
			rule, err := readRule(tx, id)
			if err != nil {
				return err
			}
			if ruleType >= 0 && rule.Type != ruleType {
				continue
			}
			rules = append(rules, rule)
		}
		return nil
	})
	return rules, err
}

// DeleteBusinessRule removes a rule by id.
func (s *Services) DeleteBusinessRule(ctx context.Context, id int64) error {
	return s.store.Update(ctx, func(tx *graph.Tx) error {
		_, found, err := tx.IndexGet(graph.LabelBusinessRules, graph.IndexKeyID, strconv.FormatInt(id, 10))
		if err != nil {
			return err
		}
		if !found {
			return errs.ApplicationNotFound("business rule with id %d", id)
		}
		return tx.DeleteNode(id)
	})
}

// CheckRelationshipByAttributeValue validates a candidate relationship
// between two typed objects against the relationship-by-attribute-value
// rules whose appliesTo matches the source class. With no matching rule the
// relationship is denied, unless rule enforcement is globally disabled.
// A rule whose required source value is empty permits any target.
func (s *Services) CheckRelationshipByAttributeValue(ctx context.Context, sourceClass string, sourceID int64, targetClass string, targetID int64) error {
	if !s.enforceRules {
		return nil
	}
	return s.store.View(ctx, func(tx *graph.Tx) error {
		ids, err := tx.NodesByLabel(graph.LabelBusinessRules)
		if err != nil {
			return err
		}
		for _, id := range ids {
			rule, err := readRule(tx, id)
			if err != nil {
				return err
			}
			if rule.Type != RuleTypeRelationshipByAttributeValue || rule.AppliesTo != sourceClass {
				continue
			}
			if len(rule.Constraints) != 5 {
				return errs.InvalidArgument("malformed business rule %d: one of the 5 required constraints is missing", id)
			}
			if rule.Constraints[0] != targetClass {
				return &errs.BusinessRuleError{
					SourceClass: sourceClass,
					TargetClass: targetClass,
					Reason: fmt.Sprintf("objects of class %s can not be connected to objects of class %s",
						sourceClass, targetClass),
				}
			}
			sourceAttr, targetAttr := rule.Constraints[1], rule.Constraints[2]
			requiredSource, requiredTarget := rule.Constraints[3], rule.Constraints[4]
			if requiredSource == "" || requiredTarget == "" {
				return nil // permissive rule: any target is acceptable
			}
			sourceValue, _, err := tx.Property(sourceID, sourceAttr)
			if err != nil {
				return err
			}
			if sourceValue != requiredSource {
				continue
			}
			targetValue, _, err := tx.Property(targetID, targetAttr)
			if err != nil {
				return err
			}
			if targetValue != requiredTarget {
				return &errs.BusinessRuleError{
					SourceClass:     sourceClass,
					TargetClass:     targetClass,
					SourceAttribute: sourceAttr,
					TargetAttribute: targetAttr,
				}
			}
			return nil // first matching rule wins
		}
		return &errs.BusinessRuleError{
			SourceClass: sourceClass,
			TargetClass: targetClass,
			Reason:      fmt.Sprintf("no matching rule was found for %s and %s", sourceClass, targetClass),
		}
	})
}

func readRule(tx *graph.Tx, id int64) (BusinessRule, error) {
	props, err := tx.Properties(id)
	if err != nil {
		return BusinessRule{}, err
	}
	rule := BusinessRule{
		ID:          id,
		Name:        props["name"],
		Description: props["description"],
		AppliesTo:   props["appliesTo"],
		Version:     props["version"],
	}
	if t, err := strconv.Atoi(props["type"]); err == nil {
		rule.Type = t
	}
	if sc, err := strconv.Atoi(props["scope"]); err == nil {
		rule.Scope = sc
	}
	for i := 1; ; i++ {
		constraint, ok := props[fmt.Sprintf("constraint%d", i)]
		if !ok {
			break
		}
		rule.Constraints = append(rule.Constraints, constraint)
	}
	return rule, nil
}
