// Package sla resolves service-level targets for tickets and turns them into due dates.
package sla

import (
	"sort"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Unit is the unit a target is expressed in.
type Unit string

const (
	UnitMinutes Unit = "minutes"
	UnitHours   Unit = "hours"
)

// Source records where targets came from.
type Source string

const (
	SourceRule     Source = "rule"
	SourcePriority Source = "priority"
	SourceExempt   Source = "exempt"
)

// Target is a duration obligation such as "30 minutes" or "4 hours".
type Target struct {
	Value int
	Unit  Unit
}

// Duration converts the target into a time.Duration.
func (t Target) Duration() time.Duration {
	switch t.Unit {
	case UnitHours:
		return time.Duration(t.Value) * time.Hour
	default:
		return time.Duration(t.Value) * time.Minute
	}
}

// Targets is the resolved pair of obligations. A nil target means none is tracked.
type Targets struct {
	Response   *Target
	Resolution *Target
	Source     Source
	RuleID     string
}

// Key identifies the classification a ticket is resolved against.
type Key struct {
	TypeID     string
	PriorityID string
	CategoryID string
}

// matcher reports whether a rule belongs to a specificity tier for key.
type matcher func(rule domain.SlaRule, key Key) bool

// Resolver picks SLA targets using ordered specificity tiers.
type Resolver struct {
	tiers []matcher
}

// NewResolver returns a Resolver with the standard tiers, most specific first.
func NewResolver() *Resolver {
	return &Resolver{tiers: []matcher{matchExact, matchTypePriority, matchPriorityOnly}}
}

func matchExact(rule domain.SlaRule, key Key) bool {
	return key.CategoryID != "" &&
		rule.PriorityID == key.PriorityID &&
		equals(rule.TypeID, key.TypeID) &&
		equals(rule.CategoryID, key.CategoryID)
}

func matchTypePriority(rule domain.SlaRule, key Key) bool {
	return rule.PriorityID == key.PriorityID &&
		equals(rule.TypeID, key.TypeID) &&
		rule.CategoryID == nil
}

func matchPriorityOnly(rule domain.SlaRule, key Key) bool {
	return rule.PriorityID == key.PriorityID &&
		rule.TypeID == nil &&
		rule.CategoryID == nil
}

func equals(ptr *string, val string) bool {
	return ptr != nil && val != "" && *ptr == val
}

// Resolve returns the targets for key. Development categories are exempt; otherwise the
// first tier with an active matching rule wins (lowest id inside a tier), and the
// priority's own hours apply when no rule matches.
func (r *Resolver) Resolve(key Key, category *domain.TicketCategory, priority domain.TicketPriority, rules []domain.SlaRule) Targets {
	if category != nil && category.IsDevelopment {
		return Targets{Source: SourceExempt}
	}

	active := make([]domain.SlaRule, 0, len(rules))
	for _, rule := range rules {
		if rule.IsActive {
			active = append(active, rule)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	for _, tier := range r.tiers {
		for _, rule := range active {
			if tier(rule, key) {
				return Targets{
					Response:   target(rule.ResponseMinutes, UnitMinutes),
					Resolution: target(rule.ResolutionMinutes, UnitMinutes),
					Source:     SourceRule,
					RuleID:     rule.ID,
				}
			}
		}
	}

	return Targets{
		Response:   target(priority.ResponseHours, UnitHours),
		Resolution: target(priority.ResolutionHours, UnitHours),
		Source:     SourcePriority,
	}
}

func target(value *int, unit Unit) *Target {
	if value == nil {
		return nil
	}
	return &Target{Value: *value, Unit: unit}
}
