// Package policy picks an NPC's action from its behavior tags.
package policy

import (
	"github.com/louisbranch/fulcrum/internal/core/dice"
	"github.com/louisbranch/fulcrum/internal/services/story/domain"
)

// Opponent is a live participant of the opposing kind.
type Opponent struct {
	ID        domain.ActorID
	HPCurrent int
}

// Decision is what the NPC does this turn.
type Decision struct {
	Action string
	Target domain.ActorID
	Rule   string
}

// Rule names, reported for logging.
const (
	RuleFleeing     = "fleeing"
	RuleWeakest     = "weakest"
	RuleAggressive  = "aggressive"
	RuleDefault     = "default"
	RuleNoOpponents = "no_opponents"
)

// A cowardly NPC below 30% of its max HP stops attacking.
const (
	fleeThresholdNum = 3
	fleeThresholdDen = 10
)

// Decide applies the first matching rule. opponents must be in turn order;
// defeated entries are ignored. The result depends only on its inputs and
// the draws taken from src.
func Decide(npc domain.ActorContext, opponents []Opponent, src dice.Source) Decision {
	live := make([]Opponent, 0, len(opponents))
	for _, o := range opponents {
		if o.HPCurrent > 0 {
			live = append(live, o)
		}
	}

	cowardly := npc.HasTag(domain.TagCowardly)
	if cowardly && fleeThresholdDen*npc.HPCurrent < fleeThresholdNum*npc.HPMax {
		return Decision{Action: domain.ActionWait, Rule: RuleFleeing}
	}
	if len(live) == 0 {
		return Decision{Action: domain.ActionWait, Rule: RuleNoOpponents}
	}
	if cowardly || npc.HasTag(domain.TagTargetsWeakest) {
		weakest := live[0]
		for _, o := range live[1:] {
			if o.HPCurrent < weakest.HPCurrent {
				weakest = o
			}
		}
		return Decision{Action: domain.ActionAttack, Target: weakest.ID, Rule: RuleWeakest}
	}
	rule := RuleDefault
	if npc.HasTag(domain.TagAggressive) || npc.HasTag(domain.TagFocusesHighestThreat) {
		rule = RuleAggressive
	}
	return Decision{Action: domain.ActionAttack, Target: live[src.Intn(len(live))].ID, Rule: rule}
}
