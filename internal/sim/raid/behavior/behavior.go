// Package behavior drives raid agents with data-configured strategies.
// Each agent kind lists the strategies it uses; Step applies them in a
// fixed priority: attack the anchor, attack a block in the way, move.
package behavior

import (
	"fmt"

	"raidcraft.ai/internal/sim/world/kernel/model"
)

type Strategy string

const (
	MoveTowardAnchor Strategy = "move_toward_anchor"
	AttackInPath     Strategy = "attack_in_path"
	AttackAnchor     Strategy = "attack_anchor"
)

func (s Strategy) Valid() bool {
	switch s {
	case MoveTowardAnchor, AttackInPath, AttackAnchor:
		return true
	}
	return false
}

type Profile struct {
	Strategies []Strategy
	Flying     bool
	// Damage is added to the target's break progress per attacking tick.
	Damage int
	// ReachSq is the squared distance within which a block can be hit.
	ReachSq int
}

func (p Profile) Validate() error {
	if len(p.Strategies) == 0 {
		return fmt.Errorf("no strategies")
	}
	for _, s := range p.Strategies {
		if !s.Valid() {
			return fmt.Errorf("unknown strategy %q", s)
		}
	}
	if p.Damage < 0 || p.ReachSq < 0 {
		return fmt.Errorf("negative damage or reach")
	}
	return nil
}

func (p Profile) has(s Strategy) bool {
	for _, v := range p.Strategies {
		if v == s {
			return true
		}
	}
	return false
}

// View is the read-only world the agent sees.
type View interface {
	IsSolid(pos model.Vec3i) bool
}

// Damager accumulates break progress.
type Damager interface {
	AddProgress(pos model.Vec3i, damage int) bool
}

type ActionKind int

const (
	Idle ActionKind = iota
	Move
	HitBlock
	HitAnchor
)

type Action struct {
	Kind   ActionKind
	Target model.Vec3i
	Broke  bool
}

// Step runs one tick for an agent at pos and returns its new position.
func Step(p Profile, pos, anchor model.Vec3i, v View, d Damager) (model.Vec3i, Action) {
	if p.has(AttackAnchor) && model.DistSq(pos, anchor) <= p.ReachSq {
		broke := d.AddProgress(anchor, p.Damage)
		return pos, Action{Kind: HitAnchor, Target: anchor, Broke: broke}
	}

	// Ground agents stand on something or fall.
	if !p.Flying {
		if below := pos.Up(-1); !v.IsSolid(below) && below.Y >= anchor.Y-64 {
			return below, Action{Kind: Move, Target: below}
		}
	}

	goal := anchor
	if !p.Flying {
		goal = anchor.Up(1)
	}
	next := model.StepToward(pos, goal)
	if next == pos {
		return pos, Action{Kind: Idle}
	}
	if !v.IsSolid(next) {
		if p.has(MoveTowardAnchor) {
			return next, Action{Kind: Move, Target: next}
		}
		return pos, Action{Kind: Idle}
	}
	if next == anchor {
		return pos, Action{Kind: Idle}
	}

	// Blocked: climb if there is headroom, otherwise dig.
	if p.has(MoveTowardAnchor) && !p.Flying {
		up := pos.Up(1)
		over := next.Up(1)
		if !v.IsSolid(up) && !v.IsSolid(over) {
			return over, Action{Kind: Move, Target: over}
		}
	}
	if p.has(AttackInPath) && model.DistSq(pos, next) <= p.ReachSq {
		broke := d.AddProgress(next, p.Damage)
		return pos, Action{Kind: HitBlock, Target: next, Broke: broke}
	}
	return pos, Action{Kind: Idle}
}
