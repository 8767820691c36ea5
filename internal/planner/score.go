package planner

import (
	"math"

	"github.com/saan/taskflow-agent/internal/domain"
)

// priorityWeight maps the coarse priority bucket to the weighted-sum input
// of spec §4.3 step 2.
func priorityWeight(p domain.Priority) float64 {
	switch p {
	case domain.PriorityHigh:
		return 1.0
	case domain.PriorityLow:
		return 0.2
	default:
		return 0.5
	}
}

func boolWeight(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

// energyFit is `1 - |required_energy - user_energy| / 4`, clamped to [0,1].
// requiredEnergy comes from requiredEnergyOf (4, 3 or 2 by priority), since
// a task carries no explicit energy requirement.
func energyFit(requiredEnergy, userEnergy int) float64 {
	fit := 1.0 - math.Abs(float64(requiredEnergy-userEnergy))/4.0
	return clamp01(fit)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// recency rewards candidates whose original start is earlier in the day,
// normalized against the day's span so it always lands in [0,1].
func recency(start, dayStart, dayEnd int64) float64 {
	if dayEnd <= dayStart {
		return 0.5
	}
	frac := float64(dayEnd-start) / float64(dayEnd-dayStart)
	return clamp01(frac)
}

// priorityScore implements spec §4.3 step 2's weighted formula:
//   score = 0.45·priorityWeight + 0.25·criticalFlag + 0.15·urgentFlag + 0.10·energyFit + 0.05·recency
// grounded on focus-agent planner.go's calculateScoreWithStrategic shape
// (weighted linear terms, clamp, single formula entry point) but with this
// spec's own weights and terms substituted in place of the source's
// strategic-alignment/effort/stakeholder terms.
func priorityScore(task *domain.Task, userEnergy int, dayStart, dayEnd int64) float64 {
	score := 0.45*priorityWeight(task.Priority) +
		0.25*boolWeight(task.IsCritical) +
		0.15*boolWeight(task.IsUrgent) +
		0.10*energyFit(requiredEnergyOf(task), userEnergy) +
		0.05*recency(task.Start.Unix(), dayStart, dayEnd)
	return clamp01(score)
}

// requiredEnergyOf has no dedicated Task field in the data model (spec §3
// doesn't carry one); high-priority/critical tasks are treated as
// higher-energy demands, everything else defaults to the mid-point.
func requiredEnergyOf(task *domain.Task) int {
	switch {
	case task.IsCritical || task.Priority == domain.PriorityHigh:
		return 4
	case task.Priority == domain.PriorityLow:
		return 2
	default:
		return 3
	}
}
