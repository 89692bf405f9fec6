package enums

import "fmt"

// DecisionType classifies the outcome committed for a single draw.
type DecisionType string

const (
	// DecisionProgrammedPrize means an administrator-scheduled prize was released.
	DecisionProgrammedPrize DecisionType = "programmed_prize"
	// DecisionManualRelease means a one-off operator release was satisfied.
	DecisionManualRelease DecisionType = "manual_release"
	// DecisionWeightedWin means the weighted sampler selected a prize.
	DecisionWeightedWin DecisionType = "weighted_win"
	// DecisionWeightedLoss means the Bernoulli sample (or a downgrade) resolved to no prize.
	DecisionWeightedLoss DecisionType = "weighted_loss"
	// DecisionBudgetBlock means paying any prize would have breached the remaining budget.
	DecisionBudgetBlock DecisionType = "budget_block"
)

var validDecisionTypes = []DecisionType{
	DecisionProgrammedPrize,
	DecisionManualRelease,
	DecisionWeightedWin,
	DecisionWeightedLoss,
	DecisionBudgetBlock,
}

// String implements fmt.Stringer.
func (d DecisionType) String() string {
	return string(d)
}

// IsValid reports whether the value is known.
func (d DecisionType) IsValid() bool {
	for _, candidate := range validDecisionTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsWin reports whether the decision pays out a prize.
func (d DecisionType) IsWin() bool {
	return d == DecisionProgrammedPrize || d == DecisionManualRelease || d == DecisionWeightedWin
}

// ParseDecisionType converts raw input into a DecisionType.
func ParseDecisionType(value string) (DecisionType, error) {
	for _, candidate := range validDecisionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid decision type %q", value)
}
