package probability

import (
	"github.com/mora-interactive/prizevault-backend/pkg/config"
	"github.com/mora-interactive/prizevault-backend/pkg/db/models"
	"github.com/mora-interactive/prizevault-backend/pkg/enums"
)

// Controller computes the instantaneous win probability for a draw from the
// container's RTP target, the realized RTP of the current period, and the
// remaining budget. It is a pure feedback controller: no state of its own.
type Controller struct {
	cfg config.EngineConfig
}

// Decision carries the computed probability plus the override that produced it.
type Decision struct {
	Probability float64
	// BudgetBlocked is set when the emergency stop threshold forced the
	// probability down; a draw under this decision is classified budget_block.
	BudgetBlocked bool
}

// New builds a controller from engine configuration.
func New(cfg config.EngineConfig) *Controller {
	return &Controller{cfg: cfg}
}

// WinProbability applies the base feedback computation and then the override
// ladder, in priority order: emergency stop, blackout mode, event mode.
func (c *Controller) WinProbability(container *models.ContainerType, period *models.FinancialPeriod) Decision {
	if period.RemainingBudgetCents <= container.EmergencyStopCents {
		return Decision{Probability: c.cfg.EmergencyP, BudgetBlocked: true}
	}

	switch container.OperatingMode {
	case enums.OperatingModeBlackout:
		return Decision{Probability: c.cfg.BlackoutP}
	case enums.OperatingModeEvent:
		return Decision{Probability: c.clamp(c.cfg.EventP)}
	}

	if !container.RTPEnabled {
		// Fixed odds at the target when the adaptive loop is disabled.
		return Decision{Probability: c.clamp(container.RTPTarget)}
	}

	deviation := container.RTPTarget - period.CurrentRTP()
	p := container.RTPTarget + c.cfg.Gain*deviation
	return Decision{Probability: c.clamp(p)}
}

func (c *Controller) clamp(p float64) float64 {
	if p < c.cfg.ProbabilityMin {
		return c.cfg.ProbabilityMin
	}
	if p > c.cfg.ProbabilityMax {
		return c.cfg.ProbabilityMax
	}
	return p
}
