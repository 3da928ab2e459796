package opt

// Scheduler adjusts an optimizer's learning rate across epochs.
type Scheduler interface {
	// Step advances one epoch.
	Step()
}

// StepLR multiplies the learning rate by Gamma every StepSize epochs.
type StepLR struct {
	optimizer Optimizer
	stepSize  int
	gamma     float64
	epoch     int
}

// NewStepLR creates a step decay scheduler over the given optimizer.
func NewStepLR(optimizer Optimizer, stepSize int, gamma float64) *StepLR {
	return &StepLR{optimizer: optimizer, stepSize: stepSize, gamma: gamma}
}

// Step advances one epoch, decaying the rate on every StepSize-th call.
func (s *StepLR) Step() {
	s.epoch++
	if s.stepSize > 0 && s.epoch%s.stepSize == 0 {
		s.optimizer.SetLR(s.optimizer.LR() * s.gamma)
	}
}
