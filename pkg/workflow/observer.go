package workflow

// Observer receives lifecycle events from an Executor. Callbacks run on the
// executing goroutine and must not block for long.
type Observer interface {
	OnChainStart(runID string, chain *Chain)
	OnStepStart(runID string, step *Step)
	OnStepComplete(runID string, result *StepResult)
	OnChainComplete(result *ChainResult)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) OnChainStart(string, *Chain)        {}
func (NopObserver) OnStepStart(string, *Step)          {}
func (NopObserver) OnStepComplete(string, *StepResult) {}
func (NopObserver) OnChainComplete(*ChainResult)       {}

// Observers fans events out in order.
type Observers []Observer

func (o Observers) OnChainStart(runID string, chain *Chain) {
	for _, obs := range o {
		obs.OnChainStart(runID, chain)
	}
}

func (o Observers) OnStepStart(runID string, step *Step) {
	for _, obs := range o {
		obs.OnStepStart(runID, step)
	}
}

func (o Observers) OnStepComplete(runID string, result *StepResult) {
	for _, obs := range o {
		obs.OnStepComplete(runID, result)
	}
}

func (o Observers) OnChainComplete(result *ChainResult) {
	for _, obs := range o {
		obs.OnChainComplete(result)
	}
}
