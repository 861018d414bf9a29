package orchestra

import "github.com/timehop/maestro/pkg/flow"

// ErrorResolution is what OnCommandFailed tells the Flow Driver to do
// next.
type ErrorResolution int

const (
	ResolutionFail ErrorResolution = iota
	ResolutionContinue
)

// Callbacks is the host-supplied observer surface. Any field left nil
// is treated as a no-op (OnCommandFailed defaults to ResolutionFail).
type Callbacks struct {
	OnFlowStart             func(commands []flow.Command)
	OnCommandStart          func(index int, cmd flow.Command)
	OnCommandComplete       func(index int, cmd flow.Command)
	OnCommandSkipped        func(index int, cmd flow.Command)
	OnCommandFailed         func(index int, cmd flow.Command, err error) ErrorResolution
	OnCommandReset          func(cmd flow.Command)
	OnCommandMetadataUpdate func(cmd flow.Command, metadata *flow.CommandMetadata)
}

func (c Callbacks) fireFlowStart(commands []flow.Command) {
	if c.OnFlowStart != nil {
		c.OnFlowStart(commands)
	}
}

func (c Callbacks) fireCommandStart(index int, cmd flow.Command) {
	if c.OnCommandStart != nil {
		c.OnCommandStart(index, cmd)
	}
}

func (c Callbacks) fireCommandComplete(index int, cmd flow.Command) {
	if c.OnCommandComplete != nil {
		c.OnCommandComplete(index, cmd)
	}
}

func (c Callbacks) fireCommandSkipped(index int, cmd flow.Command) {
	if c.OnCommandSkipped != nil {
		c.OnCommandSkipped(index, cmd)
	}
}

func (c Callbacks) fireCommandFailed(index int, cmd flow.Command, err error) ErrorResolution {
	if c.OnCommandFailed != nil {
		return c.OnCommandFailed(index, cmd, err)
	}
	return ResolutionFail
}

// fireCommandReset fires OnCommandReset for cmd, then recurses into its
// sub-commands if it is composite (Repeat/RunFlow nested inside a Repeat),
// mirroring metadataStore.resetComposite's recursive walk.
func (c Callbacks) fireCommandReset(cmd flow.Command) {
	if c.OnCommandReset != nil {
		c.OnCommandReset(cmd)
	}
	if composite, ok := cmd.(flow.CompositeCommand); ok {
		for _, sub := range composite.SubCommands() {
			c.fireCommandReset(sub)
		}
	}
}

func (c Callbacks) fireMetadataUpdate(cmd flow.Command, metadata *flow.CommandMetadata) {
	if c.OnCommandMetadataUpdate != nil {
		c.OnCommandMetadataUpdate(cmd, metadata)
	}
}
