// Package agent holds the inbound-message pipeline: identity resolution,
// delegation, context assembly, and the tool-calling orchestration loop.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/imoblink/imoblink/internal/store"
	"github.com/imoblink/imoblink/internal/webhook"
)

var (
	// ErrInstanceNotFound means the event's channel maps to no known
	// instance. Terminal for the event, never retried.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrAgentNotLinked means the instance exists but has no agent to
	// answer with. Also terminal.
	ErrAgentNotLinked = errors.New("instance has no linked agent")
)

// Resolver maps a normalized event to its tenant instance and main agent.
type Resolver struct {
	instances store.InstanceStore
	agents    store.AgentStore
}

func NewResolver(instances store.InstanceStore, agents store.AgentStore) *Resolver {
	return &Resolver{instances: instances, agents: agents}
}

// Resolve looks the instance up by gateway identifier, falling back to a
// display-name match for gateways that report the name instead of the id.
func (r *Resolver) Resolve(ctx context.Context, ev *webhook.InboundEvent) (*store.TenantInstance, *store.Agent, error) {
	inst, err := r.instances.GetByGatewayID(ctx, ev.GatewayInstanceID)
	if errors.Is(err, store.ErrNotFound) && ev.InstanceName != "" {
		inst, err = r.instances.FindByName(ctx, ev.InstanceName)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: gateway id %q name %q",
			ErrInstanceNotFound, ev.GatewayInstanceID, ev.InstanceName)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("resolve instance: %w", err)
	}

	if inst.AgentID == nil {
		return nil, nil, fmt.Errorf("%w: instance %s", ErrAgentNotLinked, inst.ID)
	}
	ag, err := r.agents.Get(ctx, *inst.AgentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: instance %s points at missing agent %s",
			ErrAgentNotLinked, inst.ID, *inst.AgentID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("resolve agent: %w", err)
	}
	return inst, ag, nil
}
