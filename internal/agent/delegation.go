package agent

import (
	"context"
	"strings"

	"github.com/imoblink/imoblink/internal/store"
)

// Delegator routes a message to a secondary agent when one of its
// delegation keywords occurs in the text. The decision is one level deep:
// a secondary agent is never re-delegated, so cycles cannot form.
type Delegator struct {
	agents store.AgentStore
}

func NewDelegator(agents store.AgentStore) *Delegator {
	return &Delegator{agents: agents}
}

// SelectResponder picks the agent that answers this message. Secondary
// agents are checked in creation order; first keyword match wins. With no
// match, or when candidate is itself a secondary, candidate is returned
// unchanged.
func (d *Delegator) SelectResponder(ctx context.Context, candidate *store.Agent, messageText string) (*store.Agent, error) {
	if candidate.Kind != store.AgentMain {
		return candidate, nil
	}

	secondaries, err := d.agents.ListSecondariesByParent(ctx, candidate.ID)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(messageText)
	for _, sec := range secondaries {
		for _, kw := range sec.DelegationKeywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(lower, kw) {
				return sec, nil
			}
		}
	}
	return candidate, nil
}
