package main

import (
	"github.com/entrhq/surf/pkg/agent"
	"github.com/entrhq/surf/pkg/browser"
	"github.com/entrhq/surf/pkg/orchestrator"
)

// newAgent builds the built-in direct agent. Deployments with a full
// planner swap in their own factory here.
func newAgent(params orchestrator.AgentParams) (browser.Agent, error) {
	return agent.NewDirect(agent.Options{
		Driver:      params.Driver,
		Task:        params.Task,
		StepTimeout: params.StepTimeout,
		PartialSink: params.PartialSink,
	}), nil
}
