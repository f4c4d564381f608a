package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/echanatwell/ArxivAgent/agent/nodes/orchestrator"
)

// compileRunGraph builds the agent_turn <-> tool_turn cycle. The turn cap is
// enforced inside agent_turn; MaxRunSteps only backs it up.
func (o *Orchestrator) compileRunGraph(
	ctx context.Context,
) (compose.Runnable[*nodex.GraphState, nodex.GraphOutput], error) {
	graph := compose.NewGraph[*nodex.GraphState, nodex.GraphOutput]()

	if err := graph.AddLambdaNode(nodex.NodeAgentTurn,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.AgentTurn(ctx, in, o.controller)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeAgentTurn, err)
	}

	if err := graph.AddLambdaNode(nodex.NodeToolTurn,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ToolTurn(ctx, in, o.dispatcher)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeToolTurn, err)
	}

	if err := graph.AddLambdaNode(nodex.NodeFinalizeReply,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeFinalizeReply, err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			return nodex.NextAfterAgentTurn(in)
		},
		map[string]bool{
			nodex.NodeToolTurn:      true,
			nodex.NodeFinalizeReply: true,
		},
	)
	if err := graph.AddBranch(nodex.NodeAgentTurn, branch); err != nil {
		return nil, fmt.Errorf("add branch after %s: %w", nodex.NodeAgentTurn, err)
	}

	edges := [][2]string{
		{compose.START, nodex.NodeAgentTurn},
		{nodex.NodeToolTurn, nodex.NodeAgentTurn},
		{nodex.NodeFinalizeReply, compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx,
		compose.WithGraphName("orchestrator.survey_run"),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
		compose.WithMaxRunSteps(2*o.maxTurns+4),
	)
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
