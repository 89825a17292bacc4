package plan

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/runtime/workflow/graph"
)

func node(id string, kind graph.NodeKind) graph.Node {
	return graph.Node{ID: id, Kind: kind}
}

func edge(from, to string) graph.Connection {
	return graph.Connection{ID: from + "->" + to, FromNodeID: from, ToNodeID: to, ToInput: "main"}
}

func ids(nodes []graph.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestBuildPlainChain(t *testing.T) {
	nodes := []graph.Node{
		node("t", graph.KindManualTrigger),
		node("h", graph.KindHTTPRequest),
		node("h2", graph.KindHTTPRequest),
	}
	conns := []graph.Connection{edge("t", "h"), edge("h", "h2")}

	ordered, err := Build(nodes, conns)
	require.NoError(t, err)
	require.Equal(t, []string{"t", "h", "h2"}, ids(ordered))
}

func TestBuildIgnoresSubNodeEdges(t *testing.T) {
	nodes := []graph.Node{
		node("t", graph.KindInitial),
		node("agent", graph.KindAIAgent),
		node("model", graph.KindChatModel),
		node("calc", graph.KindCalculator),
	}
	conns := []graph.Connection{
		edge("t", "agent"),
		{ID: "m", FromNodeID: "model", ToNodeID: "agent", ToInput: "chat-model-target"},
		{ID: "c", FromNodeID: "calc", ToNodeID: "agent", ToInput: "tool-target"},
	}
	ordered, err := Build(nodes, conns)
	require.NoError(t, err)
	// Sub-nodes are not scheduled; they are discovered by the agent executor.
	require.Equal(t, []string{"t", "agent"}, ids(ordered))
}

func TestBuildUnreachableNodesIgnored(t *testing.T) {
	nodes := []graph.Node{
		node("t", graph.KindManualTrigger),
		node("a", graph.KindHTTPRequest),
		node("orphan", graph.KindSlack),
	}
	ordered, err := Build(nodes, []graph.Connection{edge("t", "a")})
	require.NoError(t, err)
	require.Equal(t, []string{"t", "a"}, ids(ordered))
}

func TestBuildNoTriggerIsNoOp(t *testing.T) {
	nodes := []graph.Node{node("a", graph.KindHTTPRequest), node("b", graph.KindSlack)}
	ordered, err := Build(nodes, []graph.Connection{edge("a", "b")})
	require.NoError(t, err)
	require.Empty(t, ordered)
}

func TestBuildEmptyWorkflow(t *testing.T) {
	ordered, err := Build(nil, nil)
	require.NoError(t, err)
	require.Empty(t, ordered)
}

func TestBuildCycleRejected(t *testing.T) {
	nodes := []graph.Node{
		node("a", graph.KindManualTrigger),
		node("b", graph.KindHTTPRequest),
	}
	conns := []graph.Connection{edge("a", "b"), edge("b", "a")}

	_, err := Build(nodes, conns)
	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, []string{"a", "b"}, cerr.Remaining)
}

func TestBuildDiamondRespectsEdges(t *testing.T) {
	nodes := []graph.Node{
		node("t", graph.KindManualTrigger),
		node("l", graph.KindHTTPRequest),
		node("r", graph.KindHTTPRequest),
		node("join", graph.KindSlack),
	}
	conns := []graph.Connection{
		edge("t", "l"), edge("t", "r"),
		edge("l", "join"), edge("r", "join"),
	}
	ordered, err := Build(nodes, conns)
	require.NoError(t, err)
	require.Len(t, ordered, 4)
	pos := position(ordered)
	require.Less(t, pos["t"], pos["l"])
	require.Less(t, pos["t"], pos["r"])
	require.Less(t, pos["l"], pos["join"])
	require.Less(t, pos["r"], pos["join"])
}

func TestBuildIsDeterministic(t *testing.T) {
	nodes := []graph.Node{node("t", graph.KindInitial)}
	var conns []graph.Connection
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("n%02d", i)
		nodes = append(nodes, node(id, graph.KindHTTPRequest))
		conns = append(conns, edge("t", id))
	}
	first, err := Build(nodes, conns)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Build(nodes, conns)
		require.NoError(t, err)
		require.Equal(t, ids(first), ids(again))
	}
}

func TestCycleErrorUnwrap(t *testing.T) {
	_, err := Build(
		[]graph.Node{node("a", graph.KindManualTrigger), node("b", graph.KindHTTPRequest)},
		[]graph.Connection{edge("a", "b"), edge("b", "a")},
	)
	require.Error(t, err)
	require.False(t, errors.Is(err, errors.New("other")))
	require.Contains(t, err.Error(), "cycle")
}

func position(nodes []graph.Node) map[string]int {
	out := make(map[string]int, len(nodes))
	for i, n := range nodes {
		out[n.ID] = i
	}
	return out
}
