package definition

import (
	"fmt"

	"github.com/regenera-io/regenera/pkg/models"
)

// validateStructure enforces the graph invariants: unique node IDs, one
// start event, no dangling edges, per-kind arity rules, full reachability,
// and matching fork/join pairs for every parallel region.
func validateStructure(spec *models.ProcessSpec) []string {
	var issues []string

	issues = append(issues, checkNodeIdentity(spec)...)
	issues = append(issues, checkEdges(spec)...)

	// Arity and reachability checks assume edges resolve; stop here when
	// the graph is already broken at the reference level.
	if len(issues) > 0 {
		return issues
	}

	issues = append(issues, checkArity(spec)...)
	issues = append(issues, checkReachability(spec)...)
	issues = append(issues, checkParallelPairs(spec)...)

	return issues
}

func checkNodeIdentity(spec *models.ProcessSpec) []string {
	var issues []string

	seen := make(map[string]bool, len(spec.Nodes))
	starts := 0

	for _, node := range spec.Nodes {
		if seen[node.ID] {
			issues = append(issues, fmt.Sprintf("duplicate node id %s", node.ID))
		}

		seen[node.ID] = true

		if node.Kind == models.NodeKindStartEvent {
			starts++
		}
	}

	if starts != 1 {
		issues = append(issues, fmt.Sprintf("process must declare exactly one start event, found %d", starts))
	}

	return issues
}

func checkEdges(spec *models.ProcessSpec) []string {
	var issues []string

	seen := make(map[string]bool, len(spec.Edges))

	for _, edge := range spec.Edges {
		if seen[edge.ID] {
			issues = append(issues, fmt.Sprintf("duplicate edge id %s", edge.ID))
		}

		seen[edge.ID] = true

		if _, ok := spec.NodeByID(edge.From); !ok {
			issues = append(issues, fmt.Sprintf("edge %s references unknown source node %s", edge.ID, edge.From))
		}

		if _, ok := spec.NodeByID(edge.To); !ok {
			issues = append(issues, fmt.Sprintf("edge %s references unknown target node %s", edge.ID, edge.To))
		}
	}

	return issues
}

func checkArity(spec *models.ProcessSpec) []string {
	var issues []string

	for _, node := range spec.Nodes {
		in := len(spec.Incoming(node.ID))
		out := len(spec.Outgoing(node.ID))

		switch node.Kind {
		case models.NodeKindStartEvent:
			if in != 0 {
				issues = append(issues, fmt.Sprintf("start event %s must not have incoming edges", node.ID))
			}

			if out != 1 {
				issues = append(issues, fmt.Sprintf("start event %s must have exactly one outgoing edge, found %d", node.ID, out))
			}
		case models.NodeKindEndEvent:
			if out != 0 {
				issues = append(issues, fmt.Sprintf("end event %s must not have outgoing edges", node.ID))
			}
		case models.NodeKindTask:
			if node.TaskName == "" {
				issues = append(issues, fmt.Sprintf("task node %s is missing task_name", node.ID))
			}

			if out != 1 {
				issues = append(issues, fmt.Sprintf("task node %s must have exactly one outgoing edge, found %d", node.ID, out))
			}
		case models.NodeKindTimerEvent:
			if node.Duration <= 0 {
				issues = append(issues, fmt.Sprintf("timer event %s must declare a positive duration", node.ID))
			}

			if out != 1 {
				issues = append(issues, fmt.Sprintf("timer event %s must have exactly one outgoing edge, found %d", node.ID, out))
			}
		case models.NodeKindBoundaryEvent:
			attached, ok := spec.NodeByID(node.AttachedTo)
			if !ok || attached.Kind != models.NodeKindTask {
				issues = append(issues, fmt.Sprintf("boundary event %s must be attached to a task node", node.ID))
			}

			if in != 0 {
				issues = append(issues, fmt.Sprintf("boundary event %s must not have incoming edges", node.ID))
			}

			if out != 1 {
				issues = append(issues, fmt.Sprintf("boundary event %s must have exactly one outgoing edge, found %d", node.ID, out))
			}
		case models.NodeKindExclusiveGateway:
			if out < 1 {
				issues = append(issues, fmt.Sprintf("exclusive gateway %s must have outgoing edges", node.ID))
			}

			defaults := 0
			for _, edge := range spec.Outgoing(node.ID) {
				if edge.Default {
					defaults++
				}
			}

			if defaults > 1 {
				issues = append(issues, fmt.Sprintf("exclusive gateway %s declares %d default edges", node.ID, defaults))
			}
		case models.NodeKindParallelGateway:
			fork := out > 1
			join := in > 1

			if fork == join {
				issues = append(issues, fmt.Sprintf("parallel gateway %s must be either a fork (one in, many out) or a join (many in, one out)", node.ID))
			}
		}
	}

	return issues
}

// checkReachability requires every node to be reachable from the start
// event. Boundary events are reachable through their attachment.
func checkReachability(spec *models.ProcessSpec) []string {
	start := spec.StartNode()
	if start == nil {
		return nil
	}

	reachable := map[string]bool{start.ID: true}
	queue := []string{start.ID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, edge := range spec.Outgoing(current) {
			if !reachable[edge.To] {
				reachable[edge.To] = true
				queue = append(queue, edge.To)
			}
		}

		// A boundary event becomes live when its attached task is reached.
		for _, node := range spec.Nodes {
			if node.Kind == models.NodeKindBoundaryEvent && node.AttachedTo == current && !reachable[node.ID] {
				reachable[node.ID] = true
				queue = append(queue, node.ID)
			}
		}
	}

	var issues []string

	for _, node := range spec.Nodes {
		if !reachable[node.ID] {
			issues = append(issues, fmt.Sprintf("node %s is unreachable from the start event", node.ID))
		}
	}

	return issues
}

// checkParallelPairs requires each parallel fork's branches to converge on
// one shared join whose incoming-edge count equals the fork's fan-out.
func checkParallelPairs(spec *models.ProcessSpec) []string {
	var issues []string

	for _, node := range spec.Nodes {
		if node.Kind != models.NodeKindParallelGateway {
			continue
		}

		branches := spec.Outgoing(node.ID)
		if len(branches) < 2 {
			continue
		}

		var shared map[string]bool

		for _, branch := range branches {
			joins := joinsReachedAtDepthZero(spec, branch.To)
			if len(joins) == 0 {
				issues = append(issues, fmt.Sprintf("parallel fork %s: branch via edge %s never reaches a join", node.ID, branch.ID))

				continue
			}

			if shared == nil {
				shared = joins

				continue
			}

			for id := range shared {
				if !joins[id] {
					delete(shared, id)
				}
			}
		}

		if len(issues) > 0 {
			continue
		}

		if len(shared) == 0 {
			issues = append(issues, fmt.Sprintf("parallel fork %s: branches do not converge on a common join", node.ID))

			continue
		}

		for joinID := range shared {
			if got := len(spec.Incoming(joinID)); got != len(branches) {
				issues = append(issues, fmt.Sprintf("parallel fork %s fans out %d branches but join %s expects %d", node.ID, len(branches), joinID, got))
			}
		}
	}

	return issues
}

// joinsReachedAtDepthZero walks forward from a branch entry node and
// collects the parallel joins reached at the fork's own nesting depth.
// Nested forks raise the depth; their joins lower it back.
func joinsReachedAtDepthZero(spec *models.ProcessSpec, startID string) map[string]bool {
	type visit struct {
		nodeID string
		depth  int
	}

	joins := make(map[string]bool)
	seen := make(map[visit]bool)
	queue := []visit{{nodeID: startID, depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if seen[current] {
			continue
		}

		seen[current] = true

		node, ok := spec.NodeByID(current.nodeID)
		if !ok {
			continue
		}

		depth := current.depth

		if node.Kind == models.NodeKindParallelGateway {
			if len(spec.Incoming(node.ID)) > 1 {
				if depth == 0 {
					joins[node.ID] = true

					continue
				}

				depth--
			} else {
				depth++
			}
		}

		for _, edge := range spec.Outgoing(node.ID) {
			queue = append(queue, visit{nodeID: edge.To, depth: depth})
		}
	}

	return joins
}
