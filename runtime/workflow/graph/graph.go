// Package graph defines the stored workflow graph model: typed nodes
// connected by labeled edges, owned by an organization. The engine treats
// node configuration as an opaque JSON map whose interpretation is fixed by
// the node kind; edge handle labels decide whether a connection participates
// in scheduling or attaches a sub-node to an agent.
package graph

import (
	"fmt"
	"regexp"
)

// NodeKind is the closed set of node types an editor can place on the
// canvas. Trigger kinds start a run; execution kinds do work; CHAT_MODEL and
// MEMORY are configuration-only sub-nodes consumed by the agent executor.
type NodeKind string

const (
	KindInitial           NodeKind = "INITIAL"
	KindManualTrigger     NodeKind = "MANUAL_TRIGGER"
	KindHTTPRequest       NodeKind = "HTTP_REQUEST"
	KindGoogleFormTrigger NodeKind = "GOOGLE_FORM_TRIGGER"
	KindStripeTrigger     NodeKind = "STRIPE_TRIGGER"
	KindGemini            NodeKind = "GEMINI"
	KindAnthropic         NodeKind = "ANTHROPIC"
	KindOpenAI            NodeKind = "OPENAI"
	KindDiscord           NodeKind = "DISCORD"
	KindSlack             NodeKind = "SLACK"
	KindAIAgent           NodeKind = "AI_AGENT"
	KindChatModel         NodeKind = "CHAT_MODEL"
	KindMemory            NodeKind = "MEMORY"
	KindSendEmail         NodeKind = "SEND_EMAIL"
	KindWebScraper        NodeKind = "WEB_SCRAPER"
	KindCalculator        NodeKind = "CALCULATOR"
	KindInventoryLookup   NodeKind = "INVENTORY_LOOKUP"
	KindOrderManager      NodeKind = "ORDER_MANAGER"
)

// CredentialKind is the closed set of credential types the vault stores.
type CredentialKind string

const (
	CredentialOpenAI    CredentialKind = "OPENAI"
	CredentialAnthropic CredentialKind = "ANTHROPIC"
	CredentialGemini    CredentialKind = "GEMINI"
)

// HandleLabel classifies a connection by its target input handle. Main-flow
// labels participate in scheduling; the remaining labels bind sub-nodes to
// an agent and are ignored by the planner.
type HandleLabel string

const (
	// HandleMain marks a scheduling edge. Stored graphs use "", "main", or
	// the legacy "target-1" alias.
	HandleMain HandleLabel = "main"
	// HandleChatModel attaches a CHAT_MODEL sub-node to an agent.
	HandleChatModel HandleLabel = "chat-model-target"
	// HandleMemory attaches a MEMORY sub-node to an agent.
	HandleMemory HandleLabel = "memory-target"
	// HandleTool attaches a tool sub-node to an agent.
	HandleTool HandleLabel = "tool-target"
)

type (
	// Workflow is a named graph owned by an organization. Identity is
	// immutable; name, description, and status may change through editor
	// actions. Identifiers are opaque strings even when the store assigns
	// numeric keys, so callers make no assumptions about their range.
	Workflow struct {
		ID          string
		OrgID       string
		Name        string
		Description string
		Status      string
		Nodes       []Node
		Connections []Connection
	}

	// Node is a vertex in a workflow. Data carries the free-form
	// configuration map whose meaning is fixed by Kind; Position is opaque
	// to the engine and preserved for the editor.
	Node struct {
		ID           string
		WorkflowID   string
		Kind         NodeKind
		Position     Position
		Data         map[string]any
		CredentialID string
	}

	// Position is the editor canvas coordinate of a node.
	Position struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	// Connection is a labeled edge between two nodes of the same workflow.
	// FromOutput and ToInput are handle labels; ToInput decides whether the
	// edge is main-flow or a sub-node attachment.
	Connection struct {
		ID         string
		WorkflowID string
		FromNodeID string
		ToNodeID   string
		FromOutput string
		ToInput    string
	}

	// Credential is an encrypted secret owned by an organization. The
	// plaintext never leaves the vault except through CredentialStore
	// decryption on behalf of an executor.
	Credential struct {
		ID             string
		OrgID          string
		Kind           CredentialKind
		Name           string
		EncryptedValue string
	}
)

// triggerKinds are the node kinds that may start a run.
var triggerKinds = map[NodeKind]struct{}{
	KindInitial:           {},
	KindManualTrigger:     {},
	KindGoogleFormTrigger: {},
	KindStripeTrigger:     {},
}

// IsTrigger reports whether the kind may start a run.
func (k NodeKind) IsTrigger() bool {
	_, ok := triggerKinds[k]
	return ok
}

// Valid reports whether the kind belongs to the closed enum.
func (k NodeKind) Valid() bool {
	switch k {
	case KindInitial, KindManualTrigger, KindHTTPRequest, KindGoogleFormTrigger,
		KindStripeTrigger, KindGemini, KindAnthropic, KindOpenAI, KindDiscord,
		KindSlack, KindAIAgent, KindChatModel, KindMemory, KindSendEmail,
		KindWebScraper, KindCalculator, KindInventoryLookup, KindOrderManager:
		return true
	}
	return false
}

// Handle normalizes a stored ToInput value into a HandleLabel. The empty
// string and the legacy "target-1" alias map to HandleMain; unrecognized
// labels are returned verbatim so executor-specific handles pass through.
func (c Connection) Handle() HandleLabel {
	switch c.ToInput {
	case "", "main", "target-1":
		return HandleMain
	case string(HandleChatModel):
		return HandleChatModel
	case string(HandleMemory):
		return HandleMemory
	case string(HandleTool):
		return HandleTool
	default:
		return HandleLabel(c.ToInput)
	}
}

// IsMain reports whether the connection participates in scheduling.
func (c Connection) IsMain() bool {
	return c.Handle() == HandleMain
}

// MainEdges returns the connections that participate in scheduling.
func MainEdges(conns []Connection) []Connection {
	out := make([]Connection, 0, len(conns))
	for _, c := range conns {
		if c.IsMain() {
			out = append(out, c)
		}
	}
	return out
}

// SubEdges returns the connections consumed by executors at run time
// (chat-model, memory, and tool attachments).
func SubEdges(conns []Connection) []Connection {
	out := make([]Connection, 0, len(conns))
	for _, c := range conns {
		if !c.IsMain() {
			out = append(out, c)
		}
	}
	return out
}

// variableName matches a valid output binding: a JavaScript-style
// identifier, checked at configuration time rather than at run time.
var variableName = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// ValidateVariableName returns an error when name is not a legal output
// binding for a node.
func ValidateVariableName(name string) error {
	if name == "" {
		return fmt.Errorf("variable name is required")
	}
	if !variableName.MatchString(name) {
		return fmt.Errorf("variable name %q is not a valid identifier", name)
	}
	return nil
}

// Validate checks structural invariants of a stored workflow: every
// connection endpoint refers to a node of this workflow and every node kind
// belongs to the closed enum. Acyclicity of main edges is the planner's
// concern, not a storage invariant.
func (w *Workflow) Validate() error {
	ids := make(map[string]struct{}, len(w.Nodes))
	for _, n := range w.Nodes {
		if !n.Kind.Valid() {
			return fmt.Errorf("node %s: unknown kind %q", n.ID, n.Kind)
		}
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("duplicate node id %s", n.ID)
		}
		ids[n.ID] = struct{}{}
	}
	for _, c := range w.Connections {
		if _, ok := ids[c.FromNodeID]; !ok {
			return fmt.Errorf("connection %s: source node %s not in workflow", c.ID, c.FromNodeID)
		}
		if _, ok := ids[c.ToNodeID]; !ok {
			return fmt.Errorf("connection %s: target node %s not in workflow", c.ID, c.ToNodeID)
		}
	}
	return nil
}

// Config helpers: node Data entries are JSON values; these accessors apply
// the defaulting rules executors share.

// ConfigString returns the string value stored under key, or def when the
// entry is absent or not a string.
func (n Node) ConfigString(key, def string) string {
	if v, ok := n.Data[key].(string); ok && v != "" {
		return v
	}
	return def
}

// ConfigInt returns the integer value stored under key, accepting the
// float64 shape JSON decoding produces, or def when absent.
func (n Node) ConfigInt(key string, def int) int {
	switch v := n.Data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}
