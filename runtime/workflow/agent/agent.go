// Package agent implements the AI_AGENT node executor. At run time the
// executor walks the stored graph around its own node to discover the
// attached chat-model, memory, and tool sub-nodes, resolves the provider
// client and conversation window, and drives a bounded tool-calling loop
// over the model. Every provider call and every tool execution runs inside
// its own nested durable step so a host retry never duplicates side effects.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/loomworks/loom/runtime/workflow/agent/toolkit"
	"github.com/loomworks/loom/runtime/workflow/exec"
	"github.com/loomworks/loom/runtime/workflow/graph"
	"github.com/loomworks/loom/runtime/workflow/mail"
	"github.com/loomworks/loom/runtime/workflow/model"
	"github.com/loomworks/loom/runtime/workflow/status"
	"github.com/loomworks/loom/runtime/workflow/step"
	"github.com/loomworks/loom/runtime/workflow/store"
	"github.com/loomworks/loom/runtime/workflow/telemetry"
	"github.com/loomworks/loom/runtime/workflow/tmpl"
	"github.com/loomworks/loom/runtime/workflow/values"
)

// Sentinel failures of agent configuration. Both are wrapped non-retriably:
// a missing sub-node or credential does not heal on retry.
var (
	// ErrMissingModel reports that the agent has no usable chat-model
	// sub-node (absent, or lacking provider/credential configuration).
	ErrMissingModel = errors.New("agent: chat model sub-node is missing or incomplete")
	// ErrMissingKey reports that the chat-model credential could not be
	// resolved into an API key.
	ErrMissingKey = errors.New("agent: no API key available for chat model")
)

// Window and iteration defaults, matching the stored-graph conventions.
const (
	DefaultWindowSize    = 10
	DefaultMemoryKey     = "chatHistory"
	DefaultMaxIterations = 10
	MaxIterationsCeiling = 25

	defaultSystemPrompt = "You are a helpful AI assistant inside a workflow automation. Use the available tools when they help you answer the request, and answer concisely."
)

type (
	// Options carries the agent executor's dependencies.
	Options struct {
		// Credentials resolves chat-model credentials into API keys.
		Credentials store.CredentialStore
		// Factory builds provider clients from decrypted keys.
		Factory model.Factory
		// Commerce backs the inventory and order tools.
		Commerce store.CommerceStore
		// HTTPClient is used by the HTTP and scraper tools. Defaults to
		// http.DefaultClient.
		HTTPClient *http.Client
		// Mailer sends email for the send_email tool. Defaults to SMTP.
		Mailer mail.Sender
		// Log receives per-iteration diagnostics. Defaults to noop.
		Log telemetry.Logger
		// Metrics counts generations and tool calls. Defaults to noop.
		Metrics telemetry.Metrics
	}

	// Executor implements exec.Executor for AI_AGENT nodes.
	Executor struct {
		creds   store.CredentialStore
		factory model.Factory
		deps    toolkit.Deps
		log     telemetry.Logger
		metrics telemetry.Metrics
	}

	// subNodes is the star-shaped local sub-graph discovered around an
	// agent node.
	subNodes struct {
		chatModel *graph.Node
		memory    *graph.Node
		tools     []graph.Node
	}

	// turn is one conversation history entry as stored in the context.
	turn struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
)

// New builds the agent executor.
func New(opts Options) (*Executor, error) {
	if opts.Credentials == nil {
		return nil, errors.New("agent: credential store is required")
	}
	if opts.Factory == nil {
		return nil, errors.New("agent: model factory is required")
	}
	logger := opts.Log
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Executor{
		creds:   opts.Credentials,
		factory: opts.Factory,
		deps: toolkit.Deps{
			HTTPClient: opts.HTTPClient,
			Mailer:     opts.Mailer,
			Commerce:   opts.Commerce,
		},
		log:     logger,
		metrics: metrics,
	}, nil
}

// Execute implements exec.Executor.
func (e *Executor) Execute(ctx context.Context, req *exec.Request) (values.Object, error) {
	varName, err := exec.VariableName(req.Node)
	if err != nil {
		return nil, err
	}
	prompt := tmpl.Evaluate(req.Node.ConfigString("userPrompt", ""), req.Context)
	if prompt == "" {
		return nil, exec.MissingConfig(graph.KindAIAgent, "userPrompt")
	}

	sub, err := discover(req.Workflow, req.Node.ID)
	if err != nil {
		return nil, err
	}

	publish := req.Publish
	if publish == nil {
		publish = status.Discard
	}
	e.fanOut(ctx, publish, req.RunID, sub, status.StatusLoading)

	out, err := e.run(ctx, req, varName, prompt, sub)
	if err != nil {
		e.fanOut(ctx, publish, req.RunID, sub, status.StatusError)
		return nil, err
	}
	e.fanOut(ctx, publish, req.RunID, sub, status.StatusSuccess)
	return out, nil
}

func (e *Executor) run(ctx context.Context, req *exec.Request, varName, prompt string, sub *subNodes) (values.Object, error) {
	client, err := e.resolveModel(ctx, req.OrgID, sub.chatModel)
	if err != nil {
		return nil, err
	}

	windowSize := DefaultWindowSize
	memoryKey := ""
	var prior []turn
	if sub.memory != nil {
		windowSize = sub.memory.ConfigInt("windowSize", DefaultWindowSize)
		if windowSize < 1 {
			windowSize = DefaultWindowSize
		}
		memoryKey = sub.memory.ConfigString("memoryKey", DefaultMemoryKey)
		prior = lastTurns(historyFrom(req.Context, memoryKey), windowSize)
	}

	deps := e.deps
	deps.OrgID = req.OrgID
	tools := assembleTools(sub.tools, deps)

	system := tmpl.Evaluate(req.Node.ConfigString("systemPrompt", defaultSystemPrompt), req.Context)
	maxIterations := clampIterations(req.Node.ConfigInt("maxIterations", DefaultMaxIterations))

	answer, toolCallCount, err := e.loop(ctx, req, client, loopInput{
		system:        system,
		prompt:        prompt,
		prior:         prior,
		tools:         tools,
		maxIterations: maxIterations,
	})
	if err != nil {
		return nil, err
	}

	result, err := exec.WriteResult(req.Context, varName, map[string]any{
		"agentResponse": answer,
		"toolCallCount": toolCallCount,
	})
	if err != nil {
		return nil, err
	}
	if memoryKey != "" {
		history := historyFrom(req.Context, memoryKey)
		history = append(history, turn{Role: "user", Content: prompt}, turn{Role: "assistant", Content: answer})
		history = lastTurns(history, 2*windowSize)
		normalized, err := values.Normalize(history)
		if err != nil {
			return nil, fmt.Errorf("agent: encode history: %w", err)
		}
		result = result.Merge(values.Object{memoryKey: normalized})
	}
	return result, nil
}

type loopInput struct {
	system        string
	prompt        string
	prior         []turn
	tools         []toolkit.Tool
	maxIterations int
}

// loop drives the bounded tool-calling conversation. Each provider call and
// each tool execution is its own durable step, keyed by iteration and call
// index so replays line up with the memoised transcript.
func (e *Executor) loop(ctx context.Context, req *exec.Request, client model.Client, in loopInput) (string, int, error) {
	defs := make([]model.ToolDefinition, len(in.tools))
	byName := make(map[string]toolkit.Tool, len(in.tools))
	for i, t := range in.tools {
		defs[i] = model.ToolDefinition{Name: t.Name, Description: t.Description, Schema: t.Schema}
		byName[t.Name] = t
	}

	messages := make([]model.Message, 0, len(in.prior)+1)
	for _, t := range in.prior {
		messages = append(messages, model.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, model.UserMessage(in.prompt))

	answer := ""
	toolCallCount := 0
	for i := 0; i < in.maxIterations; i++ {
		resp, err := e.generate(ctx, req, client, i, &model.Request{
			System:   in.system,
			Messages: messages,
			Tools:    defs,
		})
		if err != nil {
			return "", 0, err
		}
		e.metrics.IncCounter("agent.generations", 1, "node", req.Node.ID)
		if resp.Content != "" {
			answer = resp.Content
		}
		if len(resp.ToolCalls) == 0 {
			break
		}
		messages = append(messages, model.Message{
			Role:      model.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for j, call := range resp.ToolCalls {
			toolCallCount++
			result := e.invokeTool(ctx, req, byName, i, j, call)
			messages = append(messages, model.ToolResult(call.ID, result))
		}
	}
	return answer, toolCallCount, nil
}

// generate runs one provider call in a durable step. The response travels
// through JSON so a replay from a persisted host sees the same shape as the
// original call.
func (e *Executor) generate(ctx context.Context, req *exec.Request, client model.Client, iteration int, mreq *model.Request) (*model.Response, error) {
	name := fmt.Sprintf("agent:%s:llm:%d", req.Node.ID, iteration)
	raw, err := req.Step.Run(ctx, name, func(ctx context.Context) (any, error) {
		resp, err := client.Complete(ctx, mreq)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("agent: encode response: %w", err)
		}
		return string(data), nil
	})
	if err != nil {
		return nil, err
	}
	encoded, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("agent: step %s returned %T, want string", name, raw)
	}
	var resp model.Response
	if err := json.Unmarshal([]byte(encoded), &resp); err != nil {
		return nil, fmt.Errorf("agent: decode response: %w", err)
	}
	return &resp, nil
}

// invokeTool runs one tool call in a durable step. Tool failures become
// error result strings handed back to the model; only step infrastructure
// failures abort the run.
func (e *Executor) invokeTool(ctx context.Context, req *exec.Request, byName map[string]toolkit.Tool, iteration, index int, call model.ToolCall) string {
	name := fmt.Sprintf("agent:%s:tool:%d:%d", req.Node.ID, iteration, index)
	raw, err := req.Step.Run(ctx, name, func(ctx context.Context) (any, error) {
		tool, ok := byName[call.Name]
		if !ok {
			return fmt.Sprintf("Error: unknown tool %q", call.Name), nil
		}
		var args map[string]any
		if len(call.Arguments) > 0 {
			if err := json.Unmarshal(call.Arguments, &args); err != nil {
				return fmt.Sprintf("Error: invalid arguments for tool %q", call.Name), nil
			}
		}
		result, err := tool.Invoke(ctx, args)
		if err != nil {
			var toolErr *toolkit.ToolError
			if errors.As(err, &toolErr) {
				e.log.Warn(ctx, "tool call failed", "tool", call.Name, "node", req.Node.ID, "err", err.Error())
				return toolErr.ResultText(), nil
			}
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return fmt.Sprintf("Error: tool %q failed", call.Name)
	}
	e.metrics.IncCounter("agent.tool_calls", 1, "tool", call.Name)
	if s, ok := raw.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", raw)
}

// resolveModel builds the provider client from the chat-model sub-node. The
// node must carry a provider and a credential; the credential must decrypt.
func (e *Executor) resolveModel(ctx context.Context, orgID string, chatModel *graph.Node) (model.Client, error) {
	if chatModel == nil {
		return nil, step.NonRetriable(ErrMissingModel)
	}
	provider := chatModel.ConfigString("provider", "")
	if provider == "" || chatModel.CredentialID == "" {
		return nil, step.NonRetriable(ErrMissingModel)
	}
	provider = model.NormalizeProvider(provider)
	apiKey, err := e.creds.Secret(ctx, orgID, chatModel.CredentialID)
	if err != nil {
		return nil, step.NonRetriable(fmt.Errorf("%w: %w", ErrMissingKey, err))
	}
	modelID := chatModel.ConfigString("model", model.DefaultModelFor(provider))
	client, err := e.factory(provider, apiKey, modelID)
	if err != nil {
		return nil, step.NonRetriable(fmt.Errorf("%w: %w", ErrMissingKey, err))
	}
	return client, nil
}

// discover partitions the connections targeting the agent node by handle
// label. Multiple chat-model or memory attachments are a graph defect.
func discover(w *graph.Workflow, agentID string) (*subNodes, error) {
	if w == nil {
		return nil, step.NonRetriable(ErrMissingModel)
	}
	nodes := make(map[string]graph.Node, len(w.Nodes))
	for _, n := range w.Nodes {
		nodes[n.ID] = n
	}
	sub := &subNodes{}
	for _, c := range w.Connections {
		if c.ToNodeID != agentID {
			continue
		}
		n, ok := nodes[c.FromNodeID]
		if !ok {
			continue
		}
		switch c.Handle() {
		case graph.HandleChatModel:
			if sub.chatModel != nil {
				return nil, step.NonRetriable(fmt.Errorf("agent: multiple chat model sub-nodes attached"))
			}
			cm := n
			sub.chatModel = &cm
		case graph.HandleMemory:
			if sub.memory != nil {
				return nil, step.NonRetriable(fmt.Errorf("agent: multiple memory sub-nodes attached"))
			}
			mem := n
			sub.memory = &mem
		case graph.HandleTool:
			sub.tools = append(sub.tools, n)
		}
	}
	return sub, nil
}

// assembleTools flattens the tool sub-nodes into a deduplicated tool list.
// On a name collision the first attachment wins.
func assembleTools(nodes []graph.Node, deps toolkit.Deps) []toolkit.Tool {
	var out []toolkit.Tool
	seen := make(map[string]struct{})
	for _, n := range nodes {
		for _, t := range toolkit.ForNode(n, deps) {
			if _, dup := seen[t.Name]; dup {
				continue
			}
			seen[t.Name] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// fanOut publishes the given status for every discovered sub-node id. The
// agent node's own lifecycle events are the driver's responsibility; the
// fan-out exists so the editor can animate the attached sub-nodes too.
func (e *Executor) fanOut(ctx context.Context, publish status.Publisher, runID string, sub *subNodes, s status.Status) {
	emit := func(n *graph.Node) {
		if n == nil {
			return
		}
		if err := publish.Publish(ctx, status.Event{
			WorkflowRunID: runID,
			NodeID:        n.ID,
			NodeKind:      n.Kind,
			Status:        s,
		}); err != nil {
			e.log.Warn(ctx, "status publish failed", "node", n.ID, "err", err.Error())
		}
	}
	emit(sub.chatModel)
	emit(sub.memory)
	for i := range sub.tools {
		emit(&sub.tools[i])
	}
}

// historyFrom decodes the conversation history stored under key. Entries
// that do not look like {role, content} maps are skipped.
func historyFrom(ctx values.Object, key string) []turn {
	raw, ok := ctx.Resolve(key)
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]turn, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		if role == "" {
			continue
		}
		out = append(out, turn{Role: role, Content: content})
	}
	return out
}

// lastTurns returns the trailing n turns.
func lastTurns(history []turn, n int) []turn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func clampIterations(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxIterationsCeiling {
		return MaxIterationsCeiling
	}
	return n
}
