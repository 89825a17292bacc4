package exec

import (
	"context"
	"errors"
	"fmt"

	"github.com/loomworks/loom/runtime/workflow/graph"
	"github.com/loomworks/loom/runtime/workflow/model"
	"github.com/loomworks/loom/runtime/workflow/step"
	"github.com/loomworks/loom/runtime/workflow/store"
	"github.com/loomworks/loom/runtime/workflow/tmpl"
	"github.com/loomworks/loom/runtime/workflow/values"
)

// LLMOptions configures the single-shot LLM executors.
type LLMOptions struct {
	// Factory builds provider clients from decrypted API keys.
	Factory model.Factory
	// Credentials resolves the node's credentialId into an API key.
	Credentials store.CredentialStore
	// EnvKeys supplies per-provider fallback API keys from the environment,
	// used when a node carries no credential.
	EnvKeys map[string]string
}

// LLM is the executor for the GEMINI, OPENAI, and ANTHROPIC single-shot
// nodes: template the prompt, call the provider once inside a nested durable
// step, and write {aiResponse} under the variable name.
func LLM(kind graph.NodeKind, provider string, opts LLMOptions) Executor {
	return Func(func(ctx context.Context, req *Request) (values.Object, error) {
		varName, err := VariableName(req.Node)
		if err != nil {
			return nil, err
		}
		prompt := tmpl.Evaluate(req.Node.ConfigString("prompt", ""), req.Context)
		if prompt == "" {
			return nil, MissingConfig(kind, "prompt")
		}
		system := tmpl.Evaluate(req.Node.ConfigString("system", ""), req.Context)
		modelID := req.Node.ConfigString("model", model.DefaultModelFor(provider))

		apiKey, err := resolveAPIKey(ctx, opts, provider, req.OrgID, req.Node.CredentialID)
		if err != nil {
			return nil, err
		}

		result, err := req.Step.Run(ctx, "llm:"+req.Node.ID, func(ctx context.Context) (any, error) {
			client, err := opts.Factory(provider, apiKey, modelID)
			if err != nil {
				return nil, step.NonRetriable(fmt.Errorf("%s node: %w", kind, err))
			}
			resp, err := client.Complete(ctx, &model.Request{
				System:   system,
				Messages: []model.Message{model.UserMessage(prompt)},
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{"aiResponse": resp.Content}, nil
		})
		if err != nil {
			return nil, err
		}
		return WriteResult(req.Context, varName, result)
	})
}

// resolveAPIKey prefers the node's credential and falls back to the
// provider's environment key. A credential that cannot be found or decrypted
// is a non-retriable configuration failure; the distinction is not surfaced
// to clients.
func resolveAPIKey(ctx context.Context, opts LLMOptions, provider, orgID, credentialID string) (string, error) {
	if credentialID != "" && opts.Credentials != nil {
		key, err := opts.Credentials.Secret(ctx, orgID, credentialID)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
	}
	if key := opts.EnvKeys[provider]; key != "" {
		return key, nil
	}
	return "", step.NonRetriable(fmt.Errorf("no API key available for provider %s", provider))
}
