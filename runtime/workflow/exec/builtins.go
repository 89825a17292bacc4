package exec

import (
	"net/http"

	"github.com/loomworks/loom/runtime/workflow/graph"
	"github.com/loomworks/loom/runtime/workflow/mail"
	"github.com/loomworks/loom/runtime/workflow/model"
)

// Options carries the shared dependencies of the built-in executors.
type Options struct {
	HTTPClient *http.Client
	Mailer     mail.Sender
	LLM        LLMOptions
}

// Builtins returns a registry with every built-in node kind bound. The
// AI_AGENT kind is registered separately by the caller because the agent
// executor lives in its own package.
func Builtins(opts Options) *Registry {
	r := NewRegistry()
	r.Register(graph.KindInitial, Trigger())
	r.Register(graph.KindManualTrigger, Trigger())
	r.Register(graph.KindGoogleFormTrigger, NamespacedTrigger("googleForm"))
	r.Register(graph.KindStripeTrigger, NamespacedTrigger("stripe"))
	r.Register(graph.KindHTTPRequest, HTTPRequest(opts.HTTPClient))
	r.Register(graph.KindGemini, LLM(graph.KindGemini, model.ProviderGemini, opts.LLM))
	r.Register(graph.KindOpenAI, LLM(graph.KindOpenAI, model.ProviderOpenAI, opts.LLM))
	r.Register(graph.KindAnthropic, LLM(graph.KindAnthropic, model.ProviderAnthropic, opts.LLM))
	r.Register(graph.KindDiscord, Webhook(graph.KindDiscord, "content", opts.HTTPClient))
	r.Register(graph.KindSlack, Webhook(graph.KindSlack, "text", opts.HTTPClient))
	r.Register(graph.KindSendEmail, SendEmail(opts.Mailer))
	r.Register(graph.KindWebScraper, WebScraper(opts.HTTPClient))
	r.Register(graph.KindCalculator, Calculator())
	r.Register(graph.KindChatModel, NoOp())
	r.Register(graph.KindMemory, NoOp())
	return r
}
