// Command worker executes one workflow run against the configured backing
// services: Postgres for the stored graphs and commerce data, Redis for the
// realtime status stream, MongoDB for the run log, and the LLM providers
// for model-backed nodes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
	"goa.design/clue/log"

	anthropicmodel "github.com/loomworks/loom/features/model/anthropic"
	geminimodel "github.com/loomworks/loom/features/model/gemini"
	openaimodel "github.com/loomworks/loom/features/model/openai"
	runlogmongo "github.com/loomworks/loom/features/runlog/mongo"
	statuspulse "github.com/loomworks/loom/features/status/pulse"
	bunstore "github.com/loomworks/loom/features/store/bun"
	"github.com/loomworks/loom/runtime/workflow/agent"
	"github.com/loomworks/loom/runtime/workflow/driver"
	"github.com/loomworks/loom/runtime/workflow/exec"
	"github.com/loomworks/loom/runtime/workflow/graph"
	"github.com/loomworks/loom/runtime/workflow/mail"
	"github.com/loomworks/loom/runtime/workflow/model"
	"github.com/loomworks/loom/runtime/workflow/model/middleware"
	"github.com/loomworks/loom/runtime/workflow/runlog"
	"github.com/loomworks/loom/runtime/workflow/status"
	"github.com/loomworks/loom/runtime/workflow/telemetry"
	"github.com/loomworks/loom/runtime/workflow/values"
	"github.com/loomworks/loom/runtime/workflow/vault"
)

func main() {
	var (
		configF   = flag.String("config", "", "Path to the YAML configuration file")
		orgF      = flag.String("org", "", "Organization id owning the workflow")
		workflowF = flag.String("workflow", "", "Workflow id to run")
		inputF    = flag.String("input", "{}", "Initial run context as JSON")
		debugF    = flag.Bool("debug", false, "Enable debug logs")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *debugF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := loadConfig(*configF)
	if err != nil {
		log.Fatal(ctx, err)
	}
	if *orgF == "" || *workflowF == "" {
		log.Fatalf(ctx, errUsage, "both -org and -workflow are required")
	}
	var initial values.Object
	if err := json.Unmarshal([]byte(*inputF), &initial); err != nil {
		log.Fatalf(ctx, err, "invalid -input JSON")
	}

	encryptionKey := os.Getenv("ENCRYPTION_KEY")
	if encryptionKey == "" {
		log.Fatalf(ctx, errUsage, "ENCRYPTION_KEY is required")
	}
	cipher, err := vault.New(encryptionKey)
	if err != nil {
		log.Fatal(ctx, err)
	}

	if cfg.Postgres.DSN == "" {
		log.Fatalf(ctx, errUsage, "DATABASE_URL is required")
	}
	db := bunstore.OpenDB(cfg.Postgres.DSN)
	defer db.Close()
	stores, err := bunstore.New(bunstore.Options{DB: db, Cipher: cipher})
	if err != nil {
		log.Fatal(ctx, err)
	}

	publisher, closePublisher := newPublisher(ctx, cfg)
	defer closePublisher()

	runLog, closeRunLog := newRunLog(ctx, cfg)
	defer closeRunLog()

	limiter := middleware.NewAdaptiveRateLimiter(cfg.Limits.TokensPerMinute, cfg.Limits.MaxTokensPerMinute)
	factory := newModelFactory(limiter.Middleware())
	envKeys := map[string]string{
		model.ProviderGemini:    os.Getenv("GEMINI_API_KEY"),
		model.ProviderOpenAI:    os.Getenv("OPENAI_API_KEY"),
		model.ProviderAnthropic: os.Getenv("ANTHROPIC_API_KEY"),
	}

	mailer := mail.SMTP{}
	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()
	tracer := telemetry.NewClueTracer()

	registry := exec.Builtins(exec.Options{
		HTTPClient: http.DefaultClient,
		Mailer:     mailer,
		LLM: exec.LLMOptions{
			Factory:     factory,
			Credentials: stores,
			EnvKeys:     envKeys,
		},
	})
	agentExec, err := agent.New(agent.Options{
		Credentials: stores,
		Factory:     factory,
		Commerce:    stores,
		HTTPClient:  http.DefaultClient,
		Mailer:      mailer,
		Log:         logger,
		Metrics:     metrics,
	})
	if err != nil {
		log.Fatal(ctx, err)
	}
	registry.Register(graph.KindAIAgent, agentExec)

	d, err := driver.New(driver.Options{
		Workflows: stores,
		Registry:  registry,
		Publish:   publisher,
		RunLog:    runLog,
		Log:       logger,
		Metrics:   metrics,
		Tracer:    tracer,
	})
	if err != nil {
		log.Fatal(ctx, err)
	}

	result, err := d.Execute(ctx, driver.RunRequest{
		WorkflowID:  *workflowF,
		OrgID:       *orgF,
		InitialData: initial,
	})
	if err != nil {
		log.Fatalf(ctx, err, "run failed")
	}
	log.Print(ctx, log.KV{K: "run", V: result.RunID}, log.KV{K: "status", V: "completed"})
	os.Stdout.WriteString(values.PrettyJSON(map[string]any(result.Output)) + "\n")
}

// errUsage carries usage failures through clue's Fatalf signature.
var errUsage = errors.New("invalid invocation")

// newPublisher returns the Pulse-backed status publisher when Redis is
// configured, and the discarding publisher otherwise.
func newPublisher(ctx context.Context, cfg Config) (status.Publisher, func()) {
	if cfg.Redis.URL == "" {
		log.Print(ctx, log.KV{K: "status", V: "disabled"})
		return status.Discard, func() {}
	}
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf(ctx, err, "invalid REDIS_URL")
	}
	rdb := redis.NewClient(redisOpts)
	client, err := statuspulse.New(statuspulse.Options{Redis: rdb})
	if err != nil {
		log.Fatal(ctx, err)
	}
	pub, err := statuspulse.NewPublisher(statuspulse.PublisherOptions{Client: client})
	if err != nil {
		log.Fatal(ctx, err)
	}
	return pub, func() { rdb.Close() }
}

// newRunLog returns the Mongo-backed run log when configured, and the
// discarding store otherwise.
func newRunLog(ctx context.Context, cfg Config) (runlog.Store, func()) {
	if cfg.Mongo.URL == "" {
		log.Print(ctx, log.KV{K: "runlog", V: "disabled"})
		return runlog.Discard, func() {}
	}
	client, err := mongodriver.Connect(mongooptions.Client().ApplyURI(cfg.Mongo.URL))
	if err != nil {
		log.Fatalf(ctx, err, "connect mongo")
	}
	store, err := runlogmongo.New(runlogmongo.Options{
		Client:   client,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal(ctx, err)
	}
	return store, func() { _ = client.Disconnect(context.Background()) }
}

// newModelFactory binds provider names to the feature adapters, wrapping
// every client in the shared rate limiter.
func newModelFactory(limit func(model.Client) model.Client) model.Factory {
	return func(provider, apiKey, modelID string) (model.Client, error) {
		var (
			client model.Client
			err    error
		)
		switch model.NormalizeProvider(provider) {
		case model.ProviderOpenAI:
			client, err = openaimodel.NewFromAPIKey(apiKey, modelID)
		case model.ProviderAnthropic:
			client, err = anthropicmodel.NewFromAPIKey(apiKey, modelID)
		default:
			client, err = geminimodel.NewFromAPIKey(apiKey, modelID)
		}
		if err != nil {
			return nil, err
		}
		return limit(client), nil
	}
}
