package nao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hfzizz/nao-llm/internal/bootstrap"
	"github.com/hfzizz/nao-llm/internal/config"
	chatuc "github.com/hfzizz/nao-llm/internal/usecase/chat"
)

// Internal interfaces, swapped out in tests.
type chatUseCase interface {
	Submit(ctx context.Context, sessionHandle, text string) (chatuc.Answer, error)
}

type knowledgeUseCase interface {
	Reload(ctx context.Context) (int, error)
}

// Reply is the outcome of one utterance.
type Reply struct {
	Session   string
	Text      string  // model reply with chat-template tokens stripped
	Farewell  bool    // the utterance ended the conversation
	Retrieved int     // knowledge base entries used in the prompt
	MaxScore  float64 // best combined similarity, -Inf for an empty knowledge base
}

// Client runs the pipeline in-process.
type Client struct {
	chatSvc      chatUseCase
	knowledgeSvc knowledgeUseCase
	healthSvc    healthUseCase
	closer       func() error
	obs          *observer
}

// New loads configuration, wires the pipeline and loads the knowledge base.
// The provided context bounds the initial load.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, o := range opts {
		o.apply(cc)
	}

	cfg, err := resolveConfig(cc)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cc.logger, cc.metricsReg)
	if err != nil {
		return nil, err
	}

	logger := cc.pipelineLogger
	if logger == nil {
		logger = zap.NewNop()
	}

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("nao: build pipeline: %w", err)
	}

	return &Client{
		chatSvc:      app.Chat,
		knowledgeSvc: app.Knowledge,
		healthSvc:    app.Health,
		closer:       app.Close,
		obs:          obs,
	}, nil
}

func resolveConfig(cc *clientConfig) (config.Config, error) {
	var cfg config.Config
	switch {
	case cc.config != nil:
		cfg = *cc.config
	case cc.configPath != "":
		loaded, err := config.LoadFile(cc.configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("nao: %w", err)
		}
		cfg = loaded
	default:
		env := cc.env
		if env == "" {
			env = config.GetEnv()
		}
		loaded, err := config.Load(env)
		if err != nil {
			return config.Config{}, fmt.Errorf("nao: %w", err)
		}
		cfg = loaded
	}

	if cc.dataset != "" {
		cfg.Knowledge.DatasetPath = cc.dataset
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("nao: invalid config: %w", err)
	}
	return cfg, nil
}

// Close releases storage handles.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// Ask answers text within session. An empty session uses the configured default.
// Failures are returned as is: check them with errors.Is against the Err* sentinels.
func (c *Client) Ask(ctx context.Context, session, text string) (reply Reply, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", start, err, "session", reply.Session) }()

	ans, err := c.chatSvc.Submit(ctx, session, text)
	if err != nil {
		return Reply{Session: ans.Session}, fmt.Errorf("ask: %w", err)
	}
	return Reply{
		Session:   ans.Session,
		Text:      chatuc.CleanReply(ans.Reply),
		Farewell:  ans.Farewell,
		Retrieved: ans.Retrieved,
		MaxScore:  ans.MaxScore,
	}, nil
}

// Reload re-reads the dataset. On failure the previous knowledge base keeps serving.
func (c *Client) Reload(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("reload", start, err, "documents", n) }()

	if c.knowledgeSvc == nil {
		return 0, errors.New("nao: client not initialized")
	}
	n, err = c.knowledgeSvc.Reload(ctx)
	if err != nil {
		return 0, fmt.Errorf("reload: %w", err)
	}
	return n, nil
}
