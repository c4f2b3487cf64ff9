// Package app wires the stores, the agent and the queue from a Config.
package app

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"

	"github.com/unclebandit/smsleopard-agent/internal/agent"
	"github.com/unclebandit/smsleopard-agent/internal/config"
	"github.com/unclebandit/smsleopard-agent/internal/controller"
	"github.com/unclebandit/smsleopard-agent/internal/db"
	"github.com/unclebandit/smsleopard-agent/internal/guardrail"
	"github.com/unclebandit/smsleopard-agent/internal/handler"
	"github.com/unclebandit/smsleopard-agent/internal/queue"
	"github.com/unclebandit/smsleopard-agent/internal/repository"
	"github.com/unclebandit/smsleopard-agent/internal/retry"
	"github.com/unclebandit/smsleopard-agent/internal/service"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *sql.DB
	Queue  queue.Queue

	Campaigns *repository.CampaignRepository
	Customers *repository.CustomerRepository
	Messages  *repository.ChatMessageRepository

	Pipeline      *service.Pipeline
	Worker        *service.Worker
	Intake        *service.Intake
	Delivery      *service.Delivery
	Conversations *service.ConversationService
}

// New opens the database, applies the schema and builds every component.
// q may be nil, in which case the queue named by cfg.QueueBackend is opened.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, q queue.Queue) (*App, error) {
	conn, err := db.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	a, err := build(ctx, cfg, logger, conn, q)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger, conn *sql.DB, q queue.Queue) (*App, error) {
	a := &App{
		Config:    cfg,
		Logger:    logger,
		DB:        conn,
		Campaigns: &repository.CampaignRepository{DB: conn},
		Customers: &repository.CustomerRepository{DB: conn},
		Messages:  &repository.ChatMessageRepository{DB: conn},
	}

	var awsCfg aws.Config
	if cfg.NeedsAWS() {
		var err error
		if awsCfg, err = cfg.LoadAWS(ctx); err != nil {
			return nil, err
		}
	}

	filter, err := guardrail.New(cfg, awsCfg, logger)
	if err != nil {
		return nil, errors.Wrap(err, "guardrail")
	}
	runtime, err := agent.NewRuntime(cfg, awsCfg, a.Campaigns, logger)
	if err != nil {
		return nil, errors.Wrap(err, "agent runtime")
	}

	policy := retry.Policy{MaxRetries: cfg.RetryMaxRetries, BaseDelay: cfg.RetryBaseDelay}
	a.Pipeline = service.NewPipeline(a.Customers, a.Messages, filter, runtime, policy, logger)
	a.Pipeline.Limits = agent.UsageLimits{RequestLimit: cfg.RequestLimit}

	if q == nil {
		if q, err = OpenQueue(cfg, logger); err != nil {
			return nil, err
		}
	}
	a.Queue = q

	a.Worker = service.NewWorker(a.Pipeline, queue.NewOutboundPublisher(q, logger), logger)
	a.Intake = service.NewIntake(a.Customers, a.Messages, q, logger)
	a.Delivery = service.NewDelivery(a.Messages, logger)
	a.Conversations = &service.ConversationService{
		CampaignRepo: a.Campaigns,
		CustomerRepo: a.Customers,
		MessageRepo:  a.Messages,
		Logger:       logger,
	}
	return a, nil
}

// OpenQueue opens the configured queue backend.
func OpenQueue(cfg *config.Config, logger *slog.Logger) (queue.Queue, error) {
	if cfg.QueueBackend == config.QueueAMQP {
		return queue.DialAMQP(cfg.AMQPURL, cfg.WorkerConcurrency, logger)
	}
	return queue.NewInMemoryQueue(cfg.WorkerConcurrency, logger), nil
}

// StartInProcess subscribes the worker and the delivery consumer to the
// queue. It is used when no separate worker process or SMS gateway exists.
func (a *App) StartInProcess(ctx context.Context) error {
	if err := a.Queue.Subscribe(ctx, queue.TopicInbound, a.Worker.Handle); err != nil {
		return errors.Wrap(err, "subscribe worker")
	}
	if err := a.Queue.Subscribe(ctx, queue.TopicOutbound, a.Delivery.Handle); err != nil {
		return errors.Wrap(err, "subscribe delivery")
	}
	return nil
}

// Router mounts the message and operator endpoints.
func (a *App) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	handler.NewAgentHandler(a.Worker, a.Intake, a.Logger).Routes(r)
	(&controller.OperatorController{ConversationService: a.Conversations, Logger: a.Logger}).Routes(r)
	return r
}

// Close drains the queue and closes the database.
func (a *App) Close() error {
	qerr := a.Queue.Close()
	if err := a.DB.Close(); err != nil {
		return err
	}
	return qerr
}
