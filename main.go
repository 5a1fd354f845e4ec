package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v9"

	"github.com/avdeev/taskchat/pkg/api/handler"
	"github.com/avdeev/taskchat/pkg/database"
	"github.com/avdeev/taskchat/pkg/domain"
	"github.com/avdeev/taskchat/pkg/logger"
	"github.com/avdeev/taskchat/pkg/openai"
	"github.com/avdeev/taskchat/pkg/repository"
	"github.com/avdeev/taskchat/pkg/services"
	"github.com/avdeev/taskchat/pkg/telegram"
	"github.com/avdeev/taskchat/pkg/tools"
	"github.com/avdeev/taskchat/pkg/workers"
)

type Config struct {
	OpenAIToken      string `env:"OPEN_AI_TOKEN,required"`
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	ServerAddr       string `env:"SERVER_ADDR" envDefault:":8080"`
	DatabaseURL      string `env:"DATABASE_URL"`

	ChatModel string `env:"CHAT_MODEL" envDefault:"gpt-4o-mini"`
	MaxRounds int    `env:"MAX_ROUNDS" envDefault:"20"`

	MaxImageBytes       int `env:"MAX_IMAGE_BYTES" envDefault:"4194304"`
	MaxTaskPayloadBytes int `env:"MAX_TASK_PAYLOAD_BYTES" envDefault:"10485760"`

	ChatTimeout  time.Duration `env:"CHAT_TIMEOUT" envDefault:"90s"`
	ImageTimeout time.Duration `env:"IMAGE_TIMEOUT" envDefault:"120s"`
	CallTimeout  time.Duration `env:"CALL_TIMEOUT" envDefault:"30s"`
}

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(os.Stderr, logger.DefaultOptions)))

	if err := runMain(); err != nil {
		slog.Error("shutting down due to error", logger.Err(err))
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func runMain() error {
	workerGroup, err := setupWorkers()
	if err != nil {
		return err
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case s := <-sigCh:
			slog.Info("shutting down due to signal", "signal", s.String())
			cancelFn()
		case <-ctx.Done():
		}
	}()

	return workerGroup.Run(ctx)
}

func setupWorkers() (*workers.Group, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing env config: %w", err)
	}

	taskStore, err := setupTaskStore(cfg)
	if err != nil {
		return nil, err
	}

	llmClient, err := openai.NewClient(cfg.OpenAIToken, cfg.ChatTimeout)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	imageClient, err := openai.NewImageClient(cfg.OpenAIToken, cfg.ImageTimeout)
	if err != nil {
		return nil, fmt.Errorf("creating openai image client: %w", err)
	}

	imagePipeline := services.NewImagePipeline(
		imageClient,
		domain.DefaultGenerationCandidates(),
		cfg.MaxImageBytes,
		cfg.ImageTimeout,
	)
	attachmentResolver := services.NewAttachmentResolver(imagePipeline)
	taskService := services.NewTaskService(taskStore)

	registry, err := services.NewRegistry([]services.ToolFunction{
		tools.NewCreateTask(taskService, attachmentResolver),
		tools.NewListTasks(taskService),
		tools.NewUpdateTask(taskService, attachmentResolver),
		tools.NewDeleteTask(taskService),
		tools.NewDeleteAllTasks(taskService),
		tools.NewGenerateImage(imagePipeline),
	})
	if err != nil {
		return nil, fmt.Errorf("creating function registry: %w", err)
	}

	orchestrator := services.NewOrchestrator(
		llmClient,
		registry,
		cfg.ChatModel,
		cfg.MaxRounds,
		cfg.ChatTimeout,
		cfg.CallTimeout,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", handler.NewChat(orchestrator).Converse)
	mux.HandleFunc("/healthz", handler.NewHealth().Check)

	workerList := []workers.Worker{
		workers.NewHTTPServer(cfg.ServerAddr, mux),
	}

	if cfg.TelegramBotToken != "" {
		telegramClient, err := telegram.NewClient(cfg.TelegramBotToken)
		if err != nil {
			return nil, fmt.Errorf("creating telegram client: %w", err)
		}
		workerList = append(workerList, workers.NewTelegramListener(telegramClient, orchestrator))
	}

	return workers.NewGroup(workerList...), nil
}

func setupTaskStore(cfg Config) (services.TaskStore, error) {
	if cfg.DatabaseURL == "" {
		slog.Info("no database url configured, using in-memory task store")
		return repository.NewMemoryTaskRepository(cfg.MaxTaskPayloadBytes), nil
	}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating db: %w", err)
	}
	return repository.NewPostgresTaskRepository(db, cfg.MaxTaskPayloadBytes), nil
}
