package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"mindmate/internal/ai"
	"mindmate/internal/app"
	"mindmate/internal/cache"
	"mindmate/internal/config"
	"mindmate/internal/logger"
	"mindmate/internal/model"
	mysqlClient "mindmate/internal/platform/mysql"
	rabbitmqClient "mindmate/internal/platform/rabbitmq"
	redisClient "mindmate/internal/platform/redis"
	"mindmate/internal/realtime"
	"mindmate/internal/repository"
	"mindmate/internal/telephony"
	"mindmate/internal/worker"
)

type App struct {
	Config        *config.Config
	Logger        *zap.Logger
	MySQL         *gorm.DB
	Redis         *redis.Client
	MQConn        *amqp.Connection
	MessageWorker *worker.MessagePersistWorker

	AuthService      *app.AuthService
	ChatService      *app.ChatService
	CrisisService    *app.CrisisService
	CommunityService *app.CommunityService

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	a := &App{
		Config:    cfg,
		Logger:    logger.New(cfg.Log.FilePath, cfg.IsProd()),
		StartedAt: time.Now(),
	}
	if err := a.connect(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	if err := a.wire(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Logger.Info("bootstrap complete",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.Bool("telephony_configured", a.TelephonyConfigured()),
	)
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN(), a.Logger)
	if err != nil {
		return err
	}
	a.MySQL = mysqlDB
	if err := mysqlDB.AutoMigrate(
		&model.User{},
		&model.Session{},
		&model.Message{},
		&model.CommunityMessage{},
		&model.CrisisCall{},
	); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	a.Redis = redisCli

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.App.Name)
	if err != nil {
		return err
	}
	a.MQConn = mqConn
	return nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	userRepo := repository.NewUserRepository(a.MySQL)
	sessionRepo := repository.NewSessionRepository(a.MySQL)
	messageRepo := repository.NewMessageRepository(a.MySQL)
	communityRepo := repository.NewCommunityRepository(a.MySQL)
	callRepo := repository.NewCrisisCallRepository(a.MySQL)

	a.MessageWorker = worker.NewMessagePersistWorker(
		a.MQConn,
		messageRepo,
		sessionRepo,
		cfg.RabbitMQ.MessagePersistQueue,
		a.Logger,
	)
	if err := a.MessageWorker.Start(ctx); err != nil {
		return fmt.Errorf("start message worker failed: %w", err)
	}

	a.AuthService = app.NewAuthService(
		userRepo,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)

	a.ChatService = app.NewChatService(app.ChatServiceDeps{
		Sessions:  sessionRepo,
		Messages:  messageRepo,
		Publisher: rabbitmqClient.NewMessagePublisher(a.MQConn, cfg.RabbitMQ.MessagePersistQueue),
		HistoryCache: cache.NewHistoryCache(
			a.Redis,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
		),
		LLM: ai.NewOpenAICompatibleClient(),
		DefaultLLM: ai.ChatConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
		},
		SystemPrompt: cfg.LLM.SystemPrompt,
		WindowSize:   cfg.LLM.MaxContextMessage,
		Logger:       a.Logger,
	})

	a.CrisisService = app.NewCrisisService(app.CrisisServiceDeps{
		Dialer: telephony.NewTwilioDialer(telephony.Config{
			AccountSID: cfg.Telephony.AccountSID,
			AuthToken:  cfg.Telephony.AuthToken,
			FromNumber: cfg.Telephony.FromNumber,
			TwiMLURL:   cfg.Telephony.TwiMLURL,
		}),
		Calls:          callRepo,
		Cooldown:       cache.NewCallCooldown(a.Redis, time.Duration(cfg.Crisis.CallCooldownSeconds)*time.Second),
		DefaultHotline: cfg.Telephony.DefaultHotline,
		Hotlines:       cfg.Telephony.HotlineNumbers,
		IdempotencyTTL: time.Duration(cfg.Crisis.IdempotencyTTLSeconds) * time.Second,
		Logger:         a.Logger,
	})

	a.CommunityService = app.NewCommunityService(
		communityRepo,
		realtime.NewCommunityFeed(a.Redis, cfg.Community.Channel, a.Logger),
		cfg.Community.MaxTextSize,
		a.Logger,
	)
	return nil
}

// TelephonyConfigured reports whether crisis calls can be placed at all.
func (a *App) TelephonyConfigured() bool {
	t := a.Config.Telephony
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != "" && t.DefaultHotline != ""
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return closeErr
}
