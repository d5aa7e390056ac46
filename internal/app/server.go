// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"

	"settlement-service/internal/config"
	"settlement-service/internal/db"
	"settlement-service/internal/gateway"
	activationHandler "settlement-service/internal/handlers/activation"
	paymentHandler "settlement-service/internal/handlers/payment"
	webhookHandler "settlement-service/internal/handlers/webhook"
	"settlement-service/internal/middleware"
	"settlement-service/internal/pkg/jwt"
	"settlement-service/internal/pkg/tokencache"
	"settlement-service/internal/repository/postgres"
	activationUsecase "settlement-service/internal/service/activation"
	"settlement-service/internal/service/email"
	orderUsecase "settlement-service/internal/service/order"
	refundUsecase "settlement-service/internal/service/refund"
	webhookUsecase "settlement-service/internal/service/webhook"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer() *Server {
	cfg := config.Load()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := postgres.ConnectDB(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	store := postgres.NewStore(pool)

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(s.cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Println("[REDIS] ✅ Connected successfully")
	tokens := tokencache.New(redisClient, "activation")

	// ----- JWT Verifier -----
	verifier, err := jwt.LoadVerifier(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}

	// ----- Email -----
	mailer := email.NewSender(
		s.cfg.SMTPHost,
		s.cfg.SMTPPort,
		s.cfg.SMTPUser,
		s.cfg.SMTPPass,
		s.cfg.SMTPFromName,
		s.cfg.SMTPSecure,
	)

	// ----- Gateway clients -----
	codec := gateway.NewCodec(s.cfg.Gateway.HashKey, s.cfg.Gateway.HashIV)
	refundClient := gateway.NewClient(s.cfg.Gateway, logger)

	var invoiceClient gateway.InvoiceClient
	if s.cfg.Gateway.InvoiceURL != "" {
		invoiceClient = gateway.NewInvoiceClient(s.cfg.Gateway, logger)
	}

	channelCodecs := make(map[string]*gateway.Codec, len(s.cfg.ChannelSecrets))
	for channel, secret := range s.cfg.ChannelSecrets {
		channelCodecs[channel] = gateway.NewCodec(secret[0], secret[1])
	}

	// ----- Services -----
	orderService := orderUsecase.NewOrderService(store, s.cfg.Gateway, s.cfg.NotifyURL, s.cfg.ClientBackURL, logger)
	webhookProcessor := webhookUsecase.NewProcessor(store, codec, invoiceClient, logger)
	activationService := activationUsecase.NewService(store, channelCodecs, mailer, s.cfg.ActivationBaseURL, logger)
	refundCoordinator := refundUsecase.NewCoordinator(store, refundClient, invoiceClient, logger)

	// ----- Handlers -----
	paymentHandlerInst := paymentHandler.NewPaymentHandler(orderService, refundCoordinator)
	webhookHandlerInst := webhookHandler.NewWebhookHandler(webhookProcessor)
	activationHandlerInst := activationHandler.NewActivationHandler(activationService, tokens, s.cfg.LoginURL)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(verifier)

	s.engine.Use(
		middleware.Recovery(logger),
		middleware.RequestLogger(logger),
		middleware.CORSMiddleware(nil),
	)

	// ----- Router -----
	handlers := &Handlers{
		PaymentHandler:    paymentHandlerInst,
		WebhookHandler:    webhookHandlerInst,
		ActivationHandler: activationHandlerInst,
		AuthMiddleware:    authMiddleware,
		WebhookGuard:      middleware.GatewayIPAllowlist(s.cfg.GatewayIPs, s.cfg.IsProduction(), logger),
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("🚀 Server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}
