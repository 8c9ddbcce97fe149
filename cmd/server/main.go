package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"tubechat/internal/app"
	"tubechat/internal/config"
	"tubechat/internal/server"
	"tubechat/internal/servicetoken"
	"tubechat/internal/usertoken"
	"tubechat/internal/util"
	"tubechat/pkg/ai"
	"tubechat/pkg/auth0"
	"tubechat/pkg/storage"
	"tubechat/pkg/transcript"
)

func main() {
	// .env is a local convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	tokenVerifier, err := usertoken.NewVerifier(usertoken.Config{
		JWKSURL:  cfg.JWKSURL(),
		Issuer:   cfg.Issuer(),
		Audience: cfg.Auth0Audience,
	})
	if err != nil {
		log.Fatalf("failed to init token verifier: %v", err)
	}
	serviceVerifier, err := servicetoken.NewVerifier(servicetoken.VerifierOptions{
		Secret:         cfg.ServiceTokenSecret,
		Audience:       "chat-internal",
		AllowedIssuers: []string{"chat-relay"},
	})
	if err != nil {
		log.Fatalf("failed to init service token verifier: %v", err)
	}

	streamer, err := ai.NewOpenAIStreamer(ai.OpenAIConfig{
		APIKey:  cfg.AIGatewayAPIKey,
		BaseURL: cfg.AIGatewayBaseURL,
	})
	if err != nil {
		log.Fatalf("failed to init ai streamer: %v", err)
	}

	var blobs storage.BlobStore
	if cfg.MinioEndpoint != "" {
		minioBlobs, err := storage.NewMinioBlobStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init blob store: %v", err)
		}
		blobs = minioBlobs
	} else {
		slog.Warn("minio not configured, attachment blobs disabled")
	}

	var transcripts app.TranscriptFetcher
	if cfg.TranscriptAPIKey != "" {
		client, err := transcript.NewClient(transcript.Config{
			BaseURL: cfg.TranscriptAPIBaseURL,
			APIKey:  cfg.TranscriptAPIKey,
		})
		if err != nil {
			log.Fatalf("failed to init transcript client: %v", err)
		}
		transcripts = client
	} else {
		slog.Warn("transcript api not configured, transcript proxy disabled")
	}

	var provider app.ProviderDeleter
	if cfg.Auth0ClientID != "" && cfg.Auth0ClientSecret != "" {
		management, err := auth0.NewManagement(auth0.Config{
			Domain:       cfg.Auth0Domain,
			ClientID:     cfg.Auth0ClientID,
			ClientSecret: cfg.Auth0ClientSecret,
		})
		if err != nil {
			log.Fatalf("failed to init auth0 management: %v", err)
		}
		provider = management
	} else {
		slog.Warn("auth0 management credentials not configured, remote account deletion disabled")
	}

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		Blobs:       blobs,
		AI:          streamer,
		Transcripts: transcripts,
		Provider:    provider,
		TitleModel:  cfg.TitleModel,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                          appCore,
		TokenVerifier:                tokenVerifier,
		ServiceVerifier:              serviceVerifier,
		RedisAddr:                    cfg.RedisAddr,
		RedisPassword:                cfg.RedisPassword,
		AllowedOrigins:               cfg.AllowedOrigins,
		TrustedProxies:               trustedProxies,
		ChatRateLimitPerMinute:       cfg.ChatRateLimitPerMinute,
		TranscriptRateLimitPerMinute: cfg.TranscriptRateLimitPerMinute,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:        addr,
		Handler:     httpServer.Router(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: streamed chat responses can outlive any fixed
		// deadline.
		IdleTimeout: 60 * time.Second,
	}

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
