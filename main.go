package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raushankrgupta/gait-speed-service/api"
	"github.com/raushankrgupta/gait-speed-service/cache"
	"github.com/raushankrgupta/gait-speed-service/config"
	"github.com/raushankrgupta/gait-speed-service/emails"
	"github.com/raushankrgupta/gait-speed-service/store"
	"github.com/raushankrgupta/gait-speed-service/utils"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.LoadConfig()
	if config.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	// Initialize MongoDB
	client, err := utils.ConnectMongo(config.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database(config.DBName)
	if err := store.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("Failed to ensure indexes: %v", err)
	}

	users := store.NewMongoUserStore(db)
	admins := store.NewMongoAdminStore(db)
	speeds := store.NewMongoGaitSpeedStore(db)

	if config.SuperAdminPassword != "" {
		sa, err := api.InitializeSuperAdmin(ctx, admins, config.SuperAdminUsername,
			config.SuperAdminPassword, config.SuperAdminEmail, bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Failed to initialize super admin: %v", err)
		}
		log.Printf("Super admin %s ready", sa.Username)
	} else {
		log.Println("SUPER_ADMIN_PASSWORD not set, skipping super admin initialization")
	}

	var adminCache cache.AdminListCache = cache.NewMemoryAdminListCache(config.AdminCacheTTL)
	if config.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, config.RedisAddr, config.RedisDB)
		if err != nil {
			log.Printf("Redis unavailable, falling back to in-process admin cache: %v", err)
		} else {
			defer rdb.Close()
			adminCache = cache.NewRedisAdminListCache(rdb, config.AdminCacheTTL)
			log.Printf("Admin list cache backed by Redis at %s", config.RedisAddr)
		}
	}

	var avatars utils.ObjectStorage
	if config.AWSBucketName != "" {
		s3Storage, err := utils.NewS3Storage(ctx, config.AWSRegion, config.AWSBucketName)
		if err != nil {
			log.Printf("S3 unavailable, avatars will be stored inline: %v", err)
		} else {
			avatars = s3Storage
		}
	}

	var sender utils.EmailSender = utils.NewSendGridSender(config.SendGridAPIKey, config.EmailFromName, config.EmailFrom)
	sender = utils.NewRetryingSender(sender, config.EmailRetryCount)
	mailer := emails.NewService(sender, config.FrontendURL, config.SuperAdminEmail)

	server := api.NewServer(api.Options{
		Users:             users,
		Admins:            admins,
		Speeds:            speeds,
		Mailer:            mailer,
		AdminCache:        adminCache,
		Avatars:           avatars,
		JWTSecret:         config.JWTSecret,
		JWTExpiresIn:      config.JWTExpiresIn,
		CORSAllowedOrigin: config.CORSAllowedOrigin,
	})

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		fmt.Printf("Server starting on port %s...\n", config.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutdown signal received")
	case err := <-serverErrors:
		log.Fatalf("Server failed to start: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
