package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"streamgate/internal/auth"
	"streamgate/internal/config"
	"streamgate/internal/db"
	"streamgate/internal/httpapi"
	"streamgate/internal/ingest"
	"streamgate/internal/metrics"
	"streamgate/internal/relay"
	"streamgate/internal/remote"
	"streamgate/internal/session"
	"streamgate/internal/store"
	"streamgate/internal/token"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	st := store.New(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	dial, err := newDialFunc(ctx, cfg)
	if err != nil {
		log.Fatalf("configure remote backend: %v", err)
	}

	sessions := session.New(dial, session.Config{
		Mode:        sessionMode(cfg.SessionMode),
		DialTimeout: cfg.SessionDialTO,
		PingTimeout: cfg.SessionPingTO,
	})
	defer sessions.Close(context.Background())

	if cfg.SessionMode == config.SessionPooled {
		keepalive := session.NewKeepalive(sessions, cfg.KeepaliveInterval, log.Default())
		go keepalive.Run(ctx)
	}

	codec := token.NewCodec(cfg.SecretKey)
	rly := relay.New(sessions, codec, cfg.ChunkSize)
	ing := ingest.New(sessions, codec, st, cfg.BaseURL)
	authn := auth.NewAuthenticator(st, cfg.AdminToken)

	api := httpapi.New(cfg, rly, ing, st, authn)
	echoServer := api.NewEcho()

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      echoServer,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		log.Printf("listening on %s (backend %s, session mode %s)",
			cfg.ListenAddr, cfg.RemoteBackend, cfg.SessionMode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
		os.Exit(1)
	}
}

func sessionMode(mode string) session.Mode {
	if mode == config.SessionPooled {
		return session.ModePooled
	}
	return session.ModePerRequest
}

// newDialFunc builds the session dialer for the configured backend. The
// dialer counts every dial so session churn is visible.
func newDialFunc(ctx context.Context, cfg config.Config) (session.DialFunc, error) {
	switch cfg.RemoteBackend {
	case config.BackendS3:
		s3Store, err := newS3Store(ctx, cfg)
		if err != nil {
			return nil, err
		}
		// One shared client; each "session" is a handle on it.
		return func(context.Context) (remote.Store, error) {
			metrics.SessionsDialedTotal.Inc()
			return s3Store, nil
		}, nil

	default:
		apiID, _ := strconv.ParseInt(cfg.APIID, 10, 64)
		gwCfg := remote.GatewayConfig{
			BaseURL:      cfg.GatewayURL,
			APIID:        apiID,
			APIHash:      cfg.APIHash,
			BotToken:     cfg.BotToken,
			SessionToken: cfg.SessionToken,
			ChannelID:    cfg.StorageChannel,
			Timeout:      cfg.RemoteTimeout,
		}
		return func(dialCtx context.Context) (remote.Store, error) {
			metrics.SessionsDialedTotal.Inc()
			return remote.DialGateway(dialCtx, gwCfg)
		}, nil
	}
}

func newS3Store(ctx context.Context, cfg config.Config) (*remote.S3Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.S3Region))
	if cfg.S3AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = &cfg.S3Endpoint
			o.UsePathStyle = true
		}
	})

	return remote.NewS3Store(remote.S3Options{
		Client: client,
		Bucket: cfg.S3Bucket,
		Prefix: cfg.S3Prefix,
	}), nil
}
