package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cognito "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/authcore-io/authcore/internal/auth"
	"github.com/authcore-io/authcore/internal/config"
	"github.com/authcore-io/authcore/internal/httpapi"
	"github.com/authcore-io/authcore/internal/idp"
	"github.com/authcore-io/authcore/internal/obs"
	"github.com/authcore-io/authcore/internal/secrets"
	"github.com/authcore-io/authcore/internal/store/dynamo"
	"github.com/authcore-io/authcore/internal/store/postgres"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	var secretSource secrets.Source
	if cfg.SecretsBackend == "env" {
		secretSource = secrets.EnvSource{}
	} else {
		secretSource = secrets.NewAWSSource(secretsmanager.NewFromConfig(awsCfg))
	}
	cachedSecrets := secrets.NewCached(secretSource, cfg.SecretsCacheCapacity, cfg.SecretsCacheTTL)

	providerSecrets, err := cachedSecrets.Fetch(ctx)
	if err != nil {
		log.Fatalf("fetch provider secrets: %v", err)
	}

	jwksURL := cfg.JWKSURL
	if jwksURL == "" {
		jwksURL = providerSecrets.JWKSURL
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = issuerFromJWKSURL(jwksURL)
	}

	keys := auth.NewKeySetCache(&auth.HTTPKeySetSource{URL: jwksURL}, cfg.KeySetTTL)
	verifier := auth.NewVerifier(keys, issuer)

	hasher, err := auth.NewSecretHasher(providerSecrets.ClientID, providerSecrets.ClientSecret)
	if err != nil {
		log.Fatalf("secret hasher: %v", err)
	}

	var (
		store auth.UserStore
		probe httpapi.ReadyProbe
	)
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pgStore, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open postgres store: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	default:
		store = dynamo.New(dynamodb.NewFromConfig(awsCfg), cfg.TableName)
	}

	provider := idp.New(cognito.NewFromConfig(awsCfg), providerSecrets.UserPoolID, providerSecrets.ClientID)

	caches := auth.NewCaches(auth.CacheSizing{
		UserCapacity:     cfg.CacheCapacity,
		DecisionCapacity: cfg.CacheCapacity,
		HashCapacity:     cfg.CacheCapacity,
		OrgUsersCapacity: cfg.OrgUsersCacheCapacity,
		UserTTL:          cfg.CacheTTL,
		DecisionTTL:      cfg.CacheTTL,
		HashTTL:          cfg.HashCacheTTL,
		OrgUsersTTL:      cfg.CacheTTL,
	})

	authz, err := auth.NewAuthorizer(verifier, keys, store, provider, hasher,
		auth.WithCaches(caches),
		auth.WithCacheObserver(obs.ObserveCache),
	)
	if err != nil {
		log.Fatalf("authorizer: %v", err)
	}

	directory, err := auth.NewDirectory(store, provider, auth.WithDirectoryLogger(obs.LogJSON))
	if err != nil {
		log.Fatalf("directory: %v", err)
	}

	api := httpapi.New(authz, directory, probe, version)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting authcore %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Println("Stopped")
}

// issuerFromJWKSURL strips the well-known suffix, which is how the pool
// publishes its keys relative to the issuer.
func issuerFromJWKSURL(url string) string {
	return strings.TrimSuffix(url, "/.well-known/jwks.json")
}
