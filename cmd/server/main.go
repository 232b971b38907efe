// Command server runs one fides federation node: the credential manager,
// the law enforcement engine, and the peer-facing federation surface behind
// a single HTTP listener.
package main

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"fides/internal/credential/service"
	credstore "fides/internal/credential/store/credential"
	"fides/internal/credential/store/crl"
	revstore "fides/internal/credential/store/revocation"
	"fides/internal/evolution"
	"fides/internal/federation"
	jwttoken "fides/internal/jwt_token"
	"fides/internal/law"
	"fides/internal/platform/config"
	"fides/internal/platform/httpserver"
	"fides/internal/platform/kafka"
	"fides/internal/platform/logger"
	"fides/internal/platform/metrics"
	redisplatform "fides/internal/platform/redis"
	"fides/internal/signer"
	httptransport "fides/internal/transport/http"
	id "fides/pkg/domain"
	"fides/pkg/platform/audit"
	auditmemory "fides/pkg/platform/audit/store/memory"
	auditpostgres "fides/pkg/platform/audit/store/postgres"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	issuerID, err := issuerIdentity(cfg)
	if err != nil {
		return err
	}

	keys, err := keyProvider(cfg, issuerID)
	if err != nil {
		return err
	}

	// Durable stores: Postgres when configured, in-memory otherwise.
	var (
		credentials service.CredentialStore
		revocations service.RevocationStore
		auditStore  audit.Store
		db          *sql.DB
		pool        *pgxpool.Pool
	)
	if cfg.PostgresURL != "" {
		db, err = sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}

		pool, err = pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		credentials = credstore.NewPostgres(db)
		revocations = revstore.NewPostgres(db)
		auditStore = auditpostgres.New(pool)
	} else {
		log.Warn("no postgres configured, using in-memory stores")
		credentials = credstore.New()
		revocations = revstore.New()
		auditStore = auditmemory.NewInMemoryStore()
	}

	// Shared revocation list, optional.
	redisClient, err := redisplatform.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	// Kafka producer for revocation fan-out and the security audit stream,
	// optional. The peer directory is bound after the registry exists.
	peers := &lazyPeers{}
	producer, err := kafka.NewProducer(ctx, cfg.Kafka,
		kafka.WithPeerLister(peers), kafka.WithLogger(log))
	if err != nil {
		return err
	}
	if producer != nil {
		defer producer.Close()
	}

	publisherOpts := []audit.Option{audit.WithLogger(log)}
	if producer != nil {
		publisherOpts = append(publisherOpts, audit.WithSink(producer))
	}
	publisher := audit.NewPublisher(auditStore, publisherOpts...)

	engine, err := law.NewEngine(publisher, law.WithMetrics(law.NewMetrics()))
	if err != nil {
		return err
	}

	registry := federation.NewRegistry(publisher, federation.WithRegistryLogger(log))
	peers.registry = registry

	ledger := federation.NewLedger(publisher,
		federation.WithLedgerLogger(log),
		federation.WithNegotiationTimeout(cfg.NegotiationTimeout))

	serviceOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(service.NewMetrics()),
		service.WithPeerDirectory(registry),
		service.WithDefaultReverificationThreshold(cfg.ReverificationThreshold),
	}
	if redisClient != nil {
		serviceOpts = append(serviceOpts, service.WithRevocationList(crl.NewRedisCRL(redisClient.Client)))
	}
	if producer != nil {
		serviceOpts = append(serviceOpts, service.WithDistributor(producer))
	}

	verifier := evolution.New()
	if cfg.EvolutionMaxStep > 0 {
		verifier = evolution.New(evolution.WithMaxStep(uint64(cfg.EvolutionMaxStep)))
	}
	manager, err := service.New(credentials, revocations, engine, verifier, keys, publisher, serviceOpts...)
	if err != nil {
		return err
	}

	router := federation.NewRouter(publisher, federation.WithRouterLogger(log))
	router.RegisterDefaultHandlers(manager, engine, ledger, registry)

	go ledger.RunSweeper(ctx, cfg.SweepInterval)

	httpMetrics := metrics.New()
	httpMetrics.SetNodeInfo(issuerID.String())

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "fides", "fides-api")

	handler := httptransport.NewRouter(httptransport.Deps{
		Credentials:  httptransport.NewCredentialHandler(manager, log),
		Laws:         httptransport.NewLawHandler(engine, log),
		Federation:   httptransport.NewFederationHandler(router, registry, publisher, log),
		JWTValidator: jwttoken.NewJWTServiceAdapter(jwtService),
		AdminToken:   cfg.AdminToken,
		Metrics:      httpMetrics,
		Logger:       log,
		Health: func() error {
			if db != nil {
				if err := db.Ping(); err != nil {
					return err
				}
			}
			if redisClient != nil {
				return redisClient.Health(context.Background())
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Addr, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info("fides node listening", "addr", cfg.Addr, "issuer_id", issuerID.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	registry.Drain(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}

// issuerIdentity resolves the node's issuer id from configuration, minting a
// fresh one when unset.
func issuerIdentity(cfg config.Server) (id.IssuerID, error) {
	if cfg.IssuerID == "" {
		return id.NewIssuerID(), nil
	}
	return id.ParseIssuerID(cfg.IssuerID)
}

// keyProvider builds the signing key provider, seeded when a stable identity
// is configured.
func keyProvider(cfg config.Server, issuerID id.IssuerID) (signer.KeyProvider, error) {
	if cfg.IssuerKeySeed == "" {
		keys, err := signer.NewStaticKeyProvider(issuerID)
		if err != nil {
			return nil, err
		}
		return keys, nil
	}
	seed, err := hex.DecodeString(cfg.IssuerKeySeed)
	if err != nil {
		return nil, err
	}
	keys, err := signer.NewStaticKeyProviderFromSeed(issuerID, seed)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// lazyPeers defers the peer directory binding so the Kafka producer can be
// constructed before the registry that feeds it.
type lazyPeers struct {
	registry *federation.Registry
}

func (l *lazyPeers) ConnectedNodeIDs() []id.NodeID {
	if l.registry == nil {
		return nil
	}
	return l.registry.ConnectedNodeIDs()
}
