package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	customerhandler "onboarding/internal/customer/handler"
	customermetrics "onboarding/internal/customer/metrics"
	"onboarding/internal/customer/notify"
	customerservice "onboarding/internal/customer/service"
	customerstore "onboarding/internal/customer/store/customer"
	profilestore "onboarding/internal/customer/store/profile"
	tokenstore "onboarding/internal/customer/store/token"
	"onboarding/internal/customer/verification"
	"onboarding/internal/platform/config"
	"onboarding/internal/platform/jwttoken"
	"onboarding/internal/platform/kafka/consumer"
	"onboarding/internal/platform/kafka/producer"
	httpmetrics "onboarding/internal/platform/metrics"
	"onboarding/internal/platform/postgres"
	platformredis "onboarding/internal/platform/redis"
	"onboarding/pkg/platform/audit"
	auditmemory "onboarding/pkg/platform/audit/store/memory"
	auditpostgres "onboarding/pkg/platform/audit/store/postgres"
	"onboarding/pkg/platform/audit/recorder"
	"onboarding/pkg/platform/circuit"
	"onboarding/pkg/platform/events"
	"onboarding/pkg/platform/fieldcipher"
	"onboarding/pkg/platform/httputil"
	"onboarding/pkg/platform/outbox"
	"onboarding/pkg/platform/password"
	"onboarding/pkg/platform/secrets"
	"onboarding/pkg/platform/tx"
)

type app struct {
	router   http.Handler
	tokens   *verification.Manager
	relay    *outbox.Relay
	consumer *consumer.Consumer
	closers  []func()
}

// Close releases connections in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type storage struct {
	customers  customerservice.CustomerStore
	lookup     verification.CustomerLookup
	profiles   customerservice.ProfileStore
	tokens     verification.TokenStore
	audit      audit.Store
	transactor tx.Transactor
	outbox     *outbox.PostgresStore
	checks     []healthCheck
}

// healthCheck is one dependency reported by /health.
type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

func buildApp(ctx context.Context, cfg config.Server, log *slog.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	cipher, err := buildCipher(ctx, cfg.Encryption)
	if err != nil {
		return nil, err
	}

	st, err := buildStorage(ctx, cfg, a)
	if err != nil {
		return nil, err
	}

	reg := prometheus.DefaultRegisterer
	customerMetrics := customermetrics.NewWithRegisterer(reg)

	bus := events.NewBus(events.WithLogger(log))
	a.closers = append(a.closers, bus.Close)

	a.tokens = verification.New(st.tokens, st.lookup, verification.NewLoggingDelivery(log),
		verification.WithLogger(log),
		verification.WithMetrics(customerMetrics),
		verification.WithTTL(cfg.Verification.TokenTTL),
		verification.WithResendLimit(cfg.Verification.ResendLimit, cfg.Verification.ResendWindow),
	)
	notify.Subscribe(bus, a.tokens)

	var sink events.Sink = bus
	if len(cfg.Kafka.Brokers) > 0 && st.outbox != nil {
		if err := wireKafka(ctx, cfg, log, st, bus, a, reg); err != nil {
			return nil, err
		}
		sink = st.outbox
	}

	auditor := recorder.New(st.audit,
		recorder.WithLogger(log),
		recorder.WithMetrics(recorder.NewMetrics(reg)),
	)

	svc := customerservice.New(
		st.customers,
		st.profiles,
		a.tokens,
		password.NewHasher(cfg.BcryptCost),
		cipher,
		notify.NewPublisher(sink),
		auditor,
		customerservice.WithLogger(log),
		customerservice.WithMetrics(customerMetrics),
		customerservice.WithTransactor(st.transactor),
	)

	handler := customerhandler.New(svc, log, httpmetrics.NewWithRegisterer(reg),
		jwttoken.NewService(cfg.JWTSigningKey, cfg.JWTIssuer))
	a.router = newRouter(cfg, handler, st.checks)

	ok = true
	return a, nil
}

func buildCipher(ctx context.Context, cfg config.EncryptionConfig) (*fieldcipher.Cipher, error) {
	var resolver secrets.KeyResolver = secrets.NewStaticResolver(cfg.StaticKey)
	if cfg.UsesKMS() {
		client, err := secrets.NewKMSClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		kmsResolver, err := secrets.NewKMSResolver(client, cfg.KMSKeyID, cfg.EncryptedDEK)
		if err != nil {
			return nil, err
		}
		resolver = kmsResolver
	}

	key, err := resolver.ResolveKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve field encryption key: %w", err)
	}
	return fieldcipher.New(key)
}

func buildStorage(ctx context.Context, cfg config.Server, a *app) (*storage, error) {
	if !cfg.Durable() {
		customers := customerstore.NewInMemory()
		st := &storage{
			customers:  customers,
			lookup:     customers,
			profiles:   profilestore.NewInMemory(),
			tokens:     tokenstore.NewInMemory(),
			audit:      auditmemory.NewInMemoryStore(),
			transactor: tx.NewShardedTransactor(),
		}
		return st, attachRedisTokens(ctx, cfg, st, a)
	}

	db, err := postgres.Open(ctx, postgres.Config{DSN: cfg.DatabaseURL})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = db.Close() })
	if err := postgres.Migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	customers := customerstore.NewPostgres(db)
	st := &storage{
		customers:  customers,
		lookup:     customers,
		profiles:   profilestore.NewPostgres(db),
		tokens:     tokenstore.NewPostgres(db),
		audit:      auditpostgres.New(db),
		transactor: tx.NewSQLTransactor(db),
		outbox:     outbox.NewPostgres(db),
		checks:     []healthCheck{{name: "postgres", check: db.PingContext}},
	}
	return st, attachRedisTokens(ctx, cfg, st, a)
}

// attachRedisTokens moves verification tokens to Redis when it is configured.
func attachRedisTokens(ctx context.Context, cfg config.Server, st *storage, a *app) error {
	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if client == nil {
		return nil
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	st.checks = append(st.checks, healthCheck{name: "redis", check: client.Health})
	st.tokens = tokenstore.NewRedis(client.Client,
		tokenstore.WithRetention(cfg.Verification.ResendWindow))
	return nil
}

func wireKafka(ctx context.Context, cfg config.Server, log *slog.Logger, st *storage, bus *events.Bus, a *app, reg prometheus.Registerer) error {
	prod, err := producer.New(cfg.Kafka.Brokers, producer.WithLogger(log))
	if err != nil {
		return err
	}
	a.closers = append(a.closers, prod.Close)
	if err := prod.EnsureTopics(ctx, 3, 1, cfg.Kafka.Topic); err != nil {
		return err
	}

	a.relay = outbox.NewRelay(st.outbox, st.transactor, prod, cfg.Kafka.Topic,
		outbox.WithLogger(log),
		outbox.WithMetrics(outbox.NewMetrics(reg)),
		outbox.WithBreaker(circuit.New("outbox-relay", circuit.WithCooldown(15*time.Second))),
	)

	cons, err := consumer.New(cfg.Kafka.Brokers, cfg.Kafka.Group, []string{cfg.Kafka.Topic}, dispatchRecords(bus, log),
		consumer.WithLogger(log),
	)
	if err != nil {
		return err
	}
	a.consumer = cons
	a.closers = append(a.closers, cons.Close)
	return nil
}

// dispatchRecords feeds relayed envelopes to the bus. A dispatch error is
// returned so the consumer retries; a record that cannot be decoded never
// will be, so it is logged and skipped.
func dispatchRecords(bus *events.Bus, log *slog.Logger) consumer.Handler {
	return consumer.HandlerFunc(func(ctx context.Context, msg *consumer.Message) error {
		env, err := events.DecodeEnvelope(msg.Value)
		if err != nil {
			log.ErrorContext(ctx, "discarding malformed event",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			return nil
		}
		return bus.Dispatch(ctx, env)
	})
}

func newRouter(cfg config.Server, customers *customerhandler.Handler, checks []healthCheck) http.Handler {
	r := chi.NewRouter()
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", healthHandler(checks))
	r.Handle("/metrics", promhttp.Handler())

	customers.Register(r)
	return r
}

// healthHandler reports each dependency and answers 503 when any is down.
func healthHandler(checks []healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for _, c := range checks {
			if err := c.check(r.Context()); err != nil {
				slog.WarnContext(r.Context(), "health check failed", "dependency", c.name, "error", err)
				body[c.name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			body[c.name] = "ok"
		}
		if status != http.StatusOK {
			body["status"] = "unavailable"
		}
		httputil.WriteJSON(w, status, body)
	}
}
