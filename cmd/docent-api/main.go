package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"golang.org/x/sync/errgroup"

	"github.com/PabloGalante/docent-agent/internal/adapters/auth"
	"github.com/PabloGalante/docent-agent/internal/adapters/events"
	httpadapter "github.com/PabloGalante/docent-agent/internal/adapters/http"
	"github.com/PabloGalante/docent-agent/internal/adapters/llm"
	firestorestore "github.com/PabloGalante/docent-agent/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/docent-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/docent-agent/internal/adapters/storage/postgres"
	"github.com/PabloGalante/docent-agent/internal/app/conversation"
	"github.com/PabloGalante/docent-agent/internal/app/tools"
	"github.com/PabloGalante/docent-agent/internal/config"
	"github.com/PabloGalante/docent-agent/internal/domain"
	"github.com/PabloGalante/docent-agent/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.Logger().Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	observability.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		observability.Logger().Error("docent api stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := observability.WithFields("mode", cfg.Mode)
	log.Info("docent api starting", "port", cfg.Port)
	for _, w := range cfg.Warnings() {
		log.Warn("insecure configuration", "detail", w)
	}

	// Firebase provides both Firestore and Auth
	var fbApp *firebase.App
	if cfg.StorageBackend == "firestore" || cfg.AuthBackend == "firebase" {
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.GCPProjectID})
		if err != nil {
			return fmt.Errorf("main: create firebase app: %w", err)
		}
		fbApp = app
	}

	// Storage: Firestore or Memory
	var messageStore domain.MessageStore
	switch cfg.StorageBackend {
	case "firestore":
		client, err := fbApp.Firestore(ctx)
		if err != nil {
			return fmt.Errorf("main: create firestore client: %w", err)
		}
		defer func() {
			if err := client.Close(); err != nil {
				log.Error("close firestore client", "error", err)
			}
		}()
		log.Info("using firestore message store", "project", cfg.GCPProjectID)
		messageStore = firestorestore.NewStore(client)
	default:
		log.Info("using in-memory message store")
		messageStore = memstore.NewMessageStore()
	}

	// Places: PostGIS or Memory
	var places domain.PlaceLocator
	switch cfg.PlacesBackend {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, 30*time.Second)
		if err != nil {
			return fmt.Errorf("main: %w", err)
		}
		defer pool.Close()
		log.Info("using postgres place locator")
		places = postgres.NewPlaceLocator(pool)
	default:
		log.Info("using in-memory place locator with seed data")
		places = memstore.NewPlaceLocator(seedPlaces...)
	}

	backends, err := buildBackends(ctx, cfg)
	if err != nil {
		return err
	}
	toolset := []tools.Tool{
		tools.NewWikipediaTool(cfg.WikipediaURL),
		tools.NewWebSearchTool(cfg.WebSearchURL),
	}
	router := llm.NewRouter(toolset, backends...)
	log.Info("llm router ready", "backends", router.Registered(), "default", cfg.ChatBackend)

	var publisher domain.EventPublisher
	if cfg.NatsURL != "" {
		pub, err := events.Connect(cfg.NatsURL, cfg.NatsToken, observability.Logger())
		if err != nil {
			return fmt.Errorf("main: %w", err)
		}
		defer pub.Close()
		log.Info("publishing exchange events", "url", cfg.NatsURL, "subject", events.SubjectExchange)
		publisher = pub
	}

	httpOpts := httpadapter.Options{
		BasePath:    cfg.BasePath,
		APIKeys:     cfg.APIKeys,
		CORSOrigins: cfg.CORSOrigins,
	}
	switch cfg.AuthBackend {
	case "firebase":
		authClient, err := fbApp.Auth(ctx)
		if err != nil {
			return fmt.Errorf("main: create firebase auth client: %w", err)
		}
		httpOpts.Verifier = auth.NewFirebaseVerifier(authClient)
	default:
		httpOpts.Verifier = auth.NewHeaderVerifier()
		httpOpts.UserIDHeader = "X-User-ID"
	}

	svc := conversation.NewService(messageStore, places, router, publisher, conversation.Options{
		Backend:     cfg.ChatBackend,
		Language:    cfg.ChatLanguage,
		Temperature: cfg.ChatTemperature,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpadapter.NewServer(svc, httpOpts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("docent api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildBackends registers every backend that has credentials. With the mock
// enabled all names answer locally.
func buildBackends(ctx context.Context, cfg *config.Config) ([]domain.ChatBackend, error) {
	log := observability.Logger()

	if cfg.UseMockLLM {
		log.Info("using mock llm backends")
		out := make([]domain.ChatBackend, 0, len(domain.Backends))
		for _, name := range domain.Backends {
			out = append(out, llm.NewMockBackend(name))
		}
		return out, nil
	}

	var out []domain.ChatBackend
	if cfg.OpenAIAPIKey != "" {
		b, err := llm.NewOpenAIBackend(llm.OpenAIConfig{
			APIKey:          cfg.OpenAIAPIKey,
			Organization:    cfg.OpenAIOrganization,
			Model:           cfg.OpenAIModel,
			MaxOutputTokens: cfg.MaxOutputTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("main: %w", err)
		}
		out = append(out, b)
	}
	if cfg.UpstageAPIKey != "" {
		b, err := llm.NewUpstageBackend(llm.UpstageConfig{
			APIKey:          cfg.UpstageAPIKey,
			BaseURL:         cfg.UpstageBaseURL,
			Model:           cfg.UpstageModel,
			MaxOutputTokens: cfg.MaxOutputTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("main: %w", err)
		}
		out = append(out, b)
	}
	if cfg.GCPProjectID != "" {
		b, err := llm.NewVertexBackend(ctx, llm.VertexConfig{
			ProjectID:       cfg.GCPProjectID,
			Location:        cfg.GCPLocation,
			Model:           cfg.VertexModel,
			MaxOutputTokens: cfg.MaxOutputTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("main: %w", err)
		}
		out = append(out, b)
	}

	if len(out) == 0 {
		log.Warn("no llm backend configured, chat requests with a nearby place will fail")
	}
	return out, nil
}

// seedPlaces back the in-memory locator in local mode.
var seedPlaces = []domain.PlaceCandidate{
	{
		ID:   "gyeongbokgung",
		Name: "Gyeongbokgung Palace",
		Location: domain.Location{
			Latitude:  37.5796,
			Longitude: 126.9770,
			Address:   "161 Sajik-ro, Jongno-gu",
			City:      "Seoul",
			Country:   "South Korea",
		},
		Narrative: "Built in 1395, Gyeongbokgung was the main royal palace of the Joseon dynasty. " +
			"Destroyed during the Imjin War and rebuilt in the 1860s, it is home to Geunjeongjeon, the throne hall, " +
			"and Gyeonghoeru, the royal banquet pavilion set on an artificial lake.",
		PhotoURLs: []string{"https://upload.wikimedia.org/wikipedia/commons/6/6e/Gyeongbokgung-Geunjeongjeon.jpg"},
		Active:    true,
	},
	{
		ID:   "bukchon",
		Name: "Bukchon Hanok Village",
		Location: domain.Location{
			Latitude:  37.5826,
			Longitude: 126.9831,
			City:      "Seoul",
			Country:   "South Korea",
		},
		Narrative: "A neighbourhood of traditional hanok houses between Gyeongbokgung and Changdeokgung, " +
			"once home to Joseon officials and nobility.",
		Active: true,
	},
}
