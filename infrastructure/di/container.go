// Package di wires the concrete collaborators behind the usecase
// interfaces, following the teacher's functional-options container
// pattern (infrastructure/di/container.go).
package di

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/ca-srg/tosage/domain"
	"github.com/ca-srg/tosage/domain/entity"
	"github.com/ca-srg/tosage/domain/repository"
	"github.com/ca-srg/tosage/infrastructure/auth"
	"github.com/ca-srg/tosage/infrastructure/config"
	"github.com/ca-srg/tosage/infrastructure/httpserver"
	"github.com/ca-srg/tosage/infrastructure/logging"
	"github.com/ca-srg/tosage/infrastructure/metrics"
	infraRepo "github.com/ca-srg/tosage/infrastructure/repository"
	"github.com/ca-srg/tosage/infrastructure/translator"
	"github.com/ca-srg/tosage/interface/httpapi"
	"github.com/ca-srg/tosage/usecase/impl"
	usecase "github.com/ca-srg/tosage/usecase/interface"
	"github.com/google/uuid"
)

// Container is the dependency injection container for the dispatch proxy.
type Container struct {
	config *config.AppConfig
	db     *sql.DB
	logger domain.Logger

	targetRepo     repository.TargetRepository
	settingsRepo   repository.SettingsRepository
	requestLogRepo repository.RequestLogRepository
	vertexRepo     repository.VertexGenerativeRepository

	targetManager usecase.TargetManagerService
	translator    usecase.TranslatorService
	dispatch      usecase.DispatchService

	debugMode bool
}

// ContainerOption configures the container before construction.
type ContainerOption func(*Container)

// WithDebugMode forces debug-level stdout logging regardless of configuration.
func WithDebugMode(debug bool) ContainerOption {
	return func(c *Container) {
		c.debugMode = debug
	}
}

// WithAppConfig overrides environment-derived configuration, used by tests
// that want a deterministic config without touching the process environment.
func WithAppConfig(cfg *config.AppConfig) ContainerOption {
	return func(c *Container) {
		c.config = cfg
	}
}

// NewContainer builds and wires every collaborator: configuration, SQLite
// stores, the Target Manager, the Protocol Translator, the circuit-breaking
// Vertex client, the Dispatch Engine, and the chi router.
func NewContainer(opts ...ContainerOption) (*Container, error) {
	c := &Container{}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.initConfig(); err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	if err := c.initLogging(); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := c.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := c.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if err := c.seedTargetIfEmpty(); err != nil {
		return nil, fmt.Errorf("failed to seed target: %w", err)
	}

	return c, nil
}

func (c *Container) initConfig() error {
	if c.config != nil {
		return nil
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	c.config = cfg
	return nil
}

func (c *Container) initLogging() error {
	loggingCfg := c.config.Logging
	if c.debugMode {
		loggingCfg.Debug = true
	}
	factory := logging.NewLoggerFactory(loggingCfg)
	c.logger = factory.CreateLogger("dispatch")
	return nil
}

func (c *Container) initStorage() error {
	db, err := infraRepo.OpenSQLite(c.config.Dispatch.SQLitePath)
	if err != nil {
		return err
	}
	c.db = db
	c.targetRepo = infraRepo.NewTargetSQLiteRepository(db)
	c.settingsRepo = infraRepo.NewSettingsSQLiteRepository(db)
	c.requestLogRepo = infraRepo.NewRequestLogSQLiteRepository(db)
	return nil
}

func (c *Container) initServices() error {
	c.targetManager = impl.NewTargetManagerService(c.targetRepo, c.settingsRepo, c.logger)
	c.translator = translator.NewService(c.logger)

	credentials := auth.NewTargetCredentialProvider()
	restClient := infraRepo.NewVertexAIRESTRepository(credentials)
	c.vertexRepo = infraRepo.NewCircuitBreakingRepository(restClient)

	metricsRecorder := metrics.NewRecorder()
	c.dispatch = impl.NewDispatchEngineService(
		c.targetManager,
		c.translator,
		c.vertexRepo,
		c.requestLogRepo,
		c.settingsRepo,
		c.logger,
		metricsRecorder,
	)
	return nil
}

// seedTargetIfEmpty bootstraps the first target row from TargetSeedConfig
// when the Target Store has no rows yet, so a freshly deployed instance has
// somewhere to dispatch to without requiring an out-of-band admin call.
func (c *Container) seedTargetIfEmpty() error {
	existing, err := c.targetRepo.FindAll(repository.TargetFilter{})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	seed := c.config.TargetSeed
	if seed == nil || seed.ProjectID == "" {
		return nil
	}

	key := seed.ServiceAccountKey
	if key == "" && seed.ServiceAccountKeyPath != "" {
		return fmt.Errorf("seeding from a service account key file path is not supported; set VERTEXLB_SEED_SERVICE_ACCOUNT_KEY instead")
	}

	var dailyRateLimit *int64
	if seed.DailyRateLimit > 0 {
		dailyRateLimit = &seed.DailyRateLimit
	}

	target, err := entity.NewTarget(newTargetID(), seed.Name, seed.ProjectID, seed.Location, key, dailyRateLimit)
	if err != nil {
		return err
	}
	return c.targetRepo.Create(target)
}

func newTargetID() string {
	return uuid.NewString()
}

// Config returns the loaded application configuration.
func (c *Container) Config() *config.AppConfig { return c.config }

// Logger returns the process-wide logger.
func (c *Container) Logger() domain.Logger { return c.logger }

// DB returns the underlying SQLite handle, closed by the caller on shutdown.
func (c *Container) DB() *sql.DB { return c.db }

// Router builds the HTTP handler serving the chat-completions, models, and
// metrics endpoints.
func (c *Container) Router() http.Handler {
	chatHandler := httpapi.NewChatHandler(c.dispatch, c.config.Dispatch.MasterBearerToken, c.logger)
	modelsHandler := httpapi.NewModelsHandler(c.targetManager, c.config.Dispatch.MasterBearerToken)
	return httpserver.NewRouter(chatHandler, modelsHandler)
}
