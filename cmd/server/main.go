package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/instagate/internal/authkit"
	"github.com/tyemirov/instagate/internal/credentials"
	"github.com/tyemirov/instagate/internal/credentialspg"
	"github.com/tyemirov/instagate/internal/gateway"
	"github.com/tyemirov/instagate/internal/graphapi"
	"github.com/tyemirov/instagate/internal/web"
	"go.uber.org/zap"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

const dotEnvFile = ".env"

func main() {
	if err := loadDotEnv(dotEnvFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv populates the environment from path when the file exists.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config.dotenv: %w", err)
	}
	return nil
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "instagate",
		Short:   "Instagram business login proxy with stored long-lived Graph API credentials",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":5000", "HTTP listen address")
	rootCmd.Flags().String("client_id", "", "Facebook app client ID")
	rootCmd.Flags().String("client_secret", "", "Facebook app client secret")
	rootCmd.Flags().String("redirect_uri", "", "OAuth redirect URI registered with the Facebook app")
	rootCmd.Flags().String("fallback_page_id", "", "Facebook page ID used when the account lists no pages")
	rootCmd.Flags().String("database_url", "", "Database URL for credentials (postgres:// or sqlite://; leave empty for in-memory store)")
	rootCmd.Flags().String("store_driver", storeDriverGORM, "Credential store driver: gorm or pgx (pgx requires a postgres database_url)")
	rootCmd.Flags().String("graph_base_url", graphapi.DefaultBaseURL, "Graph API base URL")
	rootCmd.Flags().String("graph_api_version", graphapi.DefaultVersion, "Graph API version segment")
	rootCmd.Flags().Duration("graph_timeout", 0, "Graph API request timeout; zero uses the transport default")
	rootCmd.Flags().Bool("enable_cors", true, "Enable CORS for cross-origin clients")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{"*"}, "Allowed origins when CORS is enabled; * allows any origin")

	for _, name := range []string{
		"listen_addr",
		"client_id",
		"client_secret",
		"redirect_uri",
		"fallback_page_id",
		"database_url",
		"store_driver",
		"graph_base_url",
		"graph_api_version",
		"graph_timeout",
		"enable_cors",
		"cors_allowed_origins",
	} {
		_ = viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	storeDriverGORM = "gorm"
	storeDriverPGX  = "pgx"

	configCodeMissingClientID         = "config.missing_client_id"
	configCodeMissingClientSecret     = "config.missing_client_secret"
	configCodeMissingRedirectURI      = "config.missing_redirect_uri"
	configCodeInvalidStoreDriver      = "config.invalid_store_driver"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

func LoadServerConfig() (authkit.ServerConfig, error) {
	clientID := strings.TrimSpace(viper.GetString("client_id"))
	if clientID == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingClientID, "client_id must be provided")
	}

	clientSecret := strings.TrimSpace(viper.GetString("client_secret"))
	if clientSecret == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingClientSecret, "client_secret must be provided")
	}

	redirectURI := strings.TrimSpace(viper.GetString("redirect_uri"))
	if redirectURI == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingRedirectURI, "redirect_uri must be provided")
	}

	if _, driverErr := resolveStoreDriver(); driverErr != nil {
		return authkit.ServerConfig{}, driverErr
	}

	return authkit.ServerConfig{
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		RedirectURI:    redirectURI,
		FallbackPageID: strings.TrimSpace(viper.GetString("fallback_page_id")),
	}, nil
}

func resolveStoreDriver() (string, error) {
	driver := strings.ToLower(strings.TrimSpace(viper.GetString("store_driver")))
	switch driver {
	case "", storeDriverGORM:
		return storeDriverGORM, nil
	case storeDriverPGX:
		databaseURL := viper.GetString("database_url")
		if !strings.HasPrefix(databaseURL, "postgres://") && !strings.HasPrefix(databaseURL, "postgresql://") {
			return "", configError(configCodeInvalidStoreDriver, "store_driver pgx requires a postgres database_url")
		}
		return storeDriverPGX, nil
	default:
		return "", configError(configCodeInvalidStoreDriver, fmt.Sprintf("store_driver %q is not supported", driver))
	}
}

// buildCredentialStore selects the store backend; the returned closer releases its resources.
func buildCredentialStore(ctx context.Context, logger *zap.Logger) (credentials.Store, func(), error) {
	databaseURL := viper.GetString("database_url")
	if databaseURL == "" {
		logger.Info("using in-memory credential store")
		return credentials.NewMemoryStore(), func() {}, nil
	}

	driver, driverErr := resolveStoreDriver()
	if driverErr != nil {
		return nil, nil, driverErr
	}
	if driver == storeDriverPGX {
		pool, poolErr := credentialspg.BuildPool(ctx, databaseURL)
		if poolErr != nil {
			return nil, nil, fmt.Errorf("credential_store.pgx.pool: %w", poolErr)
		}
		if schemaErr := credentialspg.EnsureSchema(ctx, pool); schemaErr != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("credential_store.pgx.schema: %w", schemaErr)
		}
		logger.Info("using pgx credential store")
		return credentialspg.NewPostgresStore(pool), pool.Close, nil
	}

	persistentStore, storeErr := credentials.NewDatabaseStore(ctx, databaseURL)
	if storeErr != nil {
		return nil, nil, storeErr
	}
	logger.Info("using persistent credential store", zap.String("driver", persistentStore.Driver()))
	return persistentStore, func() {}, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	serverConfig, ok := contextValue.(authkit.ServerConfig)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}

	listenAddr := viper.GetString("listen_addr")
	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if enableCORS {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, corsAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}

	credentialStore, closeStore, storeErr := buildCredentialStore(commandContext, logger)
	if storeErr != nil {
		return storeErr
	}
	defer closeStore()

	graphClient := graphapi.NewClient(graphapi.Config{
		BaseURL:    viper.GetString("graph_base_url"),
		Version:    viper.GetString("graph_api_version"),
		HTTPClient: &http.Client{Timeout: viper.GetDuration("graph_timeout")},
		Logger:     logger,
	})

	clock := credentials.NewSystemClock()
	metricsRecorder := authkit.NewCounterMetrics()

	exchanger := authkit.NewExchanger(serverConfig, graphClient, credentialStore,
		authkit.WithClock(clock),
		authkit.WithLogger(logger),
		authkit.WithMetrics(metricsRecorder))
	resourceGateway := gateway.New(credentialStore, graphClient,
		gateway.WithClock(clock),
		gateway.WithLogger(logger),
		gateway.WithMetrics(metricsRecorder))

	router.GET("/", web.HandleStatus("instagate"))

	api := router.Group("/api")
	authkit.MountAuthRoutes(api, exchanger, logger)
	gateway.MountMediaRoutes(api, resourceGateway, logger)
	gateway.MountUserRoutes(api, resourceGateway, logger)

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(stopSignals)
		select {
		case <-stopSignals:
		case <-shutdownCtx.Done():
			return
		}
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr))
	serveErr := serveHTTP(server)
	logger.Info("server stopped", zap.Any("metrics", metricsRecorder.Snapshot()))
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", serveErr)
	}
	return nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
