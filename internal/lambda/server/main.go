package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/etendosoftware/sso-gateway/internal/auth"
	"github.com/etendosoftware/sso-gateway/internal/dao/flowdao"
	"github.com/etendosoftware/sso-gateway/internal/dao/identitydao"
	"github.com/etendosoftware/sso-gateway/internal/di"
	"github.com/etendosoftware/sso-gateway/internal/flow"
	"github.com/etendosoftware/sso-gateway/internal/providerdir"
	"github.com/etendosoftware/sso-gateway/internal/services"
	"github.com/etendosoftware/sso-gateway/internal/statetoken"
)

//go:embed graphiql.html
var graphiqlHTML string

type Handler struct {
	appConfig     *services.Config
	authenticator *auth.Authenticator
	directory     *providerdir.Client
	tokens        *services.TokenService
	dbService     *services.DynamoDBService
	signer        *statetoken.Signer
	poster        flow.ProcessPoster
	schema        *graphql.Schema
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// loggingMiddleware logs details about each request and response
func loggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Inject logger into request context
			ctx := logger.WithContext(r.Context())
			r = r.WithContext(ctx)

			// Create a custom response writer to capture status code
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			// Log incoming request
			zerolog.Ctx(ctx).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("query", r.URL.RawQuery).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("Incoming request")

			// Call the next handler
			next.ServeHTTP(rw, r)

			// Calculate duration
			duration := time.Since(start)

			// Log response
			zerolog.Ctx(ctx).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status_code", rw.statusCode).
				Dur("duration", duration).
				Msg("Request completed")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// stripEnvPrefixMiddleware removes the /{env} prefix from request paths
func stripEnvPrefixMiddleware(env string, next http.Handler) http.Handler {
	// If env is empty, return the handler as-is
	if env == "" {
		return next
	}

	prefix := "/" + env
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Strip the environment prefix if present
		r.URL.Path = strings.TrimPrefix(r.URL.Path, prefix)

		// Ensure path starts with /
		if r.URL.Path == "" {
			r.URL.Path = "/"
		}

		next.ServeHTTP(w, r)
	})
}

func NewHandler(container di.Container) *Handler {
	return &Handler{
		appConfig:     di.MustGet[*services.Config](container),
		authenticator: di.MustGet[*auth.Authenticator](container),
		directory:     di.MustGet[*providerdir.Client](container),
		tokens:        di.MustGet[*services.TokenService](container),
		dbService:     di.MustGet[*services.DynamoDBService](container),
		signer:        di.MustGet[*statetoken.Signer](container),
		poster:        flow.NewHTTPProcessPoster(nil),
		schema:        di.MustGet[*graphql.Schema](container),
	}
}

func setupContainer(env, callbackURL string, disableAuth bool) (di.Container, error) {
	return di.New(env,
		di.WithCallbackURL(callbackURL),
		di.WithDisableAuth(disableAuth),
		di.WithProviders(
			di.ProvideLogger,
			di.ProvideSessionKeyService,
			di.ProvideSessionKeys,
			di.ProvideAuthenticator,
			di.ProvideAuthorizer,
			di.ProvideFlowDAO,
			di.ProvideIdentityDAO,
			di.ProvideTokenDAO,
			di.ProvideDynamoDBService,
			di.ProvideGraphQL,
		),
	)
}

// handleGraphQL serves the GraphQL API
func (h *Handler) handleGraphQL() http.Handler {
	return &relay.Handler{Schema: h.schema}
}

// handleGraphiQL serves the GraphiQL interface
func (h *Handler) handleGraphiQL(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(graphiqlHTML))
}

// jsonResponse writes a JSON response
func (h *Handler) jsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

// errorResponse writes an error JSON response
func (h *Handler) errorResponse(w http.ResponseWriter, statusCode int, message string) {
	h.jsonResponse(w, statusCode, ErrorResponse{Error: message})
}

// handleGetOAuthToken resolves the stored access token for a user, provider
// and scope. All failures surface as the same opaque error message.
func (h *Handler) handleGetOAuthToken(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	provider := r.URL.Query().Get("provider")
	scope := r.URL.Query().Get("scope")

	if userID == "" || provider == "" {
		h.errorResponse(w, http.StatusBadRequest, "userId and provider are required")
		return
	}

	accessToken, err := h.tokens.AccessToken(r.Context(), userID, provider, scope)
	if err != nil {
		h.errorResponse(w, http.StatusInternalServerError, "Failed to retrieve token")
		return
	}

	h.jsonResponse(w, http.StatusOK, map[string]string{"accessToken": accessToken})
}

// handleAvailableProviders proxies the middleware's provider directory. The
// directory is fetched per request, never cached.
func (h *Handler) handleAvailableProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.directory.ListProviders(r.Context(), h.appConfig.MiddlewareURL, h.appConfig.RedirectURI)
	if err != nil {
		h.errorResponse(w, http.StatusBadGateway, "provider directory unavailable")
		return
	}

	type scopeResponse struct {
		Scope       string `json:"scope"`
		Label       string `json:"label"`
		IconURL     string `json:"iconUrl,omitempty"`
		Description string `json:"description,omitempty"`
	}
	type providerResponse struct {
		Name                  string          `json:"name"`
		AuthorizationEndpoint string          `json:"authorizationEndpoint"`
		RedirectURI           string          `json:"redirectUri"`
		Scopes                []scopeResponse `json:"scopes"`
	}

	response := make([]providerResponse, 0, len(providers))
	for _, p := range providers {
		scopes := make([]scopeResponse, 0, len(p.Scopes))
		for _, s := range p.Scopes {
			scopes = append(scopes, scopeResponse{
				Scope:       s.Scope,
				Label:       s.Label(),
				IconURL:     s.IconURL,
				Description: s.Description,
			})
		}
		response = append(response, providerResponse{
			Name:                  p.Name,
			AuthorizationEndpoint: p.AuthorizationEndpoint,
			RedirectURI:           p.RedirectURI,
			Scopes:                scopes,
		})
	}

	h.jsonResponse(w, http.StatusOK, response)
}

type callbackRequest struct {
	Type    string       `json:"type"`
	State   string       `json:"state"`
	Payload flow.Payload `json:"payload"`
}

// handleFlowCallback completes a pending link flow from the middleware's
// completion POST. Malformed state, unknown flows and untrusted origins are
// discarded without detail: the response never tells a forger why.
func (h *Handler) handleFlowCallback(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.signer.Decode(req.State)
	if err != nil {
		logger.Debug().Err(err).Msg("Discarding callback with malformed state token")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	origin := r.Header.Get("Origin")
	if h.appConfig.AllowedOrigin != "" && origin != h.appConfig.AllowedOrigin {
		logger.Debug().Str("origin", origin).Msg("Discarding callback from untrusted origin")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if req.Type != flow.MessageTypePickerSuccess {
		logger.Debug().Str("type", req.Type).Msg("Discarding callback of unknown type")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// Single use: a second consume of the same nonce fails.
	record, err := h.dbService.Flows.Consume(r.Context(), state.Nonce)
	if err != nil {
		logger.Debug().Err(err).Msg("Discarding callback for unknown or consumed flow")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if record.UserID != state.UserID {
		logger.Debug().Msg("Discarding callback whose token does not match its flow")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	endpoint := req.Payload.ProcessEndpoint
	if endpoint == "" {
		endpoint = record.ProcessEndpoint
	}

	if endpoint != "" {
		if err := h.poster.Post(r.Context(), endpoint, req.Payload.Doc); err != nil {
			logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Process endpoint rejected callback document")
			h.jsonResponse(w, http.StatusOK, map[string]string{
				"status":  "error",
				"message": "The selected document could not be processed.",
			})
			return
		}
	}

	logger.Info().
		Str("provider", record.Provider).
		Msg("Link flow completed")
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "success"})
}

// setupRouter configures all HTTP routes
func (h *Handler) setupRouter() http.Handler {
	mux := http.NewServeMux()

	// Popup flow surface (no session required; callbacks are authenticated by
	// their signed state token)
	mux.HandleFunc("GET /GetOAuthToken", h.handleGetOAuthToken)
	mux.HandleFunc("GET /available-providers", h.handleAvailableProviders)
	mux.HandleFunc("POST /callback", h.handleFlowCallback)

	// Direct link flow (session-based)
	mux.HandleFunc("GET /link/start", h.authenticator.HandleLinkStart)
	mux.HandleFunc("GET /link/callback", h.authenticator.HandleLinkCallback)
	mux.HandleFunc("GET /logout", h.authenticator.HandleLogout)

	// GraphQL endpoints (authentication required - API mode: 403 on failure)
	// GET /graphql serves the GraphiQL interface
	// POST /graphql handles GraphQL queries
	requireAuthAPI := h.authenticator.RequireAuth(false) // false = return 403 for API calls
	mux.Handle("GET /graphql", requireAuthAPI(http.HandlerFunc(h.handleGraphiQL)))
	mux.Handle("POST /graphql", requireAuthAPI(h.handleGraphQL()))

	return mux
}

// buildCallbackURL constructs the OAuth callback URL based on environment
func buildCallbackURL(env string, customDomain string, apiGatewayID string, port string) string {
	// For local development
	if port != "" {
		return fmt.Sprintf("http://localhost:%s/link/callback", port)
	}

	// For Lambda: check if custom domain is set
	if customDomain != "" {
		return fmt.Sprintf("https://%s/link/callback", customDomain)
	}

	// Default to API Gateway URL with environment prefix
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}

	if apiGatewayID != "" && env != "" {
		return fmt.Sprintf("https://%s.execute-api.%s.amazonaws.com/%s/link/callback", apiGatewayID, region, env)
	}

	// Fallback (should not happen in production)
	return "http://localhost:8080/link/callback"
}

// serveAction starts a local HTTP server for testing
func serveAction(c *cli.Context) error {
	port := c.String("port")
	addr := fmt.Sprintf(":%s", port)
	env := c.String("env")
	disableAuth := c.Bool("disable-auth")

	// Build callback URL for local dev (no custom domain or API Gateway ID in local mode)
	callbackURL := buildCallbackURL(env, "", "", port)

	// Initialize DI container
	container, err := setupContainer(env, callbackURL, disableAuth)
	if err != nil {
		return fmt.Errorf("failed to setup DI container: %w", err)
	}

	// Get logger from container
	logger := di.MustGet[zerolog.Logger](container)

	if disableAuth {
		logger.Warn().Msg("Authentication is DISABLED - this should only be used for development")
	}

	handler := NewHandler(container)

	// Setup HTTP router
	router := handler.setupRouter()

	// Apply middleware stack: strip env prefix -> logging
	if env != "" {
		logger.Info().
			Str("addr", addr).
			Str("env", env).
			Str("callback_url", callbackURL).
			Bool("disable_auth", disableAuth).
			Msg("Starting HTTP server with env prefix stripping")
	} else {
		logger.Info().
			Str("addr", addr).
			Str("callback_url", callbackURL).
			Bool("disable_auth", disableAuth).
			Msg("Starting HTTP server")
	}

	httpHandler := loggingMiddleware(logger)(stripEnvPrefixMiddleware(env, router))

	server := &http.Server{
		Addr:    addr,
		Handler: httpHandler,
	}

	return server.ListenAndServe()
}

// listIdentitiesAction lists the identities linked to a user
func listIdentitiesAction(c *cli.Context) error {
	container, err := di.New(c.String("env"),
		di.WithProviders(
			di.ProvideLogger,
			di.ProvideIdentityDAO,
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create DI container: %w", err)
	}

	identities := di.MustGet[*identitydao.DAO](container)
	records, err := identities.ListByUser(context.Background(), c.String("user"))
	if err != nil {
		return fmt.Errorf("failed to list identities: %w", err)
	}

	jsonData, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal identities: %w", err)
	}

	fmt.Println(string(jsonData))
	return nil
}

// purgeFlowAction deletes an abandoned pending flow by nonce
func purgeFlowAction(c *cli.Context) error {
	container, err := di.New(c.String("env"),
		di.WithProviders(
			di.ProvideLogger,
			di.ProvideFlowDAO,
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create DI container: %w", err)
	}

	flows := di.MustGet[*flowdao.DAO](container)
	if err := flows.Delete(context.Background(), c.String("nonce")); err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}

	fmt.Println("deleted")
	return nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "server").Logger()

	// Check if running in Lambda environment
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		// Get ENV from environment variable
		env := os.Getenv("ENV")
		if env == "" {
			env = os.Getenv("ENVIRONMENT")
		}
		if env == "" {
			logger.Error().Msg("ENV or ENVIRONMENT variable is required")
			os.Exit(1)
		}

		// Check if auth should be disabled (for development only)
		disableAuth := os.Getenv("DISABLE_AUTH") == "true"

		// Load config from Parameter Store to get custom domain and API Gateway ID
		ctx := context.Background()
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to load AWS config")
			os.Exit(1)
		}

		var paramStore services.ParameterStore
		if os.Getenv("DISABLE_SSM") == "true" {
			paramStore = services.NewEnvParameterStore(env)
		} else {
			ssmClient := di.ProvideSSMClient(cfg)
			paramStore = services.NewSSMParameterStore(ssmClient, env)
		}

		appConfig, err := paramStore.GetConfig(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to load configuration")
			os.Exit(1)
		}

		// Build callback URL (custom domain takes precedence)
		callbackURL := buildCallbackURL(env, appConfig.CustomDomain, appConfig.APIGatewayID, "")

		logger.Info().
			Str("env", env).
			Str("callback_url", callbackURL).
			Bool("disable_auth", disableAuth).
			Msg("Initializing Lambda handler")

		if disableAuth {
			logger.Warn().Msg("Authentication is DISABLED - this should only be used for development")
		}

		container, err := setupContainer(env, callbackURL, disableAuth)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to setup DI container")
			os.Exit(1)
		}

		handler := NewHandler(container)

		// Setup HTTP router
		router := handler.setupRouter()

		// Apply middleware stack: strip env prefix -> logging
		httpHandler := loggingMiddleware(logger)(stripEnvPrefixMiddleware(env, router))

		// Use AWS Lambda HTTP adapter for API Gateway V2
		lambda.Start(httpadapter.NewV2(httpHandler).ProxyWithContext)
		return
	}

	// CLI mode for local testing
	app := &cli.App{
		Name:  "server",
		Usage: "SSO gateway server management console",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Environment name (for stripping path prefix)",
				EnvVars: []string{"ENV", "ENVIRONMENT"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start local HTTP server for testing",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "port",
						Usage: "Port to listen on",
						Value: "8080",
					},
					&cli.BoolFlag{
						Name:    "disable-auth",
						Usage:   "Disable authentication (for local development only)",
						EnvVars: []string{"DISABLE_AUTH"},
					},
					&cli.BoolFlag{
						Name:    "disable-ssm",
						Usage:   "Disable AWS Systems Manager Parameter Store (use environment variables)",
						EnvVars: []string{"DISABLE_SSM"},
					},
				},
				Action: serveAction,
			},
			{
				Name:  "list-identities",
				Usage: "List identities linked to a user",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Usage:    "ERP user id",
						Required: true,
					},
				},
				Action: listIdentitiesAction,
			},
			{
				Name:  "purge-flow",
				Usage: "Delete an abandoned pending flow",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "nonce",
						Usage:    "Flow nonce",
						Required: true,
					},
				},
				Action: purgeFlowAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
