package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/etendosoftware/sso-gateway/internal/dao/flowdao"
	"github.com/etendosoftware/sso-gateway/internal/di"
	"github.com/etendosoftware/sso-gateway/internal/flow"
	"github.com/etendosoftware/sso-gateway/internal/popup"
	"github.com/etendosoftware/sso-gateway/internal/providerdir"
	"github.com/etendosoftware/sso-gateway/internal/services"
	"github.com/etendosoftware/sso-gateway/internal/statetoken"
)

// LinkCommand returns the link command that runs a full account-linking flow
// from the terminal: browser popup, middleware handoff, loopback callback.
func LinkCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "link",
		Aliases: []string{"l"},
		Usage:   "Link an external provider account to an ERP user",
		Description: `Run an account-linking flow against the configured middleware.

The command opens the provider's consent page in the default browser and
listens on a loopback port for the completion callback.

Examples:
  # Link a Google Drive scope for a user
  sso-gateway link --env dev --user U100 --provider google --scope drive.file

  # Link and forward the provider's document to an ERP process endpoint
  sso-gateway link --env dev --user U100 --provider google --scope drive.file \
    --process-endpoint https://erp.example.com/process/attach`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "env",
				Aliases:  []string{"e"},
				Usage:    "Environment name (dev, stg, or prd)",
				Required: true,
				EnvVars:  []string{"ENV"},
			},
			&cli.StringFlag{
				Name:     "user",
				Aliases:  []string{"u"},
				Usage:    "ERP user id",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "provider",
				Aliases:  []string{"p"},
				Usage:    "Provider key (e.g. google)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "scope",
				Aliases: []string{"s"},
				Usage:   "OAuth scope suffix (e.g. drive.file)",
			},
			&cli.StringFlag{
				Name:  "process-endpoint",
				Usage: "ERP process endpoint to receive the callback document",
			},
			&cli.StringFlag{
				Name:  "callback-port",
				Usage: "Loopback port for the completion callback",
				Value: "8701",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the flow to complete",
				Value: 5 * time.Minute,
			},
		},
		Action: linkAction,
	}
}

func linkAction(c *cli.Context) error {
	logger := zerolog.Ctx(c.Context)

	container, err := buildContainer(c.String("env"),
		di.ProvideFlowDAO,
		di.ProvideTokenDAO,
	)
	if err != nil {
		return err
	}

	appConfig := di.MustGet[*services.Config](container)
	flows := di.MustGet[*flowdao.DAO](container)
	tokens := di.MustGet[*services.TokenService](container)
	directory := di.MustGet[*providerdir.Client](container)
	signer := di.MustGet[*statetoken.Signer](container)

	port := c.String("callback-port")
	redirectURI := fmt.Sprintf("http://127.0.0.1:%s/callback", port)

	bar := terminalBar{logger: logger}
	popups := popup.NewController(popup.ExecOpener{})
	orchestrator := flow.New(popups, directory, tokens, bar, flows, signer,
		flow.NewHTTPProcessPoster(nil),
		flow.Config{
			MiddlewareURL: appConfig.MiddlewareURL,
			AccountID:     appConfig.AccountID,
			RedirectURI:   redirectURI,
			AllowedOrigin: appConfig.AllowedOrigin,
		})

	// The callback listener must exist before the browser opens, or a fast
	// provider could answer into the void.
	listener, err := net.Listen("tcp", "127.0.0.1:"+port)
	if err != nil {
		return fmt.Errorf("failed to listen on callback port %s: %w", port, err)
	}
	defer listener.Close()

	server := &http.Server{Handler: callbackHandler(orchestrator, expectedOrigin(appConfig))}
	go func() { _ = server.Serve(listener) }()
	defer server.Close()

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	started, err := orchestrator.Start(ctx, flow.StartInput{
		UserID:          c.String("user"),
		Provider:        c.String("provider"),
		Scope:           c.String("scope"),
		ProcessEndpoint: c.String("process-endpoint"),
	})
	if err != nil {
		return fmt.Errorf("flow failed to start: %w", err)
	}

	fmt.Println("Waiting for the browser flow to complete...")

	result, err := started.Wait(ctx)
	if err != nil {
		return fmt.Errorf("timed out waiting for callback: %w", err)
	}

	switch result.State {
	case flow.StateSuccess:
		logger.Info().Str("provider", started.Provider).Msg("Account linked")
	case flow.StateUserClosed:
		fmt.Println("Flow cancelled: browser window closed")
	default:
		if result.Err != nil {
			return result.Err
		}
		return fmt.Errorf("flow ended in state %s", result.State)
	}

	return nil
}

// callbackHandler feeds loopback callbacks into the orchestrator. Top-level
// browser redirects carry no Origin header, so an absent Origin is treated as
// the expected one; a present header is still checked exactly.
func callbackHandler(orchestrator *flow.Orchestrator, origin string) http.Handler {
	mux := http.NewServeMux()

	deliver := func(w http.ResponseWriter, r *http.Request, msg flow.Message) {
		if msg.Origin == "" {
			msg.Origin = origin
		}
		_ = orchestrator.Deliver(r.Context(), msg)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><p>You can close this window and return to the terminal.</p></body></html>"))
	}

	mux.HandleFunc("POST /callback", func(w http.ResponseWriter, r *http.Request) {
		var msg flow.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		msg.Origin = r.Header.Get("Origin")
		deliver(w, r, msg)
	})

	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		deliver(w, r, flow.Message{
			Origin: r.Header.Get("Origin"),
			Type:   flow.MessageTypePickerSuccess,
			State:  q.Get("state"),
			Payload: flow.Payload{
				ProcessEndpoint: q.Get("processEndpoint"),
			},
		})
	})

	return mux
}

func expectedOrigin(config *services.Config) string {
	if config.AllowedOrigin != "" {
		return config.AllowedOrigin
	}
	u, err := url.Parse(config.MiddlewareURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return config.MiddlewareURL
	}
	return u.Scheme + "://" + u.Host
}
