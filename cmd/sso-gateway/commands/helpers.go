package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/etendosoftware/sso-gateway/internal/di"
)

// buildContainer wires the shared dependency graph for CLI commands.
func buildContainer(env string, extra ...any) (di.Container, error) {
	providers := append([]any{di.ProvideLogger}, extra...)
	container, err := di.New(env, di.WithProviders(providers...))
	if err != nil {
		return nil, fmt.Errorf("failed to create DI container: %w", err)
	}
	return container, nil
}

// terminalBar reports flow and logout outcomes on the terminal, standing in
// for the ERP message bar.
type terminalBar struct {
	logger *zerolog.Logger
}

func (b terminalBar) Success(ctx context.Context, text string) {
	b.logger.Info().Msg(text)
	fmt.Printf("✓ %s\n", text)
}

func (b terminalBar) Error(ctx context.Context, text string) {
	b.logger.Warn().Msg(text)
	fmt.Printf("✗ %s\n", text)
}

// confirmPrompt asks a yes/no question on the terminal.
func confirmPrompt(question string) bool {
	fmt.Printf("%s (yes/no): ", question)
	var response string
	fmt.Scanln(&response)
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "yes" || response == "y"
}
