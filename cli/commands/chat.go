package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/raven/cli/keystore"
	"github.com/corvid-labs/raven/core"
)

// Exit codes
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitAPI        = 2
	ExitNetwork    = 3
)

func (a *App) newChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Send a chat completion request",
		Long: `Send a chat completion request to the Raven service.

Examples:
  raven chat --model raven-large --prompt "Hello"
  raven chat --prompt "Hello" --stream
  raven chat --prompt "Hello" --json`,
		RunE: a.runChat,
	}

	cmd.Flags().StringVar(&a.chatPrompt, "prompt", "", "User message (required)")
	cmd.Flags().StringVar(&a.chatSystem, "system", "", "System message")
	cmd.Flags().Float32Var(&a.chatTemperature, "temperature", 0, "Temperature (0 = use default)")
	cmd.Flags().IntVar(&a.chatMaxTokens, "max-tokens", 0, "Max tokens (0 = use default)")
	cmd.Flags().BoolVar(&a.chatStream, "stream", false, "Enable streaming output")
	cmd.Flags().BoolVar(&a.chatLenient, "lenient", false, "Attempt to repair malformed stream fragments")

	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func (a *App) runChat(cmd *cobra.Command, args []string) error {
	if a.model == "" {
		return exitWithCode(ExitValidation, fmt.Errorf("model required: use --model flag or set default_model in config"))
	}

	client, err := a.buildClient()
	if err != nil {
		return err
	}

	builder := client.Chat(core.ModelID(a.model))
	if a.chatSystem != "" {
		builder = builder.System(a.chatSystem)
	}
	builder = builder.User(a.chatPrompt)

	if a.chatTemperature > 0 {
		builder = builder.Temperature(a.chatTemperature)
	}
	if a.chatMaxTokens > 0 {
		builder = builder.MaxTokens(a.chatMaxTokens)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if a.chatStream {
		return a.runStreamingChat(ctx, builder)
	}
	return a.runNonStreamingChat(ctx, builder)
}

// buildClient resolves the API key and constructs a client from config.
func (a *App) buildClient() (*core.Client, error) {
	apiKey, err := a.resolveAPIKey()
	if err != nil {
		if _, ok := err.(*keystore.ErrKeyNotFound); ok {
			return nil, exitWithCode(ExitValidation, fmt.Errorf("no API key found: run 'raven keys set default' or set %s", core.DefaultAPIKeyEnvVar))
		}
		return nil, exitWithCode(ExitValidation, fmt.Errorf("failed to resolve API key: %w", err))
	}

	var opts []core.Option
	if a.chatLenient {
		opts = append(opts, core.WithLenientStreamDecoding())
	}
	return a.newClient(apiKey, a.cfg, opts...), nil
}

func (a *App) runNonStreamingChat(ctx context.Context, builder *core.ChatBuilder) error {
	resp, err := builder.GetResponse(ctx)
	if err != nil {
		return a.handleChatError(err)
	}

	if a.jsonOutput {
		return a.outputJSON(resp)
	}

	fmt.Fprintf(a.stdout, "> %s\n", a.chatPrompt)
	fmt.Fprintln(a.stdout, resp.Text())

	if a.verbose {
		fmt.Fprintf(a.stderr, "Usage: %d prompt + %d completion = %d total tokens\n",
			resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
	}
	return nil
}

func (a *App) runStreamingChat(ctx context.Context, builder *core.ChatBuilder) error {
	stream, err := builder.Stream(ctx)
	if err != nil {
		return a.handleChatError(err)
	}
	defer stream.Close()

	if a.jsonOutput {
		// Drain and emit a single JSON document.
		text, err := stream.Text()
		if err != nil {
			return a.handleChatError(err)
		}
		return a.outputStreamJSON(stream, text)
	}

	fmt.Fprintf(a.stdout, "> %s\n", a.chatPrompt)

	err = stream.Each(core.StreamHandlers{
		OnDelta: func(delta, _ string) {
			fmt.Fprint(a.stdout, delta)
		},
	})
	fmt.Fprintln(a.stdout)
	if err != nil {
		return a.handleChatError(err)
	}

	if a.verbose {
		usage := stream.Usage()
		fmt.Fprintf(a.stderr, "Usage: %d prompt + %d completion = %d total tokens\n",
			usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
		if skipped := stream.Skipped(); skipped > 0 {
			fmt.Fprintf(a.stderr, "Skipped %d malformed fragments\n", skipped)
		}
	}
	return nil
}

func (a *App) handleChatError(err error) error {
	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		if a.jsonOutput {
			a.outputErrorJSON(apiErr)
		} else {
			fmt.Fprintf(a.stderr, "Error: %s\n", apiErr.Message)
			if apiErr.RequestID != "" {
				fmt.Fprintf(a.stderr, "  Request ID: %s\n", apiErr.RequestID)
			}
		}

		switch {
		case errors.Is(err, core.ErrNetwork), errors.Is(err, core.ErrTimeout):
			return exitWithCode(ExitNetwork, err)
		default:
			return exitWithCode(ExitAPI, err)
		}
	}

	if errors.Is(err, core.ErrValidation) {
		if a.jsonOutput {
			a.outputSimpleErrorJSON("validation_error", err.Error())
		} else {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
		}
		return exitWithCode(ExitValidation, err)
	}

	if a.jsonOutput {
		a.outputSimpleErrorJSON("error", err.Error())
	} else {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
	}
	return exitWithCode(ExitAPI, err)
}

func (a *App) outputJSON(resp *core.ChatResponse) error {
	output := map[string]any{
		"id":     resp.ID,
		"model":  resp.Model,
		"output": resp.Text(),
		"usage": map[string]int{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		},
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func (a *App) outputStreamJSON(stream *core.ChatStream, text string) error {
	usage := stream.Usage()
	output := map[string]any{
		"output": text,
		"usage": map[string]int{
			"prompt_tokens":     usage.PromptTokens,
			"completion_tokens": usage.CompletionTokens,
			"total_tokens":      usage.TotalTokens,
		},
	}
	if skipped := stream.Skipped(); skipped > 0 {
		output["skipped_fragments"] = skipped
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func (a *App) outputErrorJSON(apiErr *core.APIError) {
	output := map[string]any{
		"error": map[string]any{
			"type":       apiErr.Code,
			"message":    apiErr.Message,
			"status":     apiErr.Status,
			"request_id": apiErr.RequestID,
		},
	}

	enc := json.NewEncoder(a.stderr)
	enc.SetIndent("", "  ")
	enc.Encode(output)
}

func (a *App) outputSimpleErrorJSON(errType, message string) {
	output := map[string]any{
		"error": map[string]any{
			"type":    errType,
			"message": message,
		},
	}

	enc := json.NewEncoder(a.stderr)
	enc.SetIndent("", "  ")
	enc.Encode(output)
}

// exitError wraps an error with an exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) ExitCode() int {
	return e.code
}

func exitWithCode(code int, err error) error {
	return &exitError{code: code, err: err}
}
