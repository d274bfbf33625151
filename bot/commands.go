// Package bot is the chat-command boundary. The transport itself (receiving
// messages, delivering replies) lives outside this module behind the Sender
// interface; this package parses commands, drives the dispatch facade and
// credential store, and converts every failure kind into a user-facing
// reply instead of letting it escape.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	globalconfig "maimaibot/config"
	"maimaibot/dispatch"
	"maimaibot/mcp"
	"maimaibot/render"
	"maimaibot/storage"
)

// Sender delivers one text message to a user on the chat platform.
type Sender interface {
	Send(ctx context.Context, userID, text string) error
}

// CredentialStore is the slice of storage the command handlers use.
type CredentialStore interface {
	Get(userID string) (*storage.UserCredential, error)
	Upsert(userID string, patch storage.CredentialPatch) error
	Delete(userID string) error
}

type Handler struct {
	store  CredentialStore
	facade *dispatch.Facade
	sender Sender
}

func NewHandler(store CredentialStore, facade *dispatch.Facade, sender Sender) *Handler {
	return &Handler{store: store, facade: facade, sender: sender}
}

const usage = `Commands:
  bind <token>        store your bearer token
  unbind              delete your stored data
  autoclaim on|off    toggle the daily automatic claim
  status              show your stored settings
  tool <name> [json]  invoke a tool, e.g. tool calendar {"date":"2024-05-01"}`

// HandleCommand parses and executes one chat command. Every failure becomes
// a reply to the user; the returned error only reports a failed reply.
func (h *Handler) HandleCommand(ctx context.Context, userID, text string) error {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return h.reply(ctx, userID, usage)
	}

	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch {
	case globalconfig.DebugLog != nil:
		globalconfig.DebugLog.Printf("[Bot] Command '%s' from user %s", cmd, userID)
	}

	switch cmd {
	case "bind":
		return h.handleBind(ctx, userID, args)
	case "unbind":
		return h.handleUnbind(ctx, userID)
	case "autoclaim":
		return h.handleAutoClaim(ctx, userID, args)
	case "status":
		return h.handleStatus(ctx, userID)
	case "tool":
		_, rest, _ := strings.Cut(strings.TrimSpace(text), " ")
		return h.handleTool(ctx, userID, rest)
	default:
		return h.reply(ctx, userID, usage)
	}
}

func (h *Handler) handleBind(ctx context.Context, userID string, args []string) error {
	if len(args) != 1 {
		return h.reply(ctx, userID, "Usage: bind <token>")
	}

	token := args[0]
	if err := h.store.Upsert(userID, storage.CredentialPatch{Token: &token}); err != nil {
		return h.reply(ctx, userID, fmt.Sprintf("Failed to store token: %v", err))
	}
	return h.reply(ctx, userID, "Token stored. Use 'autoclaim on' to enable the daily claim.")
}

func (h *Handler) handleUnbind(ctx context.Context, userID string) error {
	if err := h.store.Delete(userID); err != nil {
		return h.reply(ctx, userID, fmt.Sprintf("Failed to delete your data: %v", err))
	}
	return h.reply(ctx, userID, "Your stored data has been deleted.")
}

func (h *Handler) handleAutoClaim(ctx context.Context, userID string, args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return h.reply(ctx, userID, "Usage: autoclaim on|off")
	}

	cred, err := h.store.Get(userID)
	if err != nil {
		return h.reply(ctx, userID, fmt.Sprintf("Failed to read your settings: %v", err))
	}
	if cred == nil || cred.Token == "" {
		return h.reply(ctx, userID, "Bind a token first: bind <token>")
	}

	enabled := args[0] == "on"
	if err := h.store.Upsert(userID, storage.CredentialPatch{AutoClaim: &enabled}); err != nil {
		return h.reply(ctx, userID, fmt.Sprintf("Failed to update settings: %v", err))
	}

	if enabled {
		return h.reply(ctx, userID, "Daily automatic claim enabled.")
	}
	return h.reply(ctx, userID, "Daily automatic claim disabled.")
}

func (h *Handler) handleStatus(ctx context.Context, userID string) error {
	cred, err := h.store.Get(userID)
	if err != nil {
		return h.reply(ctx, userID, fmt.Sprintf("Failed to read your settings: %v", err))
	}
	if cred == nil {
		return h.reply(ctx, userID, "No data stored. Use 'bind <token>' to get started.")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Token: %s\n", maskToken(cred.Token))
	fmt.Fprintf(&sb, "Auto-claim: %v\n", cred.AutoClaim)
	if cred.LastClaimDate != "" {
		fmt.Fprintf(&sb, "Last claim: %s (%s)\n", cred.LastClaimAt,
			render.Preview(cred.LastClaimResult, 60))
	}
	return h.reply(ctx, userID, strings.TrimRight(sb.String(), "\n"))
}

func (h *Handler) handleTool(ctx context.Context, userID, rest string) error {
	toolName, rawArgs, _ := strings.Cut(strings.TrimSpace(rest), " ")
	if toolName == "" {
		return h.reply(ctx, userID, "Usage: tool <name> [json-args]")
	}

	// Arguments are everything after the tool name, as one JSON object.
	toolArgs := map[string]any{}
	rawArgs = strings.TrimSpace(rawArgs)
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &toolArgs); err != nil {
			return h.reply(ctx, userID, fmt.Sprintf("Arguments must be a JSON object: %v", err))
		}
	}

	result, err := h.facade.Invoke(ctx, userID, toolName, toolArgs)
	if err != nil {
		return h.reply(ctx, userID, describeInvokeError(err))
	}

	for _, chunk := range render.RenderResult(result) {
		if err := h.reply(ctx, userID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) reply(ctx context.Context, userID, text string) error {
	return h.sender.Send(ctx, userID, text)
}

// describeInvokeError maps the four failure kinds onto user-facing text
// without losing the failure detail.
func describeInvokeError(err error) string {
	var authErr *mcp.AuthError
	var toolErr *mcp.ToolError
	var transportErr *mcp.TransportError

	switch {
	case errors.Is(err, dispatch.ErrNoCredential), errors.Is(err, dispatch.ErrNoToken):
		return "You haven't bound a token yet. Use: bind <token>"
	case errors.As(err, &authErr):
		return fmt.Sprintf("Your token was rejected by the service. Rebind with a fresh one. (%s)", authErr.Detail)
	case errors.As(err, &toolErr):
		return fmt.Sprintf("The service declined the request: %s", toolErr.Detail)
	case errors.As(err, &transportErr):
		return fmt.Sprintf("Could not reach the service, try again later. (%v)", transportErr.Err)
	default:
		return fmt.Sprintf("Request failed: %v", err)
	}
}

func maskToken(token string) string {
	switch {
	case token == "":
		return "(none)"
	case len(token) <= 8:
		return "****"
	}
	return token[:4] + "…" + token[len(token)-4:]
}
