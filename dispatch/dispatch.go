// Package dispatch is the single authorized path from "user wants tool X"
// to a result: it resolves the user's credential, consults the TTL cache
// for allow-listed tools, and delegates to a per-call remote client bound
// to the user's token.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"maimaibot/cache"
	globalconfig "maimaibot/config"
	"maimaibot/mcp"
	"maimaibot/storage"
)

var (
	// ErrNoCredential means the user has never stored a credential.
	ErrNoCredential = errors.New("no credential stored")
	// ErrNoToken means a credential exists but carries no bearer token.
	ErrNoToken = errors.New("no token stored")
)

// CredentialGetter is the slice of the credential store the facade needs.
type CredentialGetter interface {
	Get(userID string) (*storage.UserCredential, error)
}

// ToolCaller performs one remote tool invocation.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.Result, error)
}

// ClientFactory builds a ToolCaller bound to one user's bearer token.
type ClientFactory func(token string) ToolCaller

type Facade struct {
	store     CredentialGetter
	cache     *cache.Cache
	newClient ClientFactory
	cacheable map[string]bool
}

func New(store CredentialGetter, resultCache *cache.Cache, newClient ClientFactory, cacheableTools []string) *Facade {
	cacheable := make(map[string]bool, len(cacheableTools))
	for _, name := range cacheableTools {
		cacheable[name] = true
	}
	return &Facade{
		store:     store,
		cache:     resultCache,
		newClient: newClient,
		cacheable: cacheable,
	}
}

// Invoke runs the tool for the user. A cache hit returns without any remote
// call or side effect; a miss performs exactly one remote call and, on
// success, fills the cache for allow-listed tools. All remote error kinds
// pass through unchanged.
func (f *Facade) Invoke(ctx context.Context, userID, tool string, args map[string]any) (*mcp.Result, error) {
	cred, err := f.store.Get(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credential: %w", err)
	}
	if cred == nil {
		return nil, fmt.Errorf("%w for user %s", ErrNoCredential, userID)
	}
	if cred.Token == "" {
		return nil, fmt.Errorf("%w for user %s", ErrNoToken, userID)
	}

	key, keyErr := CacheKey(tool, args)
	useCache := f.cacheable[tool] && keyErr == nil
	switch {
	case keyErr != nil && globalconfig.DebugLog != nil:
		// A key failure degrades to a live call, never blocks the call.
		globalconfig.DebugLog.Printf("[Dispatch] Cache key for '%s' failed, calling live: %v", tool, keyErr)
	}

	if useCache {
		if value, ok := f.cache.Get(key); ok {
			switch {
			case globalconfig.DebugLog != nil:
				globalconfig.DebugLog.Printf("[Dispatch] Cache hit for '%s' (user %s)", tool, userID)
			}
			return value.(*mcp.Result), nil
		}
	}

	result, err := f.newClient(cred.Token).CallTool(ctx, tool, args)
	if err != nil {
		return nil, err
	}

	if useCache {
		f.cache.Set(key, result)
	}

	return result, nil
}

// CacheKey derives a deterministic key from the tool name and a canonical
// serialization of the arguments. encoding/json emits map keys in sorted
// order, so identical argument mappings always collide and differing ones
// never do.
func CacheKey(tool string, args map[string]any) (string, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to serialize arguments: %w", err)
	}
	return tool + "?" + string(data), nil
}
