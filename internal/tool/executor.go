package tool

import (
	"context"
	"strings"
	"time"

	"github.com/punchline-labs/bridge/internal/fault"
	"github.com/punchline-labs/bridge/internal/store"
)

// ToolSaveJoke is the only tool the bridge executes.
const ToolSaveJoke = "save_joke"

// Invocation is a request from the agent to execute a capability.
// CorrelationID is empty for fire-and-forget widget callbacks.
type Invocation struct {
	Name          string                 `json:"toolName"`
	Arguments     map[string]interface{} `json:"arguments"`
	CorrelationID string                 `json:"correlationId,omitempty"`
}

// Result is reported back over the transport that requested the call.
type Result struct {
	Success    bool   `json:"success"`
	DocumentID string `json:"documentId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Payload renders the result in the wire shape expected by every transport.
func (r Result) Payload() map[string]interface{} {
	if r.Error != "" {
		return map[string]interface{}{"error": r.Error}
	}
	return map[string]interface{}{"success": true, "documentId": r.DocumentID}
}

// JokeCreator is the slice of the store client the executor needs.
type JokeCreator interface {
	CreateJoke(ctx context.Context, joke store.Joke) (string, error)
}

// Executor validates tool arguments and performs the persistence side
// effect. It holds no mutable state, so unrelated invocations may run
// concurrently. It never retries; every failure is reported exactly once.
type Executor struct {
	store JokeCreator
}

func NewExecutor(s JokeCreator) *Executor {
	return &Executor{store: s}
}

// Execute runs one invocation for the authenticated owner. Invocations are
// consumed exactly once; identical content is not deduplicated, so every
// successful call creates a new record.
func (e *Executor) Execute(ctx context.Context, inv Invocation, owner string) Result {
	if owner == "" {
		return failure(fault.New(fault.AuthenticationRequired, "no authenticated user"))
	}
	if inv.Name != ToolSaveJoke {
		return failure(fault.Errorf(fault.InvalidArgument, "unrecognized tool %q", inv.Name))
	}

	content, ok := inv.Arguments["content"].(string)
	if !ok || strings.TrimSpace(content) == "" {
		return failure(fault.New(fault.InvalidArgument, "content must be a non-empty string"))
	}

	now := time.Now().UTC()
	joke := store.Joke{
		Owner:     owner,
		Content:   content,
		Tags:      NormalizeTags(inv.Arguments["tags"]),
		CreatedAt: now,
		UpdatedAt: now,
	}

	id, err := e.store.CreateJoke(ctx, joke)
	if err != nil {
		return failure(fault.Wrap(fault.ToolExecutionFailed, err))
	}

	return Result{Success: true, DocumentID: id}
}

func failure(err error) Result {
	return Result{Error: err.Error()}
}

// NormalizeTags coerces the caller-supplied tags into a non-empty set.
// Accepted shapes: a list of strings, a single delimited string
// ("pun, short"), or nothing at all. Blank entries are dropped, duplicates
// collapse, and an empty result defaults to ["untagged"].
func NormalizeTags(raw interface{}) []string {
	var candidates []string

	switch v := raw.(type) {
	case string:
		candidates = strings.Split(v, ",")
	case []string:
		candidates = v
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				candidates = append(candidates, s)
			}
		}
	}

	seen := make(map[string]bool)
	var tags []string
	for _, c := range candidates {
		t := strings.TrimSpace(c)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}

	if len(tags) == 0 {
		return []string{"untagged"}
	}
	return tags
}
