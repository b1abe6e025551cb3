package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Event codes with built-in targeting rules.
const (
	EventNewComment        = "new_comment"
	EventUnrecognizedLogin = "unrecognized_login"
	EventWeeklySummary     = "weekly_summary"
	EventWelcome           = "welcome"
)

// Payload keys read by the built-in targeting rules.
const (
	KeyUserID      = "user_id"
	KeyFollowerIDs = "follower_ids"
	KeyTargetUsers = "target_users"
)

// TargetRule computes candidate user ids from an event payload.
type TargetRule func(ctx context.Context, data map[string]any) ([]string, error)

// TargetResolver maps event codes to targeting rules. Codes without a rule
// fall back to the payload's target_users list.
type TargetResolver struct {
	mu       sync.RWMutex
	rules    map[string]TargetRule
	fallback TargetRule
}

// NewTargetResolver registers the built-in rules. directory backs the
// broadcast rule for weekly_summary.
func NewTargetResolver(directory UserDirectory) *TargetResolver {
	r := &TargetResolver{
		rules:    make(map[string]TargetRule),
		fallback: UserListRule(KeyTargetUsers),
	}
	r.Register(EventUnrecognizedLogin, SingleUserRule(KeyUserID))
	r.Register(EventWelcome, SingleUserRule(KeyUserID))
	r.Register(EventNewComment, UserListRule(KeyFollowerIDs))
	r.Register(EventWeeklySummary, ActiveUsersRule(directory))
	return r
}

// Register sets the rule for code, replacing any previous one.
func (r *TargetResolver) Register(code string, rule TargetRule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[code] = rule
}

// Resolve returns deduplicated candidate ids in first-seen order. No targets
// is a valid, empty result.
func (r *TargetResolver) Resolve(ctx context.Context, code string, data map[string]any) ([]string, error) {
	r.mu.RLock()
	rule, ok := r.rules[code]
	r.mu.RUnlock()
	if !ok {
		rule = r.fallback
	}

	ids, err := rule(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve targets for %q: %w", code, err)
	}
	return dedupe(ids), nil
}

// SingleUserRule targets the id stored under key.
func SingleUserRule(key string) TargetRule {
	return func(_ context.Context, data map[string]any) ([]string, error) {
		id, ok := normalizeID(data[key])
		if !ok {
			return nil, nil
		}
		return []string{id}, nil
	}
}

// UserListRule targets the ids listed under key.
func UserListRule(key string) TargetRule {
	return func(_ context.Context, data map[string]any) ([]string, error) {
		return NormalizeIDs(data[key]), nil
	}
}

// ActiveUsersRule targets every active user.
func ActiveUsersRule(directory UserDirectory) TargetRule {
	return func(ctx context.Context, _ map[string]any) ([]string, error) {
		if directory == nil {
			return nil, fmt.Errorf("%w: user directory", ErrMissingDependency)
		}
		return directory.ListActiveUserIDs(ctx)
	}
}

// NormalizeIDs converts a payload value holding one id or a list of ids into
// strings. Values that are not ids are dropped.
func NormalizeIDs(v any) []string {
	if v == nil {
		return nil
	}
	if id, ok := normalizeID(v); ok {
		return []string{id}
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]string, 0, rv.Len())
	for i := range rv.Len() {
		if id, ok := normalizeID(rv.Index(i).Interface()); ok {
			out = append(out, id)
		}
	}
	return out
}

func normalizeID(v any) (string, bool) {
	var s string
	switch val := v.(type) {
	case string:
		s = strings.TrimSpace(val)
	case json.Number:
		s = val.String()
	case int:
		s = strconv.Itoa(val)
	case int32:
		s = strconv.FormatInt(int64(val), 10)
	case int64:
		s = strconv.FormatInt(val, 10)
	case uint:
		s = strconv.FormatUint(uint64(val), 10)
	case uint32:
		s = strconv.FormatUint(uint64(val), 10)
	case uint64:
		s = strconv.FormatUint(val, 10)
	case float64:
		if val != math.Trunc(val) || math.IsInf(val, 0) {
			return "", false
		}
		s = strconv.FormatFloat(val, 'f', 0, 64)
	case fmt.Stringer:
		s = val.String()
	default:
		return "", false
	}
	return s, s != ""
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
