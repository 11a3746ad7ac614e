package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	NamespaceAnalytics    = "analytics"
	NamespaceTransactions = "transactions"
	NamespaceCategories   = "categories"
)

const (
	AnalyticsPrefix       = NamespaceAnalytics + ":"
	GlobalAnalyticsPrefix = NamespaceAnalytics + ":global:"
	TransactionsPrefix    = NamespaceTransactions + ":"
	CategoriesPrefix      = NamespaceCategories + ":"
)

// UserAnalyticsKey returns analytics:user:<id>:<period>:<year>:<month>.
// Absent year or month render as an empty segment.
func UserAnalyticsKey(userID int64, period string, year, month *int) string {
	return UserAnalyticsPrefix(userID) + periodSuffix(period, year, month)
}

// GlobalAnalyticsKey returns analytics:global:<period>:<year>:<month>.
func GlobalAnalyticsKey(period string, year, month *int) string {
	return GlobalAnalyticsPrefix + periodSuffix(period, year, month)
}

// UserCategoryAnalyticsKey lives under the user's analytics prefix so a
// transaction mutation clears it together with the dashboard.
func UserCategoryAnalyticsKey(userID int64, period string, year, month *int) string {
	return UserAnalyticsPrefix(userID) + "categories:" + periodSuffix(period, year, month)
}

func UserTrendsKey(userID int64, months int) string {
	return UserAnalyticsPrefix(userID) + "trends:" + strconv.Itoa(months)
}

// CategoriesKey returns categories:all for an empty kind, categories:<kind> otherwise.
func CategoriesKey(kind string) string {
	if kind == "" {
		return CategoriesPrefix + "all"
	}
	return CategoriesPrefix + kind
}

// TransactionListKey returns transactions:user:<id>:<canonicalFilterJSON>.
func TransactionListKey(userID int64, filters any) (string, error) {
	return BuildKey(NamespaceTransactions, userID, filters)
}

// BuildKey returns <namespace>:user:<id>:<canonical filters>. Two filter
// values that differ only in field order, null fields or empty strings
// produce the same key.
func BuildKey(namespace string, userID int64, filters any) (string, error) {
	canonical, err := CanonicalJSON(filters)
	if err != nil {
		return "", err
	}
	return userPrefix(namespace, userID) + canonical, nil
}

func UserAnalyticsPrefix(userID int64) string {
	return userPrefix(NamespaceAnalytics, userID)
}

func UserTransactionsPrefix(userID int64) string {
	return userPrefix(NamespaceTransactions, userID)
}

// Namespace returns the first key segment, used as a metrics label.
func Namespace(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// IndexScope returns the per-user prefix a key belongs to
// (e.g. "analytics:user:7:"), or "" for keys that are not user scoped.
func IndexScope(key string) string {
	parts := strings.SplitN(key, ":", 4)
	if len(parts) < 4 || parts[1] != "user" {
		return ""
	}
	if _, err := strconv.ParseInt(parts[2], 10, 64); err != nil {
		return ""
	}
	return parts[0] + ":user:" + parts[2] + ":"
}

// CanonicalJSON serializes filters as JSON with sorted keys, dropping null
// values and empty strings at every depth.
func CanonicalJSON(filters any) (string, error) {
	if filters == nil {
		return "{}", nil
	}

	raw, err := json.Marshal(filters)
	if err != nil {
		return "", fmt.Errorf("marshal filters: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("decode filters: %w", err)
	}

	out, err := json.Marshal(prune(generic))
	if err != nil {
		return "", fmt.Errorf("marshal canonical filters: %w", err)
	}
	return string(out), nil
}

// prune drops absent values. encoding/json already sorts map keys.
func prune(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if val == nil {
				continue
			}
			if s, ok := val.(string); ok && s == "" {
				continue
			}
			out[k] = prune(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = prune(val)
		}
		return out
	default:
		return v
	}
}

func userPrefix(namespace string, userID int64) string {
	return namespace + ":user:" + strconv.FormatInt(userID, 10) + ":"
}

func periodSuffix(period string, year, month *int) string {
	return period + ":" + optInt(year) + ":" + optInt(month)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
