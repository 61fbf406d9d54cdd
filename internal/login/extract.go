// File: internal/login/extract.go
package login

import (
	"context"
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SessionState is the outcome of post-login extraction. Output records are
// built from this, strictly after extraction has completed.
type SessionState struct {
	SessionCookie string
	APIUser       string
}

// Successful reports whether extraction produced anything usable.
func (st SessionState) Successful() bool {
	return st.SessionCookie != "" || st.APIUser != ""
}

// extractState reads the session cookie and resolves the api_user identifier.
// A cookie read failure is an error; a missing api_user id is not.
func (r *Runner) extractState(ctx context.Context, sess Session) (SessionState, error) {
	var state SessionState

	cookies, err := sess.Cookies(ctx)
	if err != nil {
		return state, err
	}
	for _, c := range cookies {
		if c.Name == r.cfg.Provider.SessionCookie {
			state.SessionCookie = c.Value
			break
		}
	}

	apiUser, err := r.fetchAPIUser(ctx, sess)
	if err != nil {
		r.logger.Debug("User-info fetch failed; falling back to localStorage.", zap.Error(err))
	}
	if apiUser == "" {
		apiUser, err = r.apiUserFromLocalStorage(ctx, sess)
		if err != nil {
			r.logger.Debug("localStorage scan failed.", zap.Error(err))
		}
	}
	state.APIUser = apiUser

	return state, nil
}

// fetchAPIUser asks the page itself to call the user-info endpoint, so the
// request carries the session the browser just established.
func (r *Runner) fetchAPIUser(ctx context.Context, sess Session) (string, error) {
	expr := fmt.Sprintf(
		`fetch(%q, {credentials: "include"}).then(r => r.ok ? r.text() : "").catch(() => "")`,
		r.cfg.Provider.UserInfoURL(),
	)
	raw, err := sess.EvalJSON(ctx, expr)
	if err != nil {
		return "", err
	}

	var body string
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", fmt.Errorf("unexpected user-info payload: %w", err)
	}
	if strings.TrimSpace(body) == "" {
		return "", nil
	}
	return idFromUserInfo([]byte(body)), nil
}

// idFromUserInfo pulls data.id or data.user_id out of a user-info response
// body. Numbers keep their literal rendering; zero and empty ids count as
// absent.
func idFromUserInfo(body []byte) string {
	for _, key := range []string{"id", "user_id"} {
		if id := stringifyID(jsoniter.Get(body, "data", key)); id != "" {
			return id
		}
	}
	return ""
}

// apiUserFromLocalStorage scans localStorage for any JSON object value
// carrying an id field. Keys are visited in sorted order so the fallback is
// deterministic.
func (r *Runner) apiUserFromLocalStorage(ctx context.Context, sess Session) (string, error) {
	items, err := sess.LocalStorage(ctx)
	if err != nil {
		return "", err
	}

	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		val := strings.TrimSpace(items[k])
		if !strings.HasPrefix(val, "{") {
			continue
		}
		if id := stringifyID(jsoniter.Get([]byte(val), "id")); id != "" {
			return id, nil
		}
	}
	return "", nil
}

func stringifyID(v jsoniter.Any) string {
	switch v.ValueType() {
	case jsoniter.NumberValue, jsoniter.StringValue:
		s := strings.TrimSpace(v.ToString())
		if s == "0" {
			return ""
		}
		return s
	default:
		return ""
	}
}
