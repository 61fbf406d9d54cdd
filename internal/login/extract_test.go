// File: internal/login/extract_test.go
package login

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loks666/anyrouter-autolog/internal/browser"
)

func TestIDFromUserInfo(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"numeric id", `{"data":{"id":42}}`, "42"},
		{"string id", `{"data":{"id":"abc-1"}}`, "abc-1"},
		{"user_id fallback", `{"data":{"user_id":7}}`, "7"},
		{"id wins over user_id", `{"data":{"id":1,"user_id":2}}`, "1"},
		{"zero id counts as absent", `{"data":{"id":0,"user_id":9}}`, "9"},
		{"float id keeps literal rendering", `{"data":{"id":12.5}}`, "12.5"},
		{"large id without exponent", `{"data":{"id":123456789012}}`, "123456789012"},
		{"missing data", `{"success":true}`, ""},
		{"id of wrong type", `{"data":{"id":{"nested":1}}}`, ""},
		{"not json", `<html>`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, idFromUserInfo([]byte(tc.body)))
		})
	}
}

func TestExtractStateCookieLookup(t *testing.T) {
	r := NewRunner(zap.NewNop(), testConfig(), nil)

	sess := &fakeSession{
		cookies: []browser.Cookie{
			{Name: "cf_clearance", Value: "waf"},
			{Name: "session", Value: "XYZ"},
		},
		userInfoBody: `{"data":{"id":42}}`,
	}

	state, err := r.extractState(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "XYZ", state.SessionCookie)
	assert.Equal(t, "42", state.APIUser)
	assert.True(t, state.Successful())
}

func TestExtractStateCookieErrorIsFatalForAccount(t *testing.T) {
	r := NewRunner(zap.NewNop(), testConfig(), nil)

	sess := &fakeSession{cookiesErr: assert.AnError}
	_, err := r.extractState(context.Background(), sess)
	require.Error(t, err)
}

func TestExtractStateLocalStorageScanIsDeterministic(t *testing.T) {
	r := NewRunner(zap.NewNop(), testConfig(), nil)

	// Multiple candidate values; the scan visits keys in sorted order.
	sess := &fakeSession{
		userInfoBody: "",
		localStorage: map[string]string{
			"z_profile": `{"id": 2}`,
			"a_profile": `{"id": 1}`,
			"not_json":  "plain string",
		},
	}

	state, err := r.extractState(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "1", state.APIUser)
}

func TestExtractStateNothingFound(t *testing.T) {
	r := NewRunner(zap.NewNop(), testConfig(), nil)

	sess := &fakeSession{userInfoBody: "", localStorage: map[string]string{}}
	state, err := r.extractState(context.Background(), sess)
	require.NoError(t, err)
	assert.False(t, state.Successful())
	assert.Empty(t, state.SessionCookie)
	assert.Empty(t, state.APIUser)
}
