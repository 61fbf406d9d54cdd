// File: internal/notify/notify_test.go
package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loks666/anyrouter-autolog/internal/config"
	"github.com/loks666/anyrouter-autolog/internal/results"
)

func TestEnabled(t *testing.T) {
	assert.False(t, New(zap.NewNop(), config.NotifyConfig{}).Enabled())
	assert.True(t, New(zap.NewNop(), config.NotifyConfig{PushPlusToken: "tok"}).Enabled())
	assert.True(t, New(zap.NewNop(), config.NotifyConfig{
		Email: config.EmailConfig{User: "a@b.c"},
	}).Enabled())
}

func TestSendUnconfiguredMakesNoRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	n := New(zap.NewNop(), config.NotifyConfig{})
	n.Send(context.Background(), "title", "content")
	assert.Zero(t, hits.Load())
}

func TestSendWebhookPayloads(t *testing.T) {
	capture := func(t *testing.T) (*httptest.Server, *[]byte) {
		t.Helper()
		var body []byte
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			body = b
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		}))
		t.Cleanup(srv.Close)
		return srv, &body
	}

	t.Run("dingtalk", func(t *testing.T) {
		srv, body := capture(t)
		n := New(zap.NewNop(), config.NotifyConfig{DingTalkWebhook: srv.URL})
		n.Send(context.Background(), "标题", "内容")

		assert.Equal(t, "text", jsoniter.Get(*body, "msgtype").ToString())
		assert.Contains(t, jsoniter.Get(*body, "text", "content").ToString(), "标题")
	})

	t.Run("feishu", func(t *testing.T) {
		srv, body := capture(t)
		n := New(zap.NewNop(), config.NotifyConfig{FeishuWebhook: srv.URL})
		n.Send(context.Background(), "标题", "内容")

		assert.Equal(t, "text", jsoniter.Get(*body, "msg_type").ToString())
		assert.Contains(t, jsoniter.Get(*body, "content", "text").ToString(), "内容")
	})

	t.Run("wecom", func(t *testing.T) {
		srv, body := capture(t)
		n := New(zap.NewNop(), config.NotifyConfig{WeComWebhook: srv.URL})
		n.Send(context.Background(), "标题", "内容")

		assert.Equal(t, "text", jsoniter.Get(*body, "msgtype").ToString())
	})
}

func TestSendChannelFailureIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(zap.NewNop(), config.NotifyConfig{
		DingTalkWebhook: srv.URL,
		Timeout:         time.Second,
	})
	// Must return despite the failing channel.
	n.Send(context.Background(), "title", "content")
}

func TestPostJSONRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := New(zap.NewNop(), config.NotifyConfig{})
	err := n.postJSON(context.Background(), srv.URL, map[string]string{"k": "v"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}

func TestSummary(t *testing.T) {
	records := []results.Result{
		results.New("账号1", "anyrouter.top", "42", "XYZ"),
		results.Failed("账号2", "anyrouter.top"),
		results.New("账号3", "anyrouter.top", "7", ""),
	}

	s := Summary(records)
	assert.Contains(t, s, "✅ 账号1: 登录成功")
	assert.Contains(t, s, "❌ 账号2: 登录失败")
	assert.Contains(t, s, "✅ 账号3: 登录成功")
	assert.Contains(t, s, "成功 2/3")
}
