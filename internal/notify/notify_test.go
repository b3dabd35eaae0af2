// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/daily-papers/pkg/types"
)

func TestStatusTemplate(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusSuccess, "green"},
		{"OK", "green"},
		{StatusFailed, "red"},
		{"error", "red"},
		{StatusInfo, "blue"},
		{"", "blue"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.Template(), string(tt.status))
	}
}

func newTestNotifier(url string) *Notifier {
	n := New(types.NotifyConfig{Webhook: url}, nil)
	n.Policy.BaseDelay = time.Millisecond
	n.Policy.MaxDelay = time.Millisecond
	n.now = func() time.Time { return time.Date(2025, 7, 30, 9, 15, 0, 0, time.UTC) }
	return n
}

func TestSend_PostsInteractiveCard(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &got))
		fmt.Fprint(w, `{"code":0,"msg":"success","data":{}}`)
	}))
	defer ts.Close()

	n := newTestNotifier(ts.URL)
	err := n.Send(context.Background(), Message{Title: "AI Papers 2025-07-29", Content: "**3** papers", Status: StatusSuccess})
	require.NoError(t, err)

	assert.Equal(t, "interactive", got["msg_type"])
	c := got["card"].(map[string]any)
	header := c["header"].(map[string]any)
	assert.Equal(t, "green", header["template"])
	assert.Equal(t, "AI Papers 2025-07-29", header["title"].(map[string]any)["content"])

	elements := c["elements"].([]any)
	require.Len(t, elements, 2)
	div := elements[0].(map[string]any)
	assert.Equal(t, "lark_md", div["text"].(map[string]any)["tag"])
	note := elements[1].(map[string]any)
	assert.Equal(t, "note", note["tag"])
	assert.Equal(t, "Time: 2025-07-30 09:15:00", note["elements"].([]any)[0].(map[string]any)["content"])
}

func TestSend_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode int
	}{
		{name: "non-zero code", status: http.StatusOK, body: `{"code":19001,"msg":"param invalid"}`, wantCode: 19001},
		{name: "legacy status code", status: http.StatusOK, body: `{"StatusCode":9499,"StatusMessage":"Bad Request"}`, wantCode: 9499},
		{name: "http error", status: http.StatusBadRequest, body: `bad`, wantCode: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()

			err := newTestNotifier(ts.URL).Send(context.Background(), Message{Title: "t"})
			var we *WebhookError
			require.ErrorAs(t, err, &we)
			assert.Equal(t, tt.wantCode, we.Code)
			assert.Equal(t, tt.status, we.StatusCode)
		})
	}
}

func TestSend_RetriesRateLimit(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"code":0}`)
	}))
	defer ts.Close()

	require.NoError(t, newTestNotifier(ts.URL).Send(context.Background(), Message{Title: "t"}))
	assert.Equal(t, 2, calls)
}

func TestSend_NoWebhook(t *testing.T) {
	n := New(types.NotifyConfig{}, nil)
	assert.False(t, n.Enabled())
	assert.ErrorIs(t, n.Send(context.Background(), Message{Title: "t"}), ErrNoWebhook)
}

func TestDailyMessage(t *testing.T) {
	r := &types.DailyReport{
		Date: "2025-07-29",
		Results: []types.AnalysisResult{
			{PaperID: "a", Title: "Self-Evolving Agents", TitleTranslation: "自进化智能体", Category: types.CategoryAgents, SourceURL: "https://huggingface.co/papers/a"},
			{PaperID: "b", Title: "Sparse Attention", Category: types.CategoryEfficiency},
		},
	}

	m := DailyMessage(r, 0)
	assert.Equal(t, "AI Papers 2025-07-29", m.Title)
	assert.Equal(t, StatusSuccess, m.Status)
	assert.Contains(t, m.Content, "**2** papers analyzed, **0** failed.")
	assert.Contains(t, m.Content, "1. [agents] [Self-Evolving Agents / 自进化智能体](https://huggingface.co/papers/a)")
	assert.Contains(t, m.Content, "2. [efficiency] Sparse Attention")

	r.Failures = []types.RecordFailure{{PaperID: "c"}}
	assert.Equal(t, StatusInfo, DailyMessage(r, 0).Status)

	r.Results = nil
	assert.Equal(t, StatusFailed, DailyMessage(r, 0).Status)

	assert.Equal(t, StatusInfo, DailyMessage(&types.DailyReport{Date: "2025-08-02"}, 0).Status)
}

func TestDailyMessage_EscapesMarkdownInTitles(t *testing.T) {
	r := &types.DailyReport{
		Date: "2025-07-29",
		Results: []types.AnalysisResult{
			{PaperID: "a", Title: "[RL] *Fast* _and_ ~stable~ `code` (v2)", Category: types.CategoryRL, SourceURL: "https://example.org/papers/a (v2)"},
			{PaperID: "b", Title: "Q&A <with> a|b #1 \\n", Category: types.CategoryLLM},
		},
	}

	m := DailyMessage(r, 0)
	assert.Contains(t, m.Content,
		"1. [reinforcement-learning] [&#91;RL&#93; &#42;Fast&#42; &#95;and&#95; &#126;stable&#126; &#96;code&#96; &#40;v2&#41;](https://example.org/papers/a%20%28v2%29)")
	assert.Contains(t, m.Content, "2. [llm] Q&amp;A &#60;with&#62; a&#124;b &#35;1 &#92;n")
	assert.NotContains(t, m.Content, "*Fast*")
}

func TestDailyMessage_CapsPaperList(t *testing.T) {
	r := &types.DailyReport{Date: "2025-07-29"}
	for i := range 60 {
		r.Results = append(r.Results, types.AnalysisResult{PaperID: fmt.Sprint(i), Title: fmt.Sprintf("Paper %d", i), Category: types.CategoryLLM})
	}

	m := DailyMessage(r, 0)
	assert.Contains(t, m.Content, "50. [llm] Paper 49")
	assert.NotContains(t, m.Content, "Paper 50")
	assert.True(t, strings.HasSuffix(m.Content, "...and 10 more"))
}
