package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/nexus/pkg/types"
)

// fakeAnthropic returns a test server that answers every messages call with
// the given response text.
func fakeAnthropic(t *testing.T, responseText string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("x-api-key"))
		require.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		resp := anthropicMessagesResponse{}
		resp.Content = append(resp.Content, struct {
			Text string `json:"text"`
		}{Text: responseText})
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestExtractEntities(t *testing.T) {
	srv := fakeAnthropic(t, `[{"name":"Acme Corp","type":"ORGANIZATION","aliases":["acme"],"context":"vendor","relationships":[{"entity":"Dana","type":"employs"}]}]`)
	defer srv.Close()

	c := NewAnthropicExtractor(AnthropicConfig{APIKey: "test", BaseURL: srv.URL})

	entities, err := c.ExtractEntities(context.Background(), "talked to Dana from Acme Corp")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	require.Equal(t, types.EntityOrganization, entities[0].Type)
	require.Equal(t, "Dana", entities[0].Relationships[0].Entity)
}

func TestExtractEntitiesNormalizesUnknownType(t *testing.T) {
	srv := fakeAnthropic(t, `[{"name":"thing","type":"GADGET"}]`)
	defer srv.Close()

	c := NewAnthropicExtractor(AnthropicConfig{APIKey: "test", BaseURL: srv.URL})

	entities, err := c.ExtractEntities(context.Background(), "some text")
	require.NoError(t, err)
	require.Equal(t, types.EntityOther, entities[0].Type)
}

func TestExtractEntitiesEmptyInput(t *testing.T) {
	c := NewAnthropicExtractor(AnthropicConfig{APIKey: "test"})
	entities, err := c.ExtractEntities(context.Background(), "   ")
	require.NoError(t, err)
	require.Nil(t, entities)
}

func TestExtractEvents(t *testing.T) {
	srv := fakeAnthropic(t, `[{"eventType":"CONVERSATION","senderId":"+15551234","channel":"whatsapp","content":"customer asked about pricing","summary":"Pricing question.","importance":0.6,"decision":null,"reasoning":null}]`)
	defer srv.Close()

	c := NewAnthropicExtractor(AnthropicConfig{APIKey: "test", BaseURL: srv.URL})

	events, err := c.ExtractEvents(context.Background(), "raw log lines here")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, types.EventConversation, events[0].EventType)
	require.Equal(t, "+15551234", events[0].SenderID)
	require.Equal(t, 0.6, events[0].Importance)
}

func TestConsolidateProfile(t *testing.T) {
	srv := fakeAnthropic(t, `{"name":"Dana Silva","type":"PERSON","aliases":["dana"],"summary":"Regular customer.","importance":0.7,"metadata":{"topics":["pricing"]}}`)
	defer srv.Close()

	c := NewAnthropicExtractor(AnthropicConfig{APIKey: "test", BaseURL: srv.URL})

	events := []types.MemoryEvent{
		{Content: "first chat", CreatedAt: time.Now().Add(-48 * time.Hour)},
		{Summary: "asked about pricing", CreatedAt: time.Now()},
	}
	profile, err := c.ConsolidateProfile(context.Background(), "+15551234", events)
	require.NoError(t, err)
	require.NotNil(t, profile)
	require.Equal(t, "Dana Silva", profile.Name)
	require.Equal(t, types.EntityPerson, profile.Type)
}

func TestConsolidateProfileNoEvents(t *testing.T) {
	c := NewAnthropicExtractor(AnthropicConfig{APIKey: "test"})
	profile, err := c.ConsolidateProfile(context.Background(), "sender", nil)
	require.NoError(t, err)
	require.Nil(t, profile)
}

func TestExtractorSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewAnthropicExtractor(AnthropicConfig{APIKey: "test", BaseURL: srv.URL})

	_, err := c.ExtractEntities(context.Background(), "some text")
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", truncate("abc", 10))
	require.Equal(t, "ab", truncate("abcdef", 2))
}
