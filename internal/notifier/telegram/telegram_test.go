package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bioswatch/internal/notifier"
)

// botAPI is a minimal Telegram Bot API server.
type botAPI struct {
	unauthorized bool
	chats        map[string]string // chat_id -> json chat object
	sendFail     map[string]bool

	mu   sync.Mutex
	sent map[string][]string
}

func (b *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	params := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&params)
	chatID := fmt.Sprint(params["chat_id"])

	w.Header().Set("Content-Type", "application/json")
	fail := func(code int, desc string) {
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"ok":false,"error_code":%d,"description":%q}`, code, desc)
	}

	switch method {
	case "getMe":
		if b.unauthorized {
			fail(http.StatusUnauthorized, "Unauthorized")
			return
		}
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bios","username":"bios_bot"}}`)
	case "getChat":
		chat, ok := b.chats[chatID]
		if !ok {
			fail(http.StatusBadRequest, "Bad Request: chat not found")
			return
		}
		fmt.Fprintf(w, `{"ok":true,"result":%s}`, chat)
	case "sendMessage":
		if b.sendFail[chatID] {
			fail(http.StatusForbidden, "Forbidden: bot was kicked from the group chat")
			return
		}
		b.mu.Lock()
		if b.sent == nil {
			b.sent = map[string][]string{}
		}
		b.sent[chatID] = append(b.sent[chatID], fmt.Sprint(params["text"]))
		b.mu.Unlock()
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":1,"date":1700000000,"chat":{"id":%s,"type":"supergroup"},"text":"ok"}}`, chatID)
	default:
		fail(http.StatusNotFound, "Not Found: method not found")
	}
}

func (b *botAPI) sentTo(chatID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.sent[chatID]...)
}

func newAPI(t *testing.T) (*botAPI, string) {
	t.Helper()
	api := &botAPI{
		chats: map[string]string{
			"-100": `{"id":-100,"type":"supergroup","title":"BIOS notifications"}`,
			"-200": `{"id":-200,"type":"group","title":"random"}`,
			"42":   `{"id":42,"type":"private","first_name":"Me"}`,
		},
	}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, srv.URL
}

func TestAcquireAndSend(t *testing.T) {
	t.Parallel()

	api, url := newAPI(t)
	n := New(Config{Token: "123:abc", ChatIDs: []int64{-100, -200, 42, 7}, APIURL: url, RatePerSec: 100})

	s, err := n.Acquire(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.(*session).chats, 3, "unknown chat 7 skipped")

	require.NoError(t, s.Send(context.Background(), notifier.Message{Body: "100 => 105"}))
	require.NoError(t, s.Release(context.Background()))

	assert.Equal(t, []string{"100 => 105"}, api.sentTo("-100"))
	assert.Equal(t, []string{"100 => 105"}, api.sentTo("-200"))
	assert.Equal(t, []string{"100 => 105"}, api.sentTo("42"))
}

func TestAcquireFiltersByTitle(t *testing.T) {
	t.Parallel()

	_, url := newAPI(t)
	n := New(Config{Token: "123:abc", ChatIDs: []int64{-100, -200, 42}, ChannelFilter: "notification", APIURL: url})

	s, err := n.Acquire(context.Background())
	require.NoError(t, err)

	ids := []int64{}
	for _, c := range s.(*session).chats {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []int64{-100, 42}, ids)
}

func TestAcquireErrors(t *testing.T) {
	t.Parallel()

	api, url := newAPI(t)
	api.unauthorized = true

	_, err := New(Config{Token: "123:abc", ChatIDs: []int64{-100}, APIURL: url}).Acquire(context.Background())
	assert.ErrorIs(t, err, notifier.ErrConnection)

	_, err = New(Config{ChatIDs: []int64{-100}, APIURL: url}).Acquire(context.Background())
	assert.ErrorIs(t, err, notifier.ErrConfig)

	_, err = New(Config{Token: "123:abc", APIURL: url}).Acquire(context.Background())
	assert.ErrorIs(t, err, notifier.ErrConfig)
}

func TestAcquireNoReachableChat(t *testing.T) {
	t.Parallel()

	_, url := newAPI(t)
	_, err := New(Config{Token: "123:abc", ChatIDs: []int64{1, 2}, APIURL: url}).Acquire(context.Background())
	assert.ErrorIs(t, err, notifier.ErrConnection)
}

func TestSendPartialFailure(t *testing.T) {
	t.Parallel()

	api, url := newAPI(t)
	api.sendFail = map[string]bool{"-200": true}

	s, err := New(Config{Token: "123:abc", ChatIDs: []int64{-100, -200}, APIURL: url}).Acquire(context.Background())
	require.NoError(t, err)

	err = s.Send(context.Background(), notifier.Message{Body: "x"})
	var de *notifier.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 1, de.Succeeded)
	assert.Equal(t, 2, de.Total)
	assert.Contains(t, err.Error(), "chat -200")
}

func TestSendHonoursContext(t *testing.T) {
	t.Parallel()

	_, url := newAPI(t)
	s, err := New(Config{Token: "123:abc", ChatIDs: []int64{-100}, APIURL: url, RatePerSec: 1}).Acquire(context.Background())
	require.NoError(t, err)

	// Drain the single token so the next Wait must block past the deadline.
	require.True(t, s.(*session).limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = s.Send(ctx, notifier.Message{Body: "x"})
	var de *notifier.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Zero(t, de.Succeeded)
}

func TestSplitText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"short"}, splitText("short", 10))

	long := strings.Repeat("a", 6) + "\n" + strings.Repeat("b", 6)
	assert.Equal(t, []string{"aaaaaa", "bbbbbb"}, splitText(long, 10))

	chunks := splitText(strings.Repeat("é", 25), 10)
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("é", 10), chunks[0])
	assert.Equal(t, strings.Repeat("é", 5), chunks[2])

	// default limit
	assert.Len(t, splitText(strings.Repeat("x", textLimit+1), 0), 2)
}
