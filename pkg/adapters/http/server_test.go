package http_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/ussdflow"
	ussdhttp "github.com/aretw0/ussdflow/pkg/adapters/http"
	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	turns []domain.Turn
	reply domain.Reply
	err   error
}

func (r *recorder) Handle(ctx context.Context, turn domain.Turn) (domain.Reply, error) {
	r.turns = append(r.turns, turn)
	return r.reply, r.err
}

func postForm(t *testing.T, h http.Handler, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ussd", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestTurn_Form(t *testing.T) {
	eng := &recorder{reply: domain.Reply{Text: "Main menu", Continue: true}}
	h := ussdhttp.NewHandler(eng)

	w := postForm(t, h, url.Values{
		"sessionId":   {"ATUid_1"},
		"serviceCode": {"*384#"},
		"phoneNumber": {"+254700000001"},
		"text":        {"1*2"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CON Main menu", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	require.Len(t, eng.turns, 1)
	assert.Equal(t, domain.Turn{SessionID: "ATUid_1", RawInput: "1*2", Phone: "+254700000001"}, eng.turns[0])
}

func TestTurn_JSON(t *testing.T) {
	eng := &recorder{reply: domain.Reply{Text: "Goodbye.", Continue: false}}
	h := ussdhttp.NewHandler(eng)

	req := httptest.NewRequest(http.MethodPost, "/ussd", strings.NewReader(`{"session_id":"s1","raw_input":"0","phone_number":"0700"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "END Goodbye.", w.Body.String())
	require.Len(t, eng.turns, 1)
	assert.Equal(t, "0", eng.turns[0].RawInput)
	assert.Equal(t, "0700", eng.turns[0].Phone)
}

func TestTurn_EngineErrorEndsSession(t *testing.T) {
	t.Run("Safe Message", func(t *testing.T) {
		eng := &recorder{reply: domain.Reply{Text: "System error."}, err: errors.New("boom")}
		w := postForm(t, ussdhttp.NewHandler(eng), url.Values{"sessionId": {"s1"}})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "END System error.", w.Body.String())
	})

	t.Run("Empty Reply", func(t *testing.T) {
		eng := &recorder{reply: domain.Reply{Continue: true}, err: errors.New("boom")}
		w := postForm(t, ussdhttp.NewHandler(eng), url.Values{"sessionId": {"s1"}})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasPrefix(w.Body.String(), "END "))
		assert.Greater(t, len(w.Body.String()), len("END "))
	})
}

func TestTurn_RejectsMalformedRequests(t *testing.T) {
	eng := &recorder{reply: domain.Reply{Text: "x", Continue: true}}
	h := ussdhttp.NewHandler(eng, ussdhttp.WithMaxInputBytes(8))

	tests := []struct {
		name   string
		values url.Values
	}{
		{"Missing Session", url.Values{"text": {"1"}}},
		{"Input Too Large", url.Values{"sessionId": {"s1"}, "text": {"1*2*3*4*5*6"}}},
		{"Invalid UTF-8", url.Values{"sessionId": {"s1"}, "text": {"\xff"}}},
		{"Control In Session", url.Values{"sessionId": {"s\x001"}, "text": {"1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postForm(t, h, tt.values)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Empty(t, eng.turns)
}

func TestTurn_StripsControlCharacters(t *testing.T) {
	eng := &recorder{reply: domain.Reply{Text: "ok", Continue: true}}
	w := postForm(t, ussdhttp.NewHandler(eng), url.Values{"sessionId": {"s1"}, "text": {"1\x1b[2J*2\n"}})

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, eng.turns, 1)
	assert.Equal(t, "1[2J*2", eng.turns[0].RawInput)
}

func TestTurn_AppliesTimeout(t *testing.T) {
	var deadline time.Time
	eng := ussdhttp.EngineFunc(func(ctx context.Context, turn domain.Turn) (domain.Reply, error) {
		var ok bool
		deadline, ok = ctx.Deadline()
		require.True(t, ok)
		return domain.Reply{Text: "ok"}, nil
	})
	postForm(t, ussdhttp.NewHandler(eng, ussdhttp.WithTurnTimeout(time.Second)), url.Values{"sessionId": {"s1"}})
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestHealth(t *testing.T) {
	eng := &recorder{}

	w := httptest.NewRecorder()
	ussdhttp.NewHandler(eng).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	failing := ussdhttp.NewHandler(eng, ussdhttp.WithHealthCheck(func(context.Context) error {
		return errors.New("redis down")
	}))
	w = httptest.NewRecorder()
	failing.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsMount(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	h := ussdhttp.NewHandler(&recorder{}, ussdhttp.WithMetrics("/metrics", metrics))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# metrics", w.Body.String())

	w = httptest.NewRecorder()
	ussdhttp.NewHandler(&recorder{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTurn_WithService(t *testing.T) {
	svc, err := ussdflow.New()
	require.NoError(t, err)
	h := ussdhttp.NewHandler(svc)

	w := postForm(t, h, url.Values{"sessionId": {"gw-1"}, "phoneNumber": {"+254700000001"}, "text": {""}})
	assert.True(t, strings.HasPrefix(w.Body.String(), "CON "))
	assert.Contains(t, w.Body.String(), "1. English")

	w = postForm(t, h, url.Values{"sessionId": {"gw-1"}, "text": {"1"}})
	assert.True(t, strings.HasPrefix(w.Body.String(), "CON Main menu"))

	w = postForm(t, h, url.Values{"sessionId": {"gw-1"}, "text": {"1*0"}})
	assert.True(t, strings.HasPrefix(w.Body.String(), "END "))
}
