package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viczommers/QueueChain/internal/bidding"
	"github.com/viczommers/QueueChain/internal/keyring"
	"github.com/viczommers/QueueChain/internal/queueview"
)

const testSecret = "0101010101010101010101010101010101010101010101010101010101010101"

type fakeBids struct {
	conf    *bidding.Confirmation
	err     error
	gotURL  string
	gotVal  *big.Int
	calls   int
}

func (f *fakeBids) SubmitBid(_ context.Context, url string, value *big.Int) (*bidding.Confirmation, error) {
	f.calls++
	f.gotURL = url
	f.gotVal = value
	return f.conf, f.err
}

type fakeQueue struct {
	md  *queueview.Metadata
	url string
	err error
}

func (f *fakeQueue) Metadata(context.Context) (*queueview.Metadata, error) { return f.md, f.err }
func (f *fakeQueue) CurrentURL(context.Context) (string, error)           { return f.url, f.err }

type fakeProber struct{ up bool }

func (f fakeProber) Connected(context.Context) bool { return f.up }

func newTestServer(t *testing.T, keys *keyring.Manager, bids *fakeBids, queue *fakeQueue, up bool) *httptest.Server {
	t.Helper()
	if keys == nil {
		keys = keyring.NewManager()
	}
	if bids == nil {
		bids = &fakeBids{}
	}
	if queue == nil {
		queue = &fakeQueue{}
	}
	srv := NewServer(keys, bids, queue, fakeProber{up: up}, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func postJSON(t *testing.T, url, body string, out any) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func TestAccountInfoWithoutKey(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil, true)

	var got map[string]any
	getJSON(t, ts.URL+"/account-info", &got)

	assert.Nil(t, got["address"])
	assert.Equal(t, false, got["has_private_key"])
}

func TestAccountInfoWithKey(t *testing.T) {
	keys := keyring.NewManager()
	require.NoError(t, keys.SetCredential(testSecret))
	ts := newTestServer(t, keys, nil, nil, true)

	var got map[string]any
	getJSON(t, ts.URL+"/account-info", &got)

	assert.Equal(t, true, got["has_private_key"])
	addr, ok := got["address"].(string)
	require.True(t, ok)
	assert.True(t, common.IsHexAddress(addr))
}

func TestCurrentURLWhenDisconnected(t *testing.T) {
	ts := newTestServer(t, nil, nil, &fakeQueue{url: "https://example.org/a"}, false)

	var got map[string]any
	getJSON(t, ts.URL+"/current-url", &got)
	assert.Equal(t, "Blockchain connection failed", got["error"])
}

func TestCurrentURLEmptyIsNull(t *testing.T) {
	ts := newTestServer(t, nil, nil, &fakeQueue{url: ""}, true)

	var got map[string]any
	getJSON(t, ts.URL+"/current-url", &got)
	val, present := got["url"]
	assert.True(t, present)
	assert.Nil(t, val)
}

func TestQueueMetadataPassesEnvelopeThrough(t *testing.T) {
	queue := &fakeQueue{md: &queueview.Metadata{
		TotalCount:        2,
		CurrentPlaying:    &queueview.Submission{URL: "https://example.org/a", Submitter: "0x01", Timestamp: 1700000000},
		RecentSubmissions: []queueview.RecentSubmission{},
	}}
	ts := newTestServer(t, nil, nil, queue, true)

	var got map[string]any
	getJSON(t, ts.URL+"/queue-metadata", &got)

	assert.Equal(t, float64(2), got["total_count"])
	require.NotNil(t, got["current_playing"])
	assert.Nil(t, got["coming_up_next"])
	assert.Equal(t, []any{}, got["recent_submissions"])
}

func TestSubmitBidSuccess(t *testing.T) {
	bids := &fakeBids{conf: &bidding.Confirmation{
		TxHash:      common.HexToHash("0xbeef"),
		BlockNumber: 99,
	}}
	ts := newTestServer(t, nil, bids, nil, true)

	var got map[string]any
	postJSON(t, ts.URL+"/submit-bid", `{"url":"https://example.org/a","value":1000000000000000000}`, &got)

	assert.Equal(t, true, got["success"])
	assert.Equal(t, float64(99), got["block_number"])
	assert.Equal(t, 1, bids.calls)
	assert.Equal(t, "https://example.org/a", bids.gotURL)
	assert.Equal(t, "1000000000000000000", bids.gotVal.String())
}

func TestSubmitBidNoAccount(t *testing.T) {
	bids := &fakeBids{err: keyring.ErrNoAccount}
	ts := newTestServer(t, nil, bids, nil, true)

	var got map[string]any
	postJSON(t, ts.URL+"/submit-bid", `{"url":"https://example.org/a","value":1}`, &got)
	assert.Equal(t, "No account available - please enter private key first", got["error"])
}

func TestSubmitBidEngineFailure(t *testing.T) {
	bids := &fakeBids{err: errors.New("submit bid: connection refused")}
	ts := newTestServer(t, nil, bids, nil, true)

	var got map[string]any
	resp := postJSON(t, ts.URL+"/submit-bid", `{"url":"https://example.org/a","value":1}`, &got)

	// Logical failures keep the 200 + error-envelope convention.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, got["error"], "connection refused")
}

func TestSubmitBidRejectsBadBody(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil, true)

	var got map[string]any
	resp := postJSON(t, ts.URL+"/submit-bid", `{not json`, &got)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdatePrivateKey(t *testing.T) {
	keys := keyring.NewManager()
	ts := newTestServer(t, keys, nil, nil, true)

	var got map[string]any
	postJSON(t, ts.URL+"/update-private-key", `{"private_key":"0x`+testSecret+`"}`, &got)

	assert.Equal(t, true, got["success"])
	addr, ok := got["address"].(string)
	require.True(t, ok)
	assert.True(t, common.IsHexAddress(addr))

	info := keys.Info()
	assert.True(t, info.HasPrivateKey)
	assert.Equal(t, addr, info.Address)
}

func TestUpdatePrivateKeyRejectsBadLength(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil, true)

	var got map[string]any
	postJSON(t, ts.URL+"/update-private-key", `{"private_key":"abc123"}`, &got)
	assert.Contains(t, got["error"], "64 hex characters")
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil, true)

	var got map[string]any
	getJSON(t, ts.URL+"/healthz", &got)
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, true, got["connected"])
}
