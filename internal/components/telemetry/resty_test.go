package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	mu    sync.Mutex
	dumps map[string]string
}

func (m *memoryOutput) Write(id string, contents string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dumps[id] = contents
}

func TestInstrumentResty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Fare", "cheap")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"ok":false}`))
	}))
	defer server.Close()

	rec := &Recorder{}
	output := &memoryOutput{dumps: map[string]string{}}
	client := resty.New()
	InstrumentResty(client, rec, output)

	_, err := client.R().SetBody(`{"q":"TPE"}`).Post(server.URL + "/v1/scrape")
	require.Nil(t, err)
	_, err = client.R().Get(server.URL)
	require.Nil(t, err)

	debug := rec.Reports("debug")
	require.Len(t, debug, 4)
	require.Equal(t, report_resty_request, debug[0].ID)
	require.Equal(t, uint64(1), debug[0].Params[0])
	require.Equal(t, report_resty_response, debug[1].ID)
	require.Equal(t, uint64(2), debug[2].Params[0])

	dump := output.dumps["1.txt"]
	require.True(t, strings.HasPrefix(dump, "---- REQUEST ----\n\nPOST "+server.URL+"/v1/scrape"), dump)
	require.Contains(t, dump, `{"q":"TPE"}`)
	require.Contains(t, dump, "---- RESPONSE ----\n\n418 ")
	require.Contains(t, dump, "X-Fare: cheap")
	require.True(t, strings.HasSuffix(dump, `{"ok":false}`))

	get := output.dumps["2.txt"]
	require.True(t, strings.HasPrefix(get, "---- REQUEST ----\n\nGET "+server.URL), get)
	require.Contains(t, get, "<no body>")
}

func TestInstrumentRestyTransportError(t *testing.T) {
	rec := &Recorder{}
	client := resty.New()
	InstrumentResty(client, rec, nil)

	_, err := client.R().Get("http://127.0.0.1:1/unreachable")
	require.NotNil(t, err)
	require.Len(t, rec.Reports("broken"), 1)
	require.Equal(t, report_resty_response, rec.Reports("broken")[0].ID)
}
