package audience

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/briefdesk/briefedit/pkg/whttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfo(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Write([]byte(`[{"abvr": "a1", "audience_name": "Car buyers", "description": "d"}]`))
	}))
	defer srv.Close()

	doer, err := whttp.NewClient(whttp.Options{})
	require.NoError(t, err)
	c := New(doer, srv.URL)

	auds, err := c.Info(context.Background(), []string{"a1", "a2"})
	require.NoError(t, err)
	assert.Equal(t, "a1,a2", body)
	require.Len(t, auds, 1)
	assert.Equal(t, "Car buyers", auds[0].Name)
	assert.True(t, auds[0].Checked)

	auds, err = c.Info(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, auds)
}
