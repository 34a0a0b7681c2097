package cohorts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/briefdesk/briefedit/pkg/catalog"
	"github.com/briefdesk/briefedit/pkg/whttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllCohorts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get-all-mediaplan-cohorts", r.URL.Path)
		w.Write([]byte(`[{"name": "Auto Intenders", "abvrs": "a1, a2,"}, {"name": "Travel", "abvrs": ["t1"]}, {"name": ""}]`))
	}))
	defer srv.Close()

	doer, err := whttp.NewClient(whttp.Options{})
	require.NoError(t, err)
	got, err := New(doer, srv.URL).AllCohorts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []catalog.CohortInfo{
		{Name: "Auto Intenders", ABVRs: []string{"a1", "a2"}},
		{Name: "Travel", ABVRs: []string{"t1"}},
	}, got)
}

func TestAllCohortsRejectsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><title>Login</title></html>`))
	}))
	defer srv.Close()

	doer, err := whttp.NewClient(whttp.Options{})
	require.NoError(t, err)
	_, err = New(doer, srv.URL).AllCohorts(context.Background())
	assert.Error(t, err)
}
