package member

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/fansearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchableText(t *testing.T) {
	t.Run("joins semantic fields in fixed order", func(t *testing.T) {
		m := &Member{
			DisplayName:        "Hoshino",
			LocalizedName:      "ほしの",
			Description:        "Lead vocalist",
			Tags:               []string{"singer", "cheerful"},
			PersonalitySummary: "Always upbeat",
		}
		assert.Equal(t, "Hoshino\nほしの\nLead vocalist\nsinger cheerful\nAlways upbeat", m.SearchableText())
	})

	t.Run("skips empty fields", func(t *testing.T) {
		m := &Member{DisplayName: "Hoshino", Description: "  "}
		assert.Equal(t, "Hoshino", m.SearchableText())
	})

	t.Run("empty member yields empty text", func(t *testing.T) {
		assert.Equal(t, "", (&Member{}).SearchableText())
	})

	t.Run("deterministic", func(t *testing.T) {
		m := &Member{DisplayName: "Hoshino", Tags: []string{"a", "b"}}
		assert.Equal(t, m.SearchableText(), m.SearchableText())
		assert.Equal(t, core.ContentHash(m.SearchableText()), core.ContentHash(m.SearchableText()))
	})
}

func TestStaticSource(t *testing.T) {
	source := NewStaticSource(Member{ID: 1, DisplayName: "Hoshino"})
	ctx := context.Background()

	t.Run("get", func(t *testing.T) {
		m, err := source.GetMember(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Hoshino", m.DisplayName)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := source.GetMember(ctx, 2)
		assert.Equal(t, core.KindEntityNotFound, core.KindOf(err))
	})

	t.Run("put and remove", func(t *testing.T) {
		source.Put(Member{ID: 2, DisplayName: "Tsukishiro"})
		m, err := source.GetMember(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "Tsukishiro", m.DisplayName)

		source.Remove(2)
		_, err = source.GetMember(ctx, 2)
		assert.Equal(t, core.KindEntityNotFound, core.KindOf(err))
	})
}

func TestHTTPSource(t *testing.T) {
	t.Run("fetches member", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/members/7", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":7,"displayName":"Hoshino","tags":["singer"],"active":true}`))
		}))
		defer ts.Close()

		m, err := NewHTTPSource(ts.URL).GetMember(context.Background(), 7)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), m.ID)
		assert.Equal(t, "Hoshino", m.DisplayName)
		assert.True(t, m.Active)
	})

	t.Run("fills missing id from request", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"displayName":"Hoshino"}`))
		}))
		defer ts.Close()

		m, err := NewHTTPSource(ts.URL).GetMember(context.Background(), 7)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), m.ID)
	})

	t.Run("not found", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer ts.Close()

		_, err := NewHTTPSource(ts.URL).GetMember(context.Background(), 404)
		assert.Equal(t, core.KindEntityNotFound, core.KindOf(err))
	})

	t.Run("upstream failure", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer ts.Close()

		_, err := NewHTTPSource(ts.URL).GetMember(context.Background(), 7)
		assert.Equal(t, core.KindConnection, core.KindOf(err))
	})

	t.Run("undecodable body", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{broken`))
		}))
		defer ts.Close()

		_, err := NewHTTPSource(ts.URL).GetMember(context.Background(), 7)
		assert.Equal(t, core.KindSerialization, core.KindOf(err))
	})

	t.Run("unreachable service", func(t *testing.T) {
		_, err := NewHTTPSource("http://127.0.0.1:1").GetMember(context.Background(), 7)
		assert.Equal(t, core.KindConnection, core.KindOf(err))
	})
}
