package cachekey

import (
	"encoding/json"
	"testing"

	"github.com/pario-ai/sift/pkg/apperr"
	"github.com/pario-ai/sift/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustKey(t *testing.T, q string, f *models.FilterSet, page, limit int) string {
	t.Helper()
	k, err := Normalize(q, f, page, limit)
	require.NoError(t, err)
	return k
}

func TestNormalizeDeterministic(t *testing.T) {
	f := &models.FilterSet{ContentType: "web"}
	assert.Equal(t, mustKey(t, "golang channels", f, 1, 10), mustKey(t, "golang channels", f, 1, 10))
}

func TestNormalizeCaseAndWhitespace(t *testing.T) {
	a := mustKey(t, "Golang  Channels", nil, 1, 10)
	b := mustKey(t, "  golang channels\t", nil, 1, 10)
	assert.Equal(t, a, b)
}

func TestNormalizeFilterOrderIndependent(t *testing.T) {
	var a, b models.FilterSet
	require.NoError(t, json.Unmarshal([]byte(`{"content_type":"web","sort":"date","domain":"go.dev"}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"domain":"go.dev","sort":"date","content_type":"web"}`), &b))
	assert.Equal(t, mustKey(t, "q", &a, 1, 10), mustKey(t, "q", &b, 1, 10))

	p1, err := models.ParseFilterSet(map[string]string{"sort": "date", "content_type": "web"})
	require.NoError(t, err)
	p2, err := models.ParseFilterSet(map[string]string{"content_type": "web", "sort": "date"})
	require.NoError(t, err)
	assert.Equal(t, mustKey(t, "q", p1, 1, 10), mustKey(t, "q", p2, 1, 10))
}

func TestNormalizeFilterValuesFolded(t *testing.T) {
	a := mustKey(t, "q", &models.FilterSet{ContentType: "WEB"}, 1, 10)
	b := mustKey(t, "q", &models.FilterSet{ContentType: "web"}, 1, 10)
	assert.Equal(t, a, b)
}

func TestNormalizeNilAndEmptyFiltersEqual(t *testing.T) {
	assert.Equal(t, mustKey(t, "q", nil, 1, 10), mustKey(t, "q", &models.FilterSet{}, 1, 10))
}

func TestNormalizeDistinguishesInputs(t *testing.T) {
	base := mustKey(t, "golang", &models.FilterSet{ContentType: "web"}, 1, 10)
	others := []string{
		mustKey(t, "golang", &models.FilterSet{ContentType: "news"}, 1, 10),
		mustKey(t, "golang", &models.FilterSet{ContentType: "web"}, 2, 10),
		mustKey(t, "golang", &models.FilterSet{ContentType: "web"}, 1, 20),
		mustKey(t, "golang rust", &models.FilterSet{ContentType: "web"}, 1, 10),
	}
	for _, k := range others {
		assert.NotEqual(t, base, k)
	}
}

func TestNormalizeDelimiterInQuery(t *testing.T) {
	// A query that embeds what looks like a serialized filter must not
	// collide with the real filter.
	a := mustKey(t, "a|1:1", nil, 1, 10)
	b := mustKey(t, "a", nil, 1, 10)
	assert.NotEqual(t, a, b)

	c := mustKey(t, "x", &models.FilterSet{Domain: "a|b"}, 1, 10)
	d := mustKey(t, "x", &models.FilterSet{Domain: "a", SortOrder: "b"}, 1, 10)
	assert.NotEqual(t, c, d)
}

func TestNormalizeEmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := Normalize(q, nil, 1, 10)
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
	}
}

func TestNormalizeNamespace(t *testing.T) {
	assert.Contains(t, mustKey(t, "q", nil, 1, 10), Namespace+"|")
}
