package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ResearchDigest/internal/cache"
	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/normalize"
	"ResearchDigest/internal/ports"
)

var fixedNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

const newsRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>news</title>
<item><title>Lidar fusion hits the road - Outlet</title><link>./articles/lidar</link><pubDate>Fri, 10 May 2024 08:00:00 GMT</pubDate><description>&lt;b&gt;Lidar&lt;/b&gt; fusion</description></item>
<item><title>Second story</title><link>https://news.example/second</link><pubDate>Fri, 10 May 2024 07:00:00 GMT</pubDate></item>
<item><title></title><link>https://news.example/untitled</link></item>
<item><title>Third story</title><link>https://news.example/third</link></item>
</channel></rss>`

const arxivAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>ArXiv Query</title>
<entry>
<id>http://arxiv.org/abs/2405.00001v1</id>
<published>2024-05-09T17:59:59Z</published>
<title>BEV Planning with
  Transformers</title>
<summary>  We study planning
  in bird's eye view. </summary>
<link href="http://arxiv.org/abs/2405.00001v1" rel="alternate" type="text/html"/>
</entry>
<entry>
<id>http://arxiv.org/abs/2405.00002v1</id>
<published>2024-05-08T10:00:00Z</published>
<title>Occupancy networks</title>
<summary>Dense 3D occupancy.</summary>
<link href="http://arxiv.org/abs/2405.00002v1" rel="alternate" type="text/html"/>
</entry>
</feed>`

const feedRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>feed</title>
<item><title>ADAS rollout expands</title><link>https://feed.example/adas</link><pubDate>Fri, 10 May 2024 09:00:00 GMT</pubDate></item>
<item><title>Bakery opens downtown</title><link>https://feed.example/bakery</link><pubDate>Fri, 10 May 2024 09:00:00 GMT</pubDate></item>
<item><title>Old autonomous driving news</title><link>https://feed.example/old</link><pubDate>Mon, 01 Jan 2024 09:00:00 GMT</pubDate></item>
<item><title>自动驾驶 新进展</title><link>https://feed.example/zh</link></item>
</channel></rss>`

type spyCache struct {
	inner *cache.Memory
	gets  atomic.Int32
	sets  atomic.Int32
}

func newSpyCache(t *testing.T) *spyCache {
	t.Helper()
	m, err := cache.NewMemory(16, func() time.Time { return fixedNow }, nil)
	require.NoError(t, err)
	return &spyCache{inner: m}
}

func (s *spyCache) Get(ctx context.Context, key string) ([]domain.Item, bool) {
	s.gets.Add(1)
	return s.inner.Get(ctx, key)
}

func (s *spyCache) Set(ctx context.Context, key string, items []domain.Item, ttl time.Duration) {
	s.sets.Add(1)
	s.inner.Set(ctx, key, items, ttl)
}

func (s *spyCache) TTL(ctx context.Context, key string) time.Duration {
	return s.inner.TTL(ctx, key)
}

func serve(t *testing.T, body string, hits *atomic.Int32, check func(*http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if check != nil {
			check(r)
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleNewsSearch(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	var gotQuery, gotUA string
	srv := serve(t, newsRSS, &hits, func(r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotUA = r.UserAgent()
	})
	spy := newSpyCache(t)
	g := NewGoogleNews(srv.URL, NewFetcher(time.Second, 0, "digest-test"), spy, normalize.New(nil))

	items, err := g.Search(context.Background(), "  lidar   fusion ", ports.Constraints{Window: 48 * time.Hour, Limit: 2, TTL: 20 * time.Minute})
	require.NoError(t, err)

	assert.Equal(t, "lidar fusion when:48h", gotQuery)
	assert.Equal(t, "digest-test", gotUA)
	require.Len(t, items, 2)
	assert.Equal(t, "/articles/lidar", items[0].URL)
	assert.Equal(t, GoogleNewsSource, items[0].Source)
	assert.Equal(t, "Lidar fusion", items[0].Summary)
	assert.NotNil(t, items[0].PublishedAt)
	assert.Equal(t, normalize.ItemID("/articles/lidar"), items[0].ID)
}

func TestGoogleNewsRepeatedQueryHitsCacheOnce(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := serve(t, newsRSS, &hits, nil)
	spy := newSpyCache(t)
	g := NewGoogleNews(srv.URL, NewFetcher(time.Second, 0, ""), spy, normalize.New(nil))
	c := ports.Constraints{Window: 12 * time.Hour, Limit: 3, TTL: 20 * time.Minute}

	first, err := g.Search(context.Background(), "lidar", c)
	require.NoError(t, err)
	second, err := g.Search(context.Background(), "LIDAR", c)
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load(), "upstream must be called once")
	assert.Equal(t, int32(1), spy.sets.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, 20*time.Minute, spy.TTL(context.Background(), cache.Key("gnews", 12*time.Hour, 3, "lidar")))
}

func TestGoogleNewsUpstreamErrorIsNotCached(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)
	spy := newSpyCache(t)
	g := NewGoogleNews(srv.URL, NewFetcher(time.Second, 0, ""), spy, normalize.New(nil))

	_, err := g.Search(context.Background(), "lidar", ports.Constraints{Window: time.Hour, Limit: 3, TTL: time.Minute})
	var status *StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, http.StatusTooManyRequests, status.Code)
	assert.Zero(t, spy.sets.Load())
}

func TestArxivSearch(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	var searchQuery, maxResults string
	srv := serve(t, arxivAtom, &hits, func(r *http.Request) {
		searchQuery = r.URL.Query().Get("search_query")
		maxResults = r.URL.Query().Get("max_results")
	})
	a := NewArxiv(srv.URL, NewFetcher(time.Second, 0, ""), nil, normalize.New(nil), func() time.Time { return fixedNow })

	items, err := a.Search(context.Background(), "bev planning", ports.Constraints{Window: 14 * 24 * time.Hour, Limit: 1, TTL: time.Minute})
	require.NoError(t, err)

	assert.Equal(t, "all:bev planning AND submittedDate:[202404260000 TO 202405102359]", searchQuery)
	assert.Equal(t, "1", maxResults)
	require.Len(t, items, 1)
	assert.Equal(t, "BEV Planning with Transformers", items[0].Title)
	assert.Equal(t, "We study planning in bird's eye view.", items[0].Summary)
	assert.Equal(t, "http://arxiv.org/abs/2405.00001v1", items[0].URL)
	assert.Equal(t, ArxivSource, items[0].Source)
	assert.Equal(t, domain.LangEN, items[0].Language)
}

func TestGitHubSearch(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	var q, auth string
	body := `{"items":[
		{"full_name":"org/bev","html_url":"https://github.com/org/bev","description":" BEV stack ","stargazers_count":42,"pushed_at":"2024-05-09T00:00:00Z"},
		{"full_name":"","html_url":"https://github.com/org/broken"}
	]}`
	srv := serve(t, body, &hits, func(r *http.Request) {
		q = r.URL.Query().Get("q")
		auth = r.Header.Get("Authorization")
	})
	g := NewGitHub(srv.URL, "tok", NewFetcher(time.Second, 0, ""), nil, func() time.Time { return fixedNow })

	items, err := g.Search(context.Background(), "autonomous driving", ports.Constraints{Window: 7 * 24 * time.Hour, Limit: 3})
	require.NoError(t, err)

	assert.Equal(t, "autonomous driving in:name,description,readme pushed:>2024-05-03", q)
	assert.Equal(t, "Bearer tok", auth)
	require.Len(t, items, 1)
	assert.Equal(t, "org/bev", items[0].Title)
	assert.Equal(t, "BEV stack", items[0].Summary)
	assert.Equal(t, 42, items[0].Stars)
	assert.Equal(t, GitHubSource, items[0].Source)
}

func TestGitHubMalformedJSON(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := serve(t, "{not json", &hits, nil)
	g := NewGitHub(srv.URL, "", NewFetcher(time.Second, 0, ""), nil, nil)

	_, err := g.Search(context.Background(), "adas", ports.Constraints{Limit: 3})
	assert.Error(t, err)
}

func TestFeedAppliesAllowListAndWindow(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := serve(t, feedRSS, &hits, nil)
	f := NewFeed(srv.URL+"/rss", "news", domain.LangEN, NewFetcher(time.Second, 0, ""), nil, normalize.New(nil), func() time.Time { return fixedNow })

	items, err := f.Search(context.Background(), "ignored", ports.Constraints{Window: 48 * time.Hour, Limit: 5})
	require.NoError(t, err)

	titles := make([]string, 0, len(items))
	for _, it := range items {
		titles = append(titles, it.Title)
		assert.Equal(t, srv.URL+"/rss", it.Source)
	}
	assert.Equal(t, []string{"ADAS rollout expands", "自动驾驶 新进展"}, titles)
	assert.Equal(t, "news", f.Kind())
}

func TestFeedMalformedXML(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := serve(t, "plain text, not a feed", &hits, nil)
	f := NewFeed(srv.URL, "news", domain.LangEN, NewFetcher(time.Second, 0, ""), nil, normalize.New(nil), nil)

	items, err := f.Search(context.Background(), "", ports.Constraints{Limit: 2})
	assert.Error(t, err)
	assert.Empty(t, items)
}

type stubStore struct {
	ports.ItemStore
	query string
	limit int
	items []domain.Item
	err   error
}

func (s *stubStore) SearchFullText(_ context.Context, query string, limit int) ([]domain.Item, error) {
	s.query, s.limit = query, limit
	return s.items, s.err
}

func TestLocalStore(t *testing.T) {
	t.Parallel()

	st := &stubStore{items: []domain.Item{{ID: "1", Title: "t", URL: "u"}}}
	ls := NewLocalStore(st)

	items, err := ls.Search(context.Background(), "bev", ports.Constraints{Limit: 6})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "bev", st.query)
	assert.Equal(t, 6, st.limit)

	st.err = errors.New("db down")
	_, err = ls.Search(context.Background(), "bev", ports.Constraints{Limit: 6})
	assert.ErrorContains(t, err, "db down")

	items, err = ls.Search(context.Background(), "   ", ports.Constraints{Limit: 6})
	assert.NoError(t, err)
	assert.Empty(t, items)
}

func TestHostLimiterSpacesRequests(t *testing.T) {
	t.Parallel()

	l := NewHostLimiter(30 * time.Millisecond)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx, "https://a.example/x"))
	}
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	assert.Error(t, l.Wait(ctx, "not-a-url"))
}

func TestHostLimiterHonorsContext(t *testing.T) {
	t.Parallel()

	l := NewHostLimiter(time.Hour)
	require.NoError(t, l.Wait(context.Background(), "https://b.example"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "https://b.example")
	assert.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "missing host"))
}
