package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/require"

	"social-autopilot/internal/models"
)

func TestMatchURL(t *testing.T) {
	tests := []struct {
		url     string
		pattern string
		want    bool
	}{
		{"https://www.tiktok.com/foryou?lang=en", "/foryou", true},
		{"https://www.tiktok.com/foryou", "**/foryou*", true},
		{"https://www.tiktok.com/login", "**/foryou*", false},
		{"https://www.tiktok.com/login", "", true},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, MatchURL(tt.url, tt.pattern), "%s ~ %s", tt.url, tt.pattern)
	}
}

func TestWaitForURLMatches(t *testing.T) {
	urls := []string{"https://x.test/login", "https://x.test/login", "https://x.test/foryou"}
	calls := 0
	current := func(context.Context) (string, error) {
		u := urls[calls]
		if calls < len(urls)-1 {
			calls++
		}
		return u, nil
	}

	err := waitForURL(context.Background(), current, "/foryou", time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestWaitForURLCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	current := func(context.Context) (string, error) {
		return "", errors.New("page detached")
	}

	err := waitForURL(ctx, current, "/foryou", time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPacerDelayBounds(t *testing.T) {
	p := Pacer{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond}
	for i := 0; i < 100; i++ {
		d := p.Delay()
		require.GreaterOrEqual(t, d, p.Min)
		require.Less(t, d, p.Max)
	}
	require.Equal(t, 5*time.Millisecond, Pacer{Min: 5 * time.Millisecond}.Delay())
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	require.NoError(t, Sleep(context.Background(), 0))
}

type scrollPage struct {
	Page
	scrolls []float64
}

func (p *scrollPage) Scroll(_ context.Context, dy float64) error {
	p.scrolls = append(p.scrolls, dy)
	return nil
}

func TestHumanScroll(t *testing.T) {
	page := &scrollPage{}
	require.NoError(t, HumanScroll(context.Background(), page, Pacer{}, 3))
	require.Len(t, page.scrolls, 3)
	for _, dy := range page.scrolls {
		require.GreaterOrEqual(t, dy, 200.0)
		require.Less(t, dy, 600.0)
	}
}

func TestCookieConversion(t *testing.T) {
	in := []*proto.NetworkCookie{
		{Name: "sid", Value: "1", Domain: ".x.test", Path: "/", Expires: 1893456000, HTTPOnly: true, Secure: true, SameSite: proto.NetworkCookieSameSiteLax},
		{Name: "tmp", Value: "2", Domain: ".x.test", Path: "/", Session: true},
		nil,
	}

	cookies := toModelCookies(in)
	require.Len(t, cookies, 2)
	require.Equal(t, "Lax", cookies[0].SameSite)
	require.Equal(t, float64(1893456000), cookies[0].Expires)
	require.Equal(t, float64(-1), cookies[1].Expires)

	params := toCookieParams(cookies)
	require.Len(t, params, 2)
	require.Equal(t, proto.TimeSinceEpoch(1893456000), params[0].Expires)
	require.Equal(t, proto.NetworkCookieSameSiteLax, params[0].SameSite)
	require.Zero(t, params[1].Expires)
}

func TestOriginOf(t *testing.T) {
	require.Equal(t, "https://www.x.test", originOf("https://www.x.test/foryou?a=1"))
	require.Equal(t, "", originOf("about:blank"))
	require.Equal(t, "", originOf("::"))
}

func TestMergeOrigins(t *testing.T) {
	prev := []models.OriginStorage{
		{Origin: "https://a.test", LocalStorage: map[string]string{"k": "old"}},
		{Origin: "https://b.test", LocalStorage: map[string]string{"k": "b"}},
	}
	fresh := []models.OriginStorage{{Origin: "https://a.test", LocalStorage: map[string]string{"k": "new"}}}

	merged := mergeOrigins(prev, fresh)
	require.Len(t, merged, 2)
	require.Equal(t, "new", merged[0].LocalStorage["k"])
	require.Equal(t, "https://b.test", merged[1].Origin)
}
