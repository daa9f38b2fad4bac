package browser

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"social-autopilot/internal/models"
)

func snapshotStorage(page *rod.Page, store string) map[string]string {
	js := fmt.Sprintf(`() => {
		try {
			const out = {};
			for (const key of Object.keys(%s)) {
				out[key] = %s.getItem(key);
			}
			return JSON.stringify(out);
		} catch (e) {
			return "{}";
		}
	}`, store, store)

	res, err := page.Evaluate(&rod.EvalOptions{
		JS:           js,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil || res == nil || res.Value.Nil() {
		return nil
	}
	out := map[string]string{}
	if err := json.Unmarshal([]byte(res.Value.String()), &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}

func restoreStorage(page *rod.Page, origin models.OriginStorage) error {
	local, err := json.Marshal(origin.LocalStorage)
	if err != nil {
		return err
	}
	session, err := json.Marshal(origin.SessionStorage)
	if err != nil {
		return err
	}
	_, err = page.Evaluate(&rod.EvalOptions{
		JS: `(local, session) => {
			try {
				Object.entries(JSON.parse(local || "{}") || {}).forEach(([k, v]) => localStorage.setItem(k, v));
			} catch (e) {}
			try {
				Object.entries(JSON.parse(session || "{}") || {}).forEach(([k, v]) => sessionStorage.setItem(k, v));
			} catch (e) {}
		}`,
		JSArgs:       []interface{}{string(local), string(session)},
		ByValue:      true,
		AwaitPromise: true,
		UserGesture:  true,
	})
	return err
}

func toModelCookies(cookies []*proto.NetworkCookie) []models.Cookie {
	out := make([]models.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		expires := float64(c.Expires)
		if c.Session {
			expires = -1
		}
		out = append(out, models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out
}

func toCookieParams(cookies []models.Cookie) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		params = append(params, p)
	}
	return params
}

// originOf returns scheme://host of raw, or "" when raw is not an http(s) URL.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// mergeOrigins replaces entries of prev whose origin appears in fresh.
func mergeOrigins(prev, fresh []models.OriginStorage) []models.OriginStorage {
	seen := make(map[string]struct{}, len(fresh))
	out := make([]models.OriginStorage, 0, len(prev)+len(fresh))
	for _, o := range fresh {
		seen[o.Origin] = struct{}{}
		out = append(out, o)
	}
	for _, o := range prev {
		if _, ok := seen[o.Origin]; ok {
			continue
		}
		out = append(out, o)
	}
	return out
}
