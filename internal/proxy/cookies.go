package proxy

import (
	"context"
	"net/http"

	"github.com/vyrodovalexey/avarelay/internal/pipeline"
)

// Cookies returns a middleware that parses the Cookie header into the
// request's cookie list on the way in and serializes cookies attached
// to the response into Set-Cookie headers on the way out. It wraps the
// whole relay pipeline so every handler below sees parsed cookies.
func Cookies() pipeline.Middleware {
	return func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
			if raw := req.Header.Get("Cookie"); raw != "" {
				if cookies, err := http.ParseCookie(raw); err == nil {
					req = req.WithCookies(cookies)
				}
			}

			resp, err := next(ctx, req)
			if err != nil || resp == nil {
				return resp, err
			}

			if len(resp.Cookies) > 0 {
				if resp.Header == nil {
					resp.Header = http.Header{}
				}
				for _, c := range resp.Cookies {
					if v := c.String(); v != "" {
						resp.Header.Add("Set-Cookie", v)
					}
				}
				resp.Cookies = nil
			}
			return resp, nil
		}
	}
}
