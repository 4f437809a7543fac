package transport

import (
	"encoding/base64"
	"net/http"
)

// basicAuthRoundTripper attaches a precomputed Basic Authorization header.
type basicAuthRoundTripper struct {
	next   http.RoundTripper
	header string
}

func newBasicAuthRoundTripper(next http.RoundTripper, username, password string) *basicAuthRoundTripper {
	return &basicAuthRoundTripper{
		next:   next,
		header: "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password)),
	}
}

// RoundTrip implements http.RoundTripper.
func (rt *basicAuthRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", rt.header)
	return rt.next.RoundTrip(req)
}
