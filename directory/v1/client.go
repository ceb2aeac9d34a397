package v1

import (
	"time"

	"axiapac.com/presence/security"
)

const serviceTokenTTL = 5 * time.Minute

type DirectoryClient struct {
	Transport *Transport
	Employees *EmployeeEndpoint
}

// NewDirectoryClient signs each request with a short-lived service identity
// token when secret is set.
func NewDirectoryClient(baseURL string, secret []byte) *DirectoryClient {
	var token TokenSource
	if len(secret) > 0 {
		token = func() (string, error) {
			return security.CreateIdentityToken(&security.Identity{
				Subject:  "presence-service",
				Name:     "presence",
				Provider: "service",
				Role:     "service",
			}, secret, serviceTokenTTL)
		}
	}
	t := NewTransport(baseURL, token)
	return &DirectoryClient{
		Transport: t,
		Employees: &EmployeeEndpoint{transport: t},
	}
}
