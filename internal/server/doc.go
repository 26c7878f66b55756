// Package server is the HTTP surface of pairauth-server: a chi router mounted under /api
// with the account endpoints, the profile endpoints guarded by middleware.Authenticate, a
// health check and the Prometheus scrape endpoint.
//
// Every handler answers with JSON. Errors are {"error": "..."}; authentication failures on
// guarded routes are always the uniform 401 written by the middleware package.
package server
