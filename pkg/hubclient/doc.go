// Package hubclient provides the primary entry point for constructing a
// GitHub-style REST/GraphQL client that implements the hub.Client interface.
//
// It layers configuration, the HTTP connector, authorization and the retry
// governor on top of the request, response and pagination types defined in
// the hub package. Most applications import hubclient to build a client, then
// use hub.Execute, hub.Fetch and hub.Paginate with it.
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//	  "net/http"
//
//	  "github.com/fivetwenty-io/hubwire/pkg/hub"
//	  "github.com/fivetwenty-io/hubwire/pkg/hubclient"
//	)
//
//	type repo struct {
//	  Name string `json:"name"`
//	}
//
//	func example() {
//	  ctx := context.Background()
//
//	  cli, err := hubclient.New(ctx, &hub.Config{Token: "ghp_..."})
//	  if err != nil { log.Fatal(err) }
//
//	  req, err := cli.NewRequest(http.MethodGet, "/orgs/octo/repos", nil)
//	  if err != nil { log.Fatal(err) }
//
//	  repos, err := hub.Paginate(cli, req, hub.DecodeJSONItems[repo], hub.WithPageSize(100)).All(ctx)
//	  if err != nil { log.Fatal(err) }
//	  _ = repos
//	}
//
// # Endpoints
//
// An empty APIEndpoint selects https://api.github.com. Endpoints without a
// scheme get https://. When an OAuth2 grant is configured without a TokenURL,
// the token endpoint is derived from the API host: github.com for the public
// API, the same host for Enterprise Server.
//
// # Helpers
//
// The package also provides convenience constructors NewWithEndpoint,
// NewWithToken, NewWithApp and NewWithRefreshToken for common setups.
package hubclient
