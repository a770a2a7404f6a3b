// Package hub provides the types, interfaces, and helpers for talking to a
// GitHub-style REST/GraphQL service.
//
// # Overview
//
// The hub package defines the transport-facing building blocks: Request,
// Response with its body lifecycle, the Connector seam, rate-limit snapshots
// and policies, and the error taxonomy. A concrete client that wires a
// connector, authorization, and the retry governor together is provided by
// the hubclient package.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/hubwire/pkg/hub"
//	  "github.com/fivetwenty-io/hubwire/pkg/hubclient"
//	)
//
//	type repo struct {
//	  FullName string `json:"full_name"`
//	}
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := hubclient.New(ctx, &hub.Config{Token: "ghp_..."})
//	  if err != nil { log.Fatal(err) }
//
//	  req, err := cli.NewRequest("GET", "/repos/octo/hello", nil)
//	  if err != nil { log.Fatal(err) }
//
//	  r, found, err := hub.Execute(ctx, cli, req, hub.DecodeJSON[repo])
//	  if err != nil { log.Fatal(err) }
//	  if !found { log.Print("no such repository") }
//	  _ = r
//	}
//
// # Response bodies
//
// Success responses are read once by default so large payloads are streamed.
// Non-success responses are buffered on first read so that logging and error
// construction can both inspect them. Call SetBodyRereadable before the first
// read to buffer a success body. Execute and Fetch close the response on every
// path; callers of Dispatch own the response and must close it.
//
// # Pagination
//
// Paginate follows the Link rel="next" cursor lazily, one dispatch per page:
//
//	req, _ := cli.NewRequest("GET", "/orgs/octo/repos", nil)
//	repos := hub.Paginate(cli, req, hub.DecodeJSONItems[repo], hub.WithPageSize(100))
//	it := repos.Iterator(ctx)
//	for it.HasNext() {
//	  page, err := it.Next()
//	  if err != nil { break }
//	  _ = page.Items
//	}
//
// # Rate limits
//
// Primary rate limits and secondary (abuse) limits are handled by pluggable
// RateLimitHandler and AbuseLimitHandler policies. The defaults wait and
// retry; RateLimitFail and AbuseLimitFail surface the condition immediately.
//
// # Errors
//
// Every failure matches one class through errors.Is: ErrTransport,
// ErrRateLimitExhausted, ErrAbuseDetected, ErrNotFound,
// ErrCredentialRefreshFailed, or ErrProtocolViolation. Helpers such as
// IsNotFound and IsRateLimited make branching on them easy.
package hub
