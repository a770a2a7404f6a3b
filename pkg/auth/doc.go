// Package auth provides authorization providers for hub clients.
//
// Every provider except StaticProvider is backed by a CredentialCache, which
// holds one credential, refreshes it shortly before it expires, and lets
// concurrent callers share a single refresh. Providers implement
// hub.AuthorizationProvider and, through the embedded cache,
// hub.CredentialInvalidator.
package auth
