package middleware

import (
	"corerpc/envelope"
	"corerpc/rpcstatus"
)

// Auth enforces a MethodContract's RequiresAuth/Permissions metadata
// (§10.3) against the envelope-level metadata KV pairs a BEGIN
// carries — not a payload transform, so like Retry and Cache it is
// invoked directly by the engine's dispatch path rather than through
// the Middleware interface.
type Auth struct {
	// TokenKey is the metadata key carrying the caller's bearer token
	// on a BEGIN envelope.
	TokenKey string
	// Authenticate resolves a token to its granted permissions, or
	// returns an error if the token is invalid.
	Authenticate func(token string) (permissions []string, err error)
}

// NewAuth builds an Auth enforcer.
func NewAuth(tokenKey string, authenticate func(token string) ([]string, error)) *Auth {
	return &Auth{TokenKey: tokenKey, Authenticate: authenticate}
}

// Check validates an inbound call's metadata against call.Metadata's
// auth requirements, returning an rpcstatus error (PermissionDenied by
// way of InvalidArgument, since this core doesn't define a dedicated
// code) if unauthenticated or under-permissioned.
func (a *Auth) Check(call Call, metadata []envelope.KV) error {
	if !call.Metadata.RequiresAuth {
		return nil
	}
	token, ok := lookupMetadata(metadata, a.TokenKey)
	if !ok {
		return rpcstatus.New(rpcstatus.InvalidArgument, "missing credentials for %s.%s", call.Service, call.Method)
	}
	granted, err := a.Authenticate(token)
	if err != nil {
		return rpcstatus.Wrap(rpcstatus.InvalidArgument, err, "authentication failed for %s.%s", call.Service, call.Method)
	}
	for _, required := range call.Metadata.Permissions {
		if !contains(granted, required) {
			return rpcstatus.New(rpcstatus.InvalidArgument, "missing permission %q for %s.%s", required, call.Service, call.Method)
		}
	}
	return nil
}

func lookupMetadata(metadata []envelope.KV, key string) (string, bool) {
	for _, kv := range metadata {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
