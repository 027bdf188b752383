package middleware

import "corerpc/rpcstatus"

func errRateLimited(call Call) error {
	return rpcstatus.New(rpcstatus.Unavailable, "rate limit exceeded for %s.%s", call.Service, call.Method)
}
