package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// GuestOwnerPrefix marks owner ids minted for guest sessions.
const GuestOwnerPrefix = "guest:"
