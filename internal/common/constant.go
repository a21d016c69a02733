package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// TemporaryCodeMarker marks a human-facing code assigned locally while
// offline, before the remote store issues a canonical one.
const TemporaryCodeMarker = "TBC"
