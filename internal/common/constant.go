package common

// AuthorizationHeaderName carries the bearer access token on HTTP requests.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the expected prefix of the Authorization header value.
const BearerScheme = "Bearer "

// UserAgentHeaderName is recorded as the device descriptor of a session.
const UserAgentHeaderName = "User-Agent"
