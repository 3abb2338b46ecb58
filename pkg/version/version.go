package version

// Version is the current version of the cognivox server
const Version = "0.4.2"

// UserAgent returns the User-Agent string for outbound HTTP requests
func UserAgent() string {
	return "cognivox/" + Version
}

// ServerHeader returns the Server header value for HTTP responses
func ServerHeader() string {
	return "cognivox/" + Version
}
