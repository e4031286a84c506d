package ai

import "strings"

// Fixed replies returned in place of generated text. They read as ordinary chat
// messages so a failed turn never halts the conversation.
const (
	MissingCredentialReply = "API Key not found. Please set it in the settings."
	InvalidCredentialReply = "Your API Key is invalid. Please check it in the settings."
	OriginRestrictedReply  = "[System message: This API key is restricted and cannot be used from this origin. Please check the key's restrictions in the settings.]"
	RateLimitedReply       = "[System message: The chat is temporarily paused due to too many requests. It will resume shortly.]"
	ConnectionErrorReply   = "[System message: A connection error occurred. Please check your connection or API key.]"
)

// Kind classifies a generation failure.
type Kind int

const (
	KindConnectivity Kind = iota
	KindMissingCredential
	KindInvalidCredential
	KindOriginRestricted
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindMissingCredential:
		return "missing_credential"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindOriginRestricted:
		return "origin_restricted"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "connectivity"
	}
}

// Reply maps a failure kind to the text shown in the transcript.
func (k Kind) Reply() string {
	switch k {
	case KindMissingCredential:
		return MissingCredentialReply
	case KindInvalidCredential:
		return InvalidCredentialReply
	case KindOriginRestricted:
		return OriginRestrictedReply
	case KindRateLimited:
		return RateLimitedReply
	default:
		return ConnectionErrorReply
	}
}

var (
	rateLimitMarkers = []string{
		"429",
		"resource_exhausted",
		"toomanyrequests",
		"too many requests",
		"ratelimitexceeded",
		"rate limit exceeded",
	}
	originMarkers = []string{
		"api_key_http_referrer_blocked",
		"referer",
		"referrer",
		"requests from this origin are blocked",
	}
	invalidKeyMarkers = []string{
		"api key not valid",
		"api_key_invalid",
		"invalid api key",
		"invalidapikey",
		"authenticationerror",
		"status code: 401",
		"unauthorized",
	}
)

// Classify inspects the provider error text. SDK errors differ between providers
// but all of them carry the status or code in their message.
func Classify(err error) Kind {
	if err == nil {
		return KindConnectivity
	}
	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, rateLimitMarkers):
		return KindRateLimited
	case containsAny(msg, originMarkers):
		return KindOriginRestricted
	case containsAny(msg, invalidKeyMarkers):
		return KindInvalidCredential
	default:
		return KindConnectivity
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
