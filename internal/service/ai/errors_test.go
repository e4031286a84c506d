package ai

import (
	"errors"
	"testing"

	"github.com/zhouzirui/ai-collective/backend/internal/model/chat"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		msg  string
		want Kind
	}{
		{"error, status code: 429, message: slow down", KindRateLimited},
		{"RESOURCE_EXHAUSTED", KindRateLimited},
		{"code=RateLimitExceeded.EndpointRPMExceeded", KindRateLimited},
		{"API key not valid. Please pass a valid API key.", KindInvalidCredential},
		{"error, status code: 401, message: AuthenticationError", KindInvalidCredential},
		{"API_KEY_HTTP_REFERRER_BLOCKED", KindOriginRestricted},
		{"context deadline exceeded", KindConnectivity},
	}
	for _, tc := range cases {
		if got := Classify(errors.New(tc.msg)); got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.msg, got, tc.want)
		}
	}
}

func TestKindReplies(t *testing.T) {
	seen := map[string]Kind{}
	for _, k := range []Kind{KindConnectivity, KindMissingCredential, KindInvalidCredential, KindOriginRestricted, KindRateLimited} {
		reply := k.Reply()
		if reply == "" {
			t.Fatalf("%s has no reply", k)
		}
		if other, dup := seen[reply]; dup {
			t.Fatalf("%s and %s share a reply", k, other)
		}
		seen[reply] = k
	}
}

func TestFormatHistoryKeepsLastFifteen(t *testing.T) {
	var messages []chat.Message
	for i := 0; i < 20; i++ {
		messages = append(messages, chat.Message{Author: "A", Text: string(rune('a' + i))})
	}

	got := FormatHistory(messages, DefaultHistoryLimit)
	want := "A: f\nA: g\nA: h\nA: i\nA: j\nA: k\nA: l\nA: m\nA: n\nA: o\nA: p\nA: q\nA: r\nA: s\nA: t"
	if got != want {
		t.Fatalf("unexpected history:\n%s", got)
	}
	if FormatHistory(nil, DefaultHistoryLimit) != "" {
		t.Fatal("expected empty history")
	}
}
