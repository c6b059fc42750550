package unsubscribe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"testing"
)

func TestTokenMatchesHMACPrefix(t *testing.T) {
	t.Parallel()

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("a@example.org"))
	want := hex.EncodeToString(mac.Sum(nil))[:24]

	if got := Token("secret", "a@example.org"); got != want {
		t.Fatalf("Token = %s, want %s", got, want)
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	tok := Token("k", "a@example.org")
	cases := []struct {
		name  string
		email string
		token string
		want  bool
	}{
		{"valid", "a@example.org", tok, true},
		{"other email", "b@example.org", tok, false},
		{"truncated", "a@example.org", tok[:10], false},
		{"empty email", "", tok, false},
		{"wrong secret", "a@example.org", Token("other", "a@example.org"), false},
	}
	for _, tc := range cases {
		if got := Verify("k", tc.email, tc.token); got != tc.want {
			t.Fatalf("%s: Verify = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestLink(t *testing.T) {
	t.Parallel()

	if got := Link("", "k", "a@example.org"); got != "" {
		t.Fatalf("expected empty link without base url, got %s", got)
	}

	raw := Link("https://digest.example/", "k", "a+b@example.org")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if u.Path != "/unsubscribe" {
		t.Fatalf("unexpected path %s", u.Path)
	}
	if u.Query().Get("email") != "a+b@example.org" {
		t.Fatalf("email not escaped: %s", raw)
	}
	if !Verify("k", "a+b@example.org", u.Query().Get("token")) {
		t.Fatalf("link token does not verify")
	}
}
