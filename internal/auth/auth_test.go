package auth

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/SinTan1729/chhoto-url/internal/config"
)

var testNow = time.Unix(1_700_000_000, 0)

func newTestGate(cfg config.AuthConfig, publicMode bool, now *time.Time) *Gate {
	return NewGate(cfg, publicMode, NewTokenSigner([]byte("test-key")), func() time.Time { return *now }, zap.NewNop())
}

func TestSessionTokenRoundTrip(t *testing.T) {
	signer := NewTokenSigner([]byte("secret"))
	value := signer.Encode(SessionToken{IssuedAt: testNow})

	got, err := signer.Parse(value)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !got.IssuedAt.Equal(testNow) {
		t.Errorf("IssuedAt = %v, want %v", got.IssuedAt, testNow)
	}

	if _, err := NewTokenSigner([]byte("other")).Parse(value); err != ErrInvalidToken {
		t.Errorf("Parse() with other key error = %v", err)
	}
	for _, bad := range []string{"", "abc", "abc.def", value + "x", strings.Replace(value, ".", "", 1)} {
		if _, err := signer.Parse(bad); err == nil {
			t.Errorf("Parse(%q) should fail", bad)
		}
	}
}

func TestSessionTokenExpiry(t *testing.T) {
	token := SessionToken{IssuedAt: testNow}
	if !token.ValidAt(testNow.Add(SessionMaxAge-time.Second), SessionMaxAge) {
		t.Error("token should be valid just before 14 days")
	}
	if token.ValidAt(testNow.Add(SessionMaxAge), SessionMaxAge) {
		t.Error("token should expire exactly at 14 days")
	}
}

func TestAuthorize(t *testing.T) {
	now := testNow
	withPassword := config.AuthConfig{Password: "pw", PasswordSet: true, APIKey: "key", APIKeySet: true}
	gate := newTestGate(withPassword, false, &now)
	session := gate.IssueSession()

	tests := []struct {
		name     string
		cfg      config.AuthConfig
		public   bool
		creds    Credentials
		wantRole Role
		wantID   string
	}{
		{"correct api key", withPassword, false, Credentials{APIKey: "key", HasAPIKey: true}, RoleAdmin, ""},
		{"wrong api key", withPassword, true, Credentials{APIKey: "nope", HasAPIKey: true}, RoleDenied, "incorrect_api_key"},
		{"api key not configured", config.AuthConfig{}, false, Credentials{APIKey: "key", HasAPIKey: true}, RoleDenied, "api_key_not_configured"},
		{"valid session", withPassword, false, Credentials{SessionCookie: session}, RoleAdmin, ""},
		{"no password configured", config.AuthConfig{}, false, Credentials{}, RoleAdmin, ""},
		{"public mode", withPassword, true, Credentials{}, RolePublic, ""},
		{"denied", withPassword, false, Credentials{SessionCookie: "forged"}, RoleDenied, "not_logged_in"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestGate(tt.cfg, tt.public, &now).Authorize(tt.creds)
			if got.Role != tt.wantRole || got.MessageID != tt.wantID {
				t.Errorf("Authorize() = %+v, want role %v id %q", got, tt.wantRole, tt.wantID)
			}
		})
	}

	now = testNow.Add(SessionMaxAge)
	if gate.Authorize(Credentials{SessionCookie: session}).Role != RoleDenied {
		t.Error("expired session should be denied")
	}
}

func TestArgon2(t *testing.T) {
	encoded := EncodeArgon2("hunter2", []byte("0123456789abcdef"))
	if !strings.HasPrefix(encoded, "$argon2id$v=19$") {
		t.Fatalf("EncodeArgon2() = %q", encoded)
	}

	ok, err := VerifyArgon2(encoded, "hunter2")
	if err != nil || !ok {
		t.Errorf("VerifyArgon2(correct) = %v, %v", ok, err)
	}
	ok, err = VerifyArgon2(encoded, "hunter3")
	if err != nil || ok {
		t.Errorf("VerifyArgon2(wrong) = %v, %v", ok, err)
	}
	if _, err := VerifyArgon2("plaintext", "hunter2"); err == nil {
		t.Error("expected error for malformed hash")
	}

	now := testNow
	gate := newTestGate(config.AuthConfig{Password: encoded, PasswordSet: true, HashArgon2: true}, false, &now)
	if !gate.CheckPassword("hunter2") || gate.CheckPassword("hunter3") {
		t.Error("CheckPassword() with argon2 hash")
	}
}

func TestCheckPasswordPlain(t *testing.T) {
	now := testNow
	gate := newTestGate(config.AuthConfig{Password: "pw", PasswordSet: true}, false, &now)
	if !gate.CheckPassword("pw") || gate.CheckPassword("PW") || gate.CheckPassword("") {
		t.Error("CheckPassword() plain comparison")
	}
	open := newTestGate(config.AuthConfig{}, false, &now)
	if !open.CheckPassword("anything") {
		t.Error("CheckPassword() without configured password should pass")
	}
}

func TestAPIKey(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatal(err)
	}
	if len(key) != 128 {
		t.Errorf("len(key) = %d", len(key))
	}
	for _, r := range key {
		if !strings.ContainsRune(apiKeyAlphabet, r) {
			t.Fatalf("unexpected character %q", r)
		}
	}

	if IsStrongAPIKey("password") || IsStrongAPIKey(strings.Repeat("a", 64)) {
		t.Error("weak keys reported as strong")
	}
	if !IsStrongAPIKey("Abcdefghijklmnopqrstuvwxyz0123456789") {
		t.Error("strong key reported as weak")
	}
}

func TestRoleString(t *testing.T) {
	if RoleAdmin.String() != "admin" || RolePublic.String() != "public" || RoleDenied.String() != "nobody" {
		t.Error("unexpected role names")
	}
}
