package service_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/service"
	"github.com/aussiebroadwan/twostep/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/twostep/internal/auth/store/memory"
	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/aussiebroadwan/twostep/pkg/idx"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
)

const (
	johnSecret = "JBSWY3DPEHPK3PXP"
	issuer     = "twostep-test"
)

var (
	johnHash string
	annaHash string
	svcHash  string
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "twostep-service")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	// Hashing is deliberately slow; do it once for the package.
	for pw, dst := range map[string]*string{"pass": &johnHash, "qwerty": &annaHash, "s3cret": &svcHash} {
		if *dst, err = cryptox.HashPassword(pw); err != nil {
			panic(err)
		}
	}

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// clock is a settable time source shared by the services under test.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store      *sqlite.Store
	backend    *memory.Challenges
	clock      *clock
	keys       *jwtx.KeyManager
	challenges *service.ChallengeService
	tokens     *service.TokenService
	password   *service.PasswordGrant
	mfa        *service.MFAGrant
	dispatcher *service.GrantDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	enabled := time.Now().UTC()
	secret := johnSecret
	for _, u := range []domain.User{
		{
			ID:           idx.New().String(),
			Username:     "john",
			PasswordHash: johnHash,
			Authorities:  []string{"ROLE_USER"},
			MFAEnabled:   &enabled,
			MFASecret:    &secret,
		},
		{
			ID:           idx.New().String(),
			Username:     "anna",
			PasswordHash: annaHash,
			Authorities:  []string{"ROLE_USER", "ROLE_ADMIN"},
		},
	} {
		require.NoError(t, st.Users().UpsertUser(ctx, u))
	}
	for _, c := range []domain.Client{
		{ID: "web", Name: "Web", Scopes: []string{"profile", "email"}},
		{ID: "cli", Name: "CLI", Scopes: []string{"profile"}},
		{ID: "svc", Name: "Service", SecretHash: svcHash, Scopes: []string{"profile"}},
	} {
		require.NoError(t, st.Clients().UpsertClient(ctx, c))
	}

	keys, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    issuer,
		NumKeys:   1,
	})
	require.NoError(t, err)

	clk := &clock{t: time.Now().UTC()}
	backend := memory.NewChallenges()
	challenges := &service.ChallengeService{Store: backend, Now: clk.Now}
	tokens := &service.TokenService{
		KeyManager: keys,
		Store:      st,
		Challenges: challenges,
		Issuer:     issuer,
		Now:        clk.Now,
	}
	password := &service.PasswordGrant{
		Authenticator: &service.CredentialAuthenticator{Users: st.Users()},
		Challenges:    challenges,
		Tokens:        tokens,
	}
	mfa := &service.MFAGrant{
		Users:      st.Users(),
		Challenges: challenges,
		Tokens:     tokens,
		Now:        clk.Now,
	}

	return &fixture{
		store:      st,
		backend:    backend,
		clock:      clk,
		keys:       keys,
		challenges: challenges,
		tokens:     tokens,
		password:   password,
		mfa:        mfa,
		dispatcher: &service.GrantDispatcher{
			Clients:  &service.ClientAuthenticator{Clients: st.Clients()},
			Password: password,
			MFA:      mfa,
			Tokens:   tokens,
		},
	}
}

// code returns john's TOTP code at the fixture's current time.
func (f *fixture) code(t *testing.T) string {
	t.Helper()
	return codeAt(t, johnSecret, f.clock.Now())
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    service.TOTPPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

// mfaToken runs the password step for john and returns the mfa_token.
func (f *fixture) mfaToken(t *testing.T, clientID string, scopes ...string) string {
	t.Helper()

	_, err := f.dispatcher.Dispatch(context.Background(), service.TokenRequest{
		GrantType: service.GrantTypePassword,
		Username:  "john",
		Password:  "pass",
		ClientID:  clientID,
		Scopes:    scopes,
	})
	var mfaErr *service.MFARequiredError
	require.ErrorAs(t, err, &mfaErr)
	return mfaErr.MFAToken
}

func (f *fixture) verify(t *testing.T, access string) jwtx.Claims {
	t.Helper()
	claims, err := f.keys.Verifier.Verify(access)
	require.NoError(t, err)
	return claims
}
