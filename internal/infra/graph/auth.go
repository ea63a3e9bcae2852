package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
)

// AuthOptions configures the device-code sign-in flow.
type AuthOptions struct {
	ClientID string
	Tenant   string        // "consumers", "common", or a tenant ID
	Timeout  time.Duration // max time to wait for the user to sign in
}

// Notify is called with the verification URI and user code the user must
// enter to complete sign-in.
type Notify func(verificationURI, userCode string)

// Authenticate runs the device authorization flow and returns a token
// source that silently refreshes the credential for the rest of the run.
// It honors ctx cancellation and the configured sign-in timeout.
func Authenticate(ctx context.Context, opts AuthOptions, notify Notify) (oauth2.TokenSource, error) {
	if opts.ClientID == "" {
		return nil, fmt.Errorf("%w: client id not configured", ErrAuth)
	}
	tenant := opts.Tenant
	if tenant == "" {
		tenant = "consumers"
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Minute
	}

	authority := fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0", tenant)
	cfg := &oauth2.Config{
		ClientID: opts.ClientID,
		Scopes:   []string{"Mail.ReadWrite", "offline_access"},
		Endpoint: oauth2.Endpoint{
			AuthURL:       authority + "/authorize",
			TokenURL:      authority + "/token",
			DeviceAuthURL: authority + "/devicecode",
		},
	}

	da, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: start device flow: %v", ErrAuth, err)
	}

	if notify != nil {
		notify(da.VerificationURI, da.UserCode)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tok, err := cfg.DeviceAccessToken(waitCtx, da)
	if err != nil {
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: sign-in timed out after %s", ErrAuth, timeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	slog.Default().With("component", "auth").Info("signed in", "expires", tok.Expiry)

	// Refresh happens lazily against the background context so a canceled
	// run context cannot poison later token renewals mid-flight.
	return cfg.TokenSource(context.Background(), tok), nil
}
