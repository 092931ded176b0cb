package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/soultalk/internal/client/client"
	"github.com/dmitrijs2005/soultalk/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) ask(prompt string) (string, error) {
	return getSimpleText(a.reader, prompt, a.out)
}

// secret reads a password and hands it to fn, wiping the buffer afterwards.
func (a *App) secret(prompt string, fn func(string) error) error {
	pw, err := getPassword(prompt, a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)
	return fn(string(pw))
}

func (a *App) Register(ctx context.Context) error {
	email, err := a.ask("Enter email")
	if err != nil {
		return err
	}
	first, err := a.ask("Enter first name")
	if err != nil {
		return err
	}
	last, err := a.ask("Enter last name (optional)")
	if err != nil {
		return err
	}

	return a.secret("Enter password", func(pw string) error {
		if _, err := a.authService.Register(ctx, client.Registration{
			Email: email, Password: pw, FirstName: first, LastName: last,
		}); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Registered. Check your email for the verification code, then run 'verify'.")
		return nil
	})
}

func (a *App) Verify(ctx context.Context) error {
	email, err := a.ask("Enter email")
	if err != nil {
		return err
	}
	code, err := a.ask("Enter verification code")
	if err != nil {
		return err
	}

	u, signedIn, err := a.authService.VerifyEmail(ctx, email, code)
	if err != nil {
		return err
	}
	if signedIn {
		fmt.Fprintf(a.out, "Email verified. Signed in as %s\n", u.Email)
	} else {
		fmt.Fprintln(a.out, "Email verified.")
	}
	return nil
}

func (a *App) Resend(ctx context.Context) error {
	email, err := a.ask("Enter email")
	if err != nil {
		return err
	}
	if err := a.authService.ResendVerification(ctx, email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "If the account is awaiting verification, a new code has been sent.")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := a.ask("Enter email")
	if err != nil {
		return err
	}

	return a.secret("Enter password", func(pw string) error {
		s, err := a.authService.Login(ctx, email, pw)
		if errors.Is(err, client.ErrForbidden) {
			return fmt.Errorf("%w (run 'verify' or 'resend')", err)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Signed in as %s\n", s.Email)
		return nil
	})
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) LogoutAll(ctx context.Context) error {
	n, err := a.authService.LogoutAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged out from all devices (%d sessions)\n", n)
	return nil
}

func (a *App) Whoami(ctx context.Context) error {
	p, err := a.authService.Profile(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s %s <%s>\n", p.FirstName, p.LastName, p.Email)
	if p.Username != nil {
		fmt.Fprintf(a.out, "  username:        @%s\n", *p.Username)
	}
	fmt.Fprintf(a.out, "  email verified:  %t\n", p.EmailVerified)
	fmt.Fprintf(a.out, "  password set:    %t\n", p.HasPassword)
	fmt.Fprintf(a.out, "  active sessions: %d\n", p.ActiveSessions)
	for _, l := range p.LinkedAccounts {
		fmt.Fprintf(a.out, "  linked:          %s\n", l.Provider)
	}
	return nil
}

func (a *App) ForgotPassword(ctx context.Context) error {
	email, err := a.ask("Enter email")
	if err != nil {
		return err
	}
	if err := a.authService.ForgotPassword(ctx, email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "If the email exists, a password reset link has been sent.")
	return nil
}

func (a *App) ResetPassword(ctx context.Context) error {
	token, err := a.ask("Enter reset token")
	if err != nil {
		return err
	}
	return a.secret("Enter new password", func(pw string) error {
		if err := a.authService.ResetPassword(ctx, token, pw); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Password has been reset. Please sign in again.")
		return nil
	})
}

func (a *App) ChangePassword(ctx context.Context) error {
	return a.secret("Enter current password", func(current string) error {
		return a.secret("Enter new password", func(next string) error {
			if err := a.authService.ChangePassword(ctx, current, next); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Password changed. Please sign in again.")
			return nil
		})
	})
}
