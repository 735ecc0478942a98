package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/jonwraymond/notegate/auth"
	"github.com/jonwraymond/notegate/config"
)

// resetTokenTTL is the lifetime of password-reset tokens.
const resetTokenTTL = 15 * time.Minute

var errMissingSubject = errors.New("token: -subject is required")

// runToken prints a signed token. Login happens outside this service, so
// operators use it to mint a first token for a user id.
func runToken(args []string, cfg *config.Config, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "", "user id placed in the sub claim")
	purpose := fs.String("purpose", string(auth.PurposeAccess), "token purpose: access, refresh or reset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return errMissingSubject
	}

	p := auth.Purpose(*purpose)
	var ttl time.Duration
	switch p {
	case auth.PurposeAccess:
		ttl = cfg.AccessTokenTTL()
	case auth.PurposeRefresh:
		ttl = cfg.RefreshTokenTTL()
	case auth.PurposeReset:
		ttl = resetTokenTTL
	default:
		return fmt.Errorf("token: unknown purpose %q", *purpose)
	}

	codec, err := auth.NewTokenCodec(auth.TokenCodecConfig{Secret: []byte(cfg.SecretKey)})
	if err != nil {
		return err
	}
	token, err := codec.IssueFor(*subject, p, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
