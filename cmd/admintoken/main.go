// Command admintoken issues bearer tokens for the review API.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	jwttoken "kycgate/internal/jwt_token"
	"kycgate/internal/platform/config"
)

var (
	subjectFlag = &cli.StringFlag{
		Name:     "subject",
		Aliases:  []string{"s"},
		Usage:    "Reviewer name recorded as reviewed_by",
		Required: true,
	}
	ttlFlag = &cli.DurationFlag{
		Name:  "ttl",
		Usage: "Token lifetime",
		Value: config.DefaultAdminTokenTTL,
	}
	secretFlag = &cli.StringFlag{
		Name:    "secret",
		Usage:   "HS256 signing secret",
		EnvVars: []string{"SECRET_KEY"},
	}
	issuerFlag = &cli.StringFlag{
		Name:    "issuer",
		Usage:   "Token issuer",
		EnvVars: []string{"JWT_ISSUER"},
	}
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "admintoken"
	app.Usage = "Issue an admin bearer token for the KYC review API"
	app.Flags = []cli.Flag{subjectFlag, ttlFlag, secretFlag, issuerFlag}
	app.Action = issue
	return app
}

func issue(ctx *cli.Context) error {
	cfg := config.FromEnv()
	secret := cfg.Server.SecretKey
	if s := ctx.String(secretFlag.Name); s != "" {
		secret = s
	}
	issuer := cfg.Server.JWTIssuer
	if s := ctx.String(issuerFlag.Name); s != "" {
		issuer = s
	}
	if secret == config.DefaultSecretKey {
		fmt.Fprintln(ctx.App.ErrWriter, "warning: signing with the default development secret")
	}

	token, err := jwttoken.NewJWTService(secret, issuer).
		GenerateAdminToken(ctx.String(subjectFlag.Name), ctx.Duration(ttlFlag.Name))
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, token)
	return nil
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
