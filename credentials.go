package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	apiclient "github.com/sacloud/api-client-go"
	"github.com/sacloud/api-client-go/profile"
	"github.com/sirupsen/logrus"

	"github.com/hnakamur/awsv4sign-util/sigv4"
)

// Globals are the flags shared by every command. Credential precedence:
// explicit keys, then the sacloud profile, then the AWS default chain.
type Globals struct {
	Debug bool `help:"Enable debug logging."`

	Service       string `help:"Service name for the credential scope. Inferred from the URL when empty."`
	Region        string `help:"Region for the credential scope. Inferred from the URL when empty."`
	AccessKey     string `env:"AWS_ACCESS_KEY_ID" help:"Access key ID."`
	SecretKey     string `env:"AWS_SECRET_ACCESS_KEY" help:"Secret access key."`
	SessionToken  string `env:"AWS_SESSION_TOKEN" help:"Session token for temporary credentials."`
	Profile       string `help:"sacloud profile name."`
	AWSProfile    string `name:"aws-profile" help:"AWS shared config profile name."`
	FromAWSConfig bool   `name:"from-aws-config" help:"Resolve credentials from the AWS default chain."`
	Datetime      string `help:"Fixed signing timestamp in 20060102T150405Z format."`
	AllHeaders    bool   `help:"Sign all request headers."`
	SingleEncode  bool   `help:"Percent-encode the canonical path only once."`
}

func (g *Globals) signingOptions() (sigv4.Options, error) {
	opts := sigv4.Options{
		Service:      g.Service,
		Region:       g.Region,
		AllHeaders:   g.AllHeaders,
		SingleEncode: g.SingleEncode,
	}
	if g.Datetime != "" {
		t, err := time.Parse("20060102T150405Z", g.Datetime)
		if err != nil {
			return sigv4.Options{}, fmt.Errorf("parse datetime: %s", err)
		}
		opts.Time = t
	}
	return opts, nil
}

func (g *Globals) newSigner(ctx context.Context, logger *logrus.Logger) (*sigv4.Signer, error) {
	creds, err := g.resolveCredentials(ctx, logger)
	if err != nil {
		return nil, err
	}
	return sigv4.New(creds)
}

func (g *Globals) resolveCredentials(ctx context.Context, logger *logrus.Logger) (sigv4.Credentials, error) {
	if g.AccessKey != "" || g.SecretKey != "" {
		logger.WithField("source", "flags").Debug("resolved credentials")
		return sigv4.Credentials{
			AccessKeyID:     g.AccessKey,
			SecretAccessKey: g.SecretKey,
			SessionToken:    g.SessionToken,
		}, nil
	}
	if g.Profile != "" {
		prof, err := loadProfile(g.Profile)
		if err != nil {
			return sigv4.Credentials{}, err
		}
		logger.WithFields(logrus.Fields{
			"source":  "sacloud profile",
			"profile": g.Profile,
		}).Debug("resolved credentials")
		return sigv4.Credentials{
			AccessKeyID:     prof.AccessToken,
			SecretAccessKey: prof.AccessTokenSecret,
		}, nil
	}
	if g.FromAWSConfig || g.AWSProfile != "" {
		var optFns []func(*config.LoadOptions) error
		if g.AWSProfile != "" {
			optFns = append(optFns, config.WithSharedConfigProfile(g.AWSProfile))
		}
		cfg, err := config.LoadDefaultConfig(ctx, optFns...)
		if err != nil {
			return sigv4.Credentials{}, fmt.Errorf("load aws config: %s", err)
		}
		creds, err := cfg.Credentials.Retrieve(ctx)
		if err != nil {
			return sigv4.Credentials{}, fmt.Errorf("retrieve aws credentials: %s", err)
		}
		logger.WithField("source", "aws config").Debug("resolved credentials")
		return sigv4.Credentials{
			AccessKeyID:     creds.AccessKeyID,
			SecretAccessKey: creds.SecretAccessKey,
			SessionToken:    creds.SessionToken,
		}, nil
	}
	return sigv4.Credentials{}, errors.New("no credentials: set --access-key and --secret-key, --profile, or --from-aws-config")
}

func loadProfile(profileName string) (*profile.ConfigValue, error) {
	opts, err := apiclient.OptionsFromProfile(profileName)
	if err != nil {
		return nil, err
	}
	return opts.ProfileConfigValue(), nil
}
