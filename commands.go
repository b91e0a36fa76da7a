package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hnakamur/awsv4sign-util/awsclient"
	"github.com/hnakamur/awsv4sign-util/sigv4"
)

type SignCmd struct {
	URL          string   `arg:"" name:"url" help:"Request URL to sign."`
	Method       string   `help:"HTTP method. Defaults to GET, or POST with a body."`
	Header       []string `short:"H" help:"Request header as name:value. Repeatable."`
	Data         string   `short:"d" help:"Request body."`
	SignQuery    bool     `help:"Put the signature in the query string instead of headers."`
	Canonical    bool     `help:"Also print the canonical request."`
	StringToSign bool     `help:"Also print the string to sign."`
}

func (c *SignCmd) Run(ctx *Context) error {
	signer, err := ctx.Globals.newSigner(context.Background(), ctx.Logger)
	if err != nil {
		return err
	}
	opts, err := ctx.Globals.signingOptions()
	if err != nil {
		return err
	}
	opts.SignQuery = c.SignQuery
	if opts.Time.IsZero() {
		// Pin one timestamp so the debug output matches the signature.
		opts.Time = time.Now()
	}
	header, err := parseHeaderFlags(c.Header)
	if err != nil {
		return err
	}
	req := &sigv4.Request{
		Method:  c.Method,
		URL:     c.URL,
		Header:  header,
		Body:    []byte(c.Data),
		Options: opts,
	}
	if c.Canonical {
		canonical, err := signer.CanonicalString(req)
		if err != nil {
			return err
		}
		fmt.Printf("canonical request:\n%s\n\n", canonical)
	}
	if c.StringToSign {
		stringToSign, err := signer.StringToSign(req)
		if err != nil {
			return err
		}
		fmt.Printf("string to sign:\n%s\n\n", stringToSign)
	}
	signed, err := signer.Sign(req)
	if err != nil {
		return err
	}
	if c.SignQuery {
		fmt.Println(signed.URL.String())
		return nil
	}
	names := make([]string, 0, len(signed.Header))
	for name := range signed.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range signed.Header[name] {
			fmt.Printf("%s: %s\n", name, value)
		}
	}
	return nil
}

type PresignCmd struct {
	URL     string `arg:"" name:"url" help:"Request URL to presign."`
	Method  string `default:"GET" help:"HTTP method the URL will be used with."`
	Expires int    `help:"Expiry in seconds. S3 defaults to 86400."`
}

func (c *PresignCmd) Run(ctx *Context) error {
	signer, err := ctx.Globals.newSigner(context.Background(), ctx.Logger)
	if err != nil {
		return err
	}
	opts, err := ctx.Globals.signingOptions()
	if err != nil {
		return err
	}
	rawURL := c.URL
	if c.Expires > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("parse url: %s", err)
		}
		q := u.Query()
		q.Set("X-Amz-Expires", strconv.Itoa(c.Expires))
		u.RawQuery = q.Encode()
		rawURL = u.String()
	}
	presigned, err := signer.Presign(&sigv4.Request{
		Method:  c.Method,
		URL:     rawURL,
		Options: opts,
	})
	if err != nil {
		return err
	}
	fmt.Println(presigned.String())
	return nil
}

type FetchCmd struct {
	URL     string   `arg:"" name:"url" help:"Request URL."`
	Method  string   `help:"HTTP method. Defaults to GET, or POST with a body."`
	Header  []string `short:"H" help:"Request header as name:value. Repeatable."`
	Data    string   `short:"d" help:"Request body."`
	Retries int      `default:"10" help:"Retry attempts for 429 and 5xx responses."`
	RPS     int      `name:"rps" help:"Requests per second limit. 0 means unlimited."`
}

func (c *FetchCmd) Run(ctx *Context) error {
	signer, err := ctx.Globals.newSigner(context.Background(), ctx.Logger)
	if err != nil {
		return err
	}
	opts, err := ctx.Globals.signingOptions()
	if err != nil {
		return err
	}
	header, err := parseHeaderFlags(c.Header)
	if err != nil {
		return err
	}
	retries := c.Retries
	if retries == 0 {
		retries = -1
	}
	client := awsclient.New(signer, awsclient.Options{
		Retries:        retries,
		RequestsPerSec: c.RPS,
		Logger:         ctx.Logger,
		Signing:        opts,
	})
	resp, err := client.Do(context.Background(), &sigv4.Request{
		Method:  c.Method,
		URL:     c.URL,
		Header:  header,
		Body:    []byte(c.Data),
		Options: opts,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		return fmt.Errorf("read response body: %s", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

func parseHeaderFlags(flags []string) (http.Header, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	header := make(http.Header)
	for _, f := range flags {
		name, value, ok := strings.Cut(f, ":")
		if !ok {
			return nil, fmt.Errorf("invalid header flag %q, want name:value", f)
		}
		header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return header, nil
}
