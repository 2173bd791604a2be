// Command sign-policy prints a base64 S3 POST policy and its SigV4
// signature for operators who need to hand-build an upload form.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"model_upload_backend/pkg/policy"
	"model_upload_backend/pkg/sigv4"

	"github.com/spf13/pflag"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Getenv, time.Now, os.Stdout, os.Stderr))
}

type options struct {
	secretKey  string
	accessKey  string
	dateStamp  string
	region     string
	service    string
	bucket     string
	expiration string
}

func run(args []string, getenv func(string) string, now func() time.Time, stdout, stderr io.Writer) int {
	var o options
	fs := pflag.NewFlagSet("sign-policy", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.secretKey, "secret-key", "", "secret access key (env AWS_SECRET_ACCESS_KEY)")
	fs.StringVar(&o.accessKey, "access-key", "", "access key id (env AWS_ACCESS_KEY_ID)")
	fs.StringVar(&o.dateStamp, "date", "", "credential date YYYYMMDD (env DATE_STAMP, default today UTC)")
	fs.StringVar(&o.region, "region", "", "region (env AWS_REGION)")
	fs.StringVar(&o.service, "service", "", "service name (default s3)")
	fs.StringVar(&o.bucket, "bucket", "", "bucket name (env S3_BUCKET)")
	fs.StringVar(&o.expiration, "expiration", "", "policy expiration, RFC 3339 (default 2050-01-01T00:00:00Z)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: sign-policy [flags] [secretKey dateStamp region service bucketName]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitFailed
	}

	// positional arguments, then the environment, fill what flags left empty
	pos := fs.Args()
	fill := func(dst *string, idx int, env, def string) {
		if *dst == "" && idx < len(pos) {
			*dst = pos[idx]
		}
		if *dst == "" && env != "" {
			*dst = getenv(env)
		}
		if *dst == "" {
			*dst = def
		}
	}
	fill(&o.secretKey, 0, "AWS_SECRET_ACCESS_KEY", "")
	fill(&o.dateStamp, 1, "DATE_STAMP", now().UTC().Format(sigv4.DateStampFormat))
	fill(&o.region, 2, "AWS_REGION", "us-east-1")
	fill(&o.service, 3, "", "s3")
	fill(&o.bucket, 4, "S3_BUCKET", "")
	fill(&o.accessKey, 5, "AWS_ACCESS_KEY_ID", "")

	if o.secretKey == "" {
		fmt.Fprintln(stderr, "error:", sigv4.ErrMissingSecret)
		return exitConfig
	}
	if o.accessKey == "" || o.bucket == "" {
		fmt.Fprintln(stderr, "error:", policy.ErrMissingKeys)
		return exitConfig
	}

	expiration := policy.FarFuture
	if o.expiration != "" {
		t, err := time.Parse(time.RFC3339, o.expiration)
		if err != nil {
			fmt.Fprintf(stderr, "error: invalid --expiration %q: %v\n", o.expiration, err)
			return exitFailed
		}
		expiration = t
	}

	signed, err := policy.BuildAndSign(policy.Input{
		Bucket:      o.bucket,
		AccessKeyID: o.accessKey,
		Scope:       sigv4.Scope{DateStamp: o.dateStamp, Region: o.region, Service: o.service},
		Expiration:  expiration,
		Now:         now,
	}, o.secretKey)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		if errors.Is(err, sigv4.ErrMissingSecret) {
			return exitConfig
		}
		return exitFailed
	}

	fmt.Fprintf(stdout, "base64Policy: %s\n", signed.Encoded)
	fmt.Fprintf(stdout, "signature: %s\n", signed.Signature)
	return exitOK
}
