package sigv4

import (
	"net/http"
	"net/url"
	"testing"
)

func TestInferServiceRegion(t *testing.T) {
	testCases := []struct {
		url         string
		header      http.Header
		wantService string
		wantRegion  string
	}{
		// Lambda function URLs carry the function ID in the first label.
		{url: "https://abcd123.lambda-url.us-east-1.on.aws/", wantService: "lambda", wantRegion: "abcd123"},
		{url: "https://xyz789.lambda-url.ap-northeast-1.on.aws/hello", wantService: "lambda", wantRegion: "xyz789"},
		{url: "https://on.aws/", wantService: "", wantRegion: ""},
		{url: "https://example.not-lambda.on.aws/", wantService: "", wantRegion: ""},

		// S3-compatible providers.
		{url: "https://my-bucket.r2.cloudflarestorage.com/obj", wantService: "s3", wantRegion: "auto"},
		{url: "https://account12345.r2.cloudflarestorage.com/bucket/key", wantService: "s3", wantRegion: "auto"},
		{url: "https://bucket.s3.us-west-004.backblazeb2.com/key", wantService: "s3", wantRegion: "us-west-004"},
		{url: "https://s3.eu-central-003.backblazeb2.com/bucket", wantService: "s3", wantRegion: "eu-central-003"},
		{url: "https://f004.backblazeb2.com/file/bucket/key", wantService: "", wantRegion: ""},

		// Plain amazonaws.com label parse.
		{url: "https://bucket.s3.us-west-2.amazonaws.com/key", wantService: "s3", wantRegion: "us-west-2"},
		{url: "https://dynamodb.us-east-1.amazonaws.com/", wantService: "dynamodb", wantRegion: "us-east-1"},
		{url: "https://sqs.eu-west-1.amazonaws.com/", wantService: "sqs", wantRegion: "eu-west-1"},
		{url: "https://ec2.cn-north-1.amazonaws.com.cn/", wantService: "ec2", wantRegion: "cn-north-1"},
		{url: "https://s3.amazonaws.com/bucket/key", wantService: "s3", wantRegion: ""},

		// dualstack. is dropped before splitting into labels.
		{url: "https://s3.dualstack.us-east-2.amazonaws.com/bucket", wantService: "s3", wantRegion: "us-east-2"},
		{url: "https://bucket.s3.dualstack.us-west-1.amazonaws.com/key", wantService: "s3", wantRegion: "us-west-1"},

		// Region slot normalization.
		{url: "https://autoscaling.us-gov.amazonaws.com/", wantService: "autoscaling", wantRegion: "us-gov-west-1"},
		{url: "https://examplebucket.s3.amazonaws.com/test.txt", wantService: "s3", wantRegion: "us-east-1"},
		{url: "https://bucket.s3-accelerate.amazonaws.com/key", wantService: "s3", wantRegion: "us-east-1"},

		// IoT hostname family.
		{url: "https://iot.us-east-1.amazonaws.com/topics/t", wantService: "execute-api", wantRegion: "us-east-1"},
		{url: "https://data.jobs.iot.us-east-1.amazonaws.com/", wantService: "iot-jobs-data", wantRegion: "us-east-1"},
		{url: "https://abc123.iot.us-west-2.amazonaws.com/mqtt", wantService: "iotdevicegateway", wantRegion: "us-west-2"},
		{url: "https://abc123.iot.us-west-2.amazonaws.com/topics/t", wantService: "iotdata", wantRegion: "us-west-2"},

		// Autoscaling variants dispatch on X-Amz-Target.
		{
			url:         "https://autoscaling.us-east-1.amazonaws.com/",
			header:      http.Header{"X-Amz-Target": []string{"AnyScaleFrontendService.DescribeScalableTargets"}},
			wantService: "application-autoscaling",
			wantRegion:  "us-east-1",
		},
		{
			url:         "https://autoscaling.us-east-1.amazonaws.com/",
			header:      http.Header{"X-Amz-Target": []string{"AnyScaleScalingPlannerFrontendService.DescribeScalingPlans"}},
			wantService: "autoscaling-plans",
			wantRegion:  "us-east-1",
		},
		{
			url:         "https://autoscaling.us-east-1.amazonaws.com/",
			header:      http.Header{"X-Amz-Target": []string{"AutoScaling_2011_01_01.DescribeAutoScalingGroups"}},
			wantService: "autoscaling",
			wantRegion:  "us-east-1",
		},
		{url: "https://autoscaling.us-east-1.amazonaws.com/", wantService: "autoscaling", wantRegion: "us-east-1"},

		// Legacy s3-<region> hosts.
		{url: "https://s3-us-west-2.amazonaws.com/bucket/key", wantService: "s3", wantRegion: "us-west-2"},
		{url: "https://s3-fips-us-gov-west-1.amazonaws.com/bucket", wantService: "s3", wantRegion: "us-gov-west-1"},
		{url: "https://s3-external-1.amazonaws.com/bucket", wantService: "s3", wantRegion: ""},

		// Trailing -fips strip.
		{url: "https://kms-fips.us-west-2.amazonaws.com/", wantService: "kms", wantRegion: "us-west-2"},

		// Region-first legacy hosts swap the labels back, then alias.
		{url: "https://us-east-2.queue.amazonaws.com/", wantService: "sqs", wantRegion: "us-east-2"},
		{url: "https://eu-west-1.elasticmapreduce.amazonaws.com/", wantService: "elasticmapreduce", wantRegion: "eu-west-1"},

		// Hostname labels that differ from the signing name.
		{url: "https://appstream2.us-east-1.amazonaws.com/", wantService: "appstream", wantRegion: "us-east-1"},
		{url: "https://cloudhsmv2.us-east-1.amazonaws.com/", wantService: "cloudhsm", wantRegion: "us-east-1"},
		{url: "https://email.us-east-1.amazonaws.com/", wantService: "ses", wantRegion: "us-east-1"},
		{url: "https://git-codecommit.us-east-1.amazonaws.com/", wantService: "codecommit", wantRegion: "us-east-1"},
		{url: "https://marketplace.us-east-1.amazonaws.com/", wantService: "aws-marketplace", wantRegion: "us-east-1"},
		{url: "https://mobile.us-east-1.amazonaws.com/", wantService: "AWSMobileHubService", wantRegion: "us-east-1"},
		{url: "https://mturk-requester-sandbox.us-east-1.amazonaws.com/", wantService: "mturk-requester", wantRegion: "us-east-1"},
		{url: "https://personalize-runtime.us-east-1.amazonaws.com/", wantService: "personalize", wantRegion: "us-east-1"},
		{url: "https://pinpoint.us-east-1.amazonaws.com/", wantService: "mobiletargeting", wantRegion: "us-east-1"},
		{url: "https://queue.amazonaws.com/", wantService: "sqs", wantRegion: ""},

		// Unmatched hostnames fall through with empty labels.
		{url: "https://example.com/path", wantService: "", wantRegion: ""},
		{url: "https://localhost:9000/bucket/key", wantService: "", wantRegion: ""},
		{url: "https://storage.googleapis.com/bucket", wantService: "", wantRegion: ""},
	}
	for _, tc := range testCases {
		u, err := url.Parse(tc.url)
		if err != nil {
			t.Fatal(err)
		}
		service, region := InferServiceRegion(u, tc.header)
		if got, want := service, tc.wantService; got != want {
			t.Errorf("service mismatch, url=%s, got=%q, want=%q", tc.url, got, want)
		}
		if got, want := region, tc.wantRegion; got != want {
			t.Errorf("region mismatch, url=%s, got=%q, want=%q", tc.url, got, want)
		}
	}
}

func TestInferHostRules(t *testing.T) {
	// Each rule claims only its own hostname family. A malformed Lambda
	// function URL is still claimed (and resolves to empty strings) so the
	// generic label parse never sees it.
	testCases := []struct {
		rule    string
		host    string
		wantOK  bool
		service string
		region  string
	}{
		{rule: "lambda-function-url", host: "abcd123.lambda-url.us-east-1.on.aws", wantOK: true, service: "lambda", region: "abcd123"},
		{rule: "lambda-function-url", host: "example.not-lambda.on.aws", wantOK: true},
		{rule: "lambda-function-url", host: "bucket.s3.us-west-2.amazonaws.com", wantOK: false},
		{rule: "cloudflare-r2", host: "my-bucket.r2.cloudflarestorage.com", wantOK: true, service: "s3", region: "auto"},
		{rule: "cloudflare-r2", host: "bucket.s3.us-west-2.amazonaws.com", wantOK: false},
		{rule: "backblaze-b2", host: "s3.us-west-004.backblazeb2.com", wantOK: true, service: "s3", region: "us-west-004"},
		{rule: "backblaze-b2", host: "f004.backblazeb2.com", wantOK: true},
		{rule: "backblaze-b2", host: "bucket.s3.us-west-2.amazonaws.com", wantOK: false},
		{rule: "amazonaws-endpoint", host: "bucket.s3.us-west-2.amazonaws.com", wantOK: true, service: "s3", region: "us-west-2"},
		{rule: "amazonaws-endpoint", host: "example.com", wantOK: true},
	}
	rules := make(map[string]hostRule)
	for _, r := range hostRules {
		rules[r.name] = r
	}
	for _, tc := range testCases {
		r, found := rules[tc.rule]
		if !found {
			t.Fatalf("unknown rule %s", tc.rule)
		}
		service, region, ok := r.infer(tc.host, "/", nil)
		if got, want := ok, tc.wantOK; got != want {
			t.Errorf("claim mismatch, rule=%s, host=%s, got=%v, want=%v", tc.rule, tc.host, got, want)
			continue
		}
		if got, want := service, tc.service; got != want {
			t.Errorf("service mismatch, rule=%s, host=%s, got=%q, want=%q", tc.rule, tc.host, got, want)
		}
		if got, want := region, tc.region; got != want {
			t.Errorf("region mismatch, rule=%s, host=%s, got=%q, want=%q", tc.rule, tc.host, got, want)
		}
	}
}
