package sigv4

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// hostRule maps an endpoint hostname family to its signing service and
// region. Rules are tried in order and the first that claims the hostname
// wins, even when it resolves to empty strings.
type hostRule struct {
	name  string
	infer func(host, path string, header http.Header) (service, region string, ok bool)
}

var hostRules = []hostRule{
	{name: "lambda-function-url", infer: inferLambdaFunctionURL},
	{name: "cloudflare-r2", infer: inferCloudflareR2},
	{name: "backblaze-b2", infer: inferBackblazeB2},
	{name: "amazonaws-endpoint", infer: inferAmazonEndpoint},
}

// InferServiceRegion guesses the AWS service and region to sign for from the
// request URL and headers. It recognizes Lambda function URLs, Cloudflare R2
// and Backblaze B2 storage endpoints, and the amazonaws.com(.cn) hostname
// grammar with its service-specific quirks (IoT data/jobs/device-gateway
// split, application-autoscaling dispatch on X-Amz-Target, legacy s3-<region>
// hosts, FIPS and dualstack name decoration). The guess is best effort:
// hostnames outside these families yield empty strings and the caller must
// supply service and region explicitly.
func InferServiceRegion(u *url.URL, header http.Header) (service, region string) {
	host := u.Hostname()
	path := u.EscapedPath()
	for _, r := range hostRules {
		if service, region, ok := r.infer(host, path, header); ok {
			return service, region
		}
	}
	return "", ""
}

var lambdaURLPattern = regexp.MustCompile(`^([^.]{1,63})\.lambda-url\.[^.]{1,24}\.on\.aws$`)

func inferLambdaFunctionURL(host, _ string, _ http.Header) (string, string, bool) {
	if !strings.HasSuffix(host, ".on.aws") {
		return "", "", false
	}
	m := lambdaURLPattern.FindStringSubmatch(host)
	if m == nil {
		return "", "", true
	}
	return "lambda", m[1], true
}

func inferCloudflareR2(host, _ string, _ http.Header) (string, string, bool) {
	if !strings.HasSuffix(host, ".r2.cloudflarestorage.com") {
		return "", "", false
	}
	// R2 accepts any region but canonically signs with "auto".
	return "s3", "auto", true
}

var backblazePattern = regexp.MustCompile(`^(?:[^.]+\.)?s3\.([^.]+)\.backblazeb2\.com$`)

func inferBackblazeB2(host, _ string, _ http.Header) (string, string, bool) {
	if !strings.HasSuffix(host, ".backblazeb2.com") {
		return "", "", false
	}
	m := backblazePattern.FindStringSubmatch(host)
	if m == nil {
		return "", "", true
	}
	return "s3", m[1], true
}

// amazonHostPattern captures the service and optional region labels that
// precede amazonaws.com or amazonaws.com.cn.
var amazonHostPattern = regexp.MustCompile(`([^.]+)\.(?:([^.]*)\.)?amazonaws\.com(?:\.cn)?$`)

// regionLikeLabel matches labels that end in a digit the way region names do.
var regionLikeLabel = regexp.MustCompile(`-\d$`)

// inferAmazonEndpoint is the fall-through rule: it always claims the
// hostname, returning empty strings when nothing matched.
func inferAmazonEndpoint(host, path string, header http.Header) (string, string, bool) {
	stripped := strings.Replace(host, "dualstack.", "", 1)
	var service, region string
	if m := amazonHostPattern.FindStringSubmatch(stripped); m != nil {
		service, region = m[1], m[2]
	}

	switch {
	case region == "us-gov":
		region = "us-gov-west-1"
	case region == "s3" || region == "s3-accelerate":
		// Legacy global S3 hosts put "s3" where the region label goes.
		region = "us-east-1"
		service = "s3"
	case service == "iot":
		service = iotServiceFor(host, path)
	case service == "autoscaling":
		service = autoscalingServiceFor(header)
	case region == "" && strings.HasPrefix(service, "s3-"):
		region = s3RegionFrom(service)
		service = "s3"
	case strings.HasSuffix(service, "-fips"):
		service = strings.TrimSuffix(service, "-fips")
	case region != "" && regionLikeLabel.MatchString(service) && !regionLikeLabel.MatchString(region):
		// Some legacy hosts reverse the labels, e.g.
		// us-east-2.queue.amazonaws.com.
		service, region = region, service
	}

	if alias, ok := hostServiceAliases[service]; ok {
		service = alias
	}
	return service, region, true
}

// iotServiceFor splits the iot hostname family into its four signing
// services. The device gateway is only reachable at the /mqtt path.
func iotServiceFor(host, path string) string {
	switch {
	case strings.HasPrefix(host, "iot."):
		return "execute-api"
	case strings.HasPrefix(host, "data.jobs.iot."):
		return "iot-jobs-data"
	case path == "/mqtt":
		return "iotdevicegateway"
	default:
		return "iotdata"
	}
}

// autoscalingServiceFor picks the autoscaling variant from the X-Amz-Target
// operation prefix, since all three share one hostname.
func autoscalingServiceFor(header http.Header) string {
	prefix, _, _ := strings.Cut(header.Get("X-Amz-Target"), ".")
	switch prefix {
	case "AnyScaleFrontendService":
		return "application-autoscaling"
	case "AnyScaleScalingPlannerFrontendService":
		return "autoscaling-plans"
	default:
		return "autoscaling"
	}
}

// s3RegionFrom recovers the region from a legacy s3-<region> host label,
// dropping the leading fips- or external-1 decoration.
func s3RegionFrom(service string) string {
	region := strings.TrimPrefix(service, "s3-")
	if r, ok := strings.CutPrefix(region, "fips-"); ok {
		return r
	}
	if r, ok := strings.CutPrefix(region, "external-1"); ok {
		return r
	}
	return region
}

// hostServiceAliases maps hostname labels that differ from the service's
// signing name.
var hostServiceAliases = map[string]string{
	"appstream2":              "appstream",
	"cloudhsmv2":              "cloudhsm",
	"email":                   "ses",
	"git-codecommit":          "codecommit",
	"marketplace":             "aws-marketplace",
	"mobile":                  "AWSMobileHubService",
	"mturk-requester-sandbox": "mturk-requester",
	"personalize-runtime":     "personalize",
	"pinpoint":                "mobiletargeting",
	"queue":                   "sqs",
}
