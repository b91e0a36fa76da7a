// Package s3list issues ListObjectsV2 requests against S3-compatible object
// storage and stream-parses the XML results with gosax.
package s3list

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hnakamur/awsv4sign-util/awsclient"
)

// BucketURL returns the virtual-hosted URL for bucket on an endpoint domain.
func BucketURL(endpoint, bucket string) string {
	return "https://" + bucket + "." + endpoint
}

// ListObjectsV2 requests one page of a bucket listing and feeds the response
// body to handleResponseBody. baseURL is the bucket URL without a path.
func ListObjectsV2(ctx context.Context, client *awsclient.Client, baseURL, prefix, continuationToken string,
	handleResponseBody func(body io.Reader) error) error {

	// https://docs.aws.amazon.com/AmazonS3/latest/API/API_ListObjectsV2.html

	query := "list-type=2"
	if prefix != "" {
		query += "&prefix=" + url.QueryEscape(prefix)
	}
	if continuationToken != "" {
		query += "&continuation-token=" + url.QueryEscape(continuationToken)
	}
	resp, err := client.Fetch(ctx, http.MethodGet, baseURL+"/?"+query, nil)
	if err != nil {
		return fmt.Errorf("send list objects request: %s", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		return discardRestOfResponseBody(err, resp.Body)
	}

	if err := handleResponseBody(resp.Body); err != nil {
		return discardRestOfResponseBody(fmt.Errorf("failed to handle response body: %s", err), resp.Body)
	}
	return discardRestOfResponseBody(nil, resp.Body)
}

type pageParser interface {
	HandleResponseBody(body io.Reader) error
	NextContinuationToken() string
}

// ListAllObjects drives ListObjectsV2 through every page of a listing,
// following the parser's continuation token until the last page.
func ListAllObjects(ctx context.Context, client *awsclient.Client, baseURL, prefix string, parser pageParser) error {
	continuationToken := ""
	for {
		err := ListObjectsV2(ctx, client, baseURL, prefix, continuationToken, parser.HandleResponseBody)
		if err != nil {
			return err
		}
		continuationToken = parser.NextContinuationToken()
		if continuationToken == "" {
			return nil
		}
	}
}

func discardRestOfResponseBody(err error, body io.Reader) error {
	if _, err2 := io.Copy(io.Discard, body); err2 != nil {
		if err == nil {
			return err2
		}
		return errors.Join(err, fmt.Errorf("failed to discard error response body: %s", err2))
	}

	return err
}
