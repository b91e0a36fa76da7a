package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hnakamur/awsv4sign-util/awsclient"
	"github.com/hnakamur/awsv4sign-util/internal/s3list"
	"github.com/hnakamur/awsv4sign-util/sigv4"
)

const (
	defaultObjectStorageEndpoint = "s3.isk01.sakurastorage.jp"
	defaultObjectStorageRegion   = "jp-north-1"
)

type LsCmd struct {
	Bucket   string `arg:"" name:"bucket" help:"Bucket to list."`
	Endpoint string `default:"s3.isk01.sakurastorage.jp" help:"Object storage endpoint domain."`
	Prefix   string `help:"Limit the listing to keys with this prefix."`
}

func (c *LsCmd) Run(ctx *Context) error {
	client, err := newBucketClient(ctx, c.Endpoint)
	if err != nil {
		return err
	}
	lister := s3list.NewLister(func(obj s3list.Object) (discardsRest bool, err error) {
		fmt.Printf("%s\t%d\t%s\n", obj.LastModified, obj.Size, obj.Key)
		return false, nil
	})
	return s3list.ListAllObjects(context.Background(), client,
		s3list.BucketURL(c.Endpoint, c.Bucket), c.Prefix, lister)
}

type SummaryCmd struct {
	Bucket   string `arg:"" name:"bucket" help:"Bucket to summarize."`
	Endpoint string `default:"s3.isk01.sakurastorage.jp" help:"Object storage endpoint domain."`
}

func (c *SummaryCmd) Run(ctx *Context) error {
	client, err := newBucketClient(ctx, c.Endpoint)
	if err != nil {
		return err
	}
	handler := s3list.NewTotalSizeCalculator()
	baseURL := s3list.BucketURL(c.Endpoint, c.Bucket)
	continuationToken := ""
	apiCallCount := 0
	for {
		err := s3list.ListObjectsV2(context.Background(), client, baseURL, "",
			continuationToken, handler.HandleResponseBody)
		if err != nil {
			return err
		}
		continuationToken = handler.NextContinuationToken()
		if continuationToken == "" {
			break
		}
		apiCallCount++
		if apiCallCount%100 == 0 {
			ctx.Logger.WithFields(logrus.Fields{
				"apiCallCount": apiCallCount,
				"totalSize":    handler.TotalSize(),
				"objCount":     handler.ObjCount(),
			}).Debug("listing progress")
		}
	}
	fmt.Printf("objCount=%d totalSize=%d\n", handler.ObjCount(), handler.TotalSize())
	return nil
}

func newBucketClient(ctx *Context, endpoint string) (*awsclient.Client, error) {
	signer, err := ctx.Globals.newSigner(context.Background(), ctx.Logger)
	if err != nil {
		return nil, err
	}
	region := ctx.Globals.Region
	if region == "" && endpoint == defaultObjectStorageEndpoint {
		region = defaultObjectStorageRegion
	}
	return awsclient.New(signer, awsclient.Options{
		Logger:  ctx.Logger,
		Signing: sigv4.Options{Service: "s3", Region: region},
	}), nil
}
