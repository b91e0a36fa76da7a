package s3list

import (
	"encoding/xml"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestTotalSizeCalculator(t *testing.T) {
	testCases := []struct {
		objCount              int
		continuationToken     string
		nextContinuationToken string
	}{
		{objCount: 2, continuationToken: "", nextContinuationToken: ""},
		{objCount: 1000, continuationToken: "", nextContinuationToken: "token1"},
		{objCount: 1000, continuationToken: "token1", nextContinuationToken: "token2"},
		{objCount: 500, continuationToken: "token2", nextContinuationToken: ""},
	}
	for _, tc := range testCases {
		input := generateTestXML(tc.objCount, tc.continuationToken, tc.nextContinuationToken)
		h := NewTotalSizeCalculator()
		err := h.HandleResponseBody(strings.NewReader(input))
		if err != nil {
			t.Fatal(err)
		}
		verifyObjCountAndTotalSize(t, input, h.ObjCount(), h.TotalSize(), h.NextContinuationToken())
	}
}

func TestTotalSizeCalculatorAccumulatesAcrossPages(t *testing.T) {
	h := NewTotalSizeCalculator()
	for _, input := range []string{
		generateTestXML(3, "", "token1"),
		generateTestXML(2, "token1", ""),
	} {
		if err := h.HandleResponseBody(strings.NewReader(input)); err != nil {
			t.Fatal(err)
		}
	}
	if got, want := h.ObjCount(), uint64(5); got != want {
		t.Errorf("objCount mismatch, got=%d, want=%d", got, want)
	}
	// Sizes are 1..n per page.
	if got, want := h.TotalSize(), uint64(1+2+3+1+2); got != want {
		t.Errorf("totalSize mismatch, got=%d, want=%d", got, want)
	}
	if got, want := h.NextContinuationToken(), ""; got != want {
		t.Errorf("nextContinuationToken mismatch, got=%s, want=%s", got, want)
	}
}

func generateTestXML(objCount int, continuationToken, nextContinuationToken string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	b.WriteString(`<Name>bucket-name</Name>`)
	b.WriteString(`<Prefix/>`)
	b.WriteString(`<MaxKeys>1000</MaxKeys>`)
	fmt.Fprintf(&b, `<IsTruncated>%v</IsTruncated>`, nextContinuationToken != "")
	b.WriteString(`<FetchOwner>false</FetchOwner>`)
	if continuationToken == "" {
		b.WriteString(`<ContinuationToken/>`)
	} else {
		fmt.Fprintf(&b, `<ContinuationToken>%s</ContinuationToken>`, continuationToken)
	}
	if nextContinuationToken == "" {
		b.WriteString(`<NextContinuationToken/>`)
	} else {
		fmt.Fprintf(&b, `<NextContinuationToken>%s</NextContinuationToken>`, nextContinuationToken)
	}
	fmt.Fprintf(&b, `<KeyCount>%d</KeyCount>`, objCount)
	for i := 0; i < objCount; i++ {
		b.WriteString(`<Contents>`)
		fmt.Fprintf(&b, `<Key>key%06d</Key>`, i+1)
		lastModified := time.Unix(int64(i+1)+time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix(), 0).UTC()
		fmt.Fprintf(&b, `<LastModified>%s</LastModified>`, lastModified.Format(time.RFC3339))
		fmt.Fprintf(&b, `<ETag>&quot;%032x&quot;</ETag>`, uint64(i)+0xabcd000000000001)
		fmt.Fprintf(&b, `<Size>%d</Size>`, i+1)
		b.WriteString(`<StorageClass>STANDARD</StorageClass>`)
		b.WriteString(`</Contents>`)
	}
	b.WriteString(`</ListBucketResult>`)
	return b.String()
}

func verifyObjCountAndTotalSize(t *testing.T, xmlText string, gotObjCount, gotTotalSize uint64, gotNextContinuationToken string) {
	t.Helper()

	type Contents struct {
		Size int `xml:"Size"`
	}

	type ListBucketResult struct {
		XMLName               xml.Name   `xml:"ListBucketResult"`
		NextContinuationToken string     `xml:"NextContinuationToken"`
		Contents              []Contents `xml:"Contents"`
	}

	var result ListBucketResult

	decoder := xml.NewDecoder(strings.NewReader(xmlText))
	err := decoder.Decode(&result)
	if err != nil {
		t.Fatalf("Error decoding XML: %v\n", err)
	}

	totalSize := uint64(0)
	for _, content := range result.Contents {
		totalSize += uint64(content.Size)
	}

	wantObjCount := uint64(len(result.Contents))
	wantTotalSize := totalSize
	wantNextContinuationToken := result.NextContinuationToken

	mismatched := false
	if got, want := gotObjCount, wantObjCount; got != want {
		t.Errorf("objCount mismatch, got=%d, want=%d", got, want)
		mismatched = true
	}
	if got, want := gotTotalSize, wantTotalSize; got != want {
		t.Errorf("totalSize mismatch, got=%d, want=%d", got, want)
		mismatched = true
	}
	if got, want := gotNextContinuationToken, wantNextContinuationToken; got != want {
		t.Errorf("nextContinuationToken mismatch, got=%s, want=%s", got, want)
		mismatched = true
	}
	if mismatched {
		t.Logf("input=\n%s", xmlText)
	}
}
