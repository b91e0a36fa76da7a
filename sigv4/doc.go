/*
Package sigv4 computes AWS Signature Version 4 (SigV4) signatures for HTTP
requests against AWS and S3-compatible object storage endpoints. See
https://docs.aws.amazon.com/IAM/latest/UserGuide/signing-elements.html for the
authoritative description of the algorithm.

A signature is computed in four steps.

Step 1: build a canonical request string in the format
`<METHOD>\n<URI>\n<QUERY>\n<HEADERS>\n\n<SIGNED_HEADERS>\n<PAYLOAD_HASH>`.

  - `METHOD`: HTTP method in upper case.
  - `URI`: the percent-encoded URL path. S3 object keys are decoded once
    before re-encoding because they may arrive already encoded; other
    services have consecutive slashes collapsed instead. `/` if empty.
  - `QUERY`: the query parameters with empty keys dropped (and, for S3,
    repeated keys reduced to their first occurrence), each key and value
    percent-encoded, pairs sorted and joined with `&`.
  - `HEADERS`: one `name:value` line per signed header, names lower-cased and
    sorted, values trimmed with interior whitespace runs collapsed.
  - `SIGNED_HEADERS`: the semicolon-joined list of the signed header names.
    It always contains `host`.
  - `PAYLOAD_HASH`: hex SHA-256 of the request body, the value of an explicit
    X-Amz-Content-Sha256 header, or the UNSIGNED-PAYLOAD sentinel.

Step 2: build the string to sign
`AWS4-HMAC-SHA256\n<TIMESTAMP>\n<SCOPE>\nhex(sha256(CANONICAL_REQUEST))`,
where `SCOPE` is `<YYYYMMDD>/<region>/<service>/aws4_request`.

Step 3: derive the signing key by chaining HMAC-SHA256:

	kDate    = HMAC("AWS4"+secret, date)
	kRegion  = HMAC(kDate, region)
	kService = HMAC(kRegion, service)
	kSigning = HMAC(kService, "aws4_request")

Derived keys are cached per (secret, date, region, service) in a KeyCache so
repeated signings share the chain.

Step 4: the signature is `hex(HMAC(kSigning, stringToSign))`. It is delivered
either as an `Authorization: AWS4-HMAC-SHA256 Credential=..., SignedHeaders=...,
Signature=...` header or, for presigned URLs, as an `X-Amz-Signature` query
parameter.

When the caller does not name the target service and region, the package
infers them from the endpoint hostname (and, for a few services, the request
path or the X-Amz-Target header). See InferServiceRegion.
*/
package sigv4
