package main

import "testing"

func TestParseS3URI(t *testing.T) {
	cases := []struct {
		uri    string
		bucket string
		key    string
	}{
		{"s3://archive/webhooks/2026/08/31/x.json", "archive", "webhooks/2026/08/31/x.json"},
		{"s3://archive/flat.json", "archive", "flat.json"},
		{"s3://flat.json", "", "flat.json"},
	}
	for _, tc := range cases {
		bucket, key := parseS3URI(tc.uri)
		if bucket != tc.bucket || key != tc.key {
			t.Fatalf("parseS3URI(%q) = (%q, %q), want (%q, %q)",
				tc.uri, bucket, key, tc.bucket, tc.key)
		}
	}
}
