package storage

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
)

func TestIsNoSuchKey(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "sentinel", err: fmt.Errorf("stat object %q: %w", "k", ErrObjectNotFound), want: true},
		{name: "minio code", err: minio.ErrorResponse{Code: "NoSuchKey"}, want: true},
		{name: "wrapped status", err: fmt.Errorf("stat: %w", minio.ErrorResponse{StatusCode: http.StatusNotFound}), want: true},
		{name: "gateway message", err: errors.New("The specified key does not exist."), want: true},
		{name: "access denied", err: minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, want: false},
		{name: "network", err: errors.New("dial tcp: connection refused"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsNoSuchKey(tc.err); got != tc.want {
				t.Fatalf("IsNoSuchKey(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestResumeObjectKey(t *testing.T) {
	key := ResumeObjectKey("mock_user", "PDF")
	if len(key) != len("resumes/mock_user/")+36+len(".pdf") || key[:18] != "resumes/mock_user/" || key[len(key)-4:] != ".pdf" {
		t.Fatalf("unexpected key %q", key)
	}
	if ResumeObjectKey("mock_user", "pdf") == key {
		t.Fatalf("expected unique keys")
	}
}
