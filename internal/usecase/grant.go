package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"kendra-chatbot/internal/domain"
)

const (
	DefaultGrantTTL = 1000 * time.Second
	// MaxGrantTTL is the longest lifetime a SigV4 presigned URL may carry.
	MaxGrantTTL = 7 * 24 * time.Hour
)

type GrantService struct {
	signer Signer
	now    func() time.Time
}

func NewGrantService(s Signer) (*GrantService, error) {
	if s == nil {
		return nil, errors.New("usecase: signer must not be nil")
	}
	return &GrantService{signer: s, now: time.Now}, nil
}

// IssueAccessGrant derives a bearer URL for exactly one action on exactly one
// object. Nothing is persisted; the grant expires by time alone.
func (s *GrantService) IssueAccessGrant(ctx context.Context, req domain.AccessGrantRequest) (domain.AccessGrant, error) {
	if req.TTL <= 0 || req.TTL > MaxGrantTTL {
		return domain.AccessGrant{}, newError(ErrorGrantIssuance, "invalid_ttl", fmt.Errorf("ttl %s", req.TTL))
	}
	switch req.Action {
	case domain.ActionRead, domain.ActionWrite:
	default:
		return domain.AccessGrant{}, newError(ErrorGrantIssuance, "unsupported_action", fmt.Errorf("action %q", req.Action))
	}
	loc, err := ParseObjectURL(req.ResourceLocator)
	if err != nil {
		return domain.AccessGrant{}, newError(ErrorGrantIssuance, "invalid_locator", err)
	}

	issuedAt := s.now()
	signed, err := s.signer.Sign(ctx, loc.Bucket, loc.Key, req.Action, req.TTL)
	if err != nil {
		return domain.AccessGrant{}, newError(ErrorGrantIssuance, "signing_failed", err)
	}
	return domain.AccessGrant{URL: signed, ExpiresAt: issuedAt.Add(req.TTL)}, nil
}

// ParseObjectURL resolves an https object URL to one bucket and one key.
// Virtual-hosted URLs (https://<bucket>.<host>/<key>) and AWS path-style URLs
// (https://s3.<region>.amazonaws.com/<bucket>/<key>) are accepted.
func ParseObjectURL(raw string) (domain.ObjectLocator, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return domain.ObjectLocator{}, fmt.Errorf("usecase: parse object url: %w", err)
	}
	if u.Scheme != "https" {
		return domain.ObjectLocator{}, fmt.Errorf("usecase: object url scheme must be https, got %q", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	path := strings.TrimPrefix(u.Path, "/")

	var loc domain.ObjectLocator
	if isPathStyleHost(host) {
		bucket, key, _ := strings.Cut(path, "/")
		loc = domain.ObjectLocator{Bucket: bucket, Key: key}
	} else {
		bucket, rest, ok := strings.Cut(host, ".")
		if !ok || rest == "" {
			return domain.ObjectLocator{}, fmt.Errorf("usecase: object url host %q has no bucket label", host)
		}
		loc = domain.ObjectLocator{Bucket: bucket, Key: path}
	}

	if loc.Bucket == "" {
		return domain.ObjectLocator{}, errors.New("usecase: object url is missing a bucket")
	}
	if loc.Key == "" || strings.HasSuffix(loc.Key, "/") {
		return domain.ObjectLocator{}, errors.New("usecase: object url is missing a key")
	}
	return loc, nil
}

func isPathStyleHost(host string) bool {
	if !strings.HasSuffix(host, ".amazonaws.com") {
		return false
	}
	labels := strings.Split(host, ".")
	switch len(labels) {
	case 3:
		// s3.amazonaws.com, s3-<region>.amazonaws.com
		return labels[0] == "s3" || strings.HasPrefix(labels[0], "s3-")
	case 4:
		// s3.<region>.amazonaws.com
		return labels[0] == "s3"
	}
	return false
}
