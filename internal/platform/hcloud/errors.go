package hcloud

import (
	"errors"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// transientCodes are the provider error codes that mean "not visible yet".
// The list is deliberately exactly what has been observed.
var transientCodes = []hcloud.ErrorCode{
	hcloud.ErrorCodeNotFound,
}

// NotFoundError builds the error a by-id lookup returns when the provider
// has no object with that id.
func NotFoundError(kind string, id int64) error {
	return hcloud.Error{
		Code:    hcloud.ErrorCodeNotFound,
		Message: fmt.Sprintf("%s %d not found", kind, id),
	}
}

// isHCloudErrorCode checks if the error is an hcloud API error with one of the given codes.
func isHCloudErrorCode(err error, codes ...hcloud.ErrorCode) bool {
	if err == nil {
		return false
	}

	var hcloudErr hcloud.Error
	if errors.As(err, &hcloudErr) {
		for _, code := range codes {
			if hcloudErr.Code == code {
				return true
			}
		}
	}
	return false
}

// IsNotFound checks if an error indicates a resource was not found.
func IsNotFound(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeNotFound)
}

// IsNotYetVisible reports whether err is the eventual-consistency error the
// poller tolerates.
func IsNotYetVisible(err error) bool {
	return isHCloudErrorCode(err, transientCodes...)
}

// IsUnauthorized checks if an error indicates an invalid credential.
func IsUnauthorized(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeUnauthorized, hcloud.ErrorCodeForbidden)
}
