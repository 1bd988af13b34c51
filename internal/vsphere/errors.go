package vsphere

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"
)

// IsInvalidLogin reports whether err is vCenter rejecting the credentials.
func IsInvalidLogin(err error) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if soap.IsSoapFault(e) {
			switch soap.ToSoapFault(e).VimFault().(type) {
			case types.InvalidLogin, *types.InvalidLogin:
				return true
			}
		}
		if soap.IsVimFault(e) {
			switch soap.ToVimFault(e).(type) {
			case *types.InvalidLogin:
				return true
			}
		}
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "incorrect user name or password")
}

// IsTimeout reports whether err is a connect or request timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// IsConnectionRefused reports whether the endpoint refused the TCP connection.
func IsConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

// DescribeConnectError renders a session failure the way connectivity checks report it.
func DescribeConnectError(err error) string {
	switch {
	case IsInvalidLogin(err):
		return "Invalid credentials"
	case IsTimeout(err):
		return "Connection timeout"
	case IsConnectionRefused(err):
		return "Connection refused"
	default:
		return "Connection error: " + err.Error()
	}
}
