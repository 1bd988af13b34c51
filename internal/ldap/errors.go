package ldap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/go-ldap/ldap/v3"
)

// ErrorCategory represents different categories of directory errors.
type ErrorCategory string

const (
	ErrorCategoryConnection     ErrorCategory = "connection"
	ErrorCategoryTimeout        ErrorCategory = "timeout"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryPermission     ErrorCategory = "permission"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryServer         ErrorCategory = "server"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// LDAPError provides enhanced error information for directory operations.
type LDAPError struct {
	Operation string        // The operation that failed
	Server    string        // Controller the operation ran against
	Category  ErrorCategory // Error category
	LDAPCode  uint16        // LDAP result code
	Message   string        // Human-readable message
	ServerMsg string        // Server-provided message
	Retryable bool          // Whether the error is retryable
	Cause     error         // Underlying error
}

func (e *LDAPError) Error() string {
	var parts []string

	if e.LDAPCode > 0 && e.LDAPCode != ldap.ErrorNetwork {
		parts = append(parts, fmt.Sprintf("LDAP %s failed (code %d)", e.Operation, e.LDAPCode))
	} else {
		parts = append(parts, fmt.Sprintf("LDAP %s failed", e.Operation))
	}

	if e.Server != "" {
		parts = append(parts, fmt.Sprintf("server: %s", e.Server))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.ServerMsg != "" && e.ServerMsg != e.Message {
		parts = append(parts, fmt.Sprintf("detail: %s", e.ServerMsg))
	}

	return strings.Join(parts, " - ")
}

func (e *LDAPError) IsRetryable() bool {
	return e.Retryable
}

func (e *LDAPError) Unwrap() error {
	return e.Cause
}

// NewLDAPError classifies err as the failure of operation against server.
func NewLDAPError(operation, server string, err error) *LDAPError {
	if err == nil {
		return nil
	}

	ldapErr := &LDAPError{
		Operation: operation,
		Server:    server,
		Cause:     err,
	}

	var resultErr *ldap.Error
	switch {
	case isTimeout(err):
		ldapErr.Category = ErrorCategoryTimeout
		ldapErr.Retryable = true
		ldapErr.Message = "Connection timeout"
	case isConnectionRefused(err):
		ldapErr.Category = ErrorCategoryConnection
		ldapErr.Retryable = true
		ldapErr.Message = "Connection refused"
	case errors.As(err, &resultErr) && resultErr.ResultCode != ldap.ErrorNetwork:
		ldapErr.LDAPCode = resultErr.ResultCode
		if resultErr.Err != nil {
			ldapErr.ServerMsg = resultErr.Err.Error()
		}
		ldapErr.Category = categorizeError(resultErr.ResultCode)
		ldapErr.Retryable = isLDAPCodeRetryable(resultErr.ResultCode)
		ldapErr.Message = getLDAPCodeMessage(resultErr.ResultCode)
	default:
		// Network-level failures reported by go-ldap and anything else
		ldapErr.Category = categorizeGenericError(err)
		ldapErr.Retryable = ldapErr.Category == ErrorCategoryConnection || ldapErr.Category == ErrorCategoryServer
		ldapErr.Message = err.Error()
		if resultErr != nil {
			ldapErr.LDAPCode = resultErr.ResultCode
		}
	}

	return ldapErr
}

// categorizeError categorizes an error based on LDAP result code.
func categorizeError(code uint16) ErrorCategory {
	switch code {
	// Authentication errors
	case ldap.LDAPResultInvalidCredentials,
		ldap.LDAPResultInappropriateAuthentication,
		ldap.LDAPResultStrongAuthRequired,
		ldap.LDAPResultAuthMethodNotSupported,
		ldap.LDAPResultConfidentialityRequired:
		return ErrorCategoryAuthentication

	// Permission errors
	case ldap.LDAPResultInsufficientAccessRights,
		ldap.LDAPResultUnwillingToPerform:
		return ErrorCategoryPermission

	// Not found errors
	case ldap.LDAPResultNoSuchObject:
		return ErrorCategoryNotFound

	// Server errors
	case ldap.LDAPResultServerDown,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultBusy,
		ldap.LDAPResultAdminLimitExceeded:
		return ErrorCategoryServer

	case ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultTimeout:
		return ErrorCategoryTimeout

	// Connection errors
	case ldap.LDAPResultConnectError,
		ldap.ErrorNetwork:
		return ErrorCategoryConnection

	default:
		return ErrorCategoryUnknown
	}
}

// categorizeGenericError categorizes non-LDAP errors.
func categorizeGenericError(err error) ErrorCategory {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorCategoryConnection
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "eof") {
		return ErrorCategoryConnection
	}

	if strings.Contains(errStr, "invalid credentials") ||
		strings.Contains(errStr, "kdc_err_preauth_failed") ||
		strings.Contains(errStr, "kdc_err_c_principal_unknown") {
		return ErrorCategoryAuthentication
	}

	return ErrorCategoryUnknown
}

// isLDAPCodeRetryable determines if an LDAP result code indicates a transient condition.
func isLDAPCodeRetryable(code uint16) bool {
	switch code {
	case ldap.LDAPResultBusy,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultServerDown,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultTimeout,
		ldap.LDAPResultConnectError,
		ldap.ErrorNetwork:
		return true
	default:
		return false
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out")
}

func isConnectionRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

// getLDAPCodeMessage returns a human-readable message for the result codes a bind or search can produce.
func getLDAPCodeMessage(code uint16) string {
	switch code {
	case ldap.LDAPResultOperationsError:
		return "LDAP operations error"
	case ldap.LDAPResultProtocolError:
		return "LDAP protocol error"
	case ldap.LDAPResultTimeLimitExceeded:
		return "LDAP time limit exceeded"
	case ldap.LDAPResultSizeLimitExceeded:
		return "LDAP size limit exceeded"
	case ldap.LDAPResultAuthMethodNotSupported:
		return "Authentication method not supported"
	case ldap.LDAPResultStrongAuthRequired:
		return "Strong authentication required"
	case ldap.LDAPResultReferral:
		return "LDAP referral"
	case ldap.LDAPResultAdminLimitExceeded:
		return "Administrative limit exceeded"
	case ldap.LDAPResultConfidentialityRequired:
		return "Confidentiality required"
	case ldap.LDAPResultNoSuchObject:
		return "Search base does not exist"
	case ldap.LDAPResultInvalidDNSyntax:
		return "Invalid DN syntax"
	case ldap.LDAPResultInappropriateAuthentication:
		return "Inappropriate authentication method"
	case ldap.LDAPResultInvalidCredentials:
		return "Invalid credentials"
	case ldap.LDAPResultInsufficientAccessRights:
		return "Insufficient access rights"
	case ldap.LDAPResultBusy:
		return "Server is busy"
	case ldap.LDAPResultUnavailable:
		return "Server is unavailable"
	case ldap.LDAPResultUnwillingToPerform:
		return "Server is unwilling to perform the operation"
	case ldap.LDAPResultServerDown:
		return "Server is down"
	case ldap.LDAPResultTimeout:
		return "Operation timed out"
	case ldap.LDAPResultFilterError:
		return "Invalid search filter"
	case ldap.LDAPResultConnectError:
		return "Connection error"
	default:
		return fmt.Sprintf("Unknown LDAP error (code %d)", code)
	}
}

// attemptError classifies a failure of operation against server. A failure
// seen after ctx ended carries ctx.Err(), since closing the connection on
// cancellation hides the deadline behind a generic channel error.
func attemptError(ctx context.Context, operation, server string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return NewLDAPError(operation, server, fmt.Errorf("%w: %w", ctxErr, err))
	}
	return WrapError(operation, server, err)
}

// WrapError wraps an error with operation context.
func WrapError(operation, server string, err error) error {
	if err == nil {
		return nil
	}

	var ldapErr *LDAPError
	if errors.As(err, &ldapErr) {
		return err
	}

	return NewLDAPError(operation, server, err)
}

// IsRetryableError reports whether err is a transient connectivity failure.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var retryable RetryableError
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	return NewLDAPError("", "", err).Retryable
}

// GetErrorCategory returns the category of an error.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryUnknown
	}

	var ldapErr *LDAPError
	if errors.As(err, &ldapErr) {
		return ldapErr.Category
	}

	return NewLDAPError("", "", err).Category
}

// IsAuthenticationError checks if an error indicates an authentication problem.
func IsAuthenticationError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryAuthentication
}

// IsNotFoundError checks if an error indicates a "not found" condition.
func IsNotFoundError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryNotFound
}

// DescribeBindError renders a bind failure the way connectivity checks report it.
func DescribeBindError(err error) string {
	switch GetErrorCategory(err) {
	case ErrorCategoryAuthentication:
		return "Invalid credentials"
	case ErrorCategoryTimeout:
		return "Connection timeout"
	}
	if isConnectionRefused(err) {
		return "Connection refused"
	}
	return "Bind error: " + err.Error()
}
