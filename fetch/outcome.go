package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
)

// Outcome is the terminal state of one fetch. Every failure mode of a fetch
// is an Outcome; Fetch never returns a Go error.
type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeHTTPError          Outcome = "http_error"
	OutcomeTimeout            Outcome = "timeout"
	OutcomeDNS                Outcome = "dns"
	OutcomeTLS                Outcome = "tls"
	OutcomeNetworkError       Outcome = "network_error"
	OutcomeSkippedContentType Outcome = "skipped_content_type"
	OutcomeMaxBytesExceeded   Outcome = "max_bytes_exceeded"
	OutcomeBlocked            Outcome = "blocked"
)

// Outcomes lists every outcome in a stable order (reporting, stats).
var Outcomes = []Outcome{
	OutcomeSuccess, OutcomeHTTPError, OutcomeTimeout, OutcomeDNS, OutcomeTLS,
	OutcomeNetworkError, OutcomeSkippedContentType, OutcomeMaxBytesExceeded, OutcomeBlocked,
}

// IsTransport reports outcomes produced by a failed exchange (no response).
func (o Outcome) IsTransport() bool {
	switch o {
	case OutcomeTimeout, OutcomeDNS, OutcomeTLS, OutcomeNetworkError:
		return true
	}
	return false
}

// Retryable reports outcomes an orchestrator may reasonably retry with
// backoff. Policy violations are not retryable under the same policy.
func (o Outcome) Retryable() bool {
	switch o {
	case OutcomeTimeout, OutcomeDNS, OutcomeNetworkError:
		return true
	}
	return false
}

// Classify maps a transport error to its outcome. It is a pure function of
// the error chain:
//
//	context deadline / cancellation, net timeouts -> timeout
//	*net.DNSError                                  -> dns
//	certificate verification, TLS alerts           -> tls
//	anything else                                  -> network_error
func Classify(err error) Outcome {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return OutcomeTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return OutcomeDNS
	}

	var (
		verifyErr    *tls.CertificateVerificationError
		alertErr     tls.AlertError
		unknownAuth  x509.UnknownAuthorityError
		invalidCert  x509.CertificateInvalidError
		hostnameErr  x509.HostnameError
		recordHdrErr tls.RecordHeaderError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &alertErr),
		errors.As(err, &unknownAuth),
		errors.As(err, &invalidCert),
		errors.As(err, &hostnameErr),
		errors.As(err, &recordHdrErr):
		return OutcomeTLS
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout
	}
	return OutcomeNetworkError
}
