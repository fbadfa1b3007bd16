// Package mtls inspects client certificates and builds the TLS
// configuration that makes them available to the pipeline. Certificate
// authenticity is validated by the TLS layer; this package only reads
// identity out of already-verified certificates.
package mtls

import (
	"crypto/tls"
	"crypto/x509"
)

// CommonName returns the subject common name of cert. The second
// return is false when cert is absent; an empty common name on a
// present certificate reports true with "".
func CommonName(cert *x509.Certificate) (string, bool) {
	if cert == nil {
		return "", false
	}
	return cert.Subject.CommonName, true
}

// PeerCertificate returns the leaf client certificate from a TLS
// connection state, or nil when the client presented none.
func PeerCertificate(cs *tls.ConnectionState) *x509.Certificate {
	if cs == nil || len(cs.PeerCertificates) == 0 {
		return nil
	}
	return cs.PeerCertificates[0]
}
