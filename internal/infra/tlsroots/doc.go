// Package tlsroots loads TLS material for pairmesh.
//
// Pool builds the trust roots the CLI verifies the server against: the
// system pool plus any CA file an operator passes with --ca-file, which is
// how a self-signed editor certificate becomes trusted.
//
// CertReloader serves the server's certificate and swaps it in place when
// the certificate or key file is rewritten, so renewals need no restart.
package tlsroots
