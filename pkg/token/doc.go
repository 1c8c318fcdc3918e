// Package token generates the random credentials PairMesh hands out.
//
// A credential is a short kind prefix (pmet_, pmst_, pmak_) followed by 32
// random bytes from crypto/rand in unpadded base64url, 43 characters. The
// values never reach logs; Fingerprint gives a stable short handle instead.
package token
