// Package buildinfo exposes the version, commit and build time of the
// running binary, reported by `pairmesh-server version`, the admin status
// route and the pairmesh_build_info metric.
package buildinfo
