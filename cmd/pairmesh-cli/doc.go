// Package main provides the entry point for pairmesh-cli.
//
// The CLI covers both sides of pairing and the operator's admin tasks:
//
//	pairmesh-cli pair
//	pairmesh-cli exchange --save 'pairmesh://pair?host=editor.local%3A5080&token=pmet_...'
//	pairmesh-cli listen --request-state
//	pairmesh-cli upload ./screenshot.png
//	pairmesh-cli --admin-key pmak_... admin status
//	pairmesh-cli admin hash-key
package main
