// SPDX-License-Identifier: MIT

package jobs

import "net/url"

// redactLocation strips credentials from a catalog DSN for logging. File
// paths pass through.
func redactLocation(loc string) string {
	u, err := url.Parse(loc)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return loc
	}
	return u.Redacted()
}
