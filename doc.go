/*
Package cfddns keeps Cloudflare DNS records pointed at a host's current public IP address.

Usage will always start with [New],
which returns a *Client for a single record name inside a zone.
New requires a Cloudflare provider registered through [UsingCloudflare] and
accepts further options controlling resolution, logging, and dry-run mode.
A call to [Client.Run] performs one resolve-and-sync pass and reports what changed.
*/
package cfddns
